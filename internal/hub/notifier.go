package hub

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "notifications:user:"
	broadcastChannel  = "notifications:broadcast"
)

// Notifier 通过 Redis 发布订阅在多实例间转发通知。
// REDIS_URL 未配置时为 nil，调用方退化为进程内直接投递。
type Notifier struct {
	rdb *redis.Client
}

// NewNotifierFromEnv 根据 REDIS_URL 创建 Notifier，未配置返回 nil
func NewNotifierFromEnv() *Notifier {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("⚠️ 无效的 REDIS_URL，通知退化为单实例投递: %v", err)
		return nil
	}
	return &Notifier{rdb: redis.NewClient(opts)}
}

// PublishUser 将通知负载发布到用户频道
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload []byte) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	channel := fmt.Sprintf("%s%d", userChannelPrefix, userID)
	return n.rdb.Publish(ctx, channel, payload).Err()
}

// PublishBroadcast 发布全站广播
func (n *Notifier) PublishBroadcast(ctx context.Context, payload []byte) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, broadcastChannel, payload).Err()
}

// StartSubscriber 订阅用户频道和广播频道，把消息投递到本实例的 Hub。
// ctx 取消时退出。
func (n *Notifier) StartSubscriber(ctx context.Context, h *Hub) {
	if n == nil || n.rdb == nil {
		return
	}

	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", broadcastChannel)
	ch := sub.Channel()

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Channel == broadcastChannel {
					h.Broadcast([]byte(msg.Payload))
					continue
				}
				idStr := strings.TrimPrefix(msg.Channel, userChannelPrefix)
				uid, err := strconv.ParseUint(idStr, 10, 64)
				if err != nil {
					continue
				}
				h.SendToUser(uint(uid), []byte(msg.Payload))
			}
		}
	}()
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"bookden/internal/db"
	"bookden/internal/hub"
	"bookden/internal/models"
)

// NotificationService 负责落库站内通知并实时推送。
// 配置了 Redis 时经发布订阅转发，否则直接投递到本进程 Hub。
type NotificationService struct {
	hub      *hub.Hub
	notifier *hub.Notifier
	mail     *MailService
}

func NewNotificationService(h *hub.Hub, n *hub.Notifier, mail *MailService) *NotificationService {
	return &NotificationService{hub: h, notifier: n, mail: mail}
}

type pushPayload struct {
	Type      models.NotificationType `json:"type"`
	Reason    string                  `json:"reason"`
	CreatedAt string                  `json:"created_at"`
}

// NotifyBookCommented 新根评论时通知图书录入者
func (s *NotificationService) NotifyBookCommented(book *models.Book, comment *CommentView, actor *models.User) {
	if book.CreatedBy == actor.ID {
		// 不通知自己
		return
	}

	reason := fmt.Sprintf("在图书 <a href=\"/b/%s#comment-%d\" target=\"_blank\" class=\"text-moss font-medium hover:underline tracking-tight\">《%s》</a> 下发布了新的评论",
		book.Bid, comment.ID, book.Title)
	s.create(book.CreatedBy, &actor.ID, models.NotificationTypeCommentBook, reason)
}

// NotifyCommentReplied 评论被回复时通知原评论作者，并发送邮件
func (s *NotificationService) NotifyCommentReplied(book *models.Book, parent *models.Comment, reply *CommentView, actor *models.User) {
	if parent.UserID == actor.ID {
		return
	}

	reason := fmt.Sprintf("在图书 <a href=\"/b/%s#comment-%d\" target=\"_blank\" class=\"text-moss font-medium hover:underline tracking-tight\">《%s》</a> 中回复了您的评论",
		book.Bid, reply.ID, book.Title)
	s.create(parent.UserID, &actor.ID, models.NotificationTypeReplyComment, reason)

	// 邮件通知原作者
	var receiver models.User
	if err := db.DB.First(&receiver, parent.UserID).Error; err == nil && s.mail != nil {
		bookLink := fmt.Sprintf("%s/b/%s#comment-%d", os.Getenv("SITE_URL"), book.Bid, reply.ID)
		s.mail.SendReplyNotification(
			receiver.Email,
			actor.Username,
			book.Title,
			reply.Content,
			parent.Content,
			bookLink,
		)
	}
}

// NotifySystem 系统通知（管理后台发送）
func (s *NotificationService) NotifySystem(userID uint, reason string) {
	s.create(userID, nil, models.NotificationTypeSystem, reason)
}

// NotifySystemAll 给全部正常用户落库系统通知，实时推送走一次广播
func (s *NotificationService) NotifySystemAll(reason string) {
	var userIDs []uint
	if err := db.DB.Model(&models.User{}).Where("status = ?", 0).Pluck("id", &userIDs).Error; err != nil {
		log.Printf("查询广播用户失败: %v", err)
		return
	}

	notifications := make([]models.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		notifications = append(notifications, models.Notification{
			UserID: id,
			Type:   models.NotificationTypeSystem,
			Reason: reason,
		})
	}
	if len(notifications) > 0 {
		if err := db.DB.CreateInBatches(notifications, 200).Error; err != nil {
			log.Printf("批量创建系统通知失败: %v", err)
			return
		}
	}

	payload, err := json.Marshal(pushPayload{
		Type:      models.NotificationTypeSystem,
		Reason:    reason,
		CreatedAt: time.Now().Format("2006-01-02 15:04:05"),
	})
	if err != nil {
		return
	}
	if s.notifier != nil {
		if err := s.notifier.PublishBroadcast(context.Background(), payload); err == nil {
			return
		}
		log.Printf("广播发布到 Redis 失败，回退本地投递")
	}
	if s.hub != nil {
		s.hub.Broadcast(payload)
	}
}

func (s *NotificationService) create(userID uint, actorID *uint, typ models.NotificationType, reason string) {
	notification := models.Notification{
		UserID:  userID,
		ActorID: actorID,
		Type:    typ,
		Reason:  reason,
	}
	if err := db.DB.Create(&notification).Error; err != nil {
		log.Printf("创建通知失败 (userID=%d): %v", userID, err)
		return
	}

	s.push(userID, pushPayload{
		Type:      typ,
		Reason:    reason,
		CreatedAt: notification.CreatedAt.Format("2006-01-02 15:04:05"),
	})
}

func (s *NotificationService) push(userID uint, p pushPayload) {
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}

	if s.notifier != nil {
		if err := s.notifier.PublishUser(context.Background(), userID, payload); err != nil {
			log.Printf("通知发布到 Redis 失败，回退本地投递: %v", err)
			s.hub.SendToUser(userID, payload)
		}
		return
	}
	if s.hub != nil {
		s.hub.SendToUser(userID, payload)
	}
}


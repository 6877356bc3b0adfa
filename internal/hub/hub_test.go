package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndCounts(t *testing.T) {
	h := NewHub()

	c1, err := h.Register(1, nil)
	require.NoError(t, err)
	c2, err := h.Register(1, nil)
	require.NoError(t, err)
	_, err = h.Register(2, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, h.UserConns(1))
	assert.Equal(t, 1, h.UserConns(2))
	assert.Equal(t, 3, h.TotalConns())

	h.Unregister(c1)
	assert.Equal(t, 1, h.UserConns(1))
	assert.Equal(t, 2, h.TotalConns())

	// 重复注销无副作用
	h.Unregister(c1)
	assert.Equal(t, 2, h.TotalConns())

	h.Unregister(c2)
	assert.Equal(t, 0, h.UserConns(1))
}

func TestPerUserConnLimit(t *testing.T) {
	h := NewHub()

	for i := 0; i < maxConnsPerUser; i++ {
		_, err := h.Register(7, nil)
		require.NoError(t, err)
	}
	_, err := h.Register(7, nil)
	assert.Error(t, err, "超出单用户连接上限应被拒绝")

	// 其他用户不受影响
	_, err = h.Register(8, nil)
	assert.NoError(t, err)
}

func TestSendToUser(t *testing.T) {
	h := NewHub()

	c1, err := h.Register(1, nil)
	require.NoError(t, err)
	_, err = h.Register(1, nil)
	require.NoError(t, err)

	delivered := h.SendToUser(1, []byte("hello"))
	assert.Equal(t, 2, delivered)

	// 两条连接各收到一条
	assert.Equal(t, []byte("hello"), <-c1.send)

	// 不在线的用户投递 0 条
	assert.Equal(t, 0, h.SendToUser(99, []byte("ghost")))
}

func TestSendSkipsFullChannels(t *testing.T) {
	h := NewHub()

	c, err := h.Register(1, nil)
	require.NoError(t, err)

	// 填满发送通道
	for i := 0; i < cap(c.send); i++ {
		c.send <- []byte("x")
	}

	delivered := h.SendToUser(1, []byte("overflow"))
	assert.Equal(t, 0, delivered, "慢连接应被跳过而不是阻塞")
}

func TestBroadcast(t *testing.T) {
	h := NewHub()

	_, err := h.Register(1, nil)
	require.NoError(t, err)
	_, err = h.Register(2, nil)
	require.NoError(t, err)
	_, err = h.Register(2, nil)
	require.NoError(t, err)

	delivered := h.Broadcast([]byte("system"))
	assert.Equal(t, 3, delivered)
}

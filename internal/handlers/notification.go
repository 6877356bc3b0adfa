package handlers

import (
	"log"
	"net/http"

	"bookden/internal/db"
	"bookden/internal/hub"
	"bookden/internal/middleware"
	"bookden/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const notificationsPerPage = 20

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 同站会话鉴权，来源放宽
		return true
	},
}

type NotificationHandler struct {
	hub *hub.Hub
}

func NewNotificationHandler(h *hub.Hub) *NotificationHandler {
	return &NotificationHandler{hub: h}
}

// List 通知列表
func (h *NotificationHandler) List(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	page := pageParam(c)

	var total int64
	db.DB.Model(&models.Notification{}).Where("user_id = ?", user.ID).Count(&total)

	var notifications []models.Notification
	db.DB.Preload("Actor").
		Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Limit(notificationsPerPage).
		Offset((page - 1) * notificationsPerPage).
		Find(&notifications)

	Render(c, http.StatusOK, "notification.html", gin.H{
		"Notifications": notifications,
		"Title":         "我的通知",
		"CurrentPage":   page,
		"TotalPages":    totalPages(total, notificationsPerPage),
	})
}

// Read 单条标记已读（HTMX）
func (h *NotificationHandler) Read(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	id := c.Param("id")

	db.DB.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, user.ID).
		Update("is_read", true)

	c.Status(http.StatusOK)
}

// ReadAll 全部标记已读
func (h *NotificationHandler) ReadAll(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	db.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).
		Update("is_read", true)

	HtmxRedirect(c, "/notifications")
}

// Delete 删除单条通知
func (h *NotificationHandler) Delete(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	id := c.Param("id")

	db.DB.Where("id = ? AND user_id = ?", id, user.ID).Delete(&models.Notification{})

	c.Status(http.StatusOK)
}

// WebSocket 实时通知连接，注册到 Hub 后由读写循环接管
func (h *NotificationHandler) WebSocket(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket 升级失败 (userID=%d): %v", user.ID, err)
		return
	}

	client, err := h.hub.Register(user.ID, conn)
	if err != nil {
		// 连接数超限
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		conn.Close()
		return
	}

	go client.WriteLoop()
	client.ReadLoop()
}

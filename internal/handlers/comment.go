package handlers

import (
	"net/http"
	"strings"

	"bookden/internal/db"
	"bookden/internal/middleware"
	"bookden/internal/models"
	"bookden/internal/services"
	"bookden/internal/utils"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	commentService      *services.CommentService
	notificationService *services.NotificationService
}

func NewCommentHandler(commentService *services.CommentService, notificationService *services.NotificationService) *CommentHandler {
	return &CommentHandler{
		commentService:      commentService,
		notificationService: notificationService,
	}
}

// serviceErrorStatus 服务层错误到 HTTP 状态码
func serviceErrorStatus(err error) int {
	switch {
	case services.IsValidation(err):
		return http.StatusBadRequest
	case services.IsNotFound(err):
		return http.StatusNotFound
	case services.IsPermission(err):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// parseStar 表单里的星级，空串表示未评分
func parseStar(raw string) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	star := utils.StringToInt(raw)
	return &star
}

// Create 发布评论：无 parent_id 为根评论（可带星级），有 parent_id 为回复
func (h *CommentHandler) Create(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	bid := c.Param("bid")

	if user.Status == 2 {
		c.String(http.StatusForbidden, "您的账号已被封禁，无法发表评论。")
		return
	}

	var book models.Book
	if err := db.DB.Where("bid = ?", bid).First(&book).Error; err != nil {
		c.String(http.StatusNotFound, "图书不存在")
		return
	}

	content := c.PostForm("content")
	star := parseStar(c.PostForm("star"))
	parentID := utils.StringToUint(c.PostForm("parent_id"))

	ctx := c.Request.Context()

	var view *services.CommentView
	var err error
	if parentID == 0 {
		view, err = h.commentService.CreateRootComment(ctx, book.ID, user.ID, content, star)
	} else {
		view, err = h.commentService.CreateReply(ctx, book.ID, parentID, user.ID, content, star)
	}
	if err != nil {
		c.String(serviceErrorStatus(err), err.Error())
		return
	}

	// 异步通知 + 热度刷新
	go func() {
		if view.IsRoot() {
			h.notificationService.NotifyBookCommented(&book, view, user)
		} else {
			var parent models.Comment
			if err := db.DB.First(&parent, parentID).Error; err == nil {
				h.notificationService.NotifyCommentReplied(&book, &parent, view, user)
			}
		}
	}()
	services.GetHeatService().ScheduleUpdate(book.ID)

	if c.GetHeader("HX-Request") != "" {
		HtmxRedirect(c, "/b/"+bid+"#comment-"+utils.UintToString(view.ID))
		return
	}
	c.Redirect(http.StatusFound, "/b/"+bid)
}

// Update 编辑评论（作者或管理员），根评论可同时改星级
func (h *CommentHandler) Update(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	commentID := utils.StringToUint(c.Param("id"))

	content := c.PostForm("content")
	star := parseStar(c.PostForm("star"))

	view, err := h.commentService.UpdateComment(c.Request.Context(), commentID, user.ID, content, star)
	if err != nil {
		c.String(serviceErrorStatus(err), err.Error())
		return
	}

	if c.GetHeader("HX-Request") != "" {
		// 局部刷新评论块
		c.HTML(http.StatusOK, "components/comment_item.html", gin.H{
			"Comment":     toRendered(*view),
			"CurrentUser": user,
		})
		return
	}
	c.Redirect(http.StatusFound, c.GetHeader("Referer"))
}

// Delete 删除评论及其全部后代（作者或管理员）
func (h *CommentHandler) Delete(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	commentID := utils.StringToUint(c.Param("id"))

	if err := h.commentService.DeleteComment(c.Request.Context(), commentID, user.ID); err != nil {
		c.String(serviceErrorStatus(err), err.Error())
		return
	}

	// HTMX 置空目标节点即可
	c.Status(http.StatusOK)
}

// ListReplies 加载某条评论的直接回复（HTMX 分页）
func (h *CommentHandler) ListReplies(c *gin.Context) {
	commentID := utils.StringToUint(c.Param("id"))
	page := pageParam(c)

	replies, total, err := h.commentService.ListReplies(c.Request.Context(), commentID, page, 20)
	if err != nil {
		c.String(serviceErrorStatus(err), err.Error())
		return
	}

	rendered := make([]RenderedComment, len(replies))
	for i, v := range replies {
		rendered[i] = toRendered(v)
	}

	var currentUser interface{}
	if u, exists := c.Get(middleware.CheckUserKey); exists {
		currentUser = u
	}

	c.HTML(http.StatusOK, "components/comment_replies.html", gin.H{
		"Comments":    rendered,
		"ParentID":    commentID,
		"CurrentUser": currentUser,
		"CurrentPage": page,
		"TotalPages":  totalPages(total, 20),
	})
}

func toRendered(v services.CommentView) RenderedComment {
	return RenderedComment{
		CommentView: v,
		ContentHTML: utils.RenderMarkdown(v.Content),
	}
}

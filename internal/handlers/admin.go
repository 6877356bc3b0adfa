package handlers

import (
	"net/http"
	"strings"

	"bookden/internal/db"
	"bookden/internal/models"
	"bookden/internal/services"
	"bookden/internal/utils"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	notificationService *services.NotificationService
}

func NewAdminHandler(notificationService *services.NotificationService) *AdminHandler {
	return &AdminHandler{notificationService: notificationService}
}

// Dashboard 管理后台首页，展示基础统计
func (h *AdminHandler) Dashboard(c *gin.Context) {
	var userCount, bookCount, commentCount, favoriteCount int64
	db.DB.Model(&models.User{}).Count(&userCount)
	db.DB.Model(&models.Book{}).Count(&bookCount)
	db.DB.Model(&models.Comment{}).Count(&commentCount)
	db.DB.Model(&models.Favorite{}).Count(&favoriteCount)

	Render(c, http.StatusOK, "admin/dashboard.html", gin.H{
		"Title":         "管理后台",
		"UserCount":     userCount,
		"BookCount":     bookCount,
		"CommentCount":  commentCount,
		"FavoriteCount": favoriteCount,
	})
}

// ===== 用户管理 =====

func (h *AdminHandler) Users(c *gin.Context) {
	page := pageParam(c)
	perPage := 30

	var total int64
	db.DB.Model(&models.User{}).Count(&total)

	var users []models.User
	db.DB.Order("created_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&users)

	Render(c, http.StatusOK, "admin/users.html", gin.H{
		"Title":       "用户管理",
		"Users":       users,
		"CurrentPage": page,
		"TotalPages":  totalPages(total, perPage),
	})
}

// BanUser 封禁用户并发送系统通知
func (h *AdminHandler) BanUser(c *gin.Context) {
	userID := utils.StringToUint(c.Param("id"))

	var user models.User
	if err := db.DB.First(&user, userID).Error; err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	if user.IsAdmin() {
		c.String(http.StatusForbidden, "不能封禁管理员")
		return
	}

	db.DB.Model(&user).Update("status", 2)
	h.notificationService.NotifySystem(user.ID, "您的账号因违规行为已被封禁。如有疑问请联系管理员。")

	HtmxRedirect(c, "/admin/users")
}

func (h *AdminHandler) UnbanUser(c *gin.Context) {
	userID := utils.StringToUint(c.Param("id"))

	db.DB.Model(&models.User{}).Where("id = ?", userID).Update("status", 0)

	HtmxRedirect(c, "/admin/users")
}

// SendSystemNotification 向指定用户发送系统通知，user_id 为空则广播所有用户
func (h *AdminHandler) SendSystemNotification(c *gin.Context) {
	content := strings.TrimSpace(c.PostForm("content"))
	if content == "" {
		c.String(http.StatusBadRequest, "通知内容不能为空")
		return
	}

	if targetID := utils.StringToUint(c.PostForm("user_id")); targetID > 0 {
		h.notificationService.NotifySystem(targetID, content)
	} else {
		h.notificationService.NotifySystemAll(content)
	}

	HtmxRedirect(c, "/admin")
}

// ===== 作者管理 =====

func (h *AdminHandler) Authors(c *gin.Context) {
	page := pageParam(c)
	perPage := 30

	var total int64
	db.DB.Model(&models.Author{}).Count(&total)

	var authors []models.Author
	db.DB.Order("id ASC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&authors)

	Render(c, http.StatusOK, "admin/authors.html", gin.H{
		"Title":       "作者管理",
		"Authors":     authors,
		"CurrentPage": page,
		"TotalPages":  totalPages(total, perPage),
	})
}

func (h *AdminHandler) UpdateAuthor(c *gin.Context) {
	authorID := utils.StringToUint(c.Param("id"))

	var author models.Author
	if err := db.DB.First(&author, authorID).Error; err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		c.String(http.StatusBadRequest, "作者名不能为空")
		return
	}

	author.Name = name
	author.Bio = strings.TrimSpace(c.PostForm("bio"))
	db.DB.Save(&author)

	HtmxRedirect(c, "/admin/authors")
}

// DeleteAuthor 仅允许删除名下无图书的作者
func (h *AdminHandler) DeleteAuthor(c *gin.Context) {
	authorID := utils.StringToUint(c.Param("id"))

	var bookCount int64
	db.DB.Model(&models.Book{}).Where("author_id = ?", authorID).Count(&bookCount)
	if bookCount > 0 {
		c.String(http.StatusConflict, "该作者名下仍有图书，无法删除")
		return
	}

	db.DB.Delete(&models.Author{}, authorID)
	HtmxRedirect(c, "/admin/authors")
}

// ===== 出版社管理 =====

func (h *AdminHandler) Publishers(c *gin.Context) {
	var publishers []models.Publisher
	db.DB.Order("id ASC").Find(&publishers)

	Render(c, http.StatusOK, "admin/publishers.html", gin.H{
		"Title":      "出版社管理",
		"Publishers": publishers,
	})
}

func (h *AdminHandler) UpdatePublisher(c *gin.Context) {
	publisherID := utils.StringToUint(c.Param("id"))

	var publisher models.Publisher
	if err := db.DB.First(&publisher, publisherID).Error; err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		c.String(http.StatusBadRequest, "出版社名不能为空")
		return
	}

	publisher.Name = name
	db.DB.Save(&publisher)

	HtmxRedirect(c, "/admin/publishers")
}

func (h *AdminHandler) DeletePublisher(c *gin.Context) {
	publisherID := utils.StringToUint(c.Param("id"))

	// 图书对出版社是可空引用，先解绑再删除
	db.DB.Model(&models.Book{}).Where("publisher_id = ?", publisherID).Update("publisher_id", nil)
	db.DB.Delete(&models.Publisher{}, publisherID)

	HtmxRedirect(c, "/admin/publishers")
}

// ===== 分类管理 =====

func (h *AdminHandler) Categories(c *gin.Context) {
	Render(c, http.StatusOK, "admin/categories.html", gin.H{
		"Title":      "分类管理",
		"Categories": loadCategories(),
	})
}

func (h *AdminHandler) CreateCategory(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		c.String(http.StatusBadRequest, "分类名不能为空")
		return
	}

	category := models.Category{
		Name:        name,
		Description: strings.TrimSpace(c.PostForm("description")),
	}
	if err := db.DB.Create(&category).Error; err != nil {
		c.String(http.StatusConflict, "分类已存在")
		return
	}

	HtmxRedirect(c, "/admin/categories")
}

func (h *AdminHandler) UpdateCategory(c *gin.Context) {
	categoryID := utils.StringToUint(c.Param("id"))

	var category models.Category
	if err := db.DB.First(&category, categoryID).Error; err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		c.String(http.StatusBadRequest, "分类名不能为空")
		return
	}

	category.Name = name
	category.Description = strings.TrimSpace(c.PostForm("description"))
	db.DB.Save(&category)

	HtmxRedirect(c, "/admin/categories")
}

func (h *AdminHandler) DeleteCategory(c *gin.Context) {
	categoryID := utils.StringToUint(c.Param("id"))

	var bookCount int64
	db.DB.Model(&models.Book{}).Where("category_id = ?", categoryID).Count(&bookCount)
	if bookCount > 0 {
		c.String(http.StatusConflict, "该分类下仍有图书，无法删除")
		return
	}

	db.DB.Delete(&models.Category{}, categoryID)
	HtmxRedirect(c, "/admin/categories")
}

// ===== 标签管理 =====

func (h *AdminHandler) Tags(c *gin.Context) {
	var tags []models.Tag
	db.DB.Order("id ASC").Find(&tags)

	Render(c, http.StatusOK, "admin/tags.html", gin.H{
		"Title": "标签管理",
		"Tags":  tags,
	})
}

func (h *AdminHandler) DeleteTag(c *gin.Context) {
	tagID := utils.StringToUint(c.Param("id"))

	db.DB.Where("tag_id = ?", tagID).Delete(&models.BookTag{})
	db.DB.Delete(&models.Tag{}, tagID)

	HtmxRedirect(c, "/admin/tags")
}

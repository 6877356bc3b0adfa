package handlers

import (
	"net/http"
	"strings"

	"bookden/internal/db"
	"bookden/internal/middleware"
	"bookden/internal/models"
	"bookden/internal/utils"

	"github.com/gin-gonic/gin"
)

type UserHandler struct{}

func NewUserHandler() *UserHandler {
	return &UserHandler{}
}

// Profile 用户主页：评论 / 收藏两个标签页
func (h *UserHandler) Profile(c *gin.Context) {
	userID := utils.StringToUint(c.Param("id"))

	var user models.User
	if err := db.DB.First(&user, userID).Error; err != nil {
		RenderError(c, http.StatusNotFound, "用户不存在")
		return
	}

	tab := c.DefaultQuery("tab", "comments")
	page := pageParam(c)
	perPage := 20

	data := gin.H{
		"ProfileUser": user,
		"Tab":         tab,
		"Title":       user.Username,
		"DaysJoined":  utils.GetDaysSinceJoined(user.CreatedAt),
		"CurrentPage": page,
	}

	// 活跃度 = 评论数 + 收藏数，决定读者等级
	var commentTotal, favoriteTotal int64
	db.DB.Model(&models.Comment{}).Where("user_id = ?", user.ID).Count(&commentTotal)
	db.DB.Model(&models.Favorite{}).Where("user_id = ?", user.ID).Count(&favoriteTotal)
	levelName, levelIcon := utils.GetReaderLevel(int(commentTotal + favoriteTotal))
	data["LevelName"] = levelName
	data["LevelIcon"] = levelIcon
	data["CommentTotal"] = commentTotal
	data["FavoriteTotal"] = favoriteTotal

	switch tab {
	case "favorites":
		var favorites []models.Favorite
		db.DB.Preload("Book").Preload("Book.Author").
			Where("user_id = ?", user.ID).
			Order("created_at DESC").
			Limit(perPage).
			Offset((page - 1) * perPage).
			Find(&favorites)
		data["Favorites"] = favorites
		data["TotalPages"] = totalPages(favoriteTotal, perPage)
	default:
		var comments []models.Comment
		db.DB.Preload("Book").
			Where("user_id = ?", user.ID).
			Order("created_at DESC").
			Limit(perPage).
			Offset((page - 1) * perPage).
			Find(&comments)
		data["Comments"] = comments
		data["TotalPages"] = totalPages(commentTotal, perPage)
	}

	Render(c, http.StatusOK, "user/profile.html", data)
}

// ShowSettings 个人设置页
func (h *UserHandler) ShowSettings(c *gin.Context) {
	Render(c, http.StatusOK, "user/settings.html", gin.H{
		"Title":  "个人设置",
		"Emojis": utils.GetCommonEmojis(),
	})
}

// UpdateSettings 更新用户名 / 头像 / 简介
func (h *UserHandler) UpdateSettings(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	username := strings.TrimSpace(c.PostForm("username"))
	avatar := strings.TrimSpace(c.PostForm("avatar"))
	bio := strings.TrimSpace(c.PostForm("bio"))

	if username == "" {
		Render(c, http.StatusBadRequest, "user/settings.html", gin.H{
			"Error":  "用户名不能为空",
			"Emojis": utils.GetCommonEmojis(),
		})
		return
	}
	if len([]rune(bio)) > 200 {
		Render(c, http.StatusBadRequest, "user/settings.html", gin.H{
			"Error":  "简介不能超过 200 字",
			"Emojis": utils.GetCommonEmojis(),
		})
		return
	}

	user.Username = username
	if avatar != "" {
		user.Avatar = avatar
	}
	user.Bio = bio

	if err := db.DB.Save(user).Error; err != nil {
		Render(c, http.StatusInternalServerError, "user/settings.html", gin.H{
			"Error":  "保存失败",
			"Emojis": utils.GetCommonEmojis(),
		})
		return
	}

	Render(c, http.StatusOK, "user/settings.html", gin.H{
		"Success": "保存成功",
		"Emojis":  utils.GetCommonEmojis(),
	})
}

// SearchHistory 搜索历史
func (h *UserHandler) SearchHistory(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	page := pageParam(c)
	perPage := 30

	var total int64
	db.DB.Model(&models.SearchHistory{}).Where("user_id = ?", user.ID).Count(&total)

	var history []models.SearchHistory
	db.DB.Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&history)

	Render(c, http.StatusOK, "user/search_history.html", gin.H{
		"History":     history,
		"Title":       "搜索历史",
		"CurrentPage": page,
		"TotalPages":  totalPages(total, perPage),
	})
}

// ClearSearchHistory 清空搜索历史
func (h *UserHandler) ClearSearchHistory(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	db.DB.Where("user_id = ?", user.ID).Delete(&models.SearchHistory{})

	HtmxRedirect(c, "/settings/search-history")
}

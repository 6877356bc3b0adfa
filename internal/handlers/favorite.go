package handlers

import (
	"net/http"

	"bookden/internal/db"
	"bookden/internal/middleware"
	"bookden/internal/models"
	"bookden/internal/services"

	"github.com/gin-gonic/gin"
)

type FavoriteHandler struct{}

func NewFavoriteHandler() *FavoriteHandler {
	return &FavoriteHandler{}
}

// Toggle 收藏/取消收藏（HTMX 返回按钮局部）
func (h *FavoriteHandler) Toggle(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	bid := c.Param("bid")

	var book models.Book
	if err := db.DB.Where("bid = ?", bid).First(&book).Error; err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	var favorite models.Favorite
	err := db.DB.Where("user_id = ? AND book_id = ?", user.ID, book.ID).First(&favorite).Error

	isFavorited := false
	if err == nil {
		// 已收藏则取消
		db.DB.Delete(&favorite)
	} else {
		favorite = models.Favorite{UserID: user.ID, BookID: book.ID}
		if err := db.DB.Create(&favorite).Error; err != nil {
			// 唯一索引冲突等情况按已收藏处理
			c.Status(http.StatusConflict)
			return
		}
		isFavorited = true
	}

	// 收藏数影响热度
	services.GetHeatService().ScheduleUpdate(book.ID)

	var favoriteCount int64
	db.DB.Model(&models.Favorite{}).Where("book_id = ?", book.ID).Count(&favoriteCount)

	c.HTML(http.StatusOK, "components/favorite_button.html", gin.H{
		"Book":          book,
		"IsFavorited":   isFavorited,
		"FavoriteCount": favoriteCount,
	})
}

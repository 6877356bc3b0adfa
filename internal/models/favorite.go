package models

import (
	"time"
)

// Favorite 收藏模型 - 用户收藏图书
type Favorite struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index;uniqueIndex:idx_user_book" json:"user_id"`
	BookID    uint      `gorm:"not null;index;uniqueIndex:idx_user_book" json:"book_id"`
	Book      Book      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"book"`
	CreatedAt time.Time `json:"created_at"`
}

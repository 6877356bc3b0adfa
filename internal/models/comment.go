package models

import (
	"time"
)

type Comment struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	Cid      string   `gorm:"uniqueIndex;size:8;not null" json:"cid"`
	BookID   uint     `gorm:"not null;index" json:"book_id"`
	Book     Book     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"book"`
	UserID   uint     `gorm:"not null;index" json:"user_id"`
	User     User     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	ParentID *uint    `gorm:"index" json:"parent_id"` // Nullable for root comments
	Parent   *Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"parent"`
	Content  string   `gorm:"type:text;not null" json:"content"`
	// Star 仅根评论可设置（1-5），回复始终为 NULL
	Star      *int       `gorm:"check:star IS NULL OR (star >= 1 AND star <= 5)" json:"star"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// IsRoot reports whether the comment sits at the top of its thread.
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil
}

package models

import (
	"time"
)

type Tag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null;unique;size:50" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// BookTag 图书与标签的多对多关联
type BookTag struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BookID    uint      `gorm:"not null;index;uniqueIndex:idx_book_tag" json:"book_id"`
	Book      Book      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"book"`
	TagID     uint      `gorm:"not null;index;uniqueIndex:idx_book_tag" json:"tag_id"`
	Tag       Tag       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"tag"`
	CreatedAt time.Time `json:"created_at"`
}

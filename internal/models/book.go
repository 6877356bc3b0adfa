package models

import (
	"time"
)

type Book struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Bid         string     `gorm:"uniqueIndex;size:8;not null" json:"bid"`
	Title       string     `gorm:"not null" json:"title"`
	AuthorID    uint       `gorm:"not null;index" json:"author_id"`
	Author      Author     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"author"`
	CategoryID  uint       `gorm:"not null;index;default:1" json:"category_id"`
	Category    Category   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"category"`
	PublisherID *uint      `gorm:"index" json:"publisher_id"` // Optional
	Publisher   *Publisher `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"publisher"`
	ISBN        string     `gorm:"size:20;index" json:"isbn"`
	Description string     `gorm:"type:text" json:"description"` // Markdown
	CoverURL    string     `json:"cover_url"`
	PublishYear int        `json:"publish_year"`
	Views       int        `gorm:"default:0" json:"views"` // 浏览量
	Heat        int        `gorm:"default:0;index" json:"heat"` // 热度分，由 HeatService 异步计算
	CreatedBy   uint       `gorm:"not null;index" json:"created_by"`
	Creator     User       `gorm:"foreignKey:CreatedBy;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"creator"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// 非数据库字段，用于查询时填充
	CommentCount int     `gorm:"-" json:"comment_count"`
	AvgStar      float64 `gorm:"-" json:"avg_star"`
	StarCount    int     `gorm:"-" json:"star_count"`
}

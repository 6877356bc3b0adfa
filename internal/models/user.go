package models

import (
	"time"
)

type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"not null" json:"username"` // Username can be modified
	Email       string    `gorm:"uniqueIndex;not null" json:"email"`
	Password    string    `gorm:"not null" json:"-"`                           // Hash
	Avatar      string    `gorm:"default:📚" json:"avatar"`                     // emoji 头像
	Bio         string    `gorm:"size:200" json:"bio"`                         // 个人简介
	Role        string    `gorm:"size:20;default:'user';not null" json:"role"` // user, admin
	Status      int       `gorm:"default:0" json:"status"`                     // 0:正常, 2:封禁
	IsActivated bool      `gorm:"default:false" json:"is_activated"`           // 是否已激活
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	// No DeletedAt for hard delete
}

func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}

package models

import (
	"time"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string `gorm:"unique;not null"          json:"email"`
	Username     string `gorm:"not null"                 json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	IsAdmin      bool   `gorm:"default:false"            json:"is_admin"`
	IsVerified   bool   `gorm:"default:false"            json:"is_verified"`
}

type Page struct {
	ID          string    `gorm:"primaryKey"      json:"id"`
	Title       string    `gorm:"not null"        json:"title"`
	Content     string    `json:"content"`
	Public      bool      `gorm:"default:true"    json:"public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ScheduledAt time.Time `gorm:"index"           json:"scheduled_at"`
	OwnerID     uint      `gorm:"index;not null"  json:"owner_id"`
}

type FileModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"  json:"id"`
	Filename    string    `gorm:"index;not null"            json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `gorm:"check:size >= 0"           json:"size"`
	Path        string    `gorm:"not null"                  json:"-"`
	PageID      string    `gorm:"index"                     json:"page_id"`
	OwnerID     uint      `gorm:"index;not null"            json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

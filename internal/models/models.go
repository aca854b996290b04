package models

import (
	"time"
)

type User struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string     `gorm:"uniqueIndex;size:191;not null" json:"email"`
	PasswordHash string     `gorm:"not null"                 json:"-"`
	Name         string     `gorm:"size:191"                 json:"name"`
	Phone        string     `gorm:"size:32"                  json:"phone"`
	Role         string     `gorm:"not null;default:user"    json:"role"`
	FailedLogins int        `gorm:"not null;default:0"       json:"-"`
	LockedUntil  *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey"                   json:"id"`
	UserID    uint      `gorm:"index;not null"               json:"user_id"`
	Token     string    `gorm:"uniqueIndex;size:64;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null"                     json:"expires_at"`
	Used      bool      `gorm:"default:false"                json:"used"`
}

type EvaluationRequest struct {
	ID               uint      `gorm:"primaryKey"       json:"id"`
	UserID           uint      `gorm:"index;not null"   json:"user_id"`
	Comment          string    `gorm:"not null"         json:"comment"`
	PreferredContact string    `gorm:"size:16;not null" json:"preferred_contact"`
	ImageFilename    string    `gorm:"size:64"          json:"image_filename"`
	CreatedAt        time.Time `json:"created_at"`
}

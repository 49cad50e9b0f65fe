package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a caregiver account. TelegramID is zero for users that never linked a chat.
type User struct {
	ID         string `gorm:"primaryKey"`
	TelegramID int64  `gorm:"index"`
	Name       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// CircleMember links a user to a care circle. Circle records themselves live outside this service.
type CircleMember struct {
	CircleID  string `gorm:"primaryKey"`
	UserID    string `gorm:"primaryKey;index"`
	CreatedAt time.Time
}

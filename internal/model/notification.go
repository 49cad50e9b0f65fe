package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	NotificationTypeCareTask = "care_task"

	DefaultReminderMinutes = 15
)

// NotificationSettings holds a user's delivery preferences. Categories is an
// opt-out map: only an explicit false disables a notification type.
type NotificationSettings struct {
	UserID                  string `gorm:"primaryKey"`
	PushEnabled             bool
	EmailEnabled            bool
	Categories              datatypes.JSONMap
	CareTaskReminderMinutes datatypes.JSONSlice[int]
	RemindersPaused         bool // set by /stop, survives restarts
	UpdatedAt               time.Time
}

// DefaultNotificationSettings is used when a user never saved settings.
func DefaultNotificationSettings(userID string) NotificationSettings {
	return NotificationSettings{
		UserID:                  userID,
		PushEnabled:             true,
		CareTaskReminderMinutes: datatypes.JSONSlice[int]{DefaultReminderMinutes},
	}
}

// LeadTimes returns the configured reminder lead times in minutes, without
// duplicates or non-positive values. A nil slice means the column was never set
// and resolves to the default; an explicit empty list stays empty.
func (s *NotificationSettings) LeadTimes() []int {
	if s == nil || s.CareTaskReminderMinutes == nil {
		return []int{DefaultReminderMinutes}
	}
	seen := make(map[int]bool, len(s.CareTaskReminderMinutes))
	out := make([]int, 0, len(s.CareTaskReminderMinutes))
	for _, m := range s.CareTaskReminderMinutes {
		if m <= 0 || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Allows reports whether notifications of the given type are enabled.
func (s *NotificationSettings) Allows(notificationType string) bool {
	if s == nil || s.Categories == nil {
		return true
	}
	v, ok := s.Categories[notificationType].(bool)
	return !ok || v
}

// Notification is the in-app record written for every dispatched reminder.
type Notification struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"index"`
	Type      string
	Title     string
	Message   string
	Link      string
	Metadata  datatypes.JSONMap
	Read      bool `gorm:"default:false"`
	CreatedAt time.Time
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

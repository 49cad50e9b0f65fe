package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task categories a calendar event can carry. Medications are their own category
// and never stored as events.
const (
	CategoryPersonalCare = "personal_care"
	CategoryAppointment  = "appointment"
	CategoryTask         = "task"
)

// CalendarEvent is a single concrete occurrence. StartTime and EndTime are the
// owner's wall clock; see WallClock.
type CalendarEvent struct {
	ID                string  `gorm:"primaryKey"`
	CreatedBy         string  `gorm:"index"`
	CircleID          *string `gorm:"index"`
	Title             string  `gorm:"not null"`
	Description       string
	TaskCategory      string    `gorm:"index"`
	StartTime         time.Time `gorm:"index"`
	EndTime           time.Time
	RecurrencePattern string // informational, never expanded
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (e *CalendarEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// IsEventCategory reports whether c is a category a calendar event may carry.
func IsEventCategory(c string) bool {
	switch c {
	case CategoryPersonalCare, CategoryAppointment, CategoryTask:
		return true
	}
	return false
}

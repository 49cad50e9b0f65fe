package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Medication is a recurring daily obligation with one or more times of day.
// Exactly one of UserID or CircleID is set; personal medications have no circle.
type Medication struct {
	ID              string  `gorm:"primaryKey"`
	UserID          *string `gorm:"index"`
	CircleID        *string `gorm:"index"`
	Name            string  `gorm:"not null"`
	Dosage          string
	Frequency       string
	Notes           string
	Times           datatypes.JSONSlice[string] // "HH:MM", e.g. ["08:00","20:00"]
	Active          bool
	ReminderEnabled bool
	StartDate       time.Time
	EndDate         *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (m *Medication) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const CompletionStatusCompleted = "completed"

var ErrCompletionSource = errors.New("completion must reference exactly one of medication or event")

// TaskCompletion records that an occurrence was marked done.
type TaskCompletion struct {
	ID            string  `gorm:"primaryKey"`
	MedicationID  *string `gorm:"index"`
	EventID       *string `gorm:"index"`
	CompletedBy   string  `gorm:"index"`
	ScheduledTime time.Time
	Status        string
	CreatedAt     time.Time
}

func (c *TaskCompletion) BeforeCreate(tx *gorm.DB) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Validate checks that the completion points at a single source record.
func (c *TaskCompletion) Validate() error {
	if (c.MedicationID == nil) == (c.EventID == nil) {
		return ErrCompletionSource
	}
	return nil
}

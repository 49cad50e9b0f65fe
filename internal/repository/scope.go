package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned by FindByID lookups.
var ErrNotFound = errors.New("record not found")

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// OwnerScope selects records owned by a user personally and/or by circles.
// A personal record is one with no circle. An empty scope matches nothing.
type OwnerScope struct {
	UserID    string
	CircleIDs []string
}

// Personal is the scope of records a user owns outside any circle.
func Personal(userID string) OwnerScope {
	return OwnerScope{UserID: userID}
}

// Circle is the scope of records shared by one circle.
func Circle(circleID string) OwnerScope {
	return OwnerScope{CircleIDs: []string{circleID}}
}

func (s OwnerScope) empty() bool {
	return s.UserID == "" && len(s.CircleIDs) == 0
}

// apply adds the scope condition; ownerColumn is the personal owner column of the table.
func (s OwnerScope) apply(db *gorm.DB, ownerColumn string) *gorm.DB {
	switch {
	case s.UserID != "" && len(s.CircleIDs) > 0:
		return db.Where("("+ownerColumn+" = ? AND circle_id IS NULL) OR circle_id IN ?", s.UserID, s.CircleIDs)
	case s.UserID != "":
		return db.Where(ownerColumn+" = ? AND circle_id IS NULL", s.UserID)
	default:
		return db.Where("circle_id IN ?", s.CircleIDs)
	}
}

// DateRange bounds event start times. Both ends are inclusive; a zero To leaves
// the range open-ended.
type DateRange struct {
	From time.Time
	To   time.Time
}

// CompletionMatch selects completions to delete. With MedicationID set it
// matches scheduled times in [From, To); with EventID set it matches every
// completion of the event.
type CompletionMatch struct {
	MedicationID string
	EventID      string
	From         time.Time
	To           time.Time
}

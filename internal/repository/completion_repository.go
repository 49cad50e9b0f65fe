package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"care-scheduler/internal/model"
)

// CompletionRepository stores task completions. Writes are single statements
// without locking; concurrent writers race and the last one wins.
type CompletionRepository struct {
	db *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

func (r *CompletionRepository) InsertCompletion(ctx context.Context, c *model.TaskCompletion) error {
	c.ScheduledTime = model.WallClock(c.ScheduledTime)
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	return nil
}

func (r *CompletionRepository) ListCompletions(ctx context.Context, userID string) ([]model.TaskCompletion, error) {
	var completions []model.TaskCompletion
	if err := r.db.WithContext(ctx).Where("completed_by = ?", userID).
		Order("scheduled_time ASC").Find(&completions).Error; err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return completions, nil
}

// DeleteCompletions removes completions selected by match and returns how many were deleted.
func (r *CompletionRepository) DeleteCompletions(ctx context.Context, match CompletionMatch) (int64, error) {
	q := r.db.WithContext(ctx)
	switch {
	case match.MedicationID != "" && match.EventID == "":
		q = q.Where("medication_id = ? AND scheduled_time >= ? AND scheduled_time < ?",
			match.MedicationID, model.WallClock(match.From), model.WallClock(match.To))
	case match.EventID != "" && match.MedicationID == "":
		q = q.Where("event_id = ?", match.EventID)
	default:
		return 0, fmt.Errorf("delete completions: %w", model.ErrCompletionSource)
	}
	res := q.Delete(&model.TaskCompletion{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete completions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

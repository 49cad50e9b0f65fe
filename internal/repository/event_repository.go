package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"care-scheduler/internal/model"
)

// EventRepository handles CRUD for calendar events.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, event *model.CalendarEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// ListCalendarEvents returns events in scope ordered by start time. A nil range returns all of them.
func (r *EventRepository) ListCalendarEvents(ctx context.Context, scope OwnerScope, dates *DateRange) ([]model.CalendarEvent, error) {
	var events []model.CalendarEvent
	if scope.empty() {
		return events, nil
	}
	q := scope.apply(r.db.WithContext(ctx).Model(&model.CalendarEvent{}), "created_by")
	if dates != nil {
		if !dates.From.IsZero() {
			q = q.Where("start_time >= ?", model.WallClock(dates.From))
		}
		if !dates.To.IsZero() {
			q = q.Where("start_time <= ?", model.WallClock(dates.To))
		}
	}
	if err := q.Order("start_time ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (r *EventRepository) FindByID(ctx context.Context, id string) (*model.CalendarEvent, error) {
	var event model.CalendarEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

func (r *EventRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.CalendarEvent{}).Error; err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

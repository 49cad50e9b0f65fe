package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"care-scheduler/internal/model"
	"care-scheduler/internal/repository"
)

// CompletionStore is the part of the data store the completion tracker writes to.
type CompletionStore interface {
	InsertCompletion(ctx context.Context, c *model.TaskCompletion) error
	DeleteCompletions(ctx context.Context, match repository.CompletionMatch) (int64, error)
}

// CompletionService flips the completion state of timeline occurrences.
// It takes no lock: two circle members toggling the same task race and the
// last write wins.
type CompletionService struct {
	store CompletionStore
	log   *zap.Logger
}

func NewCompletionService(store CompletionStore, log *zap.Logger) *CompletionService {
	return &CompletionService{store: store, log: log}
}

// Toggle marks inst done or not done depending on its current IsCompleted.
// The flag is flipped on inst before any I/O and restored if the write fails.
func (s *CompletionService) Toggle(ctx context.Context, userID string, inst *TaskInstance) error {
	if inst == nil {
		return ErrInvalidTaskInstance
	}
	wasCompleted := inst.IsCompleted
	inst.IsCompleted = !wasCompleted

	var err error
	if wasCompleted {
		err = s.unmark(ctx, inst)
	} else {
		err = s.mark(ctx, userID, inst)
	}
	if err != nil {
		inst.IsCompleted = wasCompleted
		return fmt.Errorf("toggle %s: %w", inst.ID, err)
	}

	s.log.Debug("task toggled",
		zap.String("user", userID),
		zap.String("task", inst.ID),
		zap.Bool("completed", inst.IsCompleted),
	)
	return nil
}

func (s *CompletionService) mark(ctx context.Context, userID string, inst *TaskInstance) error {
	ref, at, err := resolveInstance(inst)
	if err != nil {
		return err
	}
	c := model.TaskCompletion{
		CompletedBy:   userID,
		ScheduledTime: at,
		Status:        model.CompletionStatusCompleted,
	}
	switch ref.Kind {
	case TaskKindMedication:
		c.MedicationID = &ref.SourceID
	case TaskKindEvent:
		c.EventID = &ref.SourceID
	}
	return s.store.InsertCompletion(ctx, &c)
}

func (s *CompletionService) unmark(ctx context.Context, inst *TaskInstance) error {
	ref, at, err := resolveInstance(inst)
	if err != nil {
		return err
	}
	match := repository.CompletionMatch{}
	switch ref.Kind {
	case TaskKindMedication:
		match.MedicationID = ref.SourceID
		match.From = at
		match.To = at.Add(time.Minute)
	case TaskKindEvent:
		match.EventID = ref.SourceID
	}
	n, err := s.store.DeleteCompletions(ctx, match)
	if err != nil {
		return err
	}
	s.log.Debug("completions removed", zap.String("task", inst.ID), zap.Int64("count", n))
	return nil
}

// resolveInstance decodes the source record from the synthetic id and the
// occurrence's scheduled minute.
func resolveInstance(inst *TaskInstance) (TaskRef, time.Time, error) {
	ref, err := ParseTaskInstanceID(inst.ID)
	if err != nil {
		return TaskRef{}, time.Time{}, err
	}
	if inst.Kind != "" && inst.Kind != ref.Kind {
		return TaskRef{}, time.Time{}, fmt.Errorf("%w: kind %q does not match id %q", ErrInvalidTaskInstance, inst.Kind, inst.ID)
	}
	at, err := inst.ScheduledAt()
	if err != nil {
		return TaskRef{}, time.Time{}, err
	}
	return ref, at, nil
}

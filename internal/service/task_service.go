package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"care-scheduler/internal/model"
	"care-scheduler/internal/repository"
)

var (
	ErrNotCircleMember = errors.New("user is not a member of the circle")
	ErrTaskNotFound    = errors.New("task not found on timeline")
	ErrInvalidInput    = errors.New("invalid input")
)

type MedicationStore interface {
	MedicationReader
	Create(ctx context.Context, med *model.Medication) error
	FindByID(ctx context.Context, id string) (*model.Medication, error)
	Deactivate(ctx context.Context, id string) error
}

type EventStore interface {
	EventReader
	Create(ctx context.Context, event *model.CalendarEvent) error
	FindByID(ctx context.Context, id string) (*model.CalendarEvent, error)
	Delete(ctx context.Context, id string) error
}

type CompletionReader interface {
	ListCompletions(ctx context.Context, userID string) ([]model.TaskCompletion, error)
}

// MedicationInput represents data required to create a medication.
type MedicationInput struct {
	CircleID        string
	Name            string
	Dosage          string
	Frequency       string
	Notes           string
	Times           []string
	ReminderEnabled bool
	StartDate       time.Time
	EndDate         *time.Time
}

// EventInput represents data required to create a calendar event.
type EventInput struct {
	CircleID          string
	Title             string
	Description       string
	TaskCategory      string
	StartTime         time.Time
	EndTime           time.Time
	RecurrencePattern string
}

// TaskService loads source records and serves the care task timeline.
type TaskService struct {
	meds        MedicationStore
	events      EventStore
	completions CompletionReader
	circles     CircleReader
	tracker     *CompletionService
	log         *zap.Logger
}

func NewTaskService(
	meds MedicationStore,
	events EventStore,
	completions CompletionReader,
	circles CircleReader,
	tracker *CompletionService,
	log *zap.Logger,
) *TaskService {
	return &TaskService{
		meds:        meds,
		events:      events,
		completions: completions,
		circles:     circles,
		tracker:     tracker,
		log:         log,
	}
}

// Timeline returns the user's personal timeline, or the circle's when
// circleID is set.
func (s *TaskService) Timeline(ctx context.Context, userID, circleID string, filter TaskFilter, now time.Time) ([]TaskInstance, error) {
	scope, err := s.scope(ctx, userID, circleID)
	if err != nil {
		return nil, err
	}

	meds, err := s.meds.ListMedications(ctx, scope, true)
	if err != nil {
		return nil, err
	}
	wall := model.WallClock(now)
	startOfDay := time.Date(wall.Year(), wall.Month(), wall.Day(), 0, 0, 0, 0, time.UTC)
	events, err := s.events.ListCalendarEvents(ctx, scope, &repository.DateRange{From: startOfDay})
	if err != nil {
		return nil, err
	}
	completions, err := s.completions.ListCompletions(ctx, userID)
	if err != nil {
		return nil, err
	}

	return GenerateTaskInstances(meds, events, completions, now, filter), nil
}

// ToggleTask regenerates the timeline, finds instanceID on it and flips its completion.
func (s *TaskService) ToggleTask(ctx context.Context, userID, circleID, instanceID string, now time.Time) (*TaskInstance, error) {
	ref, err := ParseTaskInstanceID(instanceID)
	if err != nil {
		return nil, err
	}
	var list []TaskInstance
	if ref.Kind == TaskKindMedication {
		list, err = s.Timeline(ctx, userID, circleID, FilterMedication, now)
	} else {
		// future events are only visible under their category filter
		list, err = s.eventTimeline(ctx, userID, circleID, now)
	}
	if err != nil {
		return nil, err
	}

	for i := range list {
		if list[i].ID != instanceID {
			continue
		}
		if err := s.tracker.Toggle(ctx, userID, &list[i]); err != nil {
			return nil, err
		}
		return &list[i], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, instanceID)
}

// eventTimeline merges all event category views so a future event can be toggled.
func (s *TaskService) eventTimeline(ctx context.Context, userID, circleID string, now time.Time) ([]TaskInstance, error) {
	var out []TaskInstance
	for _, f := range []TaskFilter{FilterPersonalCare, FilterAppointment, FilterTask} {
		list, err := s.Timeline(ctx, userID, circleID, f, now)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	return out, nil
}

func (s *TaskService) CreateMedication(ctx context.Context, userID string, input MedicationInput) (*model.Medication, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(input.Times) == 0 {
		return nil, fmt.Errorf("%w: at least one time is required", ErrInvalidInput)
	}
	times := make([]string, 0, len(input.Times))
	for _, t := range input.Times {
		t = strings.TrimSpace(t)
		if _, _, ok := model.ParseTimeOfDay(t); !ok {
			return nil, fmt.Errorf("%w: time %q, expected HH:MM", ErrInvalidInput, t)
		}
		if !slices.Contains(times, t) {
			times = append(times, t)
		}
	}
	slices.Sort(times)

	med := model.Medication{
		Name:            name,
		Dosage:          strings.TrimSpace(input.Dosage),
		Frequency:       input.Frequency,
		Notes:           input.Notes,
		Times:           times,
		Active:          true,
		ReminderEnabled: input.ReminderEnabled,
		StartDate:       model.WallClock(input.StartDate),
		EndDate:         input.EndDate,
	}
	if err := s.setOwner(ctx, userID, input.CircleID, &med.UserID, &med.CircleID); err != nil {
		return nil, err
	}
	if err := s.meds.Create(ctx, &med); err != nil {
		return nil, err
	}
	s.log.Info("medication created", zap.String("id", med.ID), zap.String("user", userID))
	return &med, nil
}

func (s *TaskService) CreateEvent(ctx context.Context, userID string, input EventInput) (*model.CalendarEvent, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !model.IsEventCategory(input.TaskCategory) {
		return nil, fmt.Errorf("%w: task category %q", ErrInvalidInput, input.TaskCategory)
	}
	if input.StartTime.IsZero() {
		return nil, fmt.Errorf("%w: start time is required", ErrInvalidInput)
	}
	end := input.EndTime
	if end.IsZero() {
		end = input.StartTime
	}
	if end.Before(input.StartTime) {
		return nil, fmt.Errorf("%w: end time is before start time", ErrInvalidInput)
	}

	event := model.CalendarEvent{
		CreatedBy:         userID,
		Title:             title,
		Description:       input.Description,
		TaskCategory:      input.TaskCategory,
		StartTime:         model.WallClock(input.StartTime),
		EndTime:           model.WallClock(end),
		RecurrencePattern: input.RecurrencePattern,
	}
	if input.CircleID != "" {
		if err := s.requireMember(ctx, userID, input.CircleID); err != nil {
			return nil, err
		}
		circleID := input.CircleID
		event.CircleID = &circleID
	}
	if err := s.events.Create(ctx, &event); err != nil {
		return nil, err
	}
	s.log.Info("event created", zap.String("id", event.ID), zap.String("user", userID))
	return &event, nil
}

// DeactivateMedication retires a medication so it no longer produces occurrences.
// Past completions are kept.
func (s *TaskService) DeactivateMedication(ctx context.Context, userID, medicationID string) error {
	med, err := s.meds.FindByID(ctx, medicationID)
	if err != nil {
		return s.lookupErr(err, medicationID)
	}
	if err := s.requireOwner(ctx, userID, med.UserID, med.CircleID); err != nil {
		return err
	}
	if err := s.meds.Deactivate(ctx, med.ID); err != nil {
		return err
	}
	s.log.Info("medication deactivated", zap.String("id", med.ID), zap.String("user", userID))
	return nil
}

func (s *TaskService) DeleteEvent(ctx context.Context, userID, eventID string) error {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return s.lookupErr(err, eventID)
	}
	if err := s.requireOwner(ctx, userID, &event.CreatedBy, event.CircleID); err != nil {
		return err
	}
	if err := s.events.Delete(ctx, event.ID); err != nil {
		return err
	}
	s.log.Info("event deleted", zap.String("id", event.ID), zap.String("user", userID))
	return nil
}

func (s *TaskService) lookupErr(err error, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return err
}

// requireOwner accepts the personal owner or any member of the owning circle.
// Someone else's personal record is reported as not found.
func (s *TaskService) requireOwner(ctx context.Context, userID string, owner, circleID *string) error {
	if circleID != nil {
		return s.requireMember(ctx, userID, *circleID)
	}
	if owner == nil || *owner != userID {
		return ErrTaskNotFound
	}
	return nil
}

func (s *TaskService) scope(ctx context.Context, userID, circleID string) (repository.OwnerScope, error) {
	if circleID == "" {
		return repository.Personal(userID), nil
	}
	if err := s.requireMember(ctx, userID, circleID); err != nil {
		return repository.OwnerScope{}, err
	}
	return repository.Circle(circleID), nil
}

func (s *TaskService) requireMember(ctx context.Context, userID, circleID string) error {
	ids, err := s.circles.ListCircleIDs(ctx, userID)
	if err != nil {
		return err
	}
	if !slices.Contains(ids, circleID) {
		return ErrNotCircleMember
	}
	return nil
}

// setOwner fills the mutually exclusive owner fields.
func (s *TaskService) setOwner(ctx context.Context, userID, circleID string, userField, circleField **string) error {
	if circleID == "" {
		uid := userID
		*userField = &uid
		return nil
	}
	if err := s.requireMember(ctx, userID, circleID); err != nil {
		return err
	}
	cid := circleID
	*circleField = &cid
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"care-scheduler/internal/model"
	"care-scheduler/internal/repository"
)

const (
	LinkCareTasks = "/care-tasks"
	LinkCalendar  = "/calendar"

	// DefaultReminderTolerance is the half-width of the match window around a
	// lead time. It must be at least the scan interval or a tick can jump over
	// the window.
	DefaultReminderTolerance = time.Minute

	eventLookaheadSlack = 5 * time.Minute
)

// NotificationRequest is what the scanner hands to the dispatcher.
type NotificationRequest struct {
	UserID   string         `json:"userId"`
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Link     string         `json:"link"`
	Metadata map[string]any `json:"metadata"`
}

// Dispatcher delivers notifications; channel choice is its own business.
type Dispatcher interface {
	Dispatch(ctx context.Context, req NotificationRequest) error
}

type SettingsReader interface {
	GetNotificationSettings(ctx context.Context, userID string) (*model.NotificationSettings, error)
}

type MedicationReader interface {
	ListMedications(ctx context.Context, scope repository.OwnerScope, activeOnly bool) ([]model.Medication, error)
}

type EventReader interface {
	ListCalendarEvents(ctx context.Context, scope repository.OwnerScope, dates *repository.DateRange) ([]model.CalendarEvent, error)
}

type CircleReader interface {
	ListCircleIDs(ctx context.Context, userID string) ([]string, error)
}

// ReminderService scans one user's upcoming occurrences and asks the
// dispatcher for a reminder once per occurrence and lead time.
type ReminderService struct {
	settings   SettingsReader
	meds       MedicationReader
	events     EventReader
	circles    CircleReader
	dispatcher Dispatcher
	fired      FiredKeys
	tolerance  time.Duration
	log        *zap.Logger
}

func NewReminderService(
	settings SettingsReader,
	meds MedicationReader,
	events EventReader,
	circles CircleReader,
	dispatcher Dispatcher,
	fired FiredKeys,
	log *zap.Logger,
) *ReminderService {
	if fired == nil {
		fired = NewMemoryFiredKeys()
	}
	return &ReminderService{
		settings:   settings,
		meds:       meds,
		events:     events,
		circles:    circles,
		dispatcher: dispatcher,
		fired:      fired,
		tolerance:  DefaultReminderTolerance,
		log:        log,
	}
}

// WithTolerance overrides the lead time match window.
func (s *ReminderService) WithTolerance(d time.Duration) *ReminderService {
	if d > 0 {
		s.tolerance = d
	}
	return s
}

// Scan runs one reminder tick for userID. A failing source is skipped and the
// others are still scanned. Errors are returned for logging only; keys that
// failed to dispatch stay unfired and can match next tick.
func (s *ReminderService) Scan(ctx context.Context, userID string, now time.Time) error {
	wall := model.WallClock(now)

	var (
		settings  *model.NotificationSettings
		meds      []model.Medication
		circleIDs []string
		medsErr   error
		circleErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		st, err := s.settings.GetNotificationSettings(ctx, userID)
		if err != nil {
			s.log.Warn("settings unavailable, using defaults", zap.String("user", userID), zap.Error(err))
			return nil
		}
		settings = st
		return nil
	})
	g.Go(func() error {
		meds, medsErr = s.meds.ListMedications(ctx, repository.Personal(userID), true)
		return nil
	})
	g.Go(func() error {
		circleIDs, circleErr = s.circles.ListCircleIDs(ctx, userID)
		return nil
	})
	_ = g.Wait()

	var errs []error
	if medsErr != nil {
		errs = append(errs, fmt.Errorf("load medications: %w", medsErr))
		meds = nil
	}
	if circleErr != nil {
		// personal events are still scanned
		errs = append(errs, fmt.Errorf("load circles: %w", circleErr))
		circleIDs = nil
	}

	if settings == nil {
		def := model.DefaultNotificationSettings(userID)
		settings = &def
	}
	if !settings.Allows(model.NotificationTypeCareTask) {
		return errors.Join(errs...)
	}
	leads := settings.LeadTimes()
	if len(leads) == 0 {
		return errors.Join(errs...)
	}

	today := wall.Format(model.DateLayout)

	for _, med := range meds {
		if !med.ReminderEnabled || !med.Active {
			continue
		}
		for _, tod := range med.Times {
			at, ok := model.At(wall, tod)
			if !ok {
				s.log.Debug("skip malformed medication time", zap.String("medication", med.ID), zap.String("time", tod))
				continue
			}
			for _, lead := range s.matchLeadTimes(at.Sub(wall), leads) {
				// the lead time is part of the key so each lead fires once per occurrence
				key := fmt.Sprintf("med:%s:%s:%s:%d", med.ID, tod, today, lead)
				req := NotificationRequest{
					UserID:  userID,
					Type:    model.NotificationTypeCareTask,
					Title:   "Medication reminder",
					Message: medicationMessage(med, tod, lead),
					Link:    LinkCareTasks,
					Metadata: map[string]any{
						"medicationId":  med.ID,
						"scheduledTime": tod,
					},
				}
				if err := s.fire(ctx, key, req); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}

	maxLead := time.Duration(slices.Max(leads)) * time.Minute
	events, err := s.events.ListCalendarEvents(ctx,
		repository.OwnerScope{UserID: userID, CircleIDs: circleIDs},
		&repository.DateRange{From: wall, To: wall.Add(maxLead + eventLookaheadSlack)},
	)
	if err != nil {
		errs = append(errs, fmt.Errorf("load events: %w", err))
		return errors.Join(errs...)
	}

	for _, event := range events {
		if event.StartTime.IsZero() {
			continue
		}
		start := model.WallClock(event.StartTime)
		until := start.Sub(wall)
		for _, lead := range s.matchLeadTimes(until, leads) {
			// event:{id}:{HH:MM}:{date}:{lead}, one reminder per occurrence and lead time
			key := fmt.Sprintf("event:%s:%s:%s:%d", event.ID, start.Format(model.TimeOfDay), start.Format(model.DateLayout), lead)
			req := NotificationRequest{
				UserID:  userID,
				Type:    model.NotificationTypeCareTask,
				Title:   "Upcoming: " + event.Title,
				Message: eventMessage(event, until),
				Link:    LinkCalendar,
				Metadata: map[string]any{
					"eventId":   event.ID,
					"eventType": event.TaskCategory,
				},
			}
			if err := s.fire(ctx, key, req); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

// matchLeadTimes returns every lead time whose distance to until is strictly
// inside the tolerance window.
func (s *ReminderService) matchLeadTimes(until time.Duration, leads []int) []int {
	var matched []int
	for _, lead := range leads {
		diff := until - time.Duration(lead)*time.Minute
		if diff < 0 {
			diff = -diff
		}
		if diff < s.tolerance {
			matched = append(matched, lead)
		}
	}
	return matched
}

func (s *ReminderService) fire(ctx context.Context, key string, req NotificationRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fresh, err := s.fired.MarkIfNew(ctx, key)
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}
	if err := s.dispatcher.Dispatch(ctx, req); err != nil {
		if ferr := s.fired.Forget(context.WithoutCancel(ctx), key); ferr != nil {
			s.log.Warn("forget fired key", zap.String("key", key), zap.Error(ferr))
		}
		return fmt.Errorf("dispatch %s: %w", key, err)
	}
	s.log.Info("reminder dispatched", zap.String("user", req.UserID), zap.String("key", key))
	return nil
}

func medicationMessage(med model.Medication, tod string, lead int) string {
	if med.Dosage == "" {
		return fmt.Sprintf("Take %s at %s (in %d min)", med.Name, tod, lead)
	}
	return fmt.Sprintf("Take %s, %s at %s (in %d min)", med.Name, med.Dosage, tod, lead)
}

func eventMessage(event model.CalendarEvent, until time.Duration) string {
	minutes := int(math.Round(until.Minutes()))
	if minutes == 1 {
		return fmt.Sprintf("%s starts in 1 minute", event.Title)
	}
	return fmt.Sprintf("%s starts in %d minutes", event.Title, minutes)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"care-scheduler/internal/model"
)

const DefaultScanInterval = 60 * time.Second

// PauseStore persists whether a user paused reminders.
type PauseStore interface {
	SettingsReader
	Save(ctx context.Context, settings *model.NotificationSettings) error
}

// ReminderScanner runs one reminder tick for a user.
type ReminderScanner interface {
	Scan(ctx context.Context, userID string, now time.Time) error
}

// SessionService owns one reminder ticker per active user session.
type SessionService struct {
	scanner  ReminderScanner
	interval time.Duration
	loc      *time.Location
	now      func() time.Time
	pauses   PauseStore
	log      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*reminderSession
}

type reminderSession struct {
	cancel    context.CancelFunc
	scheduler *SchedulerService
}

func NewSessionService(scanner ReminderScanner, interval time.Duration, loc *time.Location, log *zap.Logger) *SessionService {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	if loc == nil {
		loc = time.Local
	}
	return &SessionService{
		scanner:  scanner,
		interval: interval,
		loc:      loc,
		now:      time.Now,
		log:      log,
		sessions: make(map[string]*reminderSession),
	}
}

// WithPauseStore makes Pause and Resume persistent, so StartAll skips paused users.
func (s *SessionService) WithPauseStore(store PauseStore) *SessionService {
	s.pauses = store
	return s
}

// StartAll starts sessions for userIDs on startup, skipping users who paused
// reminders. It returns how many sessions were started.
func (s *SessionService) StartAll(parent context.Context, userIDs []string) int {
	started := 0
	for _, id := range userIDs {
		if s.pauses != nil {
			settings, err := s.pauses.GetNotificationSettings(parent, id)
			if err != nil {
				s.log.Warn("read pause state", zap.String("user", id), zap.Error(err))
			} else if settings != nil && settings.RemindersPaused {
				continue
			}
		}
		ok, err := s.Start(parent, id)
		if err != nil {
			s.log.Error("start reminder session", zap.String("user", id), zap.Error(err))
			continue
		}
		if ok {
			started++
		}
	}
	return started
}

// Resume clears the paused flag and starts the session.
func (s *SessionService) Resume(parent context.Context, userID string) (bool, error) {
	if err := s.setPaused(parent, userID, false); err != nil {
		return false, err
	}
	return s.Start(parent, userID)
}

// Pause stops the session and records the pause so a restart keeps it stopped.
// It reports whether a session was running.
func (s *SessionService) Pause(ctx context.Context, userID string) (bool, error) {
	if err := s.setPaused(ctx, userID, true); err != nil {
		return false, err
	}
	return s.Stop(userID), nil
}

func (s *SessionService) setPaused(ctx context.Context, userID string, paused bool) error {
	if s.pauses == nil {
		return nil
	}
	settings, err := s.pauses.GetNotificationSettings(ctx, userID)
	if err != nil {
		return fmt.Errorf("read pause state: %w", err)
	}
	if settings == nil {
		def := model.DefaultNotificationSettings(userID)
		settings = &def
	}
	if settings.RemindersPaused == paused {
		return nil
	}
	settings.RemindersPaused = paused
	if err := s.pauses.Save(ctx, settings); err != nil {
		return fmt.Errorf("save pause state: %w", err)
	}
	return nil
}

// Start begins ticking for userID. It reports false when a session is already running.
func (s *SessionService) Start(parent context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[userID]; ok {
		return false, nil
	}

	ctx, cancel := context.WithCancel(parent)
	sched := NewSchedulerService(s.loc, s.log)
	if _, err := sched.ScheduleInterval(s.interval, func() { s.tick(ctx, userID) }); err != nil {
		cancel()
		return false, err
	}
	sched.Start()
	s.sessions[userID] = &reminderSession{cancel: cancel, scheduler: sched}
	s.log.Info("reminder session started", zap.String("user", userID), zap.Duration("interval", s.interval))
	return true, nil
}

// Stop cancels the user's session and waits for an in-flight tick. No
// reminder is dispatched for the user once Stop returns.
func (s *SessionService) Stop(userID string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.mu.Unlock()
	if !ok {
		return false
	}
	sess.cancel()
	sess.scheduler.Stop()
	s.log.Info("reminder session stopped", zap.String("user", userID))
	return true
}

func (s *SessionService) StopAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.Stop(id)
	}
}

func (s *SessionService) Active(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[userID]
	return ok
}

func (s *SessionService) tick(ctx context.Context, userID string) {
	if ctx.Err() != nil {
		return
	}
	scanCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()
	if err := s.scanner.Scan(scanCtx, userID, s.now().In(s.loc)); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("reminder scan", zap.String("user", userID), zap.Error(err))
	}
}

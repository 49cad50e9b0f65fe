package service

import (
	"context"
	"errors"
	"sync"

	"care-scheduler/internal/model"
	"care-scheduler/internal/repository"
)

var errStoreDown = errors.New("store down")

// fakeStore is an in-memory stand-in for the data store. It applies scopes
// and ranges loosely: tests only put records in it that belong to the caller.
type fakeStore struct {
	mu sync.Mutex

	meds        []model.Medication
	events      []model.CalendarEvent
	completions []model.TaskCompletion
	settings    map[string]*model.NotificationSettings
	circles     map[string][]string

	failWrites   bool
	failSettings bool
	failMeds     bool
	failCircles  bool
	lastRange    *repository.DateRange
	lastScope    repository.OwnerScope
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		settings: make(map[string]*model.NotificationSettings),
		circles:  make(map[string][]string),
	}
}

func (f *fakeStore) ListMedications(_ context.Context, _ repository.OwnerScope, activeOnly bool) ([]model.Medication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMeds {
		return nil, errStoreDown
	}
	var out []model.Medication
	for _, m := range f.meds {
		if activeOnly && !m.Active {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) Create(_ context.Context, med *model.Medication) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if med.ID == "" {
		med.ID = "med-generated"
	}
	f.meds = append(f.meds, *med)
	return nil
}

func (f *fakeStore) FindByID(_ context.Context, id string) (*model.Medication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.meds {
		if f.meds[i].ID == id {
			med := f.meds[i]
			return &med, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) Deactivate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.meds {
		if f.meds[i].ID == id {
			f.meds[i].Active = false
		}
	}
	return nil
}

func (f *fakeStore) ListCalendarEvents(_ context.Context, scope repository.OwnerScope, dates *repository.DateRange) ([]model.CalendarEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRange = dates
	f.lastScope = scope
	var out []model.CalendarEvent
	for _, e := range f.events {
		start := model.WallClock(e.StartTime)
		if dates != nil {
			if !dates.From.IsZero() && start.Before(model.WallClock(dates.From)) {
				continue
			}
			if !dates.To.IsZero() && start.After(model.WallClock(dates.To)) {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeStore) ListCompletions(_ context.Context, userID string) ([]model.TaskCompletion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.TaskCompletion
	for _, c := range f.completions {
		if c.CompletedBy == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertCompletion(_ context.Context, c *model.TaskCompletion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errStoreDown
	}
	if err := c.Validate(); err != nil {
		return err
	}
	f.completions = append(f.completions, *c)
	return nil
}

func (f *fakeStore) DeleteCompletions(_ context.Context, match repository.CompletionMatch) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return 0, errStoreDown
	}
	kept := f.completions[:0]
	var n int64
	for _, c := range f.completions {
		if completionMatches(c, match) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	f.completions = kept
	return n, nil
}

func completionMatches(c model.TaskCompletion, match repository.CompletionMatch) bool {
	if match.MedicationID != "" {
		at := model.WallClock(c.ScheduledTime)
		return c.MedicationID != nil && *c.MedicationID == match.MedicationID &&
			!at.Before(match.From) && at.Before(match.To)
	}
	return c.EventID != nil && *c.EventID == match.EventID
}

func (f *fakeStore) GetNotificationSettings(_ context.Context, userID string) (*model.NotificationSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSettings {
		return nil, errStoreDown
	}
	return f.settings[userID], nil
}

func (f *fakeStore) Save(_ context.Context, settings *model.NotificationSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errStoreDown
	}
	saved := *settings
	f.settings[settings.UserID] = &saved
	return nil
}

func (f *fakeStore) ListCircleIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCircles {
		return nil, errStoreDown
	}
	return f.circles[userID], nil
}

// fakeEvents adapts fakeStore to EventStore, whose Create clashes with the medication one.
type fakeEvents struct{ *fakeStore }

func (f fakeEvents) Create(_ context.Context, e *model.CalendarEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == "" {
		e.ID = "event-generated"
	}
	f.events = append(f.events, *e)
	return nil
}

func (f fakeEvents) FindByID(_ context.Context, id string) (*model.CalendarEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == id {
			e := f.events[i]
			return &e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f fakeEvents) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.events[:0]
	for _, e := range f.events {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	f.events = kept
	return nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	reqs []NotificationRequest
	fail bool
}

func (d *recordingDispatcher) Dispatch(_ context.Context, req NotificationRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return errStoreDown
	}
	d.reqs = append(d.reqs, req)
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reqs)
}

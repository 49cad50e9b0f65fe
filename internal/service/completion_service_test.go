package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"care-scheduler/internal/model"
)

func TestToggleRoundTrip(t *testing.T) {
	store := newFakeStore()
	tracker := NewCompletionService(store, zap.NewNop())
	now := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
	meds := []model.Medication{testMedication("m1", "08:00")}

	list := GenerateTaskInstances(meds, nil, nil, now, FilterAll)
	inst := &list[0]

	if err := tracker.Toggle(context.Background(), "user-1", inst); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !inst.IsCompleted {
		t.Fatal("instance should be completed after first toggle")
	}
	if len(store.completions) != 1 {
		t.Fatalf("expected 1 completion row, got %d", len(store.completions))
	}
	c := store.completions[0]
	if c.MedicationID == nil || *c.MedicationID != "m1" || c.EventID != nil {
		t.Errorf("completion should reference only the medication: %+v", c)
	}
	if c.CompletedBy != "user-1" || c.Status != model.CompletionStatusCompleted {
		t.Errorf("unexpected completion fields: %+v", c)
	}
	if want := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC); !c.ScheduledTime.Equal(want) {
		t.Errorf("scheduled time %v, want %v", c.ScheduledTime, want)
	}

	if err := tracker.Toggle(context.Background(), "user-1", inst); err != nil {
		t.Fatalf("unmark: %v", err)
	}
	if inst.IsCompleted {
		t.Fatal("instance should be open after second toggle")
	}
	if len(store.completions) != 0 {
		t.Fatalf("expected completions removed, got %d", len(store.completions))
	}

	regenerated := GenerateTaskInstances(meds, nil, store.completions, now, FilterAll)
	if regenerated[0].IsCompleted {
		t.Error("regenerated instance should be open")
	}
}

func TestToggleUnmarkMedicationMinuteBucket(t *testing.T) {
	store := newFakeStore()
	store.completions = []model.TaskCompletion{
		{MedicationID: strPtr("m1"), CompletedBy: "u", ScheduledTime: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)},
		{MedicationID: strPtr("m1"), CompletedBy: "u", ScheduledTime: time.Date(2024, 1, 1, 8, 0, 59, 0, time.UTC)},
		{MedicationID: strPtr("m1"), CompletedBy: "u", ScheduledTime: time.Date(2024, 1, 1, 8, 1, 0, 0, time.UTC)},
		{MedicationID: strPtr("m2"), CompletedBy: "u", ScheduledTime: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)},
	}
	tracker := NewCompletionService(store, zap.NewNop())
	inst := &TaskInstance{ID: "med-m1-08:00", Kind: TaskKindMedication, Date: "2024-01-01", ScheduledTime: "08:00", IsCompleted: true}

	if err := tracker.Toggle(context.Background(), "u", inst); err != nil {
		t.Fatalf("unmark: %v", err)
	}
	if len(store.completions) != 2 {
		t.Fatalf("expected 2 completions left, got %d", len(store.completions))
	}
	for _, c := range store.completions {
		if *c.MedicationID == "m1" && c.ScheduledTime.Minute() != 1 {
			t.Errorf("completion inside the 08:00 bucket survived: %v", c.ScheduledTime)
		}
	}
}

func TestToggleUnmarkEventRemovesAll(t *testing.T) {
	store := newFakeStore()
	store.completions = []model.TaskCompletion{
		{EventID: strPtr("E"), CompletedBy: "a", ScheduledTime: time.Date(2023, 6, 1, 9, 0, 0, 0, time.UTC)},
		{EventID: strPtr("E"), CompletedBy: "b", ScheduledTime: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
		{EventID: strPtr("F"), CompletedBy: "a", ScheduledTime: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)},
	}
	tracker := NewCompletionService(store, zap.NewNop())
	inst := &TaskInstance{ID: "event-E", Kind: TaskKindEvent, Date: "2024-01-01", ScheduledTime: "09:00", IsCompleted: true}

	if err := tracker.Toggle(context.Background(), "a", inst); err != nil {
		t.Fatalf("unmark: %v", err)
	}
	if len(store.completions) != 1 || *store.completions[0].EventID != "F" {
		t.Fatalf("expected only F to remain, got %+v", store.completions)
	}
}

func TestToggleMarkEvent(t *testing.T) {
	store := newFakeStore()
	tracker := NewCompletionService(store, zap.NewNop())
	inst := &TaskInstance{ID: "event-E", Kind: TaskKindEvent, Date: "2024-03-05", ScheduledTime: "14:30"}

	if err := tracker.Toggle(context.Background(), "a", inst); err != nil {
		t.Fatalf("mark: %v", err)
	}
	c := store.completions[0]
	if c.EventID == nil || *c.EventID != "E" || c.MedicationID != nil {
		t.Errorf("completion should reference only the event: %+v", c)
	}
	if want := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC); !c.ScheduledTime.Equal(want) {
		t.Errorf("scheduled time %v, want %v", c.ScheduledTime, want)
	}
}

func TestToggleRevertsOnFailure(t *testing.T) {
	store := newFakeStore()
	store.failWrites = true
	tracker := NewCompletionService(store, zap.NewNop())

	for _, completed := range []bool{false, true} {
		inst := &TaskInstance{ID: "med-m1-08:00", Kind: TaskKindMedication, Date: "2024-01-01", ScheduledTime: "08:00", IsCompleted: completed}
		err := tracker.Toggle(context.Background(), "u", inst)
		if !errors.Is(err, errStoreDown) {
			t.Fatalf("expected store error, got %v", err)
		}
		if inst.IsCompleted != completed {
			t.Errorf("flag not reverted: got %v, want %v", inst.IsCompleted, completed)
		}
	}
}

// optimisticProbe checks the instance flag while the write is in flight.
type optimisticProbe struct {
	*fakeStore
	inst    *TaskInstance
	flipped bool
}

func (p *optimisticProbe) InsertCompletion(ctx context.Context, c *model.TaskCompletion) error {
	p.flipped = p.inst.IsCompleted
	return p.fakeStore.InsertCompletion(ctx, c)
}

func TestToggleFlipsBeforeWrite(t *testing.T) {
	inst := &TaskInstance{ID: "med-m1-08:00", Kind: TaskKindMedication, Date: "2024-01-01", ScheduledTime: "08:00"}
	probe := &optimisticProbe{fakeStore: newFakeStore(), inst: inst}
	tracker := NewCompletionService(probe, zap.NewNop())

	if err := tracker.Toggle(context.Background(), "u", inst); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !probe.flipped {
		t.Error("flag should be flipped before the write happens")
	}
}

func TestToggleRejectsMismatchedInstance(t *testing.T) {
	tracker := NewCompletionService(newFakeStore(), zap.NewNop())

	inst := &TaskInstance{ID: "event-E", Kind: TaskKindMedication, Date: "2024-01-01", ScheduledTime: "08:00"}
	if err := tracker.Toggle(context.Background(), "u", inst); !errors.Is(err, ErrInvalidTaskInstance) {
		t.Fatalf("expected ErrInvalidTaskInstance, got %v", err)
	}
	if inst.IsCompleted {
		t.Error("flag should be reverted")
	}
	if err := tracker.Toggle(context.Background(), "u", nil); !errors.Is(err, ErrInvalidTaskInstance) {
		t.Fatalf("expected ErrInvalidTaskInstance for nil, got %v", err)
	}
}

// Two collaborators toggling the same shared occurrence from stale views:
// the outcome depends on write order, and toggling twice restores the start.
func TestToggleConcurrentCollaboratorsLastWriteWins(t *testing.T) {
	store := newFakeStore()
	tracker := NewCompletionService(store, zap.NewNop())

	alice := &TaskInstance{ID: "event-E", Kind: TaskKindEvent, Date: "2024-01-01", ScheduledTime: "09:00"}
	bob := &TaskInstance{ID: "event-E", Kind: TaskKindEvent, Date: "2024-01-01", ScheduledTime: "09:00"}

	if err := tracker.Toggle(context.Background(), "alice", alice); err != nil {
		t.Fatal(err)
	}
	if err := tracker.Toggle(context.Background(), "bob", bob); err != nil {
		t.Fatal(err)
	}
	// both saw "open", both inserted
	if len(store.completions) != 2 {
		t.Fatalf("expected 2 rows from racing marks, got %d", len(store.completions))
	}

	// a fresh view of either user converges on completed
	events := []model.CalendarEvent{testEvent("E", model.CategoryTask, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))}
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	view, _ := store.ListCompletions(context.Background(), "bob")
	if got := GenerateTaskInstances(nil, events, view, now, FilterAll); !got[0].IsCompleted {
		t.Error("bob's view should show the event completed")
	}

	// alice un-marks from her view; the event-wide delete wins over bob's row
	if err := tracker.Toggle(context.Background(), "alice", alice); err != nil {
		t.Fatal(err)
	}
	if len(store.completions) != 0 {
		t.Fatalf("expected all rows removed, got %d", len(store.completions))
	}
}

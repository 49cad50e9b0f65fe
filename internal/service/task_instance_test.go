package service

import (
	"errors"
	"testing"
)

func TestParseTaskInstanceID(t *testing.T) {
	tests := []struct {
		id      string
		want    TaskRef
		wantErr error
	}{
		{"med-6f1c2f1e-1b7e-4a0e-9a51-0c3b2e7f9d11-08:00", TaskRef{Kind: TaskKindMedication, SourceID: "6f1c2f1e-1b7e-4a0e-9a51-0c3b2e7f9d11", Time: "08:00"}, nil},
		{"med-m1-20:30", TaskRef{Kind: TaskKindMedication, SourceID: "m1", Time: "20:30"}, nil},
		{"event-6f1c2f1e-1b7e-4a0e-9a51-0c3b2e7f9d11", TaskRef{Kind: TaskKindEvent, SourceID: "6f1c2f1e-1b7e-4a0e-9a51-0c3b2e7f9d11"}, nil},
		{"med-m1-8:00", TaskRef{}, ErrInvalidTaskInstance},
		{"med--08:00", TaskRef{}, ErrInvalidTaskInstance},
		{"event-", TaskRef{}, ErrInvalidTaskInstance},
		{"task-1", TaskRef{}, ErrUnknownTaskKind},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := ParseTaskInstanceID(tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestInstanceIDRoundTrip(t *testing.T) {
	ref, err := ParseTaskInstanceID(MedicationInstanceID("abc-def", "07:15"))
	if err != nil || ref.SourceID != "abc-def" || ref.Time != "07:15" {
		t.Fatalf("medication id did not round trip: %+v, %v", ref, err)
	}
	ref, err = ParseTaskInstanceID(EventInstanceID("abc-def"))
	if err != nil || ref.SourceID != "abc-def" || ref.Kind != TaskKindEvent {
		t.Fatalf("event id did not round trip: %+v, %v", ref, err)
	}
}

func TestParseTaskFilter(t *testing.T) {
	if f, ok := ParseTaskFilter(""); !ok || f != FilterAll {
		t.Errorf("empty filter: %q %v", f, ok)
	}
	if f, ok := ParseTaskFilter(" Appointment "); !ok || f != FilterAppointment {
		t.Errorf("appointment filter: %q %v", f, ok)
	}
	if _, ok := ParseTaskFilter("chores"); ok {
		t.Error("unknown filter accepted")
	}
}

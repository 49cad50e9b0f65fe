package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"care-scheduler/internal/model"
)

var (
	ErrInvalidTaskInstance = errors.New("invalid task instance")
	ErrUnknownTaskKind     = errors.New("unknown task kind")
)

// TaskKind tells which record a TaskInstance was derived from.
type TaskKind string

const (
	TaskKindMedication TaskKind = "medication"
	TaskKindEvent      TaskKind = "event"
)

const (
	medicationIDPrefix = "med-"
	eventIDPrefix      = "event-"
)

// TaskFilter narrows the generated timeline.
type TaskFilter string

const (
	FilterAll          TaskFilter = "all"
	FilterMedication   TaskFilter = "medication"
	FilterPersonalCare TaskFilter = model.CategoryPersonalCare
	FilterAppointment  TaskFilter = model.CategoryAppointment
	FilterTask         TaskFilter = model.CategoryTask
)

// ParseTaskFilter maps user input to a filter. Empty input means FilterAll.
func ParseTaskFilter(raw string) (TaskFilter, bool) {
	f := TaskFilter(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case "":
		return FilterAll, true
	case FilterAll, FilterMedication, FilterPersonalCare, FilterAppointment, FilterTask:
		return f, true
	}
	return f, false
}

// TaskInstance is one occurrence on the timeline. It is rebuilt on every read
// and never stored; edits go through the source record named by ID.
type TaskInstance struct {
	ID            string               `json:"id"`
	Kind          TaskKind             `json:"kind"`
	Name          string               `json:"name"`
	ScheduledTime string               `json:"scheduledTime"`
	Date          string               `json:"date"`
	IsCompleted   bool                 `json:"isCompleted"`
	IsPast        bool                 `json:"isPast"`
	TaskCategory  string               `json:"taskCategory"`
	Medication    *model.Medication    `json:"medication,omitempty"`
	Event         *model.CalendarEvent `json:"event,omitempty"`
}

// ScheduledAt is the wall-clock start of the occurrence.
func (t TaskInstance) ScheduledAt() (time.Time, error) {
	at, err := time.Parse(model.DateTimeLayout, t.Date+"T"+t.ScheduledTime+":00")
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidTaskInstance, t.ID)
	}
	return at, nil
}

func (t TaskInstance) sortKey() string {
	return t.Date + "T" + t.ScheduledTime
}

// TaskRef is the source record encoded in a synthetic instance id.
type TaskRef struct {
	Kind     TaskKind
	SourceID string
	Time     string // medications only
}

func MedicationInstanceID(medicationID, timeOfDay string) string {
	return medicationIDPrefix + medicationID + "-" + timeOfDay
}

func EventInstanceID(eventID string) string {
	return eventIDPrefix + eventID
}

// ParseTaskInstanceID resolves "med-{id}-{HH:MM}" or "event-{id}".
func ParseTaskInstanceID(id string) (TaskRef, error) {
	switch {
	case strings.HasPrefix(id, medicationIDPrefix):
		rest := strings.TrimPrefix(id, medicationIDPrefix)
		i := strings.LastIndex(rest, "-")
		if i <= 0 {
			return TaskRef{}, fmt.Errorf("%w: %q", ErrInvalidTaskInstance, id)
		}
		tod := rest[i+1:]
		if _, _, ok := model.ParseTimeOfDay(tod); !ok {
			return TaskRef{}, fmt.Errorf("%w: %q", ErrInvalidTaskInstance, id)
		}
		return TaskRef{Kind: TaskKindMedication, SourceID: rest[:i], Time: tod}, nil
	case strings.HasPrefix(id, eventIDPrefix):
		src := strings.TrimPrefix(id, eventIDPrefix)
		if src == "" {
			return TaskRef{}, fmt.Errorf("%w: %q", ErrInvalidTaskInstance, id)
		}
		return TaskRef{Kind: TaskKindEvent, SourceID: src}, nil
	}
	return TaskRef{}, fmt.Errorf("%w: %q", ErrUnknownTaskKind, id)
}

// TaskBuckets partitions a timeline for display.
type TaskBuckets struct {
	Overdue   []TaskInstance `json:"overdue"`
	Upcoming  []TaskInstance `json:"upcoming"`
	Completed []TaskInstance `json:"completed"`
}

// BucketTaskInstances splits instances into overdue, upcoming and completed,
// keeping the timeline order inside each bucket.
func BucketTaskInstances(instances []TaskInstance) TaskBuckets {
	var b TaskBuckets
	for _, inst := range instances {
		switch {
		case inst.IsCompleted:
			b.Completed = append(b.Completed, inst)
		case inst.IsPast:
			b.Overdue = append(b.Overdue, inst)
		default:
			b.Upcoming = append(b.Upcoming, inst)
		}
	}
	sortTaskInstances(b.Overdue)
	sortTaskInstances(b.Upcoming)
	sortTaskInstances(b.Completed)
	return b
}

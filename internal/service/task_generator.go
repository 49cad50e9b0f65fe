package service

import (
	"sort"
	"time"

	"care-scheduler/internal/model"
)

// GenerateTaskInstances builds the timeline for the calendar day of now.
//
// Medications only ever produce occurrences for today. Events are included
// for today under FilterAll, and for today or any later day when the filter
// names their category. Malformed records are skipped and an unknown filter
// yields an empty timeline.
func GenerateTaskInstances(
	meds []model.Medication,
	events []model.CalendarEvent,
	completions []model.TaskCompletion,
	now time.Time,
	filter TaskFilter,
) []TaskInstance {
	filter, ok := ParseTaskFilter(string(filter))
	if !ok {
		return []TaskInstance{}
	}

	wall := model.WallClock(now)
	today := wall.Format(model.DateLayout)
	out := make([]TaskInstance, 0, len(meds)+len(events))

	if filter == FilterAll || filter == FilterMedication {
		for i := range meds {
			med := meds[i]
			if !med.Active || med.ID == "" {
				continue
			}
			for _, tod := range med.Times {
				at, ok := model.At(wall, tod)
				if !ok {
					continue
				}
				out = append(out, TaskInstance{
					ID:            MedicationInstanceID(med.ID, tod),
					Kind:          TaskKindMedication,
					Name:          med.Name,
					ScheduledTime: tod,
					Date:          today,
					IsCompleted:   medicationCompleted(completions, med.ID, at),
					IsPast:        at.Before(wall),
					TaskCategory:  string(FilterMedication),
					Medication:    &med,
				})
			}
		}
	}

	for i := range events {
		event := events[i]
		if event.ID == "" || event.StartTime.IsZero() {
			continue
		}
		start := model.WallClock(event.StartTime)
		date := start.Format(model.DateLayout)
		if !includeEvent(event, date, today, filter) {
			continue
		}
		out = append(out, TaskInstance{
			ID:            EventInstanceID(event.ID),
			Kind:          TaskKindEvent,
			Name:          event.Title,
			ScheduledTime: start.Format(model.TimeOfDay),
			Date:          date,
			IsCompleted:   eventCompleted(completions, event),
			IsPast:        start.Before(wall),
			TaskCategory:  event.TaskCategory,
			Event:         &event,
		})
	}

	sortTaskInstances(out)
	return out
}

// includeEvent keeps the "all" view to today while a category filter also
// shows later days.
func includeEvent(event model.CalendarEvent, date, today string, filter TaskFilter) bool {
	if filter == FilterAll {
		return date == today
	}
	return string(filter) == event.TaskCategory && date >= today
}

func medicationCompleted(completions []model.TaskCompletion, medicationID string, at time.Time) bool {
	for _, c := range completions {
		if medicationCompletionMatches(c, medicationID, at) {
			return true
		}
	}
	return false
}

func eventCompleted(completions []model.TaskCompletion, event model.CalendarEvent) bool {
	for _, c := range completions {
		if eventCompletionMatches(c, event) {
			return true
		}
	}
	return false
}

// medicationCompletionMatches compares by medication and scheduled minute; seconds are ignored.
func medicationCompletionMatches(c model.TaskCompletion, medicationID string, at time.Time) bool {
	return c.MedicationID != nil && *c.MedicationID == medicationID &&
		model.MinuteKey(c.ScheduledTime) == model.MinuteKey(at)
}

// eventCompletionMatches compares by event identity only: any completion of
// the event counts, whatever its scheduled time.
func eventCompletionMatches(c model.TaskCompletion, event model.CalendarEvent) bool {
	return c.EventID != nil && *c.EventID == event.ID
}

func sortTaskInstances(list []TaskInstance) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].sortKey() < list[j].sortKey()
	})
}

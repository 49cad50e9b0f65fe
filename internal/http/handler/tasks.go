package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"care-scheduler/internal/model"
	"care-scheduler/internal/service"
)

// TaskAPI is the part of the task service the HTTP surface uses.
type TaskAPI interface {
	Timeline(ctx context.Context, userID, circleID string, filter service.TaskFilter, now time.Time) ([]service.TaskInstance, error)
	ToggleTask(ctx context.Context, userID, circleID, instanceID string, now time.Time) (*service.TaskInstance, error)
	CreateMedication(ctx context.Context, userID string, input service.MedicationInput) (*model.Medication, error)
	CreateEvent(ctx context.Context, userID string, input service.EventInput) (*model.CalendarEvent, error)
	DeactivateMedication(ctx context.Context, userID, medicationID string) error
	DeleteEvent(ctx context.Context, userID, eventID string) error
}

type TaskHandler struct {
	Tasks TaskAPI
	Log   *zap.Logger
	Now   func() time.Time
}

type timelineResp struct {
	Date   string                 `json:"date"`
	Filter service.TaskFilter     `json:"filter"`
	Tasks  []service.TaskInstance `json:"tasks"`
	service.TaskBuckets
}

func (h *TaskHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	filter, ok := service.ParseTaskFilter(r.URL.Query().Get("filter"))
	if !ok {
		http.Error(w, "invalid filter", http.StatusBadRequest)
		return
	}
	now := h.Now()

	list, err := h.Tasks.Timeline(r.Context(), userID, r.URL.Query().Get("circle"), filter, now)
	if err != nil {
		h.fail(w, "timeline", err)
		return
	}

	writeJSON(w, http.StatusOK, timelineResp{
		Date:        model.WallClock(now).Format(model.DateLayout),
		Filter:      filter,
		Tasks:       list,
		TaskBuckets: service.BucketTaskInstances(list),
	})
}

func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	instanceID := chi.URLParam(r, "instanceID")

	inst, err := h.Tasks.ToggleTask(r.Context(), userID, r.URL.Query().Get("circle"), instanceID, h.Now())
	if err != nil {
		h.fail(w, "toggle", err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

type createMedicationReq struct {
	CircleID        string   `json:"circleId"`
	Name            string   `json:"name"`
	Dosage          string   `json:"dosage"`
	Frequency       string   `json:"frequency"`
	Notes           string   `json:"notes"`
	Times           []string `json:"times"`
	ReminderEnabled *bool    `json:"reminderEnabled"`
}

func (h *TaskHandler) CreateMedication(w http.ResponseWriter, r *http.Request) {
	var req createMedicationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	reminders := true
	if req.ReminderEnabled != nil {
		reminders = *req.ReminderEnabled
	}

	med, err := h.Tasks.CreateMedication(r.Context(), chi.URLParam(r, "userID"), service.MedicationInput{
		CircleID:        req.CircleID,
		Name:            req.Name,
		Dosage:          req.Dosage,
		Frequency:       req.Frequency,
		Notes:           req.Notes,
		Times:           req.Times,
		ReminderEnabled: reminders,
		StartDate:       h.Now(),
	})
	if err != nil {
		h.fail(w, "create medication", err)
		return
	}
	writeJSON(w, http.StatusCreated, med)
}

type createEventReq struct {
	CircleID          string `json:"circleId"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	TaskCategory      string `json:"taskCategory"`
	StartTime         string `json:"startTime"` // wall clock, 2006-01-02T15:04[:05]
	EndTime           string `json:"endTime"`
	RecurrencePattern string `json:"recurrencePattern"`
}

func (h *TaskHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	start, err := parseWallClock(req.StartTime)
	if err != nil {
		http.Error(w, "invalid startTime", http.StatusBadRequest)
		return
	}
	var end time.Time
	if strings.TrimSpace(req.EndTime) != "" {
		if end, err = parseWallClock(req.EndTime); err != nil {
			http.Error(w, "invalid endTime", http.StatusBadRequest)
			return
		}
	}

	event, err := h.Tasks.CreateEvent(r.Context(), chi.URLParam(r, "userID"), service.EventInput{
		CircleID:          req.CircleID,
		Title:             req.Title,
		Description:       req.Description,
		TaskCategory:      req.TaskCategory,
		StartTime:         start,
		EndTime:           end,
		RecurrencePattern: req.RecurrencePattern,
	})
	if err != nil {
		h.fail(w, "create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *TaskHandler) DeactivateMedication(w http.ResponseWriter, r *http.Request) {
	if err := h.Tasks.DeactivateMedication(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "medicationID")); err != nil {
		h.fail(w, "deactivate medication", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.Tasks.DeleteEvent(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "eventID")); err != nil {
		h.fail(w, "delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		http.Error(w, "task not found", http.StatusNotFound)
	case errors.Is(err, service.ErrNotCircleMember):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, service.ErrInvalidTaskInstance), errors.Is(err, service.ErrUnknownTaskKind):
		http.Error(w, "invalid task id", http.StatusBadRequest)
	case errors.Is(err, service.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.Log.Error(op, zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

func parseWallClock(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(model.DateTimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04", s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

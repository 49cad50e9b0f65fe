package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"care-scheduler/internal/model"
	"care-scheduler/internal/service"
)

type fakeTasks struct {
	lastNow    time.Time
	lastFilter service.TaskFilter
	lastCircle string
	toggled    string
	event      service.EventInput
}

func (f *fakeTasks) Timeline(_ context.Context, _, circleID string, filter service.TaskFilter, now time.Time) ([]service.TaskInstance, error) {
	f.lastNow = now
	f.lastFilter = filter
	f.lastCircle = circleID
	if circleID == "other" {
		return nil, service.ErrNotCircleMember
	}
	return []service.TaskInstance{
		{ID: "med-m1-08:00", Kind: service.TaskKindMedication, IsPast: true},
		{ID: "med-m1-20:00", Kind: service.TaskKindMedication},
	}, nil
}

func (f *fakeTasks) ToggleTask(_ context.Context, _, _, instanceID string, _ time.Time) (*service.TaskInstance, error) {
	if instanceID == "event-missing" {
		return nil, service.ErrTaskNotFound
	}
	f.toggled = instanceID
	return &service.TaskInstance{ID: instanceID, IsCompleted: true}, nil
}

func (f *fakeTasks) CreateMedication(_ context.Context, _ string, in service.MedicationInput) (*model.Medication, error) {
	if len(in.Times) == 0 {
		return nil, service.ErrInvalidInput
	}
	return &model.Medication{ID: "m1", Name: in.Name, Times: in.Times}, nil
}

func (f *fakeTasks) CreateEvent(_ context.Context, _ string, in service.EventInput) (*model.CalendarEvent, error) {
	f.event = in
	return &model.CalendarEvent{ID: "e1", Title: in.Title, StartTime: in.StartTime}, nil
}

func (f *fakeTasks) DeactivateMedication(_ context.Context, _, medicationID string) error {
	if medicationID != "m1" {
		return service.ErrTaskNotFound
	}
	return nil
}

func (f *fakeTasks) DeleteEvent(_ context.Context, userID, _ string) error {
	if userID != "u1" {
		return service.ErrNotCircleMember
	}
	return nil
}

type fakeNotes struct {
	lastLimit int
}

func (f *fakeNotes) ListByUser(_ context.Context, userID string, limit int) ([]model.Notification, error) {
	f.lastLimit = limit
	return []model.Notification{{ID: "n1", UserID: userID, Type: model.NotificationTypeCareTask}}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTimelineEndpoint(t *testing.T) {
	tasks := &fakeTasks{}
	h := NewRouter(tasks, &fakeNotes{}, time.UTC, nil, zap.NewNop())

	rec := do(t, h, http.MethodGet, "/api/users/u1/tasks?filter=medication&circle=c1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if tasks.lastFilter != service.FilterMedication || tasks.lastCircle != "c1" {
		t.Fatalf("query not passed through: %q %q", tasks.lastFilter, tasks.lastCircle)
	}

	var body struct {
		Tasks    []service.TaskInstance `json:"tasks"`
		Overdue  []service.TaskInstance `json:"overdue"`
		Upcoming []service.TaskInstance `json:"upcoming"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Tasks) != 2 || len(body.Overdue) != 1 || len(body.Upcoming) != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestTimelineErrors(t *testing.T) {
	h := NewRouter(&fakeTasks{}, &fakeNotes{}, time.UTC, nil, zap.NewNop())

	if rec := do(t, h, http.MethodGet, "/api/users/u1/tasks?filter=bogus", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad filter: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/users/u1/tasks?circle=other", ""); rec.Code != http.StatusForbidden {
		t.Errorf("non-member: %d", rec.Code)
	}
}

func TestToggleEndpoint(t *testing.T) {
	tasks := &fakeTasks{}
	h := NewRouter(tasks, &fakeNotes{}, time.UTC, nil, zap.NewNop())

	rec := do(t, h, http.MethodPost, "/api/users/u1/tasks/med-m1-08:00/toggle", "")
	if rec.Code != http.StatusOK || tasks.toggled != "med-m1-08:00" {
		t.Fatalf("toggle: %d %q", rec.Code, tasks.toggled)
	}
	if rec := do(t, h, http.MethodPost, "/api/users/u1/tasks/event-missing/toggle", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing task: %d", rec.Code)
	}
}

func TestCreateEndpoints(t *testing.T) {
	tasks := &fakeTasks{}
	h := NewRouter(tasks, &fakeNotes{}, time.UTC, nil, zap.NewNop())

	if rec := do(t, h, http.MethodPost, "/api/users/u1/medications", `{"name":"A","times":["08:00"]}`); rec.Code != http.StatusCreated {
		t.Errorf("create medication: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/users/u1/medications", `{"name":"A"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid medication: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/users/u1/medications", `{`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: %d", rec.Code)
	}

	rec := do(t, h, http.MethodPost, "/api/users/u1/events", `{"title":"Dentist","taskCategory":"appointment","startTime":"2024-01-02T10:30"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create event: %d %s", rec.Code, rec.Body.String())
	}
	if want := time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC); !tasks.event.StartTime.Equal(want) {
		t.Errorf("start time parsed as %v", tasks.event.StartTime)
	}
	if rec := do(t, h, http.MethodPost, "/api/users/u1/events", `{"title":"x","startTime":"tomorrow"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad start time: %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	if rec := do(t, NewRouter(&fakeTasks{}, &fakeNotes{}, time.UTC, nil, zap.NewNop()), http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := NewRouter(&fakeTasks{}, &fakeNotes{}, time.UTC, []string{"https://app.example.com"}, zap.NewNop())

	req := httptest.NewRequest(http.MethodOptions, "/api/users/u1/tasks", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow origin: %q", got)
	}
}

func TestDeleteEndpoints(t *testing.T) {
	h := NewRouter(&fakeTasks{}, &fakeNotes{}, time.UTC, nil, zap.NewNop())

	if rec := do(t, h, http.MethodDelete, "/api/users/u1/medications/m1", ""); rec.Code != http.StatusNoContent {
		t.Errorf("deactivate: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/users/u1/medications/m2", ""); rec.Code != http.StatusNotFound {
		t.Errorf("deactivate missing: %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/users/u2/events/e1", ""); rec.Code != http.StatusForbidden {
		t.Errorf("delete foreign event: %d", rec.Code)
	}
}

func TestNotificationsEndpoint(t *testing.T) {
	notes := &fakeNotes{}
	h := NewRouter(&fakeTasks{}, notes, time.UTC, nil, zap.NewNop())

	rec := do(t, h, http.MethodGet, "/api/users/u1/notifications?limit=500", "")
	if rec.Code != http.StatusOK || notes.lastLimit != 100 {
		t.Fatalf("list: %d limit=%d", rec.Code, notes.lastLimit)
	}
	var items []model.Notification
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil || len(items) != 1 {
		t.Fatalf("decode: %v %+v", err, items)
	}
	if rec := do(t, h, http.MethodGet, "/api/users/u1/notifications?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: %d", rec.Code)
	}
}

func TestTimelineUsesConfiguredZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	tasks := &fakeTasks{}
	h := NewRouter(tasks, &fakeNotes{}, tokyo, nil, zap.NewNop())

	rec := do(t, h, http.MethodGet, "/api/users/u1/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if tasks.lastNow.Location() != tokyo {
		t.Fatalf("timeline clock in %v, want %v", tasks.lastNow.Location(), tokyo)
	}

	var body struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if want := tasks.lastNow.Format("2006-01-02"); body.Date != want {
		t.Errorf("date %q, want the date in the configured zone %q", body.Date, want)
	}
}

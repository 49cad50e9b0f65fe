package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"care-scheduler/internal/model"
)

const maxNotificationLimit = 100

type NotificationLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Notification, error)
}

// NotificationHandler serves the in-app notification feed written by the dispatcher.
type NotificationHandler struct {
	Notifications NotificationLister
	Log           *zap.Logger
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxNotificationLimit)
	}

	items, err := h.Notifications.ListByUser(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		h.Log.Error("list notifications", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, items)
}

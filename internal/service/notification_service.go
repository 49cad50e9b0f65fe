package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"care-scheduler/internal/model"
)

type NotificationWriter interface {
	InsertNotification(ctx context.Context, n *model.Notification) error
}

// PushChannel delivers a notification outside the app, e.g. to a chat.
type PushChannel interface {
	Push(ctx context.Context, req NotificationRequest) error
}

// NotificationService is the dispatcher: it stores the in-app notification
// and forwards it to push channels when the user allows push.
type NotificationService struct {
	store    NotificationWriter
	settings SettingsReader
	log      *zap.Logger

	mu       sync.RWMutex
	channels []PushChannel
}

func NewNotificationService(store NotificationWriter, settings SettingsReader, log *zap.Logger) *NotificationService {
	return &NotificationService{store: store, settings: settings, log: log}
}

func (s *NotificationService) AddChannel(ch PushChannel) {
	s.mu.Lock()
	s.channels = append(s.channels, ch)
	s.mu.Unlock()
}

// Dispatch fails only when the in-app record could not be written. Push
// failures are logged since the user still sees the notification in-app.
func (s *NotificationService) Dispatch(ctx context.Context, req NotificationRequest) error {
	n := model.Notification{
		UserID:   req.UserID,
		Type:     req.Type,
		Title:    req.Title,
		Message:  req.Message,
		Link:     req.Link,
		Metadata: datatypes.JSONMap(req.Metadata),
	}
	if err := s.store.InsertNotification(ctx, &n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	settings, err := s.settings.GetNotificationSettings(ctx, req.UserID)
	if err != nil {
		s.log.Warn("settings unavailable for push", zap.String("user", req.UserID), zap.Error(err))
	}
	if settings == nil {
		def := model.DefaultNotificationSettings(req.UserID)
		settings = &def
	}
	if !settings.PushEnabled {
		return nil
	}

	s.mu.RLock()
	channels := append([]PushChannel(nil), s.channels...)
	s.mu.RUnlock()
	for _, ch := range channels {
		if err := ch.Push(ctx, req); err != nil {
			s.log.Warn("push failed", zap.String("user", req.UserID), zap.String("notification", n.ID), zap.Error(err))
		}
	}
	return nil
}

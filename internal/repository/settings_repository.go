package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"care-scheduler/internal/model"
)

// SettingsRepository stores per-user notification settings.
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetNotificationSettings returns nil without error when the user never saved settings.
func (r *SettingsRepository) GetNotificationSettings(ctx context.Context, userID string) (*model.NotificationSettings, error) {
	var settings model.NotificationSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	switch {
	case err == nil:
		return &settings, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find settings: %w", err)
	}
}

func (r *SettingsRepository) Save(ctx context.Context, settings *model.NotificationSettings) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(settings).Error; err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"care-scheduler/internal/model"
)

// MedicationRepository handles CRUD for medications.
type MedicationRepository struct {
	db *gorm.DB
}

func NewMedicationRepository(db *gorm.DB) *MedicationRepository {
	return &MedicationRepository{db: db}
}

func (r *MedicationRepository) Create(ctx context.Context, med *model.Medication) error {
	if err := r.db.WithContext(ctx).Create(med).Error; err != nil {
		return fmt.Errorf("create medication: %w", err)
	}
	return nil
}

func (r *MedicationRepository) ListMedications(ctx context.Context, scope OwnerScope, activeOnly bool) ([]model.Medication, error) {
	var meds []model.Medication
	if scope.empty() {
		return meds, nil
	}
	q := scope.apply(r.db.WithContext(ctx).Model(&model.Medication{}), "user_id")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Order("name ASC").Find(&meds).Error; err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	return meds, nil
}

func (r *MedicationRepository) FindByID(ctx context.Context, id string) (*model.Medication, error) {
	var med model.Medication
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&med).Error; err != nil {
		return nil, notFound(err)
	}
	return &med, nil
}

// Deactivate is the logical delete for medications.
func (r *MedicationRepository) Deactivate(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Model(&model.Medication{}).Where("id = ?", id).
		Update("active", false).Error; err != nil {
		return fmt.Errorf("deactivate medication: %w", err)
	}
	return nil
}

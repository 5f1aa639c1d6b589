package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"call-service/internal/model"
)

// AvailabilityRepository tracks the self-declared "open to calls" flag.
type AvailabilityRepository interface {
	Upsert(ctx context.Context, userID uuid.UUID, available bool) error
	// FindAvailableSince lists users flagged available whose flag was
	// refreshed on or after since.
	FindAvailableSince(ctx context.Context, since time.Time) ([]model.UserAvailability, error)
}

type availabilityRepository struct {
	db *gorm.DB
}

func NewAvailabilityRepository(db *gorm.DB) AvailabilityRepository {
	return &availabilityRepository{db: db}
}

func (r *availabilityRepository) Upsert(ctx context.Context, userID uuid.UUID, available bool) error {
	row := &model.UserAvailability{
		UserID:    userID,
		Available: available,
		UpdatedAt: time.Now().UTC(),
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"available", "updated_at"}),
	}).Create(row).Error
}

func (r *availabilityRepository) FindAvailableSince(ctx context.Context, since time.Time) ([]model.UserAvailability, error) {
	var rows []model.UserAvailability
	err := r.db.WithContext(ctx).
		Where("available = ? AND updated_at >= ?", true, since).
		Find(&rows).Error
	return rows, err
}

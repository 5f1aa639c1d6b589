package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"call-service/internal/model"
)

// SubscriptionRepository is a read-only view onto the subscription table
// owned by the billing flow.
type SubscriptionRepository interface {
	// LatestActive returns the most recent subscription that is ACTIVE
	// and still within its period, or gorm.ErrRecordNotFound.
	LatestActive(ctx context.Context, userID uuid.UUID, now time.Time) (*model.Subscription, error)
}

type subscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) LatestActive(ctx context.Context, userID uuid.UUID, now time.Time) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND ends_at > ?", userID, model.SubscriptionActive, now).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

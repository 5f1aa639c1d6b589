// internal/model/subscription.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionExpired  SubscriptionStatus = "EXPIRED"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
)

// Subscription is a read model over the subscription table owned by the
// billing flow. This service never writes it; the payment flow calls the
// presence-notify hook after mutating it.
type Subscription struct {
	ID        uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID          `gorm:"type:uuid;not null;index" json:"userId"`
	PlanName  string             `gorm:"size:100;not null" json:"planName"`
	Status    SubscriptionStatus `gorm:"type:varchar(20);not null" json:"status"`
	StartsAt  time.Time          `json:"startsAt"`
	EndsAt    time.Time          `json:"endsAt"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// internal/model/availability.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// UserAvailability is the self-declared "open to random calls" flag.
// Matching only considers rows updated within the availability window,
// so a stale flag ages out without a cleanup pass.
type UserAvailability struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"userId"`
	Available bool      `gorm:"not null;default:false" json:"available"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (UserAvailability) TableName() string {
	return "user_availability"
}

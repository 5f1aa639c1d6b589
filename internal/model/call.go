// internal/model/call.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CallStatus string

const (
	CallInitiated CallStatus = "INITIATED"
	CallAccepted  CallStatus = "ACCEPTED"
	CallRejected  CallStatus = "REJECTED"
	CallCompleted CallStatus = "COMPLETED"
	CallMissed    CallStatus = "MISSED"
)

// Call is one call attempt between two users. StartedAt stays null until
// the callee accepts; DurationSeconds is derived from EndedAt-StartedAt
// and is zero for calls that never connected.
type Call struct {
	CallID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"callId"`
	CallerID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"callerId"`
	CalleeID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"calleeId"`
	TopicID         *uuid.UUID     `gorm:"type:uuid" json:"topicId,omitempty"`
	Status          CallStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	StartedAt       *time.Time     `json:"startedAt,omitempty"`
	EndedAt         *time.Time     `json:"endedAt,omitempty"`
	DurationSeconds int            `gorm:"default:0" json:"durationSeconds"`
	EndReason       string         `gorm:"size:255" json:"endReason,omitempty"`
	Rating          *int           `json:"rating,omitempty"`
	RatedBy         *uuid.UUID     `gorm:"type:uuid" json:"ratedBy,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Call) BeforeCreate(tx *gorm.DB) error {
	if c.CallID == uuid.Nil {
		c.CallID = uuid.New()
	}
	return nil
}

func (Call) TableName() string {
	return "calls"
}

// IsParticipant reports whether userID is the caller or callee.
func (c *Call) IsParticipant(userID uuid.UUID) bool {
	return c.CallerID == userID || c.CalleeID == userID
}

// OtherParty returns the participant that is not userID.
func (c *Call) OtherParty(userID uuid.UUID) uuid.UUID {
	if c.CallerID == userID {
		return c.CalleeID
	}
	return c.CallerID
}

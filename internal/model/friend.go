// internal/model/friend.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FriendStatus string

const (
	FriendPending  FriendStatus = "PENDING"
	FriendAccepted FriendStatus = "ACCEPTED"
	FriendRejected FriendStatus = "REJECTED"
)

// Friendship is a directed row (requester -> recipient). The relationship
// itself is undirected: fanout and listing treat an ACCEPTED row as an
// edge regardless of which side initiated it.
type Friendship struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	RequesterID uuid.UUID    `gorm:"type:uuid;not null;index:idx_friend_requester" json:"requesterId"`
	RecipientID uuid.UUID    `gorm:"type:uuid;not null;index:idx_friend_recipient" json:"recipientId"`
	Status      FriendStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func (f *Friendship) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

func (Friendship) TableName() string {
	return "friendships"
}

// OtherParty resolves the far side of the edge relative to userID.
func (f *Friendship) OtherParty(userID uuid.UUID) uuid.UUID {
	if f.RequesterID == userID {
		return f.RecipientID
	}
	return f.RequesterID
}

// internal/ws/event.go
package ws

import (
	"encoding/json"
	"time"
)

// Server-emitted event types. One canonical name per event; clients
// register listeners against these exact strings.
const (
	EventCallInvitation         = "CALL_INVITATION"
	EventCallAccepted           = "CALL_ACCEPTED"
	EventCallRejected           = "CALL_REJECTED"
	EventCallEnded              = "CALL_ENDED"
	EventCallMissed             = "CALL_MISSED"
	EventUserEligibilityChanged = "USER_ELIGIBILITY_CHANGED"
	EventFriendRequestReceived  = "FRIEND_REQUEST_RECEIVED"
	EventFriendRequestAccepted  = "FRIEND_REQUEST_ACCEPTED"
	EventFriendshipRemoved      = "FRIENDSHIP_REMOVED"
	EventSignal                 = "SIGNAL"
)

// Client-to-server control message types.
const (
	ControlJoinCall  = "JOIN_CALL"
	ControlLeaveCall = "LEAVE_CALL"
	ControlSignal    = "SIGNAL"
)

// Event is the outbound wire frame.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

func NewEvent(eventType string, payload interface{}) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// ControlMessage is the inbound wire frame. Data carries an opaque
// signaling payload (SDP/ICE relay) that the server forwards untouched.
type ControlMessage struct {
	Type   string          `json:"type"`
	CallID string          `json:"callId,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type CallInvitationPayload struct {
	CallID           string `json:"callId"`
	CallerID         string `json:"callerId"`
	CallerName       string `json:"callerName"`
	CallerAvatar     string `json:"callerAvatar,omitempty"`
	TopicID          string `json:"topicId,omitempty"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

type CallStatusPayload struct {
	CallID string `json:"callId"`
	Reason string `json:"reason,omitempty"`
}

type EligibilityPayload struct {
	UserID         string `json:"userId"`
	OnlineStatus   bool   `json:"onlineStatus"`
	IsCallEligible bool   `json:"isCallEligible"`
}

type FriendEventPayload struct {
	ConnectionID string `json:"connectionId,omitempty"`
	UserID       string `json:"userId"`
	FullName     string `json:"fullName,omitempty"`
	AvatarURL    string `json:"avatarUrl,omitempty"`
}

type SignalPayload struct {
	CallID string          `json:"callId"`
	FromID string          `json:"fromId"`
	Data   json.RawMessage `json:"data"`
}

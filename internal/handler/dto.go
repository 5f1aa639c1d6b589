// internal/handler/dto.go
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"call-service/internal/client"
	"call-service/internal/model"
	"call-service/internal/service"
)

// ========================================
// Call DTOs
// ========================================

// CallResponse is the Call API response DTO
type CallResponse struct {
	CallID          string     `json:"callId" example:"550e8400-e29b-41d4-a716-446655440000"`
	CallerID        string     `json:"callerId" example:"550e8400-e29b-41d4-a716-446655440001"`
	CalleeID        string     `json:"calleeId" example:"550e8400-e29b-41d4-a716-446655440002"`
	TopicID         *string    `json:"topicId,omitempty" example:"550e8400-e29b-41d4-a716-446655440003"`
	Status          string     `json:"status" example:"INITIATED" enums:"INITIATED,ACCEPTED,REJECTED,COMPLETED,MISSED"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	DurationSeconds int        `json:"durationSeconds" example:"125"`
	EndReason       string     `json:"endReason,omitempty" example:"done"`
	Rating          *int       `json:"rating,omitempty" example:"5"`
	CreatedAt       time.Time  `json:"createdAt" example:"2025-11-20T12:00:00Z"`
} // @name CallResponse

// CalleeInfo is the callee display info returned alongside an initiated call
type CalleeInfo struct {
	UserID    string `json:"userId"`
	FullName  string `json:"fullName,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
} // @name CalleeInfo

// InitiateCallResponse pairs the created call with callee display info
type InitiateCallResponse struct {
	Call   CallResponse `json:"call"`
	Callee CalleeInfo   `json:"callee"`
} // @name InitiateCallResponse

// CallHistoryResponse is a page of the user's call history
type CallHistoryResponse struct {
	Calls  []CallResponse `json:"calls"`
	Total  int64          `json:"total" example:"42"`
	Limit  int            `json:"limit" example:"20"`
	Offset int            `json:"offset" example:"0"`
} // @name CallHistoryResponse

// MediaTokenResponse carries a short-lived media room credential
type MediaTokenResponse struct {
	Token string `json:"token"`
	WSUrl string `json:"wsUrl" example:"wss://livekit.example.com"`
} // @name MediaTokenResponse

// ToCallResponse converts model.Call to CallResponse
func ToCallResponse(call *model.Call) CallResponse {
	resp := CallResponse{
		CallID:          call.CallID.String(),
		CallerID:        call.CallerID.String(),
		CalleeID:        call.CalleeID.String(),
		Status:          string(call.Status),
		StartedAt:       call.StartedAt,
		EndedAt:         call.EndedAt,
		DurationSeconds: call.DurationSeconds,
		EndReason:       call.EndReason,
		Rating:          call.Rating,
		CreatedAt:       call.CreatedAt,
	}

	if call.TopicID != nil {
		topicID := call.TopicID.String()
		resp.TopicID = &topicID
	}

	return resp
}

// ToCallResponses converts []model.Call to []CallResponse
func ToCallResponses(calls []model.Call) []CallResponse {
	responses := make([]CallResponse, len(calls))
	for i := range calls {
		responses[i] = ToCallResponse(&calls[i])
	}
	return responses
}

// ToCalleeInfo converts client.UserInfo to CalleeInfo
func ToCalleeInfo(info *client.UserInfo) CalleeInfo {
	return CalleeInfo{
		UserID:    info.UserID,
		FullName:  info.FullName,
		AvatarURL: info.AvatarURL,
	}
}

// ========================================
// Friend DTOs
// ========================================

// FriendshipResponse is the Friendship API response DTO
type FriendshipResponse struct {
	ConnectionID string    `json:"connectionId" example:"550e8400-e29b-41d4-a716-446655440000"`
	RequesterID  string    `json:"requesterId" example:"550e8400-e29b-41d4-a716-446655440001"`
	RecipientID  string    `json:"recipientId" example:"550e8400-e29b-41d4-a716-446655440002"`
	Status       string    `json:"status" example:"PENDING" enums:"PENDING,ACCEPTED,REJECTED"`
	CreatedAt    time.Time `json:"createdAt" example:"2025-11-20T12:00:00Z"`
} // @name FriendshipResponse

// ToFriendshipResponse converts model.Friendship to FriendshipResponse
func ToFriendshipResponse(friendship *model.Friendship) FriendshipResponse {
	return FriendshipResponse{
		ConnectionID: friendship.ID.String(),
		RequesterID:  friendship.RequesterID.String(),
		RecipientID:  friendship.RecipientID.String(),
		Status:       string(friendship.Status),
		CreatedAt:    friendship.CreatedAt,
	}
}

// respondServiceError maps service sentinel errors onto HTTP statuses.
// Anything unclassified is a collaborator or database failure: the
// detail goes to the log, the client only sees a generic message.
func respondServiceError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrCallNotFound),
		errors.Is(err, service.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoCandidate):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSelfCall),
		errors.Is(err, service.ErrSelfFriend),
		errors.Is(err, service.ErrInvalidRating):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrCallNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrRequestExists),
		errors.Is(err, service.ErrAlreadyFriends):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, client.ErrMediaNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		logger.Error("Unhandled service error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

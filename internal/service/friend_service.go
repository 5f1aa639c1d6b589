package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"call-service/internal/client"
	"call-service/internal/model"
	"call-service/internal/repository"
	"call-service/internal/ws"
)

// FriendEntry is one accepted friend with presence and eligibility
// resolved at read time.
type FriendEntry struct {
	ConnectionID   string `json:"connectionId"`
	UserID         string `json:"userId"`
	FullName       string `json:"fullName,omitempty"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
	OnlineStatus   bool   `json:"onlineStatus"`
	IsCallEligible bool   `json:"isCallEligible"`
}

// FriendService manages the friendship graph and pushes the matching
// events to the affected party. Event delivery is best-effort; the row
// mutation is the source of truth.
type FriendService struct {
	friends     repository.FriendRepository
	users       client.UserClient
	eligibility *EligibilityService
	gateway     Gateway
	logger      *zap.Logger
}

func NewFriendService(
	friends repository.FriendRepository,
	users client.UserClient,
	eligibility *EligibilityService,
	gateway Gateway,
	logger *zap.Logger,
) *FriendService {
	return &FriendService{
		friends:     friends,
		users:       users,
		eligibility: eligibility,
		gateway:     gateway,
		logger:      logger,
	}
}

// SendRequest creates a pending edge and notifies the recipient.
func (s *FriendService) SendRequest(ctx context.Context, requesterID, recipientID uuid.UUID, token string) (*model.Friendship, error) {
	if requesterID == recipientID {
		return nil, ErrSelfFriend
	}

	if _, err := s.users.GetUserInfo(ctx, recipientID.String(), token); err != nil {
		return nil, ErrUserNotFound
	}

	existing, err := s.friends.FindBetween(ctx, requesterID, recipientID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		switch existing.Status {
		case model.FriendAccepted:
			return nil, ErrAlreadyFriends
		case model.FriendPending:
			return nil, ErrRequestExists
		}
		// A rejected edge may be retried; drop the stale row first.
		if _, err := s.friends.DeleteBetween(ctx, requesterID, recipientID); err != nil {
			return nil, err
		}
	}

	friendship := &model.Friendship{
		RequesterID: requesterID,
		RecipientID: recipientID,
		Status:      model.FriendPending,
	}
	if err := s.friends.Create(ctx, friendship); err != nil {
		return nil, err
	}

	payload := ws.FriendEventPayload{
		ConnectionID: friendship.ID.String(),
		UserID:       requesterID.String(),
	}
	if requesterInfo, err := s.users.GetUserInfo(ctx, requesterID.String(), token); err == nil {
		payload.FullName = requesterInfo.FullName
		payload.AvatarURL = requesterInfo.AvatarURL
	}
	s.gateway.SendToUser(recipientID, ws.NewEvent(ws.EventFriendRequestReceived, payload))

	s.logger.Info("Friend request sent",
		zap.String("connectionId", friendship.ID.String()),
		zap.String("requesterId", requesterID.String()),
		zap.String("recipientId", recipientID.String()))
	return friendship, nil
}

// Respond accepts or rejects a pending request. Only the recipient may
// respond; on accept the requester is notified.
func (s *FriendService) Respond(ctx context.Context, responderID, connectionID uuid.UUID, accept bool, token string) (*model.Friendship, error) {
	friendship, err := s.friends.GetByID(ctx, connectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if friendship.RecipientID != responderID || friendship.Status != model.FriendPending {
		return nil, ErrRequestNotFound
	}

	status := model.FriendRejected
	if accept {
		status = model.FriendAccepted
	}
	if err := s.friends.UpdateStatus(ctx, connectionID, status); err != nil {
		return nil, err
	}
	friendship.Status = status

	if accept {
		payload := ws.FriendEventPayload{
			ConnectionID: connectionID.String(),
			UserID:       responderID.String(),
		}
		if responderInfo, err := s.users.GetUserInfo(ctx, responderID.String(), token); err == nil {
			payload.FullName = responderInfo.FullName
			payload.AvatarURL = responderInfo.AvatarURL
		}
		s.gateway.SendToUser(friendship.RequesterID, ws.NewEvent(ws.EventFriendRequestAccepted, payload))
	}

	s.logger.Info("Friend request responded",
		zap.String("connectionId", connectionID.String()),
		zap.String("responderId", responderID.String()),
		zap.Bool("accepted", accept))
	return friendship, nil
}

// Remove deletes the edge between the two users in either direction and
// notifies the removed party.
func (s *FriendService) Remove(ctx context.Context, userID, friendID uuid.UUID) error {
	deleted, err := s.friends.DeleteBetween(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrRequestNotFound
	}

	s.gateway.SendToUser(friendID, ws.NewEvent(ws.EventFriendshipRemoved, ws.FriendEventPayload{
		UserID: userID.String(),
	}))

	s.logger.Info("Friendship removed",
		zap.String("userId", userID.String()),
		zap.String("friendId", friendID.String()))
	return nil
}

// List returns the user's accepted friends with live presence and
// eligibility attached.
func (s *FriendService) List(ctx context.Context, userID uuid.UUID, token string) ([]FriendEntry, error) {
	edges, err := s.friends.AcceptedEdges(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries := make([]FriendEntry, 0, len(edges))
	for _, edge := range edges {
		friendID := edge.OtherParty(userID)
		entry := FriendEntry{
			ConnectionID:   edge.ID.String(),
			UserID:         friendID.String(),
			OnlineStatus:   s.gateway.IsOnline(friendID),
			IsCallEligible: s.eligibility.IsEligible(ctx, friendID),
		}
		if info, err := s.users.GetUserInfo(ctx, friendID.String(), token); err == nil {
			entry.FullName = info.FullName
			entry.AvatarURL = info.AvatarURL
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"call-service/internal/ws"
)

// Gateway is the outbound slice of the signaling hub the services use.
// Deliveries are best-effort: the bool only says whether any live
// connection existed for the target.
type Gateway interface {
	SendToUser(userID uuid.UUID, event ws.Event) bool
	IsOnline(userID uuid.UUID) bool
	OnlineUsers() []uuid.UUID
}

// FanoutService pushes a user's presence/eligibility changes to their
// accepted friends. Invoked on every online/offline flip and, through
// NotifyEligibilityChange, by the payment flow after it mutates
// subscription state (the core has no subscription-change listener of
// its own).
type FanoutService struct {
	friends     FriendReader
	eligibility *EligibilityService
	gateway     Gateway
	redis       *redis.Client
	logger      *zap.Logger
}

// FriendReader is the slice of the friend repository the fanout needs.
type FriendReader interface {
	AcceptedFriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

func NewFanoutService(
	friends FriendReader,
	eligibility *EligibilityService,
	gateway Gateway,
	redisClient *redis.Client,
	logger *zap.Logger,
) *FanoutService {
	return &FanoutService{
		friends:     friends,
		eligibility: eligibility,
		gateway:     gateway,
		redis:       redisClient,
		logger:      logger,
	}
}

// HandlePresenceTransition matches ws.TransitionFunc; the hub calls it
// on its own goroutine after a user flips online or offline.
func (s *FanoutService) HandlePresenceTransition(userID uuid.UUID, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Notify(ctx, userID, online)
}

// NotifyEligibilityChange recomputes and fans out after a
// subscription-affecting action, using the user's current presence.
func (s *FanoutService) NotifyEligibilityChange(ctx context.Context, userID uuid.UUID) {
	s.Notify(ctx, userID, s.gateway.IsOnline(userID))
}

// Notify resolves the accepted-friend set and pushes one
// USER_ELIGIBILITY_CHANGED event per friend. Errors never propagate:
// this runs behind presence transitions and must not take the registry
// down with it.
func (s *FanoutService) Notify(ctx context.Context, userID uuid.UUID, online bool) {
	friendIDs, err := s.friends.AcceptedFriendIDs(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to resolve friends for fanout",
			zap.String("userId", userID.String()), zap.Error(err))
		return
	}

	// Eligibility of the user whose status changed, not of the friends.
	eligible := s.eligibility.IsEligible(ctx, userID)

	payload := ws.EligibilityPayload{
		UserID:         userID.String(),
		OnlineStatus:   online,
		IsCallEligible: eligible,
	}
	event := ws.NewEvent(ws.EventUserEligibilityChanged, payload)

	delivered := 0
	for _, friendID := range friendIDs {
		if s.gateway.SendToUser(friendID, event) {
			delivered++
		}
	}

	s.mirrorToRedis(ctx, payload)

	s.logger.Debug("Presence fanout completed",
		zap.String("userId", userID.String()),
		zap.Bool("online", online),
		zap.Bool("eligible", eligible),
		zap.Int("friends", len(friendIDs)),
		zap.Int("delivered", delivered))
}

// mirrorToRedis publishes the change on a pub/sub channel for external
// consumers (dashboards, other services). Fire-and-forget.
func (s *FanoutService) mirrorToRedis(ctx context.Context, payload ws.EligibilityPayload) {
	if s.redis == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	channel := "presence:user:" + payload.UserID
	if err := s.redis.Publish(ctx, channel, data).Err(); err != nil {
		s.logger.Warn("Failed to mirror presence event to redis", zap.Error(err))
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"call-service/internal/model"
	"call-service/internal/repository"
	"call-service/internal/ws"
)

type fanoutFixture struct {
	db      *gorm.DB
	gateway *fakeGateway
	users   *fakeUserClient
	service *FanoutService
}

func newFanoutFixture(t *testing.T) *fanoutFixture {
	t.Helper()
	db := setupServiceTestDB(t)
	gateway := newFakeGateway()
	users := newFakeUserClient()

	eligibility := NewEligibilityService(
		repository.NewSubscriptionRepository(db),
		repository.NewCallRepository(db),
		users,
		300,
		zap.NewNop(),
	)

	service := NewFanoutService(
		repository.NewFriendRepository(db),
		eligibility,
		gateway,
		nil,
		zap.NewNop(),
	)

	return &fanoutFixture{db: db, gateway: gateway, users: users, service: service}
}

func (f *fanoutFixture) seedAcceptedFriendship(t *testing.T, a, b uuid.UUID) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.Friendship{
		RequesterID: a,
		RecipientID: b,
		Status:      model.FriendAccepted,
	}).Error)
}

func (f *fanoutFixture) seedActiveSubscription(t *testing.T, userID uuid.UUID, plan string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, f.db.Create(&model.Subscription{
		ID:       uuid.New(),
		UserID:   userID,
		PlanName: plan,
		Status:   model.SubscriptionActive,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(24 * time.Hour),
	}).Error)
}

func TestFanout_ExactlyOneEventPerAcceptedFriend(t *testing.T) {
	f := newFanoutFixture(t)

	userA := uuid.New()
	friendB := uuid.New()
	nonFriendC := uuid.New()
	pendingD := uuid.New()

	f.users.add(userA, "User A", "")
	f.seedActiveSubscription(t, userA, "monthly")
	f.seedAcceptedFriendship(t, userA, friendB)
	require.NoError(t, f.db.Create(&model.Friendship{
		RequesterID: pendingD,
		RecipientID: userA,
		Status:      model.FriendPending,
	}).Error)

	f.gateway.setOnline(userA, friendB, nonFriendC, pendingD)

	f.service.Notify(context.Background(), userA, true)

	events := f.gateway.eventsFor(friendB)
	require.Len(t, events, 1)
	assert.Equal(t, "USER_ELIGIBILITY_CHANGED", events[0].Type)

	payload, ok := events[0].Payload.(ws.EligibilityPayload)
	require.True(t, ok)
	assert.Equal(t, userA.String(), payload.UserID)
	assert.True(t, payload.OnlineStatus)
	assert.True(t, payload.IsCallEligible)

	assert.Empty(t, f.gateway.eventsFor(nonFriendC))
	assert.Empty(t, f.gateway.eventsFor(pendingD))
}

func TestFanout_EdgeDirectionDoesNotMatter(t *testing.T) {
	f := newFanoutFixture(t)

	userA := uuid.New()
	friendB := uuid.New()
	f.users.add(userA, "User A", "")

	// B initiated the friendship; A's changes still reach B
	f.seedAcceptedFriendship(t, friendB, userA)
	f.gateway.setOnline(friendB)

	f.service.Notify(context.Background(), userA, false)

	events := f.gateway.eventsFor(friendB)
	require.Len(t, events, 1)

	payload := events[0].Payload.(ws.EligibilityPayload)
	assert.False(t, payload.OnlineStatus)
	// No subscription: the offline user is also ineligible
	assert.False(t, payload.IsCallEligible)
}

func TestFanout_NotifyEligibilityChangeUsesLivePresence(t *testing.T) {
	f := newFanoutFixture(t)

	userA := uuid.New()
	friendB := uuid.New()
	f.users.add(userA, "User A", "")
	f.seedActiveSubscription(t, userA, "yearly")
	f.seedAcceptedFriendship(t, userA, friendB)
	f.gateway.setOnline(userA, friendB)

	// The payment flow calls this hook after activating a subscription
	f.service.NotifyEligibilityChange(context.Background(), userA)

	events := f.gateway.eventsFor(friendB)
	require.Len(t, events, 1)

	payload := events[0].Payload.(ws.EligibilityPayload)
	assert.True(t, payload.OnlineStatus)
	assert.True(t, payload.IsCallEligible)
}

func TestFanout_OfflineFriendsAreSkippedSilently(t *testing.T) {
	f := newFanoutFixture(t)

	userA := uuid.New()
	offlineFriend := uuid.New()
	f.users.add(userA, "User A", "")
	f.seedAcceptedFriendship(t, userA, offlineFriend)

	// Must not error or panic; delivery is best-effort
	f.service.Notify(context.Background(), userA, true)

	assert.Empty(t, f.gateway.eventsFor(offlineFriend))
}

type failingFriendReader struct{}

func (failingFriendReader) AcceptedFriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return nil, errors.New("connection refused")
}

func TestFanout_FriendLookupFailureNeverPropagates(t *testing.T) {
	f := newFanoutFixture(t)

	service := NewFanoutService(
		failingFriendReader{},
		NewEligibilityService(
			repository.NewSubscriptionRepository(f.db),
			repository.NewCallRepository(f.db),
			f.users,
			300,
			zap.NewNop(),
		),
		f.gateway,
		nil,
		zap.NewNop(),
	)

	// Runs behind presence transitions; it must swallow the failure
	service.HandlePresenceTransition(uuid.New(), true)
}

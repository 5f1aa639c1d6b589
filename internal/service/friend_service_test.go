package service

import (
	"context"
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

type friendFixture struct {
	db      *gorm.DB
	gateway *fakeGateway
	users   *fakeUserClient
	service *FriendService
}

func newFriendFixture(t *testing.T) *friendFixture {
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

	service := NewFriendService(
		repository.NewFriendRepository(db),
		users,
		eligibility,
		gateway,
		zap.NewNop(),
	)

	return &friendFixture{db: db, gateway: gateway, users: users, service: service}
}

func (f *friendFixture) newUsers(t *testing.T) (uuid.UUID, uuid.UUID) {
	t.Helper()
	a, b := uuid.New(), uuid.New()
	f.users.add(a, "Alice", "")
	f.users.add(b, "Bob", "")
	f.gateway.setOnline(a, b)
	return a, b
}

func TestFriendService_SendRequest_NotifiesRecipient(t *testing.T) {
	f := newFriendFixture(t)
	alice, bob := f.newUsers(t)

	friendship, err := f.service.SendRequest(context.Background(), alice, bob, "tok")
	require.NoError(t, err)

	assert.Equal(t, model.FriendPending, friendship.Status)
	assert.Equal(t, alice, friendship.RequesterID)
	assert.Equal(t, bob, friendship.RecipientID)

	events := f.gateway.eventsFor(bob)
	require.Len(t, events, 1)
	assert.Equal(t, "FRIEND_REQUEST_RECEIVED", events[0].Type)

	payload, ok := events[0].Payload.(ws.FriendEventPayload)
	require.True(t, ok)
	assert.Equal(t, friendship.ID.String(), payload.ConnectionID)
	assert.Equal(t, alice.String(), payload.UserID)
	assert.Equal(t, "Alice", payload.FullName)
}

func TestFriendService_SendRequest_Validation(t *testing.T) {
	f := newFriendFixture(t)
	alice, bob := f.newUsers(t)

	_, err := f.service.SendRequest(context.Background(), alice, alice, "tok")
	assert.ErrorIs(t, err, ErrSelfFriend)

	_, err = f.service.SendRequest(context.Background(), alice, uuid.New(), "tok")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.service.SendRequest(context.Background(), alice, bob, "tok")
	require.NoError(t, err)

	// Duplicate in either direction
	_, err = f.service.SendRequest(context.Background(), alice, bob, "tok")
	assert.ErrorIs(t, err, ErrRequestExists)
	_, err = f.service.SendRequest(context.Background(), bob, alice, "tok")
	assert.ErrorIs(t, err, ErrRequestExists)
}

func TestFriendService_Respond_AcceptNotifiesRequester(t *testing.T) {
	f := newFriendFixture(t)
	alice, bob := f.newUsers(t)

	friendship, err := f.service.SendRequest(context.Background(), alice, bob, "tok")
	require.NoError(t, err)

	accepted, err := f.service.Respond(context.Background(), bob, friendship.ID, true, "tok")
	require.NoError(t, err)
	assert.Equal(t, model.FriendAccepted, accepted.Status)

	types := f.gateway.eventTypesFor(alice)
	require.Len(t, types, 1)
	assert.Equal(t, "FRIEND_REQUEST_ACCEPTED", types[0])

	payload := f.gateway.eventsFor(alice)[0].Payload.(ws.FriendEventPayload)
	assert.Equal(t, bob.String(), payload.UserID)
	assert.Equal(t, "Bob", payload.FullName)
}

func TestFriendService_Respond_OnlyPendingRecipient(t *testing.T) {
	f := newFriendFixture(t)
	alice, bob := f.newUsers(t)

	friendship, err := f.service.SendRequest(context.Background(), alice, bob, "tok")
	require.NoError(t, err)

	// The requester cannot answer their own request
	_, err = f.service.Respond(context.Background(), alice, friendship.ID, true, "tok")
	assert.ErrorIs(t, err, ErrRequestNotFound)

	_, err = f.service.Respond(context.Background(), bob, friendship.ID, false, "tok")
	require.NoError(t, err)

	// Already answered
	_, err = f.service.Respond(context.Background(), bob, friendship.ID, true, "tok")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestFriendService_AlreadyFriends(t *testing.T) {
	f := newFriendFixture(t)
	alice, bob := f.newUsers(t)

	friendship, err := f.service.SendRequest(context.Background(), alice, bob, "tok")
	require.NoError(t, err)
	_, err = f.service.Respond(context.Background(), bob, friendship.ID, true, "tok")
	require.NoError(t, err)

	_, err = f.service.SendRequest(context.Background(), bob, alice, "tok")
	assert.ErrorIs(t, err, ErrAlreadyFriends)
}

func TestFriendService_RejectedRequestMayBeRetried(t *testing.T) {
	f := newFriendFixture(t)
	alice, bob := f.newUsers(t)

	friendship, err := f.service.SendRequest(context.Background(), alice, bob, "tok")
	require.NoError(t, err)
	_, err = f.service.Respond(context.Background(), bob, friendship.ID, false, "tok")
	require.NoError(t, err)

	retried, err := f.service.SendRequest(context.Background(), alice, bob, "tok")
	require.NoError(t, err)
	assert.Equal(t, model.FriendPending, retried.Status)
	assert.NotEqual(t, friendship.ID, retried.ID)
}

func TestFriendService_Remove_NotifiesRemovedParty(t *testing.T) {
	f := newFriendFixture(t)
	alice, bob := f.newUsers(t)

	friendship, err := f.service.SendRequest(context.Background(), alice, bob, "tok")
	require.NoError(t, err)
	_, err = f.service.Respond(context.Background(), bob, friendship.ID, true, "tok")
	require.NoError(t, err)

	require.NoError(t, f.service.Remove(context.Background(), alice, bob))

	types := f.gateway.eventTypesFor(bob)
	assert.Equal(t, "FRIENDSHIP_REMOVED", types[len(types)-1])

	err = f.service.Remove(context.Background(), alice, bob)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestFriendService_List_ResolvesPresenceAndEligibility(t *testing.T) {
	f := newFriendFixture(t)
	alice, bob := f.newUsers(t)

	friendship, err := f.service.SendRequest(context.Background(), alice, bob, "tok")
	require.NoError(t, err)
	_, err = f.service.Respond(context.Background(), bob, friendship.ID, true, "tok")
	require.NoError(t, err)

	// Bob holds an active paid subscription
	now := time.Now().UTC()
	require.NoError(t, f.db.Create(&model.Subscription{
		ID:       uuid.New(),
		UserID:   bob,
		PlanName: "monthly",
		Status:   model.SubscriptionActive,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(24 * time.Hour),
	}).Error)

	entries, err := f.service.List(context.Background(), alice, "tok")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, bob.String(), entries[0].UserID)
	assert.Equal(t, "Bob", entries[0].FullName)
	assert.True(t, entries[0].OnlineStatus)
	assert.True(t, entries[0].IsCallEligible)

	// The edge resolves from Bob's side as well
	entries, err = f.service.List(context.Background(), bob, "tok")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, alice.String(), entries[0].UserID)
}

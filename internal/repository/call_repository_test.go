package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"call-service/internal/model"
)

func setupCallTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if err := db.AutoMigrate(&model.Call{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return db
}

func createInitiatedCall(t *testing.T, repo CallRepository, callerID, calleeID uuid.UUID) *model.Call {
	t.Helper()
	call := &model.Call{
		CallerID: callerID,
		CalleeID: calleeID,
		Status:   model.CallInitiated,
	}
	require.NoError(t, repo.Create(context.Background(), call))
	return call
}

func TestCallRepository_TransitionFromInitiated_FirstWriterWins(t *testing.T) {
	repo := NewCallRepository(setupCallTestDB(t))
	ctx := context.Background()

	call := createInitiatedCall(t, repo, uuid.New(), uuid.New())

	now := time.Now().UTC()
	won, err := repo.TransitionFromInitiated(ctx, call.CallID, model.CallAccepted, &now)
	require.NoError(t, err)
	assert.True(t, won)

	// A losing writer observes the already-transitioned record
	won, err = repo.TransitionFromInitiated(ctx, call.CallID, model.CallRejected, nil)
	require.NoError(t, err)
	assert.False(t, won)

	stored, err := repo.GetByID(ctx, call.CallID)
	require.NoError(t, err)
	assert.Equal(t, model.CallAccepted, stored.Status)
	require.NotNil(t, stored.StartedAt)
	assert.WithinDuration(t, now, *stored.StartedAt, time.Second)
}

func TestCallRepository_TransitionFromInitiated_RejectKeepsStartedAtNull(t *testing.T) {
	repo := NewCallRepository(setupCallTestDB(t))
	ctx := context.Background()

	call := createInitiatedCall(t, repo, uuid.New(), uuid.New())

	won, err := repo.TransitionFromInitiated(ctx, call.CallID, model.CallRejected, nil)
	require.NoError(t, err)
	assert.True(t, won)

	stored, err := repo.GetByID(ctx, call.CallID)
	require.NoError(t, err)
	assert.Equal(t, model.CallRejected, stored.Status)
	assert.Nil(t, stored.StartedAt)
}

func TestCallRepository_Complete_OnlyOnce(t *testing.T) {
	repo := NewCallRepository(setupCallTestDB(t))
	ctx := context.Background()

	call := createInitiatedCall(t, repo, uuid.New(), uuid.New())
	startedAt := time.Now().UTC().Add(-2 * time.Minute)
	_, err := repo.TransitionFromInitiated(ctx, call.CallID, model.CallAccepted, &startedAt)
	require.NoError(t, err)

	endedAt := startedAt.Add(2 * time.Minute)
	won, err := repo.Complete(ctx, call.CallID, endedAt, "done")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.Complete(ctx, call.CallID, endedAt.Add(time.Hour), "again")
	require.NoError(t, err)
	assert.False(t, won)

	stored, err := repo.GetByID(ctx, call.CallID)
	require.NoError(t, err)
	assert.Equal(t, model.CallCompleted, stored.Status)
	assert.Equal(t, 120, stored.DurationSeconds)
	assert.Equal(t, "done", stored.EndReason)
}

func TestCallRepository_Complete_SkipsResolvedCalls(t *testing.T) {
	repo := NewCallRepository(setupCallTestDB(t))
	ctx := context.Background()

	call := createInitiatedCall(t, repo, uuid.New(), uuid.New())
	won, err := repo.TransitionFromInitiated(ctx, call.CallID, model.CallMissed, nil)
	require.NoError(t, err)
	require.True(t, won)

	won, err = repo.Complete(ctx, call.CallID, time.Now().UTC(), "done")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestCallRepository_Complete_DerivesDurationFromStoredStart(t *testing.T) {
	repo := NewCallRepository(setupCallTestDB(t))
	ctx := context.Background()

	// The hangup path reads the call before completing it; an accept
	// landing after that read must still be reflected in the duration.
	call := createInitiatedCall(t, repo, uuid.New(), uuid.New())
	staleView, err := repo.GetByID(ctx, call.CallID)
	require.NoError(t, err)
	require.Nil(t, staleView.StartedAt)

	startedAt := time.Now().UTC().Add(-90 * time.Second)
	won, err := repo.TransitionFromInitiated(ctx, call.CallID, model.CallAccepted, &startedAt)
	require.NoError(t, err)
	require.True(t, won)

	won, err = repo.Complete(ctx, call.CallID, startedAt.Add(90*time.Second), "done")
	require.NoError(t, err)
	require.True(t, won)

	stored, err := repo.GetByID(ctx, call.CallID)
	require.NoError(t, err)
	assert.Equal(t, 90, stored.DurationSeconds)
}

func TestCallRepository_Complete_NeverAcceptedHasZeroDuration(t *testing.T) {
	repo := NewCallRepository(setupCallTestDB(t))
	ctx := context.Background()

	call := createInitiatedCall(t, repo, uuid.New(), uuid.New())

	won, err := repo.Complete(ctx, call.CallID, time.Now().UTC(), "cancelled")
	require.NoError(t, err)
	require.True(t, won)

	stored, err := repo.GetByID(ctx, call.CallID)
	require.NoError(t, err)
	assert.Zero(t, stored.DurationSeconds)
	assert.Nil(t, stored.StartedAt)
}

func TestCallRepository_CompletedSecondsSince(t *testing.T) {
	repo := NewCallRepository(setupCallTestDB(t))
	ctx := context.Background()
	db := repo.(*callRepository).db

	userID := uuid.New()
	otherID := uuid.New()
	now := time.Now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	seed := func(caller, callee uuid.UUID, status model.CallStatus, endedAt time.Time, seconds int) {
		require.NoError(t, db.Create(&model.Call{
			CallerID:        caller,
			CalleeID:        callee,
			Status:          status,
			EndedAt:         &endedAt,
			DurationSeconds: seconds,
		}).Error)
	}

	// Counted: completed today, as caller and as callee
	seed(userID, otherID, model.CallCompleted, startOfDay.Add(time.Hour), 100)
	seed(otherID, userID, model.CallCompleted, startOfDay.Add(2*time.Hour), 50)
	// Not counted: before the window
	seed(userID, otherID, model.CallCompleted, startOfDay.Add(-time.Hour), 400)
	// Not counted: not completed
	seed(userID, otherID, model.CallMissed, startOfDay.Add(time.Hour), 70)
	// Not counted: someone else's call
	seed(otherID, uuid.New(), model.CallCompleted, startOfDay.Add(time.Hour), 90)

	total, err := repo.CompletedSecondsSince(ctx, userID, startOfDay)
	require.NoError(t, err)
	assert.Equal(t, int64(150), total)
}

func TestCallRepository_CompletedSecondsSince_NoCalls(t *testing.T) {
	repo := NewCallRepository(setupCallTestDB(t))

	total, err := repo.CompletedSecondsSince(context.Background(), uuid.New(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCallRepository_FindStaleInitiated(t *testing.T) {
	repo := NewCallRepository(setupCallTestDB(t))
	ctx := context.Background()
	db := repo.(*callRepository).db

	stale := createInitiatedCall(t, repo, uuid.New(), uuid.New())
	require.NoError(t, db.Model(&model.Call{}).
		Where("call_id = ?", stale.CallID).
		Update("created_at", time.Now().UTC().Add(-5*time.Minute)).Error)

	createInitiatedCall(t, repo, uuid.New(), uuid.New()) // fresh

	found, err := repo.FindStaleInitiated(ctx, time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stale.CallID, found[0].CallID)
}

func TestCallRepository_History_PaginatesNewestFirst(t *testing.T) {
	repo := NewCallRepository(setupCallTestDB(t))
	ctx := context.Background()
	db := repo.(*callRepository).db

	userID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		call := createInitiatedCall(t, repo, userID, uuid.New())
		require.NoError(t, db.Model(&model.Call{}).
			Where("call_id = ?", call.CallID).
			Update("created_at", base.Add(time.Duration(i)*time.Minute)).Error)
		ids = append(ids, call.CallID)
	}
	createInitiatedCall(t, repo, uuid.New(), uuid.New()) // unrelated

	calls, total, err := repo.History(ctx, userID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, calls, 2)
	assert.Equal(t, ids[2], calls[0].CallID)
	assert.Equal(t, ids[1], calls[1].CallID)

	calls, _, err = repo.History(ctx, userID, 2, 2)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, ids[0], calls[0].CallID)
}

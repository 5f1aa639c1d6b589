package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"call-service/internal/model"
)

// CallRepository persists call records. Status transitions go through
// compare-and-swap updates so concurrent responders cannot both win.
type CallRepository interface {
	Create(ctx context.Context, call *model.Call) error
	GetByID(ctx context.Context, callID uuid.UUID) (*model.Call, error)

	// TransitionFromInitiated atomically moves an INITIATED call to the
	// given status. Returns false when the call was no longer INITIATED.
	TransitionFromInitiated(ctx context.Context, callID uuid.UUID, to model.CallStatus, startedAt *time.Time) (bool, error)

	// Complete atomically finishes an INITIATED or ACCEPTED call and
	// derives duration_seconds from the stored started_at. Returns
	// false when the call was already resolved.
	Complete(ctx context.Context, callID uuid.UUID, endedAt time.Time, reason string) (bool, error)

	SetRating(ctx context.Context, callID uuid.UUID, rating int, raterID uuid.UUID) error

	// CompletedSecondsSince sums completed-call durations for a user (as
	// either party) with ended_at on or after since.
	CompletedSecondsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)

	History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Call, int64, error)
	FindStaleInitiated(ctx context.Context, olderThan time.Time) ([]model.Call, error)
}

type callRepository struct {
	db *gorm.DB
}

func NewCallRepository(db *gorm.DB) CallRepository {
	return &callRepository{db: db}
}

func (r *callRepository) Create(ctx context.Context, call *model.Call) error {
	return r.db.WithContext(ctx).Create(call).Error
}

func (r *callRepository) GetByID(ctx context.Context, callID uuid.UUID) (*model.Call, error) {
	var call model.Call
	err := r.db.WithContext(ctx).First(&call, "call_id = ?", callID).Error
	if err != nil {
		return nil, err
	}
	return &call, nil
}

func (r *callRepository) TransitionFromInitiated(ctx context.Context, callID uuid.UUID, to model.CallStatus, startedAt *time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status": to,
	}
	if startedAt != nil {
		updates["started_at"] = *startedAt
	}

	result := r.db.WithContext(ctx).Model(&model.Call{}).
		Where("call_id = ? AND status = ?", callID, model.CallInitiated).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *callRepository) Complete(ctx context.Context, callID uuid.UUID, endedAt time.Time, reason string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.Call{}).
		Where("call_id = ? AND status IN ?", callID, []model.CallStatus{model.CallInitiated, model.CallAccepted}).
		Updates(map[string]interface{}{
			"status":     model.CallCompleted,
			"ended_at":   endedAt,
			"end_reason": reason,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	// Winning the status CAS freezes started_at: an accept can no longer
	// land on this row. Duration derives from the frozen value, never
	// from a read taken before the CAS.
	var call model.Call
	if err := r.db.WithContext(ctx).First(&call, "call_id = ?", callID).Error; err != nil {
		return true, err
	}
	durationSeconds := 0
	if call.StartedAt != nil {
		durationSeconds = int(endedAt.Sub(*call.StartedAt).Seconds())
	}
	err := r.db.WithContext(ctx).Model(&model.Call{}).
		Where("call_id = ?", callID).
		Update("duration_seconds", durationSeconds).Error
	return true, err
}

func (r *callRepository) SetRating(ctx context.Context, callID uuid.UUID, rating int, raterID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Call{}).
		Where("call_id = ?", callID).
		Updates(map[string]interface{}{
			"rating":   rating,
			"rated_by": raterID,
		}).Error
}

func (r *callRepository) CompletedSecondsSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var total *int64
	err := r.db.WithContext(ctx).Model(&model.Call{}).
		Select("SUM(duration_seconds)").
		Where("status = ?", model.CallCompleted).
		Where("caller_id = ? OR callee_id = ?", userID, userID).
		Where("ended_at >= ?", since).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *callRepository) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Call, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Call{}).
		Where("caller_id = ? OR callee_id = ?", userID, userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var calls []model.Call
	err := query.Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&calls).Error
	return calls, total, err
}

func (r *callRepository) FindStaleInitiated(ctx context.Context, olderThan time.Time) ([]model.Call, error) {
	var calls []model.Call
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.CallInitiated, olderThan).
		Find(&calls).Error
	return calls, err
}

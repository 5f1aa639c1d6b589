package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"call-service/internal/model"
)

// FriendRepository reads and mutates the directed friendship rows. The
// fanout path only ever asks for accepted edges, resolved from both
// directions.
type FriendRepository interface {
	Create(ctx context.Context, friendship *model.Friendship) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Friendship, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.FriendStatus) error
	FindBetween(ctx context.Context, a, b uuid.UUID) (*model.Friendship, error)
	DeleteBetween(ctx context.Context, a, b uuid.UUID) (bool, error)
	AcceptedFriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	AcceptedEdges(ctx context.Context, userID uuid.UUID) ([]model.Friendship, error)
}

type friendRepository struct {
	db *gorm.DB
}

func NewFriendRepository(db *gorm.DB) FriendRepository {
	return &friendRepository{db: db}
}

func (r *friendRepository) Create(ctx context.Context, friendship *model.Friendship) error {
	return r.db.WithContext(ctx).Create(friendship).Error
}

func (r *friendRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Friendship, error) {
	var friendship model.Friendship
	err := r.db.WithContext(ctx).First(&friendship, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &friendship, nil
}

func (r *friendRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.FriendStatus) error {
	return r.db.WithContext(ctx).Model(&model.Friendship{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *friendRepository) FindBetween(ctx context.Context, a, b uuid.UUID) (*model.Friendship, error) {
	var friendship model.Friendship
	err := r.db.WithContext(ctx).
		Where("(requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?)", a, b, b, a).
		First(&friendship).Error
	if err != nil {
		return nil, err
	}
	return &friendship, nil
}

func (r *friendRepository) DeleteBetween(ctx context.Context, a, b uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("(requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?)", a, b, b, a).
		Delete(&model.Friendship{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *friendRepository) AcceptedFriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	edges, err := r.AcceptedEdges(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(edges))
	for _, edge := range edges {
		ids = append(ids, edge.OtherParty(userID))
	}
	return ids, nil
}

func (r *friendRepository) AcceptedEdges(ctx context.Context, userID uuid.UUID) ([]model.Friendship, error) {
	var edges []model.Friendship
	err := r.db.WithContext(ctx).
		Where("status = ?", model.FriendAccepted).
		Where("requester_id = ? OR recipient_id = ?", userID, userID).
		Find(&edges).Error
	return edges, err
}

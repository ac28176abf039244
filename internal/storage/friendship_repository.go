package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"campusconnect/internal/models"
)

// FriendshipRepository defines the interface for friendship-edge data
// operations.
type FriendshipRepository interface {
	Create(ctx context.Context, edge *models.Friendship) error
	GetByID(ctx context.Context, id uint) (*models.Friendship, error)
	// FindActiveEdge returns the pending or accepted edge between two
	// users in either direction, or nil when none exists.
	FindActiveEdge(ctx context.Context, userID1, userID2 uint) (*models.Friendship, error)
	FindAcceptedEdge(ctx context.Context, userID1, userID2 uint) (*models.Friendship, error)
	UpdateStatus(ctx context.Context, id uint, status models.FriendshipStatus) error
	Delete(ctx context.Context, id uint) error
	GetPendingForRecipient(ctx context.Context, toUserID uint) ([]models.Friendship, error)
	// GetAcceptedTouching returns all accepted edges with userID on
	// either end.
	GetAcceptedTouching(ctx context.Context, userID uint) ([]models.Friendship, error)
	// GetActiveTouching returns all pending or accepted edges with
	// userID on either end.
	GetActiveTouching(ctx context.Context, userID uint) ([]models.Friendship, error)
	AreUsersFriends(ctx context.Context, userID1, userID2 uint) (bool, error)
	GetFriendIDs(ctx context.Context, userID uint) ([]uint, error)
}

type gormFriendshipRepository struct {
	db *gorm.DB
}

// NewGormFriendshipRepository creates a new GORM-based FriendshipRepository.
func NewGormFriendshipRepository(db *gorm.DB) FriendshipRepository {
	return &gormFriendshipRepository{db: db}
}

func (r *gormFriendshipRepository) Create(ctx context.Context, edge *models.Friendship) error {
	return r.db.WithContext(ctx).Create(edge).Error
}

func (r *gormFriendshipRepository) GetByID(ctx context.Context, id uint) (*models.Friendship, error) {
	var edge models.Friendship
	err := r.db.WithContext(ctx).First(&edge, id).Error
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

// FindActiveEdge scans both directions for a pending or accepted edge
// between the pair. A missing edge is not an error here.
func (r *gormFriendshipRepository) FindActiveEdge(ctx context.Context, userID1, userID2 uint) (*models.Friendship, error) {
	return r.findEdge(ctx, userID1, userID2, []models.FriendshipStatus{
		models.FriendshipStatusPending, models.FriendshipStatusAccepted,
	})
}

func (r *gormFriendshipRepository) FindAcceptedEdge(ctx context.Context, userID1, userID2 uint) (*models.Friendship, error) {
	return r.findEdge(ctx, userID1, userID2, []models.FriendshipStatus{
		models.FriendshipStatusAccepted,
	})
}

func (r *gormFriendshipRepository) findEdge(ctx context.Context, userID1, userID2 uint, statuses []models.FriendshipStatus) (*models.Friendship, error) {
	var edge models.Friendship
	err := r.db.WithContext(ctx).
		Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)", userID1, userID2, userID2, userID1).
		Where("status IN ?", statuses).
		First(&edge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &edge, nil
}

func (r *gormFriendshipRepository) UpdateStatus(ctx context.Context, id uint, status models.FriendshipStatus) error {
	return r.db.WithContext(ctx).Model(&models.Friendship{}).Where("id = ?", id).Update("status", status).Error
}

func (r *gormFriendshipRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Friendship{}, id).Error
}

func (r *gormFriendshipRepository) GetPendingForRecipient(ctx context.Context, toUserID uint) ([]models.Friendship, error) {
	var edges []models.Friendship
	err := r.db.WithContext(ctx).
		Where("to_user_id = ? AND status = ?", toUserID, models.FriendshipStatusPending).
		Order("created_at DESC").
		Find(&edges).Error
	return edges, err
}

func (r *gormFriendshipRepository) GetAcceptedTouching(ctx context.Context, userID uint) ([]models.Friendship, error) {
	return r.edgesTouching(ctx, userID, []models.FriendshipStatus{models.FriendshipStatusAccepted})
}

func (r *gormFriendshipRepository) GetActiveTouching(ctx context.Context, userID uint) ([]models.Friendship, error) {
	return r.edgesTouching(ctx, userID, []models.FriendshipStatus{
		models.FriendshipStatusPending, models.FriendshipStatusAccepted,
	})
}

func (r *gormFriendshipRepository) edgesTouching(ctx context.Context, userID uint, statuses []models.FriendshipStatus) ([]models.Friendship, error) {
	var edges []models.Friendship
	err := r.db.WithContext(ctx).
		Where("(from_user_id = ? OR to_user_id = ?) AND status IN ?", userID, userID, statuses).
		Find(&edges).Error
	return edges, err
}

// AreUsersFriends reports whether an accepted edge connects the pair.
func (r *gormFriendshipRepository) AreUsersFriends(ctx context.Context, userID1, userID2 uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)", userID1, userID2, userID2, userID1).
		Where("status = ?", models.FriendshipStatusAccepted).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetFriendIDs derives the accepted-friend id set for userID from the
// edges. This is the authoritative computation behind the cached
// FriendIDs column on users.
func (r *gormFriendshipRepository) GetFriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	edges, err := r.GetAcceptedTouching(ctx, userID)
	if err != nil {
		return nil, err
	}
	friendIDs := make([]uint, 0, len(edges))
	for _, e := range edges {
		friendIDs = append(friendIDs, e.OtherParty(userID))
	}
	return friendIDs, nil
}

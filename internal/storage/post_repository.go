package storage

import (
	"context"

	"gorm.io/gorm"

	"campusconnect/internal/models"
)

// PostRepository defines the interface for feed post data operations.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	// ListRecent returns the newest posts first, capped at limit with
	// offset rows skipped. Visibility filtering happens a level up
	// because it depends on the viewer's friend set.
	ListRecent(ctx context.Context, limit, offset int) ([]models.Post, error)
	ListByAuthor(ctx context.Context, authorID uint, limit, offset int) ([]models.Post, error)
	CreateComment(ctx context.Context, comment *models.PostComment) error
	GetComments(ctx context.Context, postID uint) ([]models.PostComment, error)
	IncrementCommentCount(ctx context.Context, postID uint) error
}

type gormPostRepository struct {
	db *gorm.DB
}

// NewGormPostRepository creates a new GORM-based PostRepository.
func NewGormPostRepository(db *gorm.DB) PostRepository {
	return &gormPostRepository{db: db}
}

func (r *gormPostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *gormPostRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).First(&post, id).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *gormPostRepository) Update(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

func (r *gormPostRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Post{}, id).Error
}

func (r *gormPostRepository) ListRecent(ctx context.Context, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	q := r.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	err := q.Find(&posts).Error
	return posts, err
}

func (r *gormPostRepository) ListByAuthor(ctx context.Context, authorID uint, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	q := r.db.WithContext(ctx).Where("author_id = ?", authorID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	err := q.Find(&posts).Error
	return posts, err
}

func (r *gormPostRepository) CreateComment(ctx context.Context, comment *models.PostComment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *gormPostRepository) GetComments(ctx context.Context, postID uint) ([]models.PostComment, error) {
	var comments []models.PostComment
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("posted_at ASC").
		Find(&comments).Error
	return comments, err
}

func (r *gormPostRepository) IncrementCommentCount(ctx context.Context, postID uint) error {
	return r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1)).Error
}

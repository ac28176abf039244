package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"campusconnect/internal/cctypes"
	"campusconnect/internal/config"
	"campusconnect/internal/kafka"
	"campusconnect/internal/models"
	"campusconnect/internal/storage"
)

var (
	ErrEmptyContent = errors.New("post content cannot be empty")
	ErrEmptyText    = errors.New("comment text cannot be empty")
	ErrPostNotFound = errors.New("post not found")
	ErrNotAuthor    = errors.New("caller is not the author of this post")
)

const defaultFeedLimit = 100

// FeedService defines the interface for feed post operations.
type FeedService interface {
	CreatePost(ctx context.Context, authorID uint, content, imageURL, visibility string) (*models.Post, error)
	// GetFeed pages over recent posts, newest first. limit <= 0 falls
	// back to the default page size, offset skips already-seen rows.
	GetFeed(ctx context.Context, viewerID uint, limit, offset int) ([]models.Post, error)
	GetPost(ctx context.Context, viewerID, postID uint) (*models.Post, error)
	GetPostsByAuthor(ctx context.Context, viewerID, authorID uint, limit, offset int) ([]models.Post, error)
	DeletePost(ctx context.Context, callerID, postID uint) error
	// ToggleLike adds the caller to the like set, or removes them if
	// already present, and returns the updated post.
	ToggleLike(ctx context.Context, userID, postID uint) (*models.Post, error)
	AddComment(ctx context.Context, userID, postID uint, text string) (*models.PostComment, error)
	GetComments(ctx context.Context, viewerID, postID uint) ([]models.PostComment, error)
}

type feedService struct {
	db             *gorm.DB
	postRepo       storage.PostRepository
	userRepo       storage.UserRepository
	friendshipRepo storage.FriendshipRepository
	producer       kafka.MessageProducer
	kafkaConfig    config.KafkaConfig
}

// NewFeedService creates a new FeedService instance.
func NewFeedService(
	db *gorm.DB,
	postRepo storage.PostRepository,
	userRepo storage.UserRepository,
	friendshipRepo storage.FriendshipRepository,
	producer kafka.MessageProducer,
	cfg config.KafkaConfig,
) FeedService {
	return &feedService{
		db:             db,
		postRepo:       postRepo,
		userRepo:       userRepo,
		friendshipRepo: friendshipRepo,
		producer:       producer,
		kafkaConfig:    cfg,
	}
}

func (s *feedService) publishFeedEvent(ctx context.Context, event cctypes.Event) {
	if s.producer == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling %s event: %v", event.Type, err)
		return
	}
	key := []byte(fmt.Sprintf("%d", event.PostID))
	if err := s.producer.SendMessage(ctx, s.kafkaConfig.FeedEventsTopic, key, payload); err != nil {
		log.Printf("Error publishing %s event to topic %s: %v", event.Type, s.kafkaConfig.FeedEventsTopic, err)
	}
}

func (s *feedService) publishNotification(ctx context.Context, event cctypes.Event) {
	if s.producer == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling %s event: %v", event.Type, err)
		return
	}
	key := []byte(fmt.Sprintf("%d", event.RecipientID))
	if err := s.producer.SendMessage(ctx, s.kafkaConfig.NotificationsTopic, key, payload); err != nil {
		log.Printf("Error publishing %s event to topic %s: %v", event.Type, s.kafkaConfig.NotificationsTopic, err)
	}
}

// CreatePost stores a new post with an author snapshot and announces it
// on the feed topic. For friends-scoped posts the event carries the
// author's current friend set so the fan-out can filter recipients.
func (s *feedService) CreatePost(ctx context.Context, authorID uint, content, imageURL, visibility string) (*models.Post, error) {
	if authorID == 0 {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	author, err := s.userRepo.GetByID(ctx, authorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("loading author %d: %w", authorID, err)
	}

	post := &models.Post{
		AuthorID:         authorID,
		AuthorName:       author.Name,
		AuthorDepartment: author.Department,
		AuthorYear:       author.Year,
		Content:          content,
		ImageURL:         imageURL,
		Visibility:       models.NormalizeVisibility(visibility),
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	event := cctypes.Event{
		Type:       cctypes.NewPostEvent,
		SenderID:   authorID,
		AuthorID:   authorID,
		PostID:     post.ID,
		Visibility: string(post.Visibility),
		Timestamp:  time.Now(),
	}
	if post.Visibility == models.FriendsVisibility {
		event.AudienceIDs = author.FriendIDs
	}
	s.publishFeedEvent(ctx, event)

	log.Printf("Post %d created by user %d (%s)", post.ID, authorID, post.Visibility)
	return post, nil
}

// viewerFriendSet loads the viewer's accepted-friend ids as a set.
// An anonymous viewer gets an empty set.
func (s *feedService) viewerFriendSet(ctx context.Context, viewerID uint) (map[uint]bool, error) {
	set := make(map[uint]bool)
	if viewerID == 0 {
		return set, nil
	}
	friendIDs, err := s.friendshipRepo.GetFriendIDs(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("loading friend ids for user %d: %w", viewerID, err)
	}
	for _, id := range friendIDs {
		set[id] = true
	}
	return set, nil
}

// GetFeed returns the newest posts the viewer may see: public posts,
// their own posts, and friends-scoped posts from their friends. A page
// may come back shorter than limit after visibility filtering.
func (s *feedService) GetFeed(ctx context.Context, viewerID uint, limit, offset int) ([]models.Post, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	friendSet, err := s.viewerFriendSet(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	posts, err := s.postRepo.ListRecent(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("loading recent posts: %w", err)
	}

	visible := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if p.VisibleTo(viewerID, friendSet) {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

// GetPost returns a single post after a visibility check.
func (s *feedService) GetPost(ctx context.Context, viewerID, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("loading post %d: %w", postID, err)
	}

	friendSet, err := s.viewerFriendSet(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if !post.VisibleTo(viewerID, friendSet) {
		// Hidden posts are indistinguishable from missing ones.
		return nil, ErrPostNotFound
	}
	return post, nil
}

// GetPostsByAuthor returns an author's posts the viewer may see,
// newest first.
func (s *feedService) GetPostsByAuthor(ctx context.Context, viewerID, authorID uint, limit, offset int) ([]models.Post, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	friendSet, err := s.viewerFriendSet(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	posts, err := s.postRepo.ListByAuthor(ctx, authorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("loading posts of author %d: %w", authorID, err)
	}
	visible := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if p.VisibleTo(viewerID, friendSet) {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

// DeletePost removes a post. Only the author may delete it.
func (s *feedService) DeletePost(ctx context.Context, callerID, postID uint) error {
	if callerID == 0 {
		return ErrUnauthenticated
	}
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("loading post %d: %w", postID, err)
	}
	if post.AuthorID != callerID {
		return ErrNotAuthor
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return fmt.Errorf("deleting post %d: %w", postID, err)
	}
	log.Printf("Post %d deleted by author %d", postID, callerID)
	return nil
}

// ToggleLike flips the caller's membership in the post's like set.
// Liking someone else's post notifies the author.
func (s *feedService) ToggleLike(ctx context.Context, userID, postID uint) (*models.Post, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	var post *models.Post
	var liked bool
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txPostRepo := storage.NewGormPostRepository(tx)

		p, err := txPostRepo.GetByID(ctx, postID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return fmt.Errorf("loading post %d: %w", postID, err)
		}

		if p.LikedBy(userID) {
			filtered := p.LikeIDs[:0]
			for _, id := range p.LikeIDs {
				if id != userID {
					filtered = append(filtered, id)
				}
			}
			p.LikeIDs = filtered
			liked = false
		} else {
			p.LikeIDs = append(p.LikeIDs, userID)
			liked = true
		}

		if err := txPostRepo.Update(ctx, p); err != nil {
			return fmt.Errorf("updating like set of post %d: %w", postID, err)
		}
		post = p
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	if liked && post.AuthorID != userID {
		s.publishNotification(ctx, cctypes.Event{
			Type:        cctypes.PostLikedEvent,
			SenderID:    userID,
			RecipientID: post.AuthorID,
			PostID:      post.ID,
			Timestamp:   time.Now(),
		})
	}
	return post, nil
}

// AddComment appends a comment and bumps the post's counter in one
// transaction. Commenting on someone else's post notifies the author.
func (s *feedService) AddComment(ctx context.Context, userID, postID uint, text string) (*models.PostComment, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	commenter, err := s.userRepo.GetBasicInfoByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("loading commenter %d: %w", userID, err)
	}

	var comment *models.PostComment
	var authorID uint
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txPostRepo := storage.NewGormPostRepository(tx)

		post, err := txPostRepo.GetByID(ctx, postID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return fmt.Errorf("loading post %d: %w", postID, err)
		}
		authorID = post.AuthorID

		c := &models.PostComment{
			PostID:     postID,
			AuthorID:   userID,
			AuthorName: commenter.Name,
			Text:       text,
			PostedAt:   time.Now(),
		}
		if err := txPostRepo.CreateComment(ctx, c); err != nil {
			return fmt.Errorf("creating comment on post %d: %w", postID, err)
		}
		if err := txPostRepo.IncrementCommentCount(ctx, postID); err != nil {
			return fmt.Errorf("incrementing comment count of post %d: %w", postID, err)
		}
		comment = c
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	if authorID != userID {
		s.publishNotification(ctx, cctypes.Event{
			Type:        cctypes.PostCommentedEvent,
			SenderID:    userID,
			RecipientID: authorID,
			PostID:      postID,
			Text:        text,
			Timestamp:   time.Now(),
		})
	}
	return comment, nil
}

// GetComments returns a post's comments oldest first, after the same
// visibility check as GetPost.
func (s *feedService) GetComments(ctx context.Context, viewerID, postID uint) ([]models.PostComment, error) {
	if _, err := s.GetPost(ctx, viewerID, postID); err != nil {
		return nil, err
	}
	comments, err := s.postRepo.GetComments(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("loading comments of post %d: %w", postID, err)
	}
	return comments, nil
}

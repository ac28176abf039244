package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"campusconnect/internal/cctypes"
	"campusconnect/internal/config"
	"campusconnect/internal/kafka"
	"campusconnect/internal/models"
	"campusconnect/internal/storage"
)

var (
	ErrSelfRequest       = errors.New("cannot send a friend request to yourself")
	ErrAlreadyConnected  = errors.New("a pending request or friendship already exists")
	ErrRecipientNotFound = errors.New("recipient user does not exist")
	ErrRequestNotFound   = errors.New("friend request not found")
	ErrNotRecipient      = errors.New("caller is not the recipient of this request")
	ErrRequestNotPending = errors.New("friend request is not pending")
	ErrNotFriends        = errors.New("users are not friends")
)

// FriendService defines the interface for friend-graph operations.
type FriendService interface {
	SendFriendRequest(ctx context.Context, requesterID, recipientID uint) (*models.Friendship, error)
	AcceptFriendRequest(ctx context.Context, recipientID, requestID uint) error
	DeclineFriendRequest(ctx context.Context, recipientID, requestID uint) error
	ListPendingRequests(ctx context.Context, userID uint) ([]*models.FriendshipWithRequester, error)
	GetFriendsList(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error)
	AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error)
	Unfriend(ctx context.Context, userID, friendID uint) error
	// RebuildFriendCache recomputes a user's cached friend-id list from
	// the accepted edges. Used by repair tooling.
	RebuildFriendCache(ctx context.Context, userID uint) error
}

type friendService struct {
	db             *gorm.DB
	userRepo       storage.UserRepository
	friendshipRepo storage.FriendshipRepository
	producer       kafka.MessageProducer
	kafkaConfig    config.KafkaConfig
}

// NewFriendService creates a new FriendService instance.
func NewFriendService(
	db *gorm.DB,
	userRepo storage.UserRepository,
	friendshipRepo storage.FriendshipRepository,
	producer kafka.MessageProducer,
	cfg config.KafkaConfig,
) FriendService {
	return &friendService{
		db:             db,
		userRepo:       userRepo,
		friendshipRepo: friendshipRepo,
		producer:       producer,
		kafkaConfig:    cfg,
	}
}

// publishNotification sends a friend-graph event to the notifications
// topic. Delivery failures are logged, not surfaced; the database write
// already happened.
func (s *friendService) publishNotification(ctx context.Context, event cctypes.Event) {
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

// SendFriendRequest creates a pending edge and notifies the recipient.
// A second request while one is pending, or between existing friends,
// fails with ErrAlreadyConnected.
func (s *friendService) SendFriendRequest(ctx context.Context, requesterID, recipientID uint) (*models.Friendship, error) {
	if requesterID == 0 {
		return nil, ErrUnauthenticated
	}
	if requesterID == recipientID {
		return nil, ErrSelfRequest
	}

	_, err := s.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("checking recipient user %d: %w", recipientID, err)
	}

	existing, err := s.friendshipRepo.FindActiveEdge(ctx, requesterID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("checking existing edge between %d and %d: %w", requesterID, recipientID, err)
	}
	if existing != nil {
		return nil, ErrAlreadyConnected
	}

	edge := &models.Friendship{
		FromUserID: requesterID,
		ToUserID:   recipientID,
		Status:     models.FriendshipStatusPending,
	}
	if err := s.friendshipRepo.Create(ctx, edge); err != nil {
		return nil, fmt.Errorf("creating friend request %d -> %d: %w", requesterID, recipientID, err)
	}

	s.publishNotification(ctx, cctypes.Event{
		Type:         cctypes.FriendRequestEvent,
		SenderID:     requesterID,
		RecipientID:  recipientID,
		FriendshipID: edge.ID,
		Timestamp:    time.Now(),
	})

	log.Printf("Friend request %d created: %d -> %d", edge.ID, requesterID, recipientID)
	return edge, nil
}

// AcceptFriendRequest flips the pending edge to accepted and adds each
// user to the other's cached friend list. Status flip, both cache
// updates and the chat channel all land in one transaction so the
// graph never half-accepts.
func (s *friendService) AcceptFriendRequest(ctx context.Context, recipientID, requestID uint) error {
	if recipientID == 0 {
		return ErrUnauthenticated
	}

	var requesterID uint
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txFriendshipRepo := storage.NewGormFriendshipRepository(tx)
		txChatRepo := storage.NewGormChatRepository(tx)

		edge, err := txFriendshipRepo.GetByID(ctx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return fmt.Errorf("retrieving friend request %d: %w", requestID, err)
		}

		if edge.ToUserID != recipientID {
			return ErrNotRecipient
		}
		if edge.Status != models.FriendshipStatusPending {
			return ErrRequestNotPending
		}
		requesterID = edge.FromUserID

		if err := txFriendshipRepo.UpdateStatus(ctx, requestID, models.FriendshipStatusAccepted); err != nil {
			return fmt.Errorf("updating friend request %d status: %w", requestID, err)
		}

		if err := addFriendToCache(ctx, tx, edge.FromUserID, edge.ToUserID); err != nil {
			return err
		}
		if err := addFriendToCache(ctx, tx, edge.ToUserID, edge.FromUserID); err != nil {
			return err
		}

		// New friends get their chat channel up front so the first
		// message needs no setup.
		if _, err := txChatRepo.EnsureChannel(ctx, edge.FromUserID, edge.ToUserID); err != nil {
			return fmt.Errorf("ensuring chat channel for %d and %d: %w", edge.FromUserID, edge.ToUserID, err)
		}

		return nil
	})
	if txErr != nil {
		return txErr
	}

	s.publishNotification(ctx, cctypes.Event{
		Type:         cctypes.FriendAcceptedEvent,
		SenderID:     recipientID,
		RecipientID:  requesterID,
		FriendshipID: requestID,
		Timestamp:    time.Now(),
	})

	log.Printf("Friend request %d accepted by user %d", requestID, recipientID)
	return nil
}

// addFriendToCache appends friendID to ownerID's cached friend list
// inside the caller's transaction.
func addFriendToCache(ctx context.Context, tx *gorm.DB, ownerID, friendID uint) error {
	txUserRepo := storage.NewGormUserRepository(tx)
	owner, err := txUserRepo.GetByID(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("loading user %d for friend cache update: %w", ownerID, err)
	}
	if owner.HasFriend(friendID) {
		return nil
	}
	owner.FriendIDs = append(owner.FriendIDs, friendID)
	if err := txUserRepo.Update(ctx, owner); err != nil {
		return fmt.Errorf("updating friend cache of user %d: %w", ownerID, err)
	}
	return nil
}

// removeFriendFromCache drops friendID from ownerID's cached friend
// list inside the caller's transaction.
func removeFriendFromCache(ctx context.Context, tx *gorm.DB, ownerID, friendID uint) error {
	txUserRepo := storage.NewGormUserRepository(tx)
	owner, err := txUserRepo.GetByID(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("loading user %d for friend cache update: %w", ownerID, err)
	}
	filtered := owner.FriendIDs[:0]
	for _, id := range owner.FriendIDs {
		if id != friendID {
			filtered = append(filtered, id)
		}
	}
	owner.FriendIDs = filtered
	if err := txUserRepo.Update(ctx, owner); err != nil {
		return fmt.Errorf("updating friend cache of user %d: %w", ownerID, err)
	}
	return nil
}

// DeclineFriendRequest marks a pending request declined. A declined
// edge no longer blocks a fresh request between the pair.
func (s *friendService) DeclineFriendRequest(ctx context.Context, recipientID, requestID uint) error {
	if recipientID == 0 {
		return ErrUnauthenticated
	}

	edge, err := s.friendshipRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		return fmt.Errorf("retrieving friend request %d: %w", requestID, err)
	}

	if edge.ToUserID != recipientID {
		return ErrNotRecipient
	}
	if edge.Status != models.FriendshipStatusPending {
		return ErrRequestNotPending
	}

	if err := s.friendshipRepo.UpdateStatus(ctx, requestID, models.FriendshipStatusDeclined); err != nil {
		return fmt.Errorf("updating friend request %d status to declined: %w", requestID, err)
	}

	log.Printf("Friend request %d declined by user %d", requestID, recipientID)
	return nil
}

// ListPendingRequests returns the caller's incoming pending requests
// with requester info attached.
func (s *friendService) ListPendingRequests(ctx context.Context, userID uint) ([]*models.FriendshipWithRequester, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	pending, err := s.friendshipRepo.GetPendingForRecipient(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching pending friend requests for user %d: %w", userID, err)
	}
	if len(pending) == 0 {
		return []*models.FriendshipWithRequester{}, nil
	}

	result := make([]*models.FriendshipWithRequester, 0, len(pending))
	for _, edge := range pending {
		requester, err := s.userRepo.GetBasicInfoByID(ctx, edge.FromUserID)
		if err != nil {
			log.Printf("Error fetching requester info for user %d (request %d): %v", edge.FromUserID, edge.ID, err)
			continue
		}
		result = append(result, &models.FriendshipWithRequester{
			Friendship: edge,
			Requester:  requester,
		})
	}
	return result, nil
}

// GetFriendsList returns basic info for all of the user's friends.
func (s *friendService) GetFriendsList(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	friendIDs, err := s.friendshipRepo.GetFriendIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting friend ids for user %d: %w", userID, err)
	}
	if len(friendIDs) == 0 {
		return []*models.UserBasicInfo{}, nil
	}

	friendsInfo, err := s.userRepo.GetMultipleBasicInfoByIDs(ctx, friendIDs)
	if err != nil {
		return nil, fmt.Errorf("getting basic info for friends of user %d: %w", userID, err)
	}
	return friendsInfo, nil
}

// AreFriends reports whether an accepted edge connects the pair.
func (s *friendService) AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error) {
	return s.friendshipRepo.AreUsersFriends(ctx, userID1, userID2)
}

// Unfriend removes the accepted edge, drops each user from the
// other's cached friend list and deletes the pair's chat channel with
// its history, all in one transaction.
func (s *friendService) Unfriend(ctx context.Context, userID, friendID uint) error {
	if userID == 0 {
		return ErrUnauthenticated
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txFriendshipRepo := storage.NewGormFriendshipRepository(tx)
		txChatRepo := storage.NewGormChatRepository(tx)

		edge, err := txFriendshipRepo.FindAcceptedEdge(ctx, userID, friendID)
		if err != nil {
			return fmt.Errorf("finding friendship between %d and %d: %w", userID, friendID, err)
		}
		if edge == nil {
			return ErrNotFriends
		}

		if err := txFriendshipRepo.Delete(ctx, edge.ID); err != nil {
			return fmt.Errorf("deleting friendship %d: %w", edge.ID, err)
		}

		if err := removeFriendFromCache(ctx, tx, userID, friendID); err != nil {
			return err
		}
		if err := removeFriendFromCache(ctx, tx, friendID, userID); err != nil {
			return err
		}

		key := models.ChannelKey(userID, friendID)
		if err := txChatRepo.DeleteChannelWithMessages(ctx, key); err != nil {
			return fmt.Errorf("deleting chat channel %s: %w", key, err)
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}

	s.publishNotification(ctx, cctypes.Event{
		Type:        cctypes.FriendRemovedEvent,
		SenderID:    userID,
		RecipientID: friendID,
		Timestamp:   time.Now(),
	})

	log.Printf("User %d unfriended user %d", userID, friendID)
	return nil
}

// RebuildFriendCache recomputes the cached friend-id list from the
// accepted edges and writes it back.
func (s *friendService) RebuildFriendCache(ctx context.Context, userID uint) error {
	friendIDs, err := s.friendshipRepo.GetFriendIDs(ctx, userID)
	if err != nil {
		return fmt.Errorf("recomputing friend ids for user %d: %w", userID, err)
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("loading user %d: %w", userID, err)
	}
	user.FriendIDs = friendIDs
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("writing rebuilt friend cache for user %d: %w", userID, err)
	}
	return nil
}

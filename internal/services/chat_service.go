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
	ccredis "campusconnect/internal/redis"
	"campusconnect/internal/storage"
)

var ErrEmptyMessage = errors.New("message text cannot be empty")

// ChannelSummary is a chat-list entry: the channel, the other party's
// card and the caller's unread count in it.
type ChannelSummary struct {
	models.ChatChannel
	OtherUser   *models.UserBasicInfo `json:"otherUser,omitempty"`
	UnreadCount int64                 `json:"unreadCount"`
}

// ChatService defines the interface for direct-messaging operations.
type ChatService interface {
	// SendMessage delivers text from sender to receiver. The pair must
	// be friends.
	SendMessage(ctx context.Context, senderID, receiverID uint, text string) (*models.ChatMessage, error)
	GetMessages(ctx context.Context, userID, otherUserID uint) ([]models.ChatMessage, error)
	GetChannels(ctx context.Context, userID uint) ([]ChannelSummary, error)
	// MarkChannelRead clears the caller's unread state in the channel
	// with otherUserID and returns how many messages it cleared.
	MarkChannelRead(ctx context.Context, userID, otherUserID uint) (int64, error)
	GetTotalUnread(ctx context.Context, userID uint) (int64, error)
	GetUnreadCounts(ctx context.Context, userID uint) ([]storage.UnreadCount, error)
}

type chatService struct {
	db             *gorm.DB
	chatRepo       storage.ChatRepository
	userRepo       storage.UserRepository
	friendshipRepo storage.FriendshipRepository
	unreadCache    ccredis.UnreadCache
	producer       kafka.MessageProducer
	kafkaConfig    config.KafkaConfig
}

// NewChatService creates a new ChatService instance. unreadCache may be
// nil; badge reads then always hit the database.
func NewChatService(
	db *gorm.DB,
	chatRepo storage.ChatRepository,
	userRepo storage.UserRepository,
	friendshipRepo storage.FriendshipRepository,
	unreadCache ccredis.UnreadCache,
	producer kafka.MessageProducer,
	cfg config.KafkaConfig,
) ChatService {
	return &chatService{
		db:             db,
		chatRepo:       chatRepo,
		userRepo:       userRepo,
		friendshipRepo: friendshipRepo,
		unreadCache:    unreadCache,
		producer:       producer,
		kafkaConfig:    cfg,
	}
}

func (s *chatService) publishChatEvent(ctx context.Context, event cctypes.Event) {
	if s.producer == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling %s event: %v", event.Type, err)
		return
	}
	key := []byte(event.ChannelKey)
	if err := s.producer.SendMessage(ctx, s.kafkaConfig.ChatEventsTopic, key, payload); err != nil {
		log.Printf("Error publishing %s event to topic %s: %v", event.Type, s.kafkaConfig.ChatEventsTopic, err)
	}
}

// SendMessage persists the message, updates the channel preview and
// pushes a live event plus an unread-badge update for the receiver.
func (s *chatService) SendMessage(ctx context.Context, senderID, receiverID uint, text string) (*models.ChatMessage, error) {
	if senderID == 0 {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	areFriends, err := s.friendshipRepo.AreUsersFriends(ctx, senderID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("checking friendship between %d and %d: %w", senderID, receiverID, err)
	}
	if !areFriends {
		return nil, ErrNotFriends
	}

	var msg *models.ChatMessage
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txChatRepo := storage.NewGormChatRepository(tx)

		channel, err := txChatRepo.EnsureChannel(ctx, senderID, receiverID)
		if err != nil {
			return fmt.Errorf("ensuring chat channel: %w", err)
		}

		now := time.Now()
		m := &models.ChatMessage{
			ChannelKey: channel.Key,
			SenderID:   senderID,
			ReceiverID: receiverID,
			Text:       text,
			SentAt:     now,
			UnreadBy:   []uint{receiverID},
		}
		if err := txChatRepo.CreateMessage(ctx, m); err != nil {
			return fmt.Errorf("storing chat message: %w", err)
		}
		if err := txChatRepo.UpdateChannelLastMessage(ctx, channel.Key, text, now); err != nil {
			return fmt.Errorf("updating channel preview: %w", err)
		}
		msg = m
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	var badge int64
	if s.unreadCache != nil {
		n, err := s.unreadCache.Increment(ctx, receiverID)
		if err != nil {
			log.Printf("Error incrementing unread badge for user %d: %v", receiverID, err)
		} else {
			badge = n
		}
	}

	s.publishChatEvent(ctx, cctypes.Event{
		Type:        cctypes.NewMessageEvent,
		SenderID:    senderID,
		RecipientID: receiverID,
		ChannelKey:  msg.ChannelKey,
		MessageID:   msg.ID,
		Text:        msg.Text,
		Timestamp:   msg.SentAt,
	})
	if badge > 0 {
		s.publishChatEvent(ctx, cctypes.Event{
			Type:        cctypes.UnreadCountEvent,
			RecipientID: receiverID,
			ChannelKey:  msg.ChannelKey,
			Unread:      badge,
			Timestamp:   time.Now(),
		})
	}

	return msg, nil
}

// GetMessages returns the conversation with otherUserID, oldest first.
// The channel key is derived from the pair so callers can only ever
// read conversations they belong to.
func (s *chatService) GetMessages(ctx context.Context, userID, otherUserID uint) ([]models.ChatMessage, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	key := models.ChannelKey(userID, otherUserID)
	messages, err := s.chatRepo.GetMessages(ctx, key, 0)
	if err != nil {
		return nil, fmt.Errorf("loading messages of channel %s: %w", key, err)
	}
	return messages, nil
}

// GetChannels returns the caller's chat list, most recent activity
// first, with the other party's card and per-channel unread counts.
func (s *chatService) GetChannels(ctx context.Context, userID uint) ([]ChannelSummary, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	channels, err := s.chatRepo.GetChannelsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading channels of user %d: %w", userID, err)
	}

	unread, err := s.chatRepo.GetUnreadCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading unread counts of user %d: %w", userID, err)
	}
	unreadByKey := make(map[string]int64, len(unread))
	for _, u := range unread {
		unreadByKey[u.ChannelKey] = u.Count
	}

	summaries := make([]ChannelSummary, 0, len(channels))
	for _, ch := range channels {
		other := ch.UserID1
		if other == userID {
			other = ch.UserID2
		}
		info, err := s.userRepo.GetBasicInfoByID(ctx, other)
		if err != nil {
			log.Printf("Error loading chat partner %d for channel %s: %v", other, ch.Key, err)
		}
		summaries = append(summaries, ChannelSummary{
			ChatChannel: ch,
			OtherUser:   info,
			UnreadCount: unreadByKey[ch.Key],
		})
	}
	return summaries, nil
}

// MarkChannelRead clears the caller's unread messages in the channel,
// shrinks the badge counter and tells the other party their messages
// were read.
func (s *chatService) MarkChannelRead(ctx context.Context, userID, otherUserID uint) (int64, error) {
	if userID == 0 {
		return 0, ErrUnauthenticated
	}
	key := models.ChannelKey(userID, otherUserID)

	cleared, err := s.chatRepo.MarkChannelRead(ctx, key, userID)
	if err != nil {
		return 0, fmt.Errorf("marking channel %s read: %w", key, err)
	}
	if cleared == 0 {
		return 0, nil
	}

	if s.unreadCache != nil {
		if err := s.unreadCache.Decrease(ctx, userID, cleared); err != nil {
			log.Printf("Error decreasing unread badge for user %d: %v", userID, err)
		}
	}

	s.publishChatEvent(ctx, cctypes.Event{
		Type:        cctypes.MessagesReadEvent,
		SenderID:    userID,
		RecipientID: otherUserID,
		ChannelKey:  key,
		Unread:      cleared,
		Timestamp:   time.Now(),
	})

	return cleared, nil
}

// GetTotalUnread returns the caller's unread badge. Served from the
// cache when warm; a miss falls back to the database and repopulates.
func (s *chatService) GetTotalUnread(ctx context.Context, userID uint) (int64, error) {
	if userID == 0 {
		return 0, ErrUnauthenticated
	}

	if s.unreadCache != nil {
		n, ok, err := s.unreadCache.Get(ctx, userID)
		if err != nil {
			log.Printf("Error reading unread badge for user %d: %v", userID, err)
		} else if ok {
			return n, nil
		}
	}

	total, err := s.chatRepo.GetTotalUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("counting unread messages of user %d: %w", userID, err)
	}
	if s.unreadCache != nil {
		if err := s.unreadCache.Set(ctx, userID, total); err != nil {
			log.Printf("Error repopulating unread badge for user %d: %v", userID, err)
		}
	}
	return total, nil
}

// GetUnreadCounts returns the caller's unread messages grouped by
// channel.
func (s *chatService) GetUnreadCounts(ctx context.Context, userID uint) ([]storage.UnreadCount, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	counts, err := s.chatRepo.GetUnreadCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading unread counts of user %d: %w", userID, err)
	}
	return counts, nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"campusconnect/internal/models"
)

// UnreadCount pairs a channel key with the number of messages the
// receiver has not read in it.
type UnreadCount struct {
	ChannelKey string `json:"channelKey"`
	Count      int64  `json:"count"`
}

// ChatRepository defines the interface for chat channel and message
// data operations.
type ChatRepository interface {
	GetChannelByKey(ctx context.Context, key string) (*models.ChatChannel, error)
	// EnsureChannel returns the channel for the pair, creating it if
	// it does not exist yet.
	EnsureChannel(ctx context.Context, userID1, userID2 uint) (*models.ChatChannel, error)
	UpdateChannelLastMessage(ctx context.Context, key, lastMessage string, at time.Time) error
	// DeleteChannelWithMessages removes the channel and every message
	// in it. Used when a friendship is severed.
	DeleteChannelWithMessages(ctx context.Context, key string) error
	GetChannelsForUser(ctx context.Context, userID uint) ([]models.ChatChannel, error)
	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	GetMessages(ctx context.Context, channelKey string, limit int) ([]models.ChatMessage, error)
	// MarkChannelRead clears the unread state of every message in the
	// channel addressed to readerID and returns how many it touched.
	MarkChannelRead(ctx context.Context, channelKey string, readerID uint) (int64, error)
	// GetUnreadCounts groups the reader's unread messages by channel.
	GetUnreadCounts(ctx context.Context, readerID uint) ([]UnreadCount, error)
	GetTotalUnread(ctx context.Context, readerID uint) (int64, error)
}

type gormChatRepository struct {
	db *gorm.DB
}

// NewGormChatRepository creates a new GORM-based ChatRepository.
func NewGormChatRepository(db *gorm.DB) ChatRepository {
	return &gormChatRepository{db: db}
}

func (r *gormChatRepository) GetChannelByKey(ctx context.Context, key string) (*models.ChatChannel, error) {
	var ch models.ChatChannel
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&ch).Error
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (r *gormChatRepository) EnsureChannel(ctx context.Context, userID1, userID2 uint) (*models.ChatChannel, error) {
	key := models.ChannelKey(userID1, userID2)
	ch, err := r.GetChannelByKey(ctx, key)
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	created := &models.ChatChannel{Key: key, UserID1: userID1, UserID2: userID2}
	created.EnsureCanonicalOrder()
	if err := r.db.WithContext(ctx).Create(created).Error; err != nil {
		// Lost a race against a concurrent sender, the channel is
		// there now.
		existing, getErr := r.GetChannelByKey(ctx, key)
		if getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return created, nil
}

func (r *gormChatRepository) UpdateChannelLastMessage(ctx context.Context, key, lastMessage string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.ChatChannel{}).
		Where("key = ?", key).
		Updates(map[string]interface{}{
			"last_message":    lastMessage,
			"last_message_at": at,
		}).Error
}

func (r *gormChatRepository) DeleteChannelWithMessages(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).
		Where("channel_key = ?", key).
		Delete(&models.ChatMessage{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("key = ?", key).
		Delete(&models.ChatChannel{}).Error
}

func (r *gormChatRepository) GetChannelsForUser(ctx context.Context, userID uint) ([]models.ChatChannel, error) {
	var channels []models.ChatChannel
	err := r.db.WithContext(ctx).
		Where("user_id1 = ? OR user_id2 = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&channels).Error
	return channels, err
}

func (r *gormChatRepository) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *gormChatRepository) GetMessages(ctx context.Context, channelKey string, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	q := r.db.WithContext(ctx).
		Where("channel_key = ?", channelKey).
		Order("sent_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&messages).Error
	return messages, err
}

func (r *gormChatRepository) MarkChannelRead(ctx context.Context, channelKey string, readerID uint) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("channel_key = ? AND receiver_id = ? AND read_at IS NULL", channelKey, readerID).
		Updates(map[string]interface{}{
			"read_at": &now,
			// Column holds serialized JSON, write the empty array
			// literal directly.
			"unread_by": gorm.Expr("'[]'"),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *gormChatRepository) GetUnreadCounts(ctx context.Context, readerID uint) ([]UnreadCount, error) {
	var counts []UnreadCount
	err := r.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Select("channel_key, COUNT(*) as count").
		Where("receiver_id = ? AND read_at IS NULL", readerID).
		Group("channel_key").
		Scan(&counts).Error
	return counts, err
}

func (r *gormChatRepository) GetTotalUnread(ctx context.Context, readerID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("receiver_id = ? AND read_at IS NULL", readerID).
		Count(&total).Error
	return total, err
}

// MigrateLegacyChannelKeys rewrites channel keys produced by old
// clients that concatenated the two user ids without a separator or in
// arrival order. The canonical key is "<min>_<max>".
func MigrateLegacyChannelKeys(db *gorm.DB) error {
	var channels []models.ChatChannel
	if err := db.Find(&channels).Error; err != nil {
		return fmt.Errorf("loading chat channels: %w", err)
	}
	migrated := 0
	for i := range channels {
		ch := &channels[i]
		canonical := models.ChannelKey(ch.UserID1, ch.UserID2)
		if ch.Key == canonical {
			continue
		}
		oldKey := ch.Key
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.ChatMessage{}).
				Where("channel_key = ?", oldKey).
				Update("channel_key", canonical).Error; err != nil {
				return err
			}
			return tx.Model(&models.ChatChannel{}).
				Where("id = ?", ch.ID).
				Update("key", canonical).Error
		})
		if err != nil {
			return fmt.Errorf("migrating channel %q: %w", oldKey, err)
		}
		migrated++
	}
	if migrated > 0 {
		log.Printf("Migrated %d legacy chat channel keys", migrated)
	}
	return nil
}

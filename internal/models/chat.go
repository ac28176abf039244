package models

import (
	"fmt"
	"time"
)

// ChannelKey derives the canonical chat-channel key for an unordered
// pair of user ids: smaller id first, joined with an underscore. The
// delimiter cannot appear in a numeric id, so the function is total,
// order-independent and collision-free. This is the single scheme in
// use; legacy concatenated keys are rewritten by
// storage.MigrateLegacyChannelKeys.
func ChannelKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}

// ChatChannel is the per-pair container for chat messages.
// UserID1 is always the smaller id, mirroring the key.
type ChatChannel struct {
	BaseModel
	Key           string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"key"`
	UserID1       uint      `gorm:"not null;index" json:"userId1"`
	UserID2       uint      `gorm:"not null;index" json:"userId2"`
	LastMessage   string    `gorm:"type:text" json:"lastMessage,omitempty"`
	LastMessageAt time.Time `gorm:"index" json:"lastMessageAt,omitempty"`
}

// EnsureCanonicalOrder sets UserID1 to the smaller id and derives Key.
// Call before creating a ChatChannel record.
func (c *ChatChannel) EnsureCanonicalOrder() {
	if c.UserID1 > c.UserID2 {
		c.UserID1, c.UserID2 = c.UserID2, c.UserID1
	}
	c.Key = ChannelKey(c.UserID1, c.UserID2)
}

// HasParticipant reports whether userID belongs to the channel.
func (c *ChatChannel) HasParticipant(userID uint) bool {
	return c.UserID1 == userID || c.UserID2 == userID
}

// TableName specifies the table name for the ChatChannel model.
func (ChatChannel) TableName() string {
	return "chat_channels"
}

// ChatMessage is an append-only child of exactly one channel. The
// only permitted mutation is removing a reader from the unread set.
type ChatMessage struct {
	BaseModel
	ChannelKey string    `gorm:"type:varchar(64);not null;index" json:"channelKey"`
	SenderID   uint      `gorm:"not null;index" json:"senderId"`
	ReceiverID uint      `gorm:"not null;index" json:"receiverId"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	SentAt     time.Time `gorm:"not null;index" json:"sentAt"`

	// UnreadBy lists the users for whom the message is unread; for a
	// two-party channel that is the receiver until they read it.
	// ReadAt is the queryable projection of the same fact and must be
	// kept consistent with UnreadBy.
	UnreadBy []uint     `gorm:"serializer:json;type:text" json:"unreadBy,omitempty"`
	ReadAt   *time.Time `json:"readAt,omitempty"`
}

// UnreadFor reports whether the message is still unread for userID.
func (m *ChatMessage) UnreadFor(userID uint) bool {
	for _, id := range m.UnreadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// TableName specifies the table name for the ChatMessage model.
func (ChatMessage) TableName() string {
	return "chat_messages"
}

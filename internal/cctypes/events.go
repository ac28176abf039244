package cctypes

import "time"

// EventType identifies a live-update event pushed to clients.
type EventType string

const (
	NewPostEvent        EventType = "post.created"
	PostLikedEvent      EventType = "post.liked"
	PostCommentedEvent  EventType = "post.commented"
	NewMessageEvent     EventType = "chat.message"
	MessagesReadEvent   EventType = "chat.read"
	UnreadCountEvent    EventType = "chat.unread"
	FriendRequestEvent  EventType = "friend.request"
	FriendAcceptedEvent EventType = "friend.accepted"
	FriendRemovedEvent  EventType = "friend.removed"
)

// Event is the wire structure published to Kafka by the API server
// and fanned out to websocket clients by the chat server. Feed events
// have RecipientID == 0 and are delivered to every connected client
// the visibility rules allow; all other events are addressed to a
// single recipient.
type Event struct {
	Type        EventType `json:"type"`
	SenderID    uint      `json:"senderId,omitempty"`
	RecipientID uint      `json:"recipientId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`

	// Feed fields.
	PostID     uint   `json:"postId,omitempty"`
	AuthorID   uint   `json:"authorId,omitempty"`
	Visibility string `json:"visibility,omitempty"`
	// AudienceIDs snapshots the author's accepted friends at publish
	// time for friends-scoped posts. Early deliveries may use a
	// slightly stale set; readers re-filter on the next query.
	AudienceIDs []uint `json:"audienceIds,omitempty"`

	// Chat fields.
	ChannelKey string `json:"channelKey,omitempty"`
	MessageID  uint   `json:"messageId,omitempty"`
	Text       string `json:"text,omitempty"`
	Unread     int64  `json:"unread,omitempty"`

	// Friend-graph fields.
	FriendshipID uint `json:"friendshipId,omitempty"`
}

// VisibleTo reports whether a feed event may be delivered to userID.
func (e *Event) VisibleTo(userID uint) bool {
	if e.Visibility != "friends" {
		return true
	}
	if e.AuthorID == userID {
		return true
	}
	for _, id := range e.AudienceIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// OutboundChat is an inbound websocket frame carrying a chat send
// from a connected client. The sender id is never trusted from the
// frame; the authenticated connection supplies it.
type OutboundChat struct {
	ReceiverID uint   `json:"receiverId"`
	Text       string `json:"text"`
}

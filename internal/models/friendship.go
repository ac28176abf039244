package models

// FriendshipStatus is the lifecycle state of a friendship edge.
type FriendshipStatus string

const (
	FriendshipStatusPending  FriendshipStatus = "pending"
	FriendshipStatusAccepted FriendshipStatus = "accepted"
	FriendshipStatusDeclined FriendshipStatus = "declined"
)

// Friendship is a friend-request edge between two users. A pending
// edge is a request awaiting the recipient's decision; accepted edges
// are the source of truth for who is a friend of whom. At most one
// non-declined edge may exist per unordered user pair.
type Friendship struct {
	BaseModel
	FromUserID uint             `gorm:"not null;index:idx_friendship_users" json:"fromUserId"` // requester
	ToUserID   uint             `gorm:"not null;index:idx_friendship_users" json:"toUserId"`   // recipient
	Status     FriendshipStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
}

// OtherParty returns the id on the opposite end of the edge from userID.
func (f *Friendship) OtherParty(userID uint) uint {
	if f.FromUserID == userID {
		return f.ToUserID
	}
	return f.FromUserID
}

// Touches reports whether userID is one of the edge's endpoints.
func (f *Friendship) Touches(userID uint) bool {
	return f.FromUserID == userID || f.ToUserID == userID
}

// FriendshipWithRequester is a DTO pairing a pending edge with basic
// information about the user who sent it, for request-list responses.
type FriendshipWithRequester struct {
	Friendship
	Requester *UserBasicInfo `json:"requester"`
}

// TableName specifies the table name for the Friendship model.
func (Friendship) TableName() string {
	return "friendships"
}

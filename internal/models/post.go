package models

import (
	"strings"
	"time"
)

// PostVisibility is a post's access scope.
type PostVisibility string

const (
	PublicVisibility  PostVisibility = "public"
	FriendsVisibility PostVisibility = "friends"
)

// NormalizeVisibility maps free-form visibility input to the two
// canonical values. Historical clients stored literals like
// "Friends Only"; any friends-synonym maps to friends and everything
// else falls back to public. The silent default is intentional.
func NormalizeVisibility(v string) PostVisibility {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "friends", "friends only", "friends_only", "friendsonly":
		return FriendsVisibility
	default:
		return PublicVisibility
	}
}

// Post is a feed entry. Author fields are a denormalized snapshot
// taken at creation time; posts are never edited afterwards, only the
// like set and the comment counter change.
type Post struct {
	BaseModel
	AuthorID         uint           `gorm:"not null;index" json:"authorId"`
	AuthorName       string         `gorm:"type:varchar(100)" json:"authorName"`
	AuthorDepartment string         `gorm:"type:varchar(100)" json:"authorDepartment,omitempty"`
	AuthorYear       int            `json:"authorYear,omitempty"`
	Content          string         `gorm:"type:text;not null" json:"content"`
	ImageURL         string         `gorm:"type:varchar(255)" json:"imageUrl,omitempty"`
	Visibility       PostVisibility `gorm:"type:varchar(20);not null;default:'public';index" json:"visibility"`

	// LikeIDs holds the ids of users who liked the post.
	LikeIDs      []uint `gorm:"serializer:json;type:text" json:"likes,omitempty"`
	CommentCount int    `gorm:"default:0" json:"commentCount"`
}

// LikedBy reports whether userID is in the like set.
func (p *Post) LikedBy(userID uint) bool {
	for _, id := range p.LikeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// VisibleTo reports whether viewerID may see the post, given the
// viewer's accepted-friend set.
func (p *Post) VisibleTo(viewerID uint, friendIDs map[uint]bool) bool {
	if p.Visibility == PublicVisibility {
		return true
	}
	return viewerID != 0 && (p.AuthorID == viewerID || friendIDs[p.AuthorID])
}

// TableName specifies the table name for the Post model.
func (Post) TableName() string {
	return "posts"
}

// PostComment is an append-only child of exactly one Post.
type PostComment struct {
	BaseModel
	PostID     uint      `gorm:"not null;index" json:"postId"`
	AuthorID   uint      `gorm:"not null" json:"authorId"`
	AuthorName string    `gorm:"type:varchar(100)" json:"authorName"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	PostedAt   time.Time `gorm:"not null" json:"postedAt"`
}

// TableName specifies the table name for the PostComment model.
func (PostComment) TableName() string {
	return "post_comments"
}

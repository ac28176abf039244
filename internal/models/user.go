package models

// User represents a campus member with a completed profile.
type User struct {
	BaseModel
	Email        string `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"` // never exposed
	Name         string `gorm:"type:varchar(100);not null" json:"name"`
	Department   string `gorm:"type:varchar(100)" json:"department,omitempty"`
	Year         int    `gorm:"default:1" json:"year"`
	Bio          string `gorm:"type:text" json:"bio,omitempty"`
	Phone        string `gorm:"type:varchar(30)" json:"phone,omitempty"`
	PhotoURL     string `gorm:"type:varchar(255)" json:"photoUrl,omitempty"`

	SkillsTeach []string `gorm:"serializer:json;type:text" json:"skillsCanTeach,omitempty"`
	SkillsLearn []string `gorm:"serializer:json;type:text" json:"skillsWantToLearn,omitempty"`
	Interests   []string `gorm:"serializer:json;type:text" json:"interests,omitempty"`

	// FriendIDs is a denormalized cache of accepted-friend user ids,
	// kept in the same transaction as every friendship mutation.
	// Accepted Friendship edges stay the source of truth; the cache is
	// reconstructible via FriendService.RebuildFriendCache.
	FriendIDs []uint `gorm:"serializer:json;type:text" json:"friends,omitempty"`

	EmailVerified bool   `gorm:"default:false" json:"emailVerified"`
	VerifyToken   string `gorm:"type:varchar(64);index" json:"-"`
	ResetToken    string `gorm:"type:varchar(64);index" json:"-"`
}

// UserBasicInfo holds minimal public information about a user.
// Used for friend lists and requester info on pending requests.
type UserBasicInfo struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
	Year       int    `json:"year,omitempty"`
	PhotoURL   string `json:"photoUrl,omitempty"`
}

// HasFriend reports whether the cached friends list contains id.
func (u *User) HasFriend(id uint) bool {
	for _, fid := range u.FriendIDs {
		if fid == id {
			return true
		}
	}
	return false
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

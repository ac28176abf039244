package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"campusconnect/internal/models"
	"campusconnect/internal/storage"
)

var ErrUnauthenticated = errors.New("caller is not authenticated")

// ProfileUpdate carries the optional fields of a profile edit. Nil
// pointers mean "leave unchanged" so a client can clear a field by
// sending the empty value explicitly.
type ProfileUpdate struct {
	Name        *string   `json:"name,omitempty"`
	Department  *string   `json:"department,omitempty"`
	Year        *int      `json:"year,omitempty"`
	Bio         *string   `json:"bio,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	PhotoURL    *string   `json:"photoUrl,omitempty"`
	SkillsTeach *[]string `json:"skillsCanTeach,omitempty"`
	SkillsLearn *[]string `json:"skillsWantToLearn,omitempty"`
	Interests   *[]string `json:"interests,omitempty"`
}

// UserService defines the interface for profile and directory
// operations.
type UserService interface {
	GetUserProfile(ctx context.Context, userID uint) (*models.User, error)
	UpdateUserProfile(ctx context.Context, userID uint, update ProfileUpdate) (*models.User, error)
	ListUsers(ctx context.Context, currentUserID uint) ([]models.User, error)
	// DiscoverUsers returns users the caller has no edge with yet:
	// the directory minus self, friends and pending counterparts.
	DiscoverUsers(ctx context.Context, currentUserID uint) ([]models.User, error)
	SearchUsers(ctx context.Context, query string, currentUserID uint) ([]models.User, error)
}

type userService struct {
	userRepo       storage.UserRepository
	friendshipRepo storage.FriendshipRepository
}

// NewUserService creates a new UserService instance.
func NewUserService(userRepo storage.UserRepository, friendshipRepo storage.FriendshipRepository) UserService {
	return &userService{userRepo: userRepo, friendshipRepo: friendshipRepo}
}

// GetUserProfile returns the public profile of a user.
func (s *userService) GetUserProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("fetching user %d: %w", userID, err)
	}
	user.PasswordHash = ""
	return user, nil
}

// UpdateUserProfile applies a partial profile edit to the caller's own
// profile.
func (s *userService) UpdateUserProfile(ctx context.Context, userID uint, update ProfileUpdate) (*models.User, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("fetching user %d for update: %w", userID, err)
	}

	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Department != nil {
		user.Department = *update.Department
	}
	if update.Year != nil {
		user.Year = *update.Year
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}
	if update.Phone != nil {
		user.Phone = *update.Phone
	}
	if update.PhotoURL != nil {
		user.PhotoURL = *update.PhotoURL
	}
	if update.SkillsTeach != nil {
		user.SkillsTeach = *update.SkillsTeach
	}
	if update.SkillsLearn != nil {
		user.SkillsLearn = *update.SkillsLearn
	}
	if update.Interests != nil {
		user.Interests = *update.Interests
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("updating profile of user %d: %w", userID, err)
	}
	user.PasswordHash = ""
	return user, nil
}

// ListUsers returns the campus directory, excluding the caller.
func (s *userService) ListUsers(ctx context.Context, currentUserID uint) ([]models.User, error) {
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.ID == currentUserID {
			continue
		}
		u.PasswordHash = ""
		out = append(out, u)
	}
	return out, nil
}

// DiscoverUsers returns candidates to connect with: everyone except
// the caller and anyone already linked to them by a pending or
// accepted edge.
func (s *userService) DiscoverUsers(ctx context.Context, currentUserID uint) ([]models.User, error) {
	if currentUserID == 0 {
		return nil, ErrUnauthenticated
	}

	edges, err := s.friendshipRepo.GetActiveTouching(ctx, currentUserID)
	if err != nil {
		return nil, fmt.Errorf("loading edges of user %d: %w", currentUserID, err)
	}
	excluded := map[uint]bool{currentUserID: true}
	for _, e := range edges {
		excluded[e.OtherParty(currentUserID)] = true
	}

	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if excluded[u.ID] {
			continue
		}
		u.PasswordHash = ""
		out = append(out, u)
	}
	return out, nil
}

// SearchUsers matches on name or department, excluding the caller.
func (s *userService) SearchUsers(ctx context.Context, query string, currentUserID uint) ([]models.User, error) {
	users, err := s.userRepo.SearchUsers(ctx, query, currentUserID)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"campusconnect/internal/auth"
	"campusconnect/internal/config"
	"campusconnect/internal/models"
	"campusconnect/internal/storage"
)

var (
	ErrUserAlreadyExists     = errors.New("an account with this email already exists")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailDomainNotAllowed = errors.New("email is not from the allowed campus domain")
	ErrPasswordTooShort      = errors.New("password must be at least 8 characters")
	ErrEmailNotVerified      = errors.New("email address has not been verified")
	ErrInvalidToken          = errors.New("invalid or expired token")
)

const minPasswordLength = 8

// RegisterInput carries the fields collected at sign-up.
type RegisterInput struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Year       int    `json:"year"`
}

// AuthService defines the interface for account lifecycle operations.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (token string, user *models.User, err error)
	Logout(ctx context.Context, claims *auth.Claims) error
	VerifyEmail(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, email string) (resetToken string, err error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type authService struct {
	userRepo  storage.UserRepository
	blacklist auth.TokenBlacklist
	cfg       config.Config
}

// NewAuthService creates a new AuthService instance.
func NewAuthService(userRepo storage.UserRepository, blacklist auth.TokenBlacklist, cfg config.Config) AuthService {
	return &authService{
		userRepo:  userRepo,
		blacklist: blacklist,
		cfg:       cfg,
	}
}

// emailAllowed enforces the campus-domain restriction when one is
// configured.
func (s *authService) emailAllowed(email string) bool {
	domain := s.cfg.Auth.AllowedEmailDomain
	if domain == "" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(email), "@"+strings.ToLower(domain))
}

// Register creates an unverified account and issues a verification
// token. Delivery of the verification mail is out of band.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if !s.emailAllowed(email) {
		return nil, ErrEmailDomainNotAllowed
	}
	if len(in.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("checking email availability: %w", err)
	}

	hashedPassword, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	newUser := &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         in.Name,
		Department:   in.Department,
		Year:         in.Year,
		VerifyToken:  uuid.New().String(),
	}
	if !s.cfg.Auth.RequireVerifiedEmail {
		newUser.EmailVerified = true
		newUser.VerifyToken = ""
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	log.Printf("Registered user %d (%s), verified=%t", newUser.ID, newUser.Email, newUser.EmailVerified)
	return newUser, nil
}

// Login authenticates by email and password and issues a JWT. Accounts
// with unverified email addresses are refused when verification is
// required.
func (s *authService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrInvalidCredentials
	} else if err != nil {
		return "", nil, fmt.Errorf("looking up user by email: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	if s.cfg.Auth.RequireVerifiedEmail && !user.EmailVerified {
		return "", nil, ErrEmailNotVerified
	}

	token, err := auth.GenerateToken(user.ID, user.Email, s.cfg.Auth)
	if err != nil {
		return "", nil, fmt.Errorf("generating token: %w", err)
	}

	return token, user, nil
}

// Logout revokes the presented token by blacklisting its JTI until the
// token would have expired anyway.
func (s *authService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" {
		return ErrInvalidToken
	}
	var expiry time.Time
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}
	if err := s.blacklist.Add(ctx, claims.ID, expiry); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// VerifyEmail marks the account that owns the token as verified and
// consumes the token.
func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	user, err := s.userRepo.GetByVerifyToken(ctx, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidToken
	} else if err != nil {
		return fmt.Errorf("looking up verification token: %w", err)
	}

	user.EmailVerified = true
	user.VerifyToken = ""
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("marking email verified: %w", err)
	}
	log.Printf("Email verified for user %d", user.ID)
	return nil
}

// RequestPasswordReset issues a reset token for the account. The token
// is returned for the mail sender; unknown emails return ErrUserNotFound
// so the handler can decide whether to reveal that.
func (s *authService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrUserNotFound
	} else if err != nil {
		return "", fmt.Errorf("looking up user by email: %w", err)
	}

	user.ResetToken = uuid.New().String()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return "", fmt.Errorf("storing reset token: %w", err)
	}
	return user.ResetToken, nil
}

// ResetPassword sets a new password for the account that owns the reset
// token and consumes the token.
func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidToken
	}
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}
	user, err := s.userRepo.GetByResetToken(ctx, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrInvalidToken
	} else if err != nil {
		return fmt.Errorf("looking up reset token: %w", err)
	}

	hashedPassword, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	user.PasswordHash = hashedPassword
	user.ResetToken = ""
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	log.Printf("Password reset for user %d", user.ID)
	return nil
}

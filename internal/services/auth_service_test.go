package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"campusconnect/internal/auth"
	"campusconnect/internal/config"
)

// fakeBlacklist is an in-memory stand-in for the Redis token blacklist.
type fakeBlacklist struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{revoked: make(map[string]bool)}
}

func (b *fakeBlacklist) Add(_ context.Context, jti string, _ time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[jti] = true
	return nil
}

func (b *fakeBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revoked[jti], nil
}

func testAuthConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecretKey:         "test-secret",
			JWTExpiry:            time.Hour,
			AllowedEmailDomain:   "iitrpr.ac.in",
			RequireVerifiedEmail: true,
		},
	}
}

func newAuthServiceForTest(t *testing.T) (AuthService, *fakeBlacklist, *testDeps) {
	t.Helper()
	deps := newTestDeps(t)
	blacklist := newFakeBlacklist()
	svc := NewAuthService(deps.userRepo, blacklist, testAuthConfig())
	return svc, blacklist, deps
}

func registerInput(email string) RegisterInput {
	return RegisterInput{
		Email:      email,
		Password:   "s3cret-pass",
		Name:       "Alice",
		Department: "CSE",
		Year:       2,
	}
}

func TestRegisterEnforcesCampusDomain(t *testing.T) {
	svc, _, _ := newAuthServiceForTest(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, registerInput("alice@gmail.com")); !errors.Is(err, ErrEmailDomainNotAllowed) {
		t.Errorf("outside domain: expected ErrEmailDomainNotAllowed, got %v", err)
	}

	short := registerInput("short@iitrpr.ac.in")
	short.Password = "abc123"
	if _, err := svc.Register(ctx, short); !errors.Is(err, ErrPasswordTooShort) {
		t.Errorf("short password: expected ErrPasswordTooShort, got %v", err)
	}

	user, err := svc.Register(ctx, registerInput("Alice@IITRPR.ac.in"))
	if err != nil {
		t.Fatalf("registering: %v", err)
	}
	if user.Email != "alice@iitrpr.ac.in" {
		t.Errorf("expected lowercased email, got %q", user.Email)
	}
	if user.EmailVerified || user.VerifyToken == "" {
		t.Errorf("expected unverified account with a verification token")
	}
	if user.PasswordHash == "s3cret-pass" {
		t.Errorf("password stored in plain text")
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newAuthServiceForTest(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, registerInput("alice@iitrpr.ac.in")); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := svc.Register(ctx, registerInput("ALICE@iitrpr.ac.in")); !errors.Is(err, ErrUserAlreadyExists) {
		t.Errorf("duplicate email: expected ErrUserAlreadyExists, got %v", err)
	}
}

func TestLoginRequiresVerifiedEmail(t *testing.T) {
	svc, blacklist, _ := newAuthServiceForTest(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerInput("alice@iitrpr.ac.in"))
	if err != nil {
		t.Fatalf("registering: %v", err)
	}

	if _, _, err := svc.Login(ctx, "alice@iitrpr.ac.in", "s3cret-pass"); !errors.Is(err, ErrEmailNotVerified) {
		t.Errorf("unverified login: expected ErrEmailNotVerified, got %v", err)
	}

	if err := svc.VerifyEmail(ctx, "no-such-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("bad verify token: expected ErrInvalidToken, got %v", err)
	}
	if err := svc.VerifyEmail(ctx, user.VerifyToken); err != nil {
		t.Fatalf("verifying email: %v", err)
	}
	// The token is single use.
	if err := svc.VerifyEmail(ctx, user.VerifyToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("reused verify token: expected ErrInvalidToken, got %v", err)
	}

	token, loggedIn, err := svc.Login(ctx, "alice@iitrpr.ac.in", "s3cret-pass")
	if err != nil {
		t.Fatalf("login after verification: %v", err)
	}
	if loggedIn.ID != user.ID || token == "" {
		t.Errorf("expected a token for user %d", user.ID)
	}

	claims, err := auth.ValidateToken(ctx, token, "test-secret", blacklist)
	if err != nil {
		t.Fatalf("validating issued token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("expected claims for user %d, got %d", user.ID, claims.UserID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newAuthServiceForTest(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerInput("alice@iitrpr.ac.in"))
	if err != nil {
		t.Fatalf("registering: %v", err)
	}
	if err := svc.VerifyEmail(ctx, user.VerifyToken); err != nil {
		t.Fatalf("verifying email: %v", err)
	}

	if _, _, err := svc.Login(ctx, "alice@iitrpr.ac.in", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	// Unknown accounts look exactly like wrong passwords.
	if _, _, err := svc.Login(ctx, "nobody@iitrpr.ac.in", "s3cret-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, blacklist, _ := newAuthServiceForTest(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerInput("alice@iitrpr.ac.in"))
	if err != nil {
		t.Fatalf("registering: %v", err)
	}
	if err := svc.VerifyEmail(ctx, user.VerifyToken); err != nil {
		t.Fatalf("verifying email: %v", err)
	}
	token, _, err := svc.Login(ctx, "alice@iitrpr.ac.in", "s3cret-pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := auth.ValidateToken(ctx, token, "test-secret", blacklist)
	if err != nil {
		t.Fatalf("validating token: %v", err)
	}
	if err := svc.Logout(ctx, claims); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := auth.ValidateToken(ctx, token, "test-secret", blacklist); err == nil {
		t.Errorf("expected revoked token to be rejected")
	}

	if err := svc.Logout(ctx, nil); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("nil claims: expected ErrInvalidToken, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _, _ := newAuthServiceForTest(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerInput("alice@iitrpr.ac.in"))
	if err != nil {
		t.Fatalf("registering: %v", err)
	}
	if err := svc.VerifyEmail(ctx, user.VerifyToken); err != nil {
		t.Fatalf("verifying email: %v", err)
	}

	if _, err := svc.RequestPasswordReset(ctx, "nobody@iitrpr.ac.in"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown email: expected ErrUserNotFound, got %v", err)
	}

	resetToken, err := svc.RequestPasswordReset(ctx, "alice@iitrpr.ac.in")
	if err != nil {
		t.Fatalf("requesting reset: %v", err)
	}
	if err := svc.ResetPassword(ctx, resetToken, "new-pass-123"); err != nil {
		t.Fatalf("resetting password: %v", err)
	}
	// The token is single use.
	if err := svc.ResetPassword(ctx, resetToken, "another-pass"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("reused reset token: expected ErrInvalidToken, got %v", err)
	}

	if _, _, err := svc.Login(ctx, "alice@iitrpr.ac.in", "s3cret-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice@iitrpr.ac.in", "new-pass-123"); err != nil {
		t.Errorf("new password login: %v", err)
	}
}

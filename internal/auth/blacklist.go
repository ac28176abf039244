package auth

import (
	"context"
	"time"
)

// TokenBlacklist is the storage interface for revoked token ids.
type TokenBlacklist interface {
	// Add blacklists a JTI until the token's original expiry, after
	// which the entry may be dropped automatically.
	Add(ctx context.Context, jti string, originalTokenExpTime time.Time) error
	// IsBlacklisted reports whether the JTI has been revoked.
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

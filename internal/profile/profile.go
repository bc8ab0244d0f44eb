// Package profile caches participant profile records keyed by user identifier.
//
// Records expire after a time-to-live. The cache is a side store for the HTTP
// edge; the room never reads or writes it.
package profile

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is how long a cached profile stays valid.
const DefaultTTL = time.Hour

// ErrNotFound is returned when no unexpired profile exists for an identifier.
var ErrNotFound = errors.New("profile: not found")

// Profile is the cached identity record for one participant.
type Profile struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CachedAt  time.Time `json:"cachedAt"`
}

// Store is a profile cache backend.
type Store interface {
	Get(ctx context.Context, userID string) (Profile, error)
	Put(ctx context.Context, p Profile) error
	Close()
}

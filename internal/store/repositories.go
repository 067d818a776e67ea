package store

import (
	"context"
	"time"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	UpsertOIDCUser(ctx context.Context, subject, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
}

// SessionRepository handles persisted login sessions.
type SessionRepository interface {
	Create(ctx context.Context, session Session) (*Session, error)
	GetByTokenHash(ctx context.Context, hash string) (*Session, error)
	GetByID(ctx context.Context, id string) (*Session, error)
	ListByUser(ctx context.Context, userID int64) ([]Session, error)
	TouchLastSeen(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) error
}

// EventRepository handles local event storage, always scoped to one user.
type EventRepository interface {
	Create(ctx context.Context, event LocalEvent) (*LocalEvent, error)
	GetByID(ctx context.Context, userID int64, id string) (*LocalEvent, error)
	ListByUser(ctx context.Context, userID int64) ([]LocalEvent, error)
	Update(ctx context.Context, event LocalEvent) (*LocalEvent, error)
	SetGoogleEventID(ctx context.Context, userID int64, id, googleEventID string) error
	Delete(ctx context.Context, userID int64, id string) error
}

// TokenRepository handles the stored Google credential pair.
type TokenRepository interface {
	Get(ctx context.Context, userID int64) (*GoogleToken, error)
	Save(ctx context.Context, token GoogleToken) error
	// UpdateAccessToken rewrites the access token and expiry only if the row
	// still carries prevExpiresAt. Returns false when another writer got
	// there first.
	UpdateAccessToken(ctx context.Context, userID int64, accessToken string, expiresAt, prevExpiresAt time.Time) (bool, error)
	Delete(ctx context.Context, userID int64) error
}

// APITokenRepository handles Bearer token storage for non-browser clients.
type APITokenRepository interface {
	Create(ctx context.Context, token APIToken) (*APIToken, error)
	GetByID(ctx context.Context, id int64) (*APIToken, error)
	ListByUser(ctx context.Context, userID int64) ([]APIToken, error)
	Revoke(ctx context.Context, id int64) error
	TouchLastUsed(ctx context.Context, id int64) error
}

package store

import "time"

// User represents a person authenticated via OIDC.
type User struct {
	ID          int64
	OIDCSubject string
	Email       string
	CreatedAt   time.Time
	LastLoginAt time.Time
}

// Session is a persisted login session backing the web cookie.
type Session struct {
	ID         string
	UserID     int64
	TokenHash  string
	UserAgent  *string
	IPAddress  *string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastSeenAt time.Time
}

// LocalEvent is an event record owned and stored by this system.
//
// GoogleEventID is set once the event has been pushed to Google Calendar and
// stays set for the lifetime of the row. StartsAt <= EndsAt is enforced at
// the API boundary, not here.
type LocalEvent struct {
	ID            string
	UserID        int64
	Title         string
	Description   *string
	StartsAt      time.Time
	EndsAt        time.Time
	Location      *string
	GoogleEventID *string
	Color         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GoogleToken holds the single Google Calendar credential pair for a user.
type GoogleToken struct {
	UserID       int64
	AccessToken  string
	RefreshToken *string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

// APIToken is a per-client credential for non-browser access to the API.
type APIToken struct {
	ID         int64
	UserID     int64
	Label      string
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  *time.Time
	RevokedAt  *time.Time
	LastUsedAt *time.Time
}

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// userRepo implements UserRepository.
type userRepo struct {
	pool *pgxpool.Pool
}

func (r *userRepo) UpsertOIDCUser(ctx context.Context, subject, email string) (*User, error) {
	defer observeDB(ctx, "users.upsert")()
	const q = `INSERT INTO users (oidc_subject, primary_email)
VALUES ($1, $2)
ON CONFLICT (oidc_subject) DO UPDATE
SET primary_email = EXCLUDED.primary_email, last_login_at = NOW()
RETURNING id, oidc_subject, primary_email, created_at, last_login_at`

	var u User
	err := r.pool.QueryRow(ctx, q, subject, email).Scan(&u.ID, &u.OIDCSubject, &u.Email, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*User, error) {
	defer observeDB(ctx, "users.get")()
	const q = `SELECT id, oidc_subject, primary_email, created_at, last_login_at FROM users WHERE id = $1`

	var u User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.OIDCSubject, &u.Email, &u.CreatedAt, &u.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// sessionRepo implements SessionRepository.
type sessionRepo struct {
	pool *pgxpool.Pool
}

const sessionColumns = `id, user_id, token_hash, user_agent, ip_address, created_at, expires_at, last_seen_at`

func scanSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.UserAgent, &s.IPAddress, &s.CreatedAt, &s.ExpiresAt, &s.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) Create(ctx context.Context, session Session) (*Session, error) {
	defer observeDB(ctx, "sessions.create")()
	const q = `INSERT INTO sessions (id, user_id, token_hash, user_agent, ip_address, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + sessionColumns

	return scanSession(r.pool.QueryRow(ctx, q,
		session.ID, session.UserID, session.TokenHash, session.UserAgent, session.IPAddress, session.ExpiresAt))
}

func (r *sessionRepo) GetByTokenHash(ctx context.Context, hash string) (*Session, error) {
	defer observeDB(ctx, "sessions.get_by_hash")()
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE token_hash = $1 AND expires_at > NOW()`
	return scanSession(r.pool.QueryRow(ctx, q, hash))
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*Session, error) {
	defer observeDB(ctx, "sessions.get")()
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return scanSession(r.pool.QueryRow(ctx, q, id))
}

func (r *sessionRepo) ListByUser(ctx context.Context, userID int64) ([]Session, error) {
	defer observeDB(ctx, "sessions.list")()
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.UserAgent, &s.IPAddress, &s.CreatedAt, &s.ExpiresAt, &s.LastSeenAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionRepo) TouchLastSeen(ctx context.Context, id string) error {
	defer observeDB(ctx, "sessions.touch")()
	_, err := r.pool.Exec(ctx, `UPDATE sessions SET last_seen_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	defer observeDB(ctx, "sessions.delete")()
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (r *sessionRepo) DeleteExpired(ctx context.Context) error {
	defer observeDB(ctx, "sessions.delete_expired")()
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	return err
}

// eventRepo implements EventRepository.
type eventRepo struct {
	pool *pgxpool.Pool
}

const eventColumns = `id, user_id, title, description, starts_at, ends_at, location, google_event_id, color, created_at, updated_at`

func scanEvent(row pgx.Row) (*LocalEvent, error) {
	var e LocalEvent
	err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Description, &e.StartsAt, &e.EndsAt,
		&e.Location, &e.GoogleEventID, &e.Color, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *eventRepo) Create(ctx context.Context, event LocalEvent) (*LocalEvent, error) {
	defer observeDB(ctx, "events.create")()
	const q = `INSERT INTO local_events (id, user_id, title, description, starts_at, ends_at, location, google_event_id, color)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + eventColumns

	return scanEvent(r.pool.QueryRow(ctx, q,
		event.ID, event.UserID, event.Title, event.Description, event.StartsAt,
		event.EndsAt, event.Location, event.GoogleEventID, event.Color))
}

func (r *eventRepo) GetByID(ctx context.Context, userID int64, id string) (*LocalEvent, error) {
	defer observeDB(ctx, "events.get")()
	const q = `SELECT ` + eventColumns + ` FROM local_events WHERE user_id = $1 AND id = $2`
	return scanEvent(r.pool.QueryRow(ctx, q, userID, id))
}

func (r *eventRepo) ListByUser(ctx context.Context, userID int64) ([]LocalEvent, error) {
	defer observeDB(ctx, "events.list")()
	const q = `SELECT ` + eventColumns + ` FROM local_events WHERE user_id = $1 ORDER BY starts_at`

	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []LocalEvent
	for rows.Next() {
		var e LocalEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.Description, &e.StartsAt, &e.EndsAt,
			&e.Location, &e.GoogleEventID, &e.Color, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *eventRepo) Update(ctx context.Context, event LocalEvent) (*LocalEvent, error) {
	defer observeDB(ctx, "events.update")()
	const q = `UPDATE local_events
SET title = $3, description = $4, starts_at = $5, ends_at = $6, location = $7, color = $8, updated_at = NOW()
WHERE user_id = $1 AND id = $2
RETURNING ` + eventColumns

	return scanEvent(r.pool.QueryRow(ctx, q,
		event.UserID, event.ID, event.Title, event.Description, event.StartsAt,
		event.EndsAt, event.Location, event.Color))
}

func (r *eventRepo) SetGoogleEventID(ctx context.Context, userID int64, id, googleEventID string) error {
	defer observeDB(ctx, "events.set_google_id")()
	const q = `UPDATE local_events SET google_event_id = $3, updated_at = NOW() WHERE user_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, q, userID, id, googleEventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *eventRepo) Delete(ctx context.Context, userID int64, id string) error {
	defer observeDB(ctx, "events.delete")()
	tag, err := r.pool.Exec(ctx, `DELETE FROM local_events WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// tokenRepo implements TokenRepository.
type tokenRepo struct {
	pool *pgxpool.Pool
}

func (r *tokenRepo) Get(ctx context.Context, userID int64) (*GoogleToken, error) {
	defer observeDB(ctx, "tokens.get")()
	const q = `SELECT user_id, access_token, refresh_token, expires_at, updated_at FROM google_tokens WHERE user_id = $1`

	var t GoogleToken
	err := r.pool.QueryRow(ctx, q, userID).Scan(&t.UserID, &t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tokenRepo) Save(ctx context.Context, token GoogleToken) error {
	defer observeDB(ctx, "tokens.save")()
	const q = `INSERT INTO google_tokens (user_id, access_token, refresh_token, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET access_token = EXCLUDED.access_token,
    refresh_token = COALESCE(EXCLUDED.refresh_token, google_tokens.refresh_token),
    expires_at = EXCLUDED.expires_at,
    updated_at = NOW()`

	_, err := r.pool.Exec(ctx, q, token.UserID, token.AccessToken, token.RefreshToken, token.ExpiresAt)
	return err
}

func (r *tokenRepo) UpdateAccessToken(ctx context.Context, userID int64, accessToken string, expiresAt, prevExpiresAt time.Time) (bool, error) {
	defer observeDB(ctx, "tokens.update_access")()
	const q = `UPDATE google_tokens
SET access_token = $2, expires_at = $3, updated_at = NOW()
WHERE user_id = $1 AND expires_at = $4`

	tag, err := r.pool.Exec(ctx, q, userID, accessToken, expiresAt, prevExpiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *tokenRepo) Delete(ctx context.Context, userID int64) error {
	defer observeDB(ctx, "tokens.delete")()
	_, err := r.pool.Exec(ctx, `DELETE FROM google_tokens WHERE user_id = $1`, userID)
	return err
}

// apiTokenRepo implements APITokenRepository.
type apiTokenRepo struct {
	pool *pgxpool.Pool
}

const apiTokenColumns = `id, user_id, label, token_hash, created_at, expires_at, revoked_at, last_used_at`

func scanAPIToken(row pgx.Row) (*APIToken, error) {
	var t APIToken
	err := row.Scan(&t.ID, &t.UserID, &t.Label, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt, &t.LastUsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *apiTokenRepo) Create(ctx context.Context, token APIToken) (*APIToken, error) {
	defer observeDB(ctx, "api_tokens.create")()
	const q = `INSERT INTO api_tokens (user_id, label, token_hash, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING ` + apiTokenColumns

	return scanAPIToken(r.pool.QueryRow(ctx, q, token.UserID, token.Label, token.TokenHash, token.ExpiresAt))
}

func (r *apiTokenRepo) GetByID(ctx context.Context, id int64) (*APIToken, error) {
	defer observeDB(ctx, "api_tokens.get")()
	const q = `SELECT ` + apiTokenColumns + ` FROM api_tokens WHERE id = $1`
	return scanAPIToken(r.pool.QueryRow(ctx, q, id))
}

func (r *apiTokenRepo) ListByUser(ctx context.Context, userID int64) ([]APIToken, error) {
	defer observeDB(ctx, "api_tokens.list")()
	const q = `SELECT ` + apiTokenColumns + ` FROM api_tokens WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryTokens(ctx, q, userID)
}

func (r *apiTokenRepo) queryTokens(ctx context.Context, q string, args ...any) ([]APIToken, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []APIToken
	for rows.Next() {
		var t APIToken
		if err := rows.Scan(&t.ID, &t.UserID, &t.Label, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt, &t.LastUsedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *apiTokenRepo) Revoke(ctx context.Context, id int64) error {
	defer observeDB(ctx, "api_tokens.revoke")()
	_, err := r.pool.Exec(ctx, `UPDATE api_tokens SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	return err
}

func (r *apiTokenRepo) TouchLastUsed(ctx context.Context, id int64) error {
	defer observeDB(ctx, "api_tokens.touch")()
	_, err := r.pool.Exec(ctx, `UPDATE api_tokens SET last_used_at = NOW() WHERE id = $1`, id)
	return err
}

package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type pingPool interface {
	Ping(ctx context.Context) error
}

// Store aggregates repositories backed by PostgreSQL.
type Store struct {
	pool pingPool

	Users     UserRepository
	Sessions  SessionRepository
	Events    EventRepository
	Tokens    TokenRepository
	APITokens APITokenRepository
}

// New wires concrete repository implementations with a shared connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:      pool,
		Users:     &userRepo{pool: pool},
		Sessions:  &sessionRepo{pool: pool},
		Events:    &eventRepo{pool: pool},
		Tokens:    &tokenRepo{pool: pool},
		APITokens: &apiTokenRepo{pool: pool},
	}
}

// HealthCheck verifies that the underlying database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return s.pool.Ping(ctx)
}

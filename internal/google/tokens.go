package google

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"github.com/digitalnextlvl/agenda/internal/config"
	"github.com/digitalnextlvl/agenda/internal/metrics"
	"github.com/digitalnextlvl/agenda/internal/store"
)

// expirySkew treats tokens expiring within this window as already expired so
// a call never starts with a token about to lapse mid-flight.
const expirySkew = 30 * time.Second

// TokenManager loads the stored credential pair for a user and refreshes it
// on demand, persisting the renewed access token before any provider call
// proceeds.
type TokenManager struct {
	tokens store.TokenRepository
	oauth  *oauth2.Config
	now    func() time.Time
}

func NewTokenManager(cfg *config.Config, tokens store.TokenRepository) *TokenManager {
	return &TokenManager{
		tokens: tokens,
		oauth: &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.Google.TokenURL},
		},
		now: time.Now,
	}
}

// AccessToken returns a valid access token for the user, refreshing and
// persisting it first when the stored one is expired.
func (m *TokenManager) AccessToken(ctx context.Context, userID int64) (string, error) {
	stored, err := m.tokens.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load google token: %w", err)
	}
	if stored == nil {
		return "", ErrNotConnected
	}

	if stored.ExpiresAt.After(m.now().Add(expirySkew)) {
		return stored.AccessToken, nil
	}

	if stored.RefreshToken == nil || *stored.RefreshToken == "" {
		return "", ErrTokenExpiredNoRefresh
	}

	refreshed, err := m.refresh(ctx, *stored.RefreshToken)
	metrics.ObserveTokenRefresh(err)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	// Compare-and-swap on the previous expiry: if another request refreshed
	// concurrently, keep its result instead of overwriting.
	swapped, err := m.tokens.UpdateAccessToken(ctx, userID, refreshed.AccessToken, refreshed.Expiry, stored.ExpiresAt)
	if err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}
	if !swapped {
		current, err := m.tokens.Get(ctx, userID)
		if err == nil && current != nil && current.ExpiresAt.After(m.now()) {
			return current.AccessToken, nil
		}
	}

	return refreshed.AccessToken, nil
}

func (m *TokenManager) refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return source.Token()
}

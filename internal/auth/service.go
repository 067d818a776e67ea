package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/digitalnextlvl/agenda/internal/config"
	"github.com/digitalnextlvl/agenda/internal/store"
)

const stateCookieName = "agenda_oauth_state"

// Service encapsulates the OIDC login flow, persisted sessions and API token
// authentication.
type Service struct {
	cfg      *config.Config
	store    *store.Store
	sessions *SessionManager
	verifier *oidc.IDTokenVerifier
	oauth    *oauth2.Config
}

func NewService(ctx context.Context, cfg *config.Config, stor *store.Store, sessions *SessionManager) (*Service, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OIDC.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.OIDC.ClientID,
		ClientSecret: cfg.OIDC.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  strings.TrimRight(cfg.BaseURL, "/") + cfg.OIDC.RedirectPath,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}

	return &Service{
		cfg:      cfg,
		store:    stor,
		sessions: sessions,
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.OIDC.ClientID}),
		oauth:    oauthCfg,
	}, nil
}

// BeginOAuth starts the OIDC authorization flow.
func (s *Service) BeginOAuth(w http.ResponseWriter, r *http.Request) {
	state, err := randomToken()
	if err != nil {
		http.Error(w, "failed to start login", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
}

// HandleOAuthCallback completes the OIDC flow and creates a session.
func (s *Service) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	ctx := r.Context()
	token, err := s.oauth.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		http.Error(w, "code exchange failed", http.StatusBadGateway)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "missing id_token", http.StatusBadGateway)
		return
	}
	idToken, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		http.Error(w, "invalid id_token", http.StatusUnauthorized)
		return
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil || claims.Email == "" {
		http.Error(w, "missing email claim", http.StatusUnauthorized)
		return
	}

	user, err := s.store.Users.UpsertOIDCUser(ctx, idToken.Subject, claims.Email)
	if err != nil {
		http.Error(w, "failed to persist user", http.StatusInternalServerError)
		return
	}

	if err := s.StartSession(w, r, user); err != nil {
		http.Error(w, "failed to start session", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// StartSession creates a session row and issues the cookie for it.
func (s *Service) StartSession(w http.ResponseWriter, r *http.Request, user *store.User) error {
	secret, err := randomToken()
	if err != nil {
		return err
	}

	ua := r.UserAgent()
	ip := remoteIP(r)
	session := store.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hashSessionSecret(secret),
		ExpiresAt: time.Now().Add(sessionTTL),
	}
	if ua != "" {
		session.UserAgent = &ua
	}
	if ip != "" {
		session.IPAddress = &ip
	}

	if _, err := s.store.Sessions.Create(r.Context(), session); err != nil {
		return err
	}
	return s.sessions.Issue(w, session.ID, secret, session.ExpiresAt)
}

// ClearSession deletes the persisted session (if any) and clears the cookie.
func (s *Service) ClearSession(w http.ResponseWriter, r *http.Request) {
	if sessionID, _, ok := s.sessions.Read(r); ok {
		_ = s.store.Sessions.Delete(r.Context(), sessionID)
	}
	s.sessions.Clear(w)
}

// Authenticate resolves the acting user from either a Bearer API token or the
// session cookie. The returned session ID is empty for token auth.
func (s *Service) Authenticate(r *http.Request) (*store.User, string, error) {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		user, err := s.validateAPIToken(r.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return nil, "", err
		}
		return user, "", nil
	}

	sessionID, secret, ok := s.sessions.Read(r)
	if !ok {
		return nil, "", errors.New("no session")
	}

	session, err := s.store.Sessions.GetByTokenHash(r.Context(), hashSessionSecret(secret))
	if err != nil {
		return nil, "", err
	}
	if session == nil || session.ID != sessionID {
		return nil, "", errors.New("session not found")
	}

	user, err := s.store.Users.GetByID(r.Context(), session.UserID)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", errors.New("user not found")
	}

	_ = s.store.Sessions.TouchLastSeen(r.Context(), session.ID)
	return user, session.ID, nil
}

// RequireAuth enforces authentication and stores the user on the context.
// Unauthenticated API requests get a JSON 401; browser requests are
// redirected to the login page.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, sessionID, err := s.Authenticate(r)
		if err != nil {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"success":false,"error":"authentication required"}`))
				return
			}
			http.Redirect(w, r, "/auth/login", http.StatusFound)
			return
		}

		ctx := WithUser(r.Context(), user)
		if sessionID != "" {
			ctx = WithSessionID(ctx, sessionID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CreateAPIToken mints a new API token for a user and returns the plaintext
// exactly once. The plaintext format is "<id>.<secret>".
func (s *Service) CreateAPIToken(ctx context.Context, userID int64, label string, expiresAt *time.Time) (string, *store.APIToken, error) {
	secret, err := randomToken()
	if err != nil {
		return "", nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}

	token, err := s.store.APITokens.Create(ctx, store.APIToken{
		UserID:    userID,
		Label:     label,
		TokenHash: string(hash),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return "", nil, err
	}

	return fmt.Sprintf("%d.%s", token.ID, secret), token, nil
}

func (s *Service) validateAPIToken(ctx context.Context, plaintext string) (*store.User, error) {
	id, secret, found := strings.Cut(plaintext, ".")
	if !found {
		return nil, errors.New("malformed api token")
	}
	tokenID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, errors.New("malformed api token")
	}

	token, err := s.store.APITokens.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if token == nil || token.RevokedAt != nil {
		return nil, errors.New("invalid api token")
	}
	if token.ExpiresAt != nil && token.ExpiresAt.Before(time.Now()) {
		return nil, errors.New("expired api token")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(token.TokenHash), []byte(secret)); err != nil {
		return nil, errors.New("invalid api token")
	}

	user, err := s.store.Users.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user not found")
	}

	_ = s.store.APITokens.TouchLastUsed(ctx, token.ID)
	return user, nil
}

func hashSessionSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func remoteIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return strings.Trim(host, "[]")
}

package auth

import (
	"crypto/sha256"
	"net/http"
	"net/url"
	"time"

	"github.com/digitalnextlvl/agenda/internal/config"
	"github.com/gorilla/securecookie"
)

const sessionTTL = 7 * 24 * time.Hour

// SessionManager encodes and decodes the web session cookie. The cookie only
// carries the session identifier and a random secret; the authoritative
// session state lives in the sessions table.
type SessionManager struct {
	cfg        *config.Config
	cookieName string
	codec      *securecookie.SecureCookie
	secure     bool
}

func NewSessionManager(cfg *config.Config) *SessionManager {
	hash := sha256.Sum256([]byte(cfg.Session.Secret))
	hashKey := hash[:]

	// Derive an AES-256 sized block key to avoid invalid key length errors.
	blockKey := hash[:]
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(sessionTTL / time.Second))
	sc.SetSerializer(securecookie.JSONEncoder{})

	secure := true
	if base, err := url.Parse(cfg.BaseURL); err == nil && base.Scheme != "https" {
		secure = false
	}

	return &SessionManager{
		cfg:        cfg,
		cookieName: "agenda_session",
		codec:      sc,
		secure:     secure,
	}
}

// Issue sets the session cookie for a freshly created session row.
func (m *SessionManager) Issue(w http.ResponseWriter, sessionID, secret string, expiresAt time.Time) error {
	value := map[string]any{
		"sid":    sessionID,
		"secret": secret,
		"exp":    expiresAt.Unix(),
	}

	encoded, err := m.codec.Encode(m.cookieName, value)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    encoded,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear removes the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
	})
}

// Read extracts the session identifier and secret from the request cookie.
func (m *SessionManager) Read(r *http.Request) (sessionID, secret string, ok bool) {
	c, err := r.Cookie(m.cookieName)
	if err != nil {
		return "", "", false
	}

	var value map[string]any
	if err := m.codec.Decode(m.cookieName, c.Value, &value); err != nil {
		return "", "", false
	}

	exp, okExp := value["exp"].(float64)
	if !okExp || time.Unix(int64(exp), 0).Before(time.Now()) {
		return "", "", false
	}

	sessionID, okSID := value["sid"].(string)
	secret, okSecret := value["secret"].(string)
	if !okSID || !okSecret || sessionID == "" || secret == "" {
		return "", "", false
	}

	return sessionID, secret, true
}

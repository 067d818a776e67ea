package httpapi

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/digitalnextlvl/agenda/internal/auth"
	httperrors "github.com/digitalnextlvl/agenda/internal/http/errors"
	"github.com/digitalnextlvl/agenda/internal/store"
)

const googleStateCookie = "agenda_google_state"

// googleOAuth builds the consent-flow config. The token manager shares the
// same client credentials for its refresh exchanges.
func (h *Handler) googleOAuth() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.cfg.Google.ClientID,
		ClientSecret: h.cfg.Google.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  h.cfg.Google.AuthURL,
			TokenURL: h.cfg.Google.TokenURL,
		},
		RedirectURL: strings.TrimRight(h.cfg.BaseURL, "/") + h.cfg.Google.RedirectPath,
		Scopes:      []string{gcal.CalendarScope},
	}
}

// GoogleConnect handles GET /auth/google/connect. It sends the user to
// Google's consent screen requesting offline access so a refresh token comes
// back with the grant.
func (h *Handler) GoogleConnect(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		httperrors.InternalError(w, r, err, "failed to start google connect")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     googleStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	url := h.googleOAuth().AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
	http.Redirect(w, r, url, http.StatusFound)
}

// GoogleCallback handles GET /auth/google/callback. It exchanges the code and
// stores the credential pair for the logged-in user. A re-consent without a
// new refresh token keeps the previously stored one.
func (h *Handler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	cookie, err := r.Cookie(googleStateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		writeError(w, http.StatusBadRequest, "estado OAuth inválido")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: googleStateCookie, Value: "", Path: "/", MaxAge: -1})

	token, err := h.googleOAuth().Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		httperrors.LogError(r, "google code exchange failed", err)
		writeError(w, http.StatusBadGateway, "falha ao conectar o Google Calendar")
		return
	}

	stored := store.GoogleToken{
		UserID:      user.ID,
		AccessToken: token.AccessToken,
		ExpiresAt:   token.Expiry,
	}
	if token.RefreshToken != "" {
		stored.RefreshToken = &token.RefreshToken
	}
	if err := h.store.Tokens.Save(r.Context(), stored); err != nil {
		httperrors.LogError(r, "persist google token failed", err)
		writeError(w, http.StatusInternalServerError, "falha ao salvar a conexão")
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// GoogleDisconnect handles DELETE /api/google-calendar/connection. Dropping
// the stored credential is all it takes; the next provider call reports
// "não conectado" again.
func (h *Handler) GoogleDisconnect(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	if err := h.store.Tokens.Delete(r.Context(), user.ID); err != nil {
		httperrors.LogError(r, "delete google token failed", err)
		writeError(w, http.StatusInternalServerError, "erro ao desconectar o Google Calendar")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "connected": false})
}

func randomState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

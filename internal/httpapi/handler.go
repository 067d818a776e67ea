// Package httpapi carries the JSON API handlers: the Google Calendar proxy,
// the unified event endpoints, the ICS feed, and account management.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/digitalnextlvl/agenda/internal/auth"
	"github.com/digitalnextlvl/agenda/internal/calendar"
	"github.com/digitalnextlvl/agenda/internal/config"
	"github.com/digitalnextlvl/agenda/internal/google"
	httperrors "github.com/digitalnextlvl/agenda/internal/http/errors"
	"github.com/digitalnextlvl/agenda/internal/store"
)

type Handler struct {
	cfg         *config.Config
	store       *store.Store
	authService *auth.Service
	provider    calendar.Provider
	calendars   *calendar.Service
}

func NewHandler(cfg *config.Config, stor *store.Store, authService *auth.Service, provider calendar.Provider, calendars *calendar.Service) *Handler {
	return &Handler{
		cfg:         cfg,
		store:       stor,
		authService: authService,
		provider:    provider,
		calendars:   calendars,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError emits the uniform failure envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

// providerErrorStatus maps token and provider failures to an HTTP status.
// Not-connected and token lifecycle failures read as 401 so clients can prompt
// a reconnect; provider rejections keep the provider's own status.
func providerErrorStatus(err error) int {
	var apiErr *google.APIError
	switch {
	case errors.Is(err, google.ErrNotConnected),
		errors.Is(err, google.ErrTokenExpiredNoRefresh),
		errors.Is(err, google.ErrRefreshFailed):
		return http.StatusUnauthorized
	case errors.As(err, &apiErr):
		return apiErr.StatusCode
	default:
		return http.StatusInternalServerError
	}
}

// providerErrorMessage returns the user-facing message for a provider-path
// failure. Token refresh details stay in the server log; the client only
// learns whether a reconnect is needed.
func providerErrorMessage(r *http.Request, err error) string {
	var apiErr *google.APIError
	switch {
	case errors.Is(err, google.ErrNotConnected):
		return "Google Calendar não conectado"
	case errors.Is(err, google.ErrTokenExpiredNoRefresh), errors.Is(err, google.ErrRefreshFailed):
		httperrors.LogError(r, "google token unusable", err)
		return "conexão com o Google Calendar expirada, reconecte sua conta"
	case errors.As(err, &apiErr):
		return apiErr.Error()
	default:
		httperrors.LogError(r, "calendar request failed", err)
		return "erro ao carregar dados do calendário"
	}
}

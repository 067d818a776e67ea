package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/digitalnextlvl/agenda/internal/auth"
)

type sessionView struct {
	ID         string    `json:"id"`
	UserAgent  string    `json:"user_agent,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	Current    bool      `json:"current"`
}

// ListSessions handles GET /sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	currentID := auth.SessionIDFromContext(r.Context())

	sessions, err := h.store.Sessions.ListByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load sessions")
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		v := sessionView{
			ID:         s.ID,
			CreatedAt:  s.CreatedAt,
			ExpiresAt:  s.ExpiresAt,
			LastSeenAt: s.LastSeenAt,
			Current:    s.ID == currentID,
		}
		if s.UserAgent != nil {
			v.UserAgent = *s.UserAgent
		}
		if s.IPAddress != nil {
			v.IPAddress = *s.IPAddress
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sessions": views})
}

// RevokeSession handles POST /sessions/{id}/revoke.
func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	sessionID := chi.URLParam(r, "id")

	session, err := h.store.Sessions.GetByID(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if session == nil || session.UserID != user.ID {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if err := h.store.Sessions.Delete(r.Context(), sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to revoke session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// RevokeAllSessions handles POST /sessions/revoke-all. The current session
// survives so the caller stays signed in.
func (h *Handler) RevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	currentID := auth.SessionIDFromContext(r.Context())

	sessions, err := h.store.Sessions.ListByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load sessions")
		return
	}

	revoked := 0
	for _, s := range sessions {
		if s.ID == currentID {
			continue
		}
		if err := h.store.Sessions.Delete(r.Context(), s.ID); err == nil {
			revoked++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "revoked": revoked})
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearSession(w, r)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/digitalnextlvl/agenda/internal/auth"
	"github.com/digitalnextlvl/agenda/internal/store"
)

type tokenView struct {
	ID         int64      `json:"id"`
	Label      string     `json:"label"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	Status     string     `json:"status"`
}

func tokenViewOf(t store.APIToken, now time.Time) tokenView {
	status := "active"
	switch {
	case t.RevokedAt != nil:
		status = "revoked"
	case t.ExpiresAt != nil && t.ExpiresAt.Before(now):
		status = "expired"
	}
	return tokenView{
		ID:         t.ID,
		Label:      t.Label,
		CreatedAt:  t.CreatedAt,
		ExpiresAt:  t.ExpiresAt,
		LastUsedAt: t.LastUsedAt,
		Status:     status,
	}
}

// ListAPITokens handles GET /api/tokens.
func (h *Handler) ListAPITokens(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	tokens, err := h.store.APITokens.ListByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load tokens")
		return
	}

	now := time.Now()
	views := make([]tokenView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, tokenViewOf(t, now))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "tokens": views})
}

// CreateAPIToken handles POST /api/tokens. The plaintext token is returned
// exactly once; only its bcrypt hash is stored.
func (h *Handler) CreateAPIToken(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var body struct {
		Label     string     `json:"label"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Label == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return
	}

	plaintext, token, err := h.authService.CreateAPIToken(r.Context(), user.ID, body.Label, body.ExpiresAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"token":   plaintext,
		"entry":   tokenViewOf(*token, time.Now()),
	})
}

// RevokeAPIToken handles DELETE /api/tokens/{id}.
func (h *Handler) RevokeAPIToken(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	token, err := h.store.APITokens.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load token")
		return
	}
	if token == nil || token.UserID != user.ID {
		writeError(w, http.StatusNotFound, "token not found")
		return
	}
	if token.RevokedAt == nil {
		if err := h.store.APITokens.Revoke(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to revoke token")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/digitalnextlvl/agenda/internal/auth"
	"github.com/digitalnextlvl/agenda/internal/google"
)

// proxyEventBody is the wire format for proxy create/update requests. Field
// names follow the original client contract.
type proxyEventBody struct {
	Titulo     string `json:"titulo"`
	Descricao  string `json:"descricao"`
	DataInicio string `json:"data_inicio"`
	DataFim    string `json:"data_fim"`
	Local      string `json:"local"`
}

func (b proxyEventBody) validate() error {
	if b.Titulo == "" {
		return fmt.Errorf("titulo é obrigatório")
	}
	if _, err := time.Parse(time.RFC3339, b.DataInicio); err != nil {
		return fmt.Errorf("data_inicio inválida: %q", b.DataInicio)
	}
	if _, err := time.Parse(time.RFC3339, b.DataFim); err != nil {
		return fmt.Errorf("data_fim inválida: %q", b.DataFim)
	}
	return nil
}

func (b proxyEventBody) input() google.EventInput {
	return google.EventInput{
		Title:       b.Titulo,
		Description: b.Descricao,
		Start:       b.DataInicio,
		End:         b.DataFim,
		Location:    b.Local,
	}
}

// ProxyList handles GET /api/google-calendar.
func (h *Handler) ProxyList(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	events, err := h.provider.ListEvents(r.Context(), user.ID)
	if err != nil {
		writeError(w, providerErrorStatus(err), providerErrorMessage(r, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "events": events})
}

// ProxyCreate handles POST /api/google-calendar.
func (h *Handler) ProxyCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var body proxyEventBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}
	if err := body.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.provider.CreateEvent(r.Context(), user.ID, body.input())
	if err != nil {
		writeError(w, providerErrorStatus(err), providerErrorMessage(r, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "event": event})
}

// ProxyUpdate handles PUT /api/google-calendar?eventId=...
func (h *Handler) ProxyUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	eventID := r.URL.Query().Get("eventId")
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "eventId é obrigatório")
		return
	}

	var body proxyEventBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}
	if err := body.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := h.provider.UpdateEvent(r.Context(), user.ID, eventID, body.input())
	if err != nil {
		writeError(w, providerErrorStatus(err), providerErrorMessage(r, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "event": event})
}

// ProxyDelete handles DELETE /api/google-calendar?eventId=...
func (h *Handler) ProxyDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	eventID := r.URL.Query().Get("eventId")
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "eventId é obrigatório")
		return
	}

	if err := h.provider.DeleteEvent(r.Context(), user.ID, eventID); err != nil {
		writeError(w, providerErrorStatus(err), providerErrorMessage(r, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ProxyStatus handles GET /api/google-calendar/status. It reports whether the
// user has a stored provider token without touching the provider itself.
func (h *Handler) ProxyStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	token, err := h.store.Tokens.Get(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "erro ao consultar conexão")
		return
	}
	if token == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "connected": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"connected":  true,
		"expires_at": token.ExpiresAt,
	})
}

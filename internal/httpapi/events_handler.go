package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/digitalnextlvl/agenda/internal/auth"
	"github.com/digitalnextlvl/agenda/internal/calendar"
)

// eventView is the JSON projection of a unified event.
type eventView struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	Description   string              `json:"description,omitempty"`
	Start         string              `json:"start"`
	End           string              `json:"end"`
	Location      string              `json:"location,omitempty"`
	Origin        string              `json:"origin"`
	Color         string              `json:"color"`
	GoogleEventID string              `json:"google_event_id,omitempty"`
	AllDay        bool                `json:"all_day"`
	TimeLabel     string              `json:"time_label"`
	Attendees     []calendar.Attendee `json:"attendees,omitempty"`
}

func viewOf(e calendar.UnifiedEvent) eventView {
	v := eventView{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		Start:         e.Start,
		End:           e.End,
		Location:      e.Location,
		Origin:        string(e.Origin),
		Color:         e.Color,
		GoogleEventID: e.GoogleEventID,
		AllDay:        e.AllDay,
		TimeLabel:     calendar.FormatTimeRange(e),
	}
	if e.External != nil {
		v.Attendees = e.External.Attendees
	}
	return v
}

func viewsOf(events []calendar.UnifiedEvent) []eventView {
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, viewOf(e))
	}
	return views
}

// eventBody is the request format for unified create/update.
type eventBody struct {
	Title        string  `json:"title"`
	Description  *string `json:"description"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	Location     *string `json:"location"`
	Color        string  `json:"color"`
	SyncToGoogle bool    `json:"sync_to_google"`
}

func (b eventBody) input() (calendar.EventInput, error) {
	if b.Title == "" {
		return calendar.EventInput{}, fmt.Errorf("title is required")
	}
	start, err := time.Parse(time.RFC3339, b.Start)
	if err != nil {
		return calendar.EventInput{}, fmt.Errorf("invalid start %q", b.Start)
	}
	end, err := time.Parse(time.RFC3339, b.End)
	if err != nil {
		return calendar.EventInput{}, fmt.Errorf("invalid end %q", b.End)
	}
	if !end.After(start) {
		return calendar.EventInput{}, fmt.Errorf("end must be after start")
	}
	return calendar.EventInput{
		Title:       b.Title,
		Description: b.Description,
		StartsAt:    start,
		EndsAt:      end,
		Location:    b.Location,
		Color:       b.Color,
	}, nil
}

// ListEvents handles GET /api/events. Every call runs a full fetch cycle so
// the answer reflects both stores.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	snap := h.calendars.ForUser(user.ID).Refresh(r.Context())
	if snap.Status != calendar.StatusReady {
		writeError(w, providerErrorStatus(snap.Err), providerErrorMessage(r, snap.Err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "events": viewsOf(snap.Events)})
}

// TodayEvents handles GET /api/events/today.
func (h *Handler) TodayEvents(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	agg := h.calendars.ForUser(user.ID)

	if snap := h.ensureReady(r, w, agg); snap == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "events": viewsOf(agg.TodayEvents())})
}

// UpcomingEvents handles GET /api/events/upcoming?days=&limit=.
func (h *Handler) UpcomingEvents(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	agg := h.calendars.ForUser(user.ID)

	days := queryInt(r, "days", 7)
	limit := queryInt(r, "limit", 0)

	if snap := h.ensureReady(r, w, agg); snap == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "events": viewsOf(agg.UpcomingEvents(days, limit))})
}

// CreateEvent handles POST /api/events. A provider push failure is reported
// in sync_error but never undoes the local create.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var body eventBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := body.input()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.calendars.ForUser(user.ID).Create(r.Context(), in, body.SyncToGoogle)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	resp := map[string]any{"success": true, "event": viewOf(calendar.UnifiedFromLocal(*result.Event))}
	if result.SyncErr != nil {
		resp["sync_error"] = providerErrorMessage(r, result.SyncErr)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// UpdateEvent handles PUT /api/events/{id}. Provider-native events are
// refused; their system of record is the provider.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")
	agg := h.calendars.ForUser(user.ID)

	target := agg.Resolve(r.Context(), id)
	if target == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if target.Origin == calendar.OriginExternal {
		writeError(w, http.StatusBadRequest, "provider events must be edited in Google Calendar")
		return
	}

	var body eventBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := body.input()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := agg.Update(r.Context(), id, in, body.SyncToGoogle)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}
	if result.Event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	resp := map[string]any{"success": true, "event": viewOf(calendar.UnifiedFromLocal(*result.Event))}
	if result.SyncErr != nil {
		resp["sync_error"] = providerErrorMessage(r, result.SyncErr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteEvent handles DELETE /api/events/{id}?delete_from_google=.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")
	agg := h.calendars.ForUser(user.ID)

	target := agg.Resolve(r.Context(), id)
	if target == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if target.Origin == calendar.OriginExternal {
		writeError(w, http.StatusBadRequest, "provider events must be deleted in Google Calendar")
		return
	}

	deleteFromGoogle := queryBool(r, "delete_from_google")

	result, err := agg.Delete(r.Context(), id, deleteFromGoogle)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}
	if !result.Deleted {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	resp := map[string]any{"success": true}
	if result.SyncErr != nil {
		resp["sync_error"] = providerErrorMessage(r, result.SyncErr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ensureReady guarantees the aggregator holds a successful snapshot before a
// pure filter runs. Writes the error envelope and returns nil on failure.
func (h *Handler) ensureReady(r *http.Request, w http.ResponseWriter, agg *calendar.Aggregator) *calendar.Snapshot {
	snap := agg.Snapshot()
	if snap.Status != calendar.StatusReady {
		snap = agg.Refresh(r.Context())
	}
	if snap.Status != calendar.StatusReady {
		writeError(w, providerErrorStatus(snap.Err), providerErrorMessage(r, snap.Err))
		return nil
	}
	return &snap
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

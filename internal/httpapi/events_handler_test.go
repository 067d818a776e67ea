package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gcal "google.golang.org/api/calendar/v3"
)

type eventsResponse struct {
	Success   bool        `json:"success"`
	Error     string      `json:"error"`
	SyncError string      `json:"sync_error"`
	Events    []eventView `json:"events"`
	Event     *eventView  `json:"event"`
}

func decodeEvents(t *testing.T, rec *httptest.ResponseRecorder) eventsResponse {
	t.Helper()
	var resp eventsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestListEventsMergesSources(t *testing.T) {
	repo := newFakeEventRepo(
		localEvent("l1", "Standup", mustTime("2025-01-10T09:00:00Z"), mustTime("2025-01-10T09:15:00Z")),
	)
	provider := &fakeProvider{events: []*gcal.Event{
		{
			Id:      "e1",
			Summary: "Dentist",
			Start:   &gcal.EventDateTime{DateTime: "2025-01-10T08:00:00Z"},
			End:     &gcal.EventDateTime{DateTime: "2025-01-10T09:00:00Z"},
		},
	}}
	h := newTestHandler(repo, provider, nil)

	req := withAuth(httptest.NewRequest(http.MethodGet, "/api/events", nil), nil)
	rec := httptest.NewRecorder()
	h.ListEvents(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeEvents(t, rec)
	if len(resp.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(resp.Events))
	}
	// External event starts earlier, so it leads.
	if resp.Events[0].ID != "e1" || resp.Events[0].Origin != "external" {
		t.Errorf("first event = %+v, want the external one", resp.Events[0])
	}
	if resp.Events[1].ID != "l1" || resp.Events[1].Origin != "local" {
		t.Errorf("second event = %+v, want the local one", resp.Events[1])
	}
}

func TestListEventsFetchFailure(t *testing.T) {
	repo := newFakeEventRepo()
	repo.listErr = errors.New("db down")
	h := newTestHandler(repo, &fakeProvider{}, nil)

	req := withAuth(httptest.NewRequest(http.MethodGet, "/api/events", nil), nil)
	rec := httptest.NewRecorder()
	h.ListEvents(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if resp := decodeEvents(t, rec); resp.Success || resp.Error == "" {
		t.Errorf("response = %+v, want failure envelope with message", resp)
	}
}

func TestCreateEventValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing title", body: `{"start":"2025-01-10T09:00:00Z","end":"2025-01-10T10:00:00Z"}`},
		{name: "end before start", body: `{"title":"X","start":"2025-01-10T10:00:00Z","end":"2025-01-10T09:00:00Z"}`},
		{name: "end equals start", body: `{"title":"X","start":"2025-01-10T09:00:00Z","end":"2025-01-10T09:00:00Z"}`},
		{name: "bad date", body: `{"title":"X","start":"tomorrow","end":"2025-01-10T10:00:00Z"}`},
		{name: "not json", body: `title=X`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(newFakeEventRepo(), &fakeProvider{}, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.CreateEvent(rec, withAuth(req, nil))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestCreateEventWithSync(t *testing.T) {
	repo := newFakeEventRepo()
	provider := &fakeProvider{}
	h := newTestHandler(repo, provider, nil)

	body := `{"title":"Synced","start":"2025-01-10T09:00:00Z","end":"2025-01-10T10:00:00Z","sync_to_google":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateEvent(rec, withAuth(req, nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}
	resp := decodeEvents(t, rec)
	if resp.Event == nil {
		t.Fatal("response has no event")
	}
	if resp.Event.GoogleEventID == "" {
		t.Error("created event has no provider id after successful push")
	}
	if provider.createCalls != 1 {
		t.Errorf("provider create called %d times, want 1", provider.createCalls)
	}
}

func TestCreateEventSyncFailureIsNonFatal(t *testing.T) {
	repo := newFakeEventRepo()
	provider := &fakeProvider{createErr: errors.New("quota exceeded")}
	h := newTestHandler(repo, provider, nil)

	body := `{"title":"Kept","start":"2025-01-10T09:00:00Z","end":"2025-01-10T10:00:00Z","sync_to_google":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateEvent(rec, withAuth(req, nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	resp := decodeEvents(t, rec)
	if !resp.Success {
		t.Error("success = false, want true despite sync failure")
	}
	if resp.SyncError == "" {
		t.Error("sync_error missing from response")
	}
	if len(repo.events) != 1 {
		t.Errorf("stored %d events, want 1", len(repo.events))
	}
}

func TestUpdateEvent(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		body       string
		wantStatus int
	}{
		{
			name:       "updates a local event",
			id:         "l1",
			body:       `{"title":"Renamed","start":"2025-01-10T09:00:00Z","end":"2025-01-10T10:00:00Z"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown id",
			id:         "missing",
			body:       `{"title":"X","start":"2025-01-10T09:00:00Z","end":"2025-01-10T10:00:00Z"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "external event refused",
			id:         "ext1",
			body:       `{"title":"X","start":"2025-01-10T09:00:00Z","end":"2025-01-10T10:00:00Z"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeEventRepo(
				localEvent("l1", "Original", mustTime("2025-01-10T09:00:00Z"), mustTime("2025-01-10T10:00:00Z")),
			)
			provider := &fakeProvider{events: []*gcal.Event{
				{
					Id:      "ext1",
					Summary: "Provider-native",
					Start:   &gcal.EventDateTime{DateTime: "2025-01-11T09:00:00Z"},
					End:     &gcal.EventDateTime{DateTime: "2025-01-11T10:00:00Z"},
				},
			}}
			h := newTestHandler(repo, provider, nil)

			req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/api/events/%s", tt.id), strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.UpdateEvent(rec, withAuth(req, map[string]string{"id": tt.id}))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestDeleteEvent(t *testing.T) {
	repo := newFakeEventRepo(
		localEvent("l1", "Doomed", mustTime("2025-01-10T09:00:00Z"), mustTime("2025-01-10T10:00:00Z")),
	)
	provider := &fakeProvider{}
	h := newTestHandler(repo, provider, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/events/l1", nil)
	rec := httptest.NewRecorder()
	h.DeleteEvent(rec, withAuth(req, map[string]string{"id": "l1"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if len(repo.events) != 0 {
		t.Errorf("%d events left, want 0", len(repo.events))
	}
	if provider.deleteCalls != 0 {
		t.Errorf("provider delete called %d times without delete_from_google, want 0", provider.deleteCalls)
	}
}

func TestDeleteEventFromGoogle(t *testing.T) {
	googleID := "gcal-1"
	event := localEvent("l1", "Doomed", mustTime("2025-01-10T09:00:00Z"), mustTime("2025-01-10T10:00:00Z"))
	event.GoogleEventID = &googleID
	repo := newFakeEventRepo(event)
	provider := &fakeProvider{}
	h := newTestHandler(repo, provider, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/events/l1?delete_from_google=true", nil)
	rec := httptest.NewRecorder()
	h.DeleteEvent(rec, withAuth(req, map[string]string{"id": "l1"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if provider.deleteCalls != 1 {
		t.Errorf("provider delete called %d times, want 1", provider.deleteCalls)
	}
}

func TestUpcomingEvents(t *testing.T) {
	now := time.Now()
	repo := newFakeEventRepo(
		localEvent("soon", "Soon", now.Add(24*time.Hour), now.Add(25*time.Hour)),
		localEvent("far", "Far", now.Add(40*24*time.Hour), now.Add(40*24*time.Hour+time.Hour)),
	)
	h := newTestHandler(repo, &fakeProvider{}, nil)

	req := withAuth(httptest.NewRequest(http.MethodGet, "/api/events/upcoming?days=7", nil), nil)
	rec := httptest.NewRecorder()
	h.UpcomingEvents(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeEvents(t, rec)
	if len(resp.Events) != 1 || resp.Events[0].ID != "soon" {
		t.Errorf("events = %+v, want only the event inside the window", resp.Events)
	}
}

func TestFeedServesICS(t *testing.T) {
	repo := newFakeEventRepo(
		localEvent("l1", "Standup", mustTime("2025-01-10T09:00:00Z"), mustTime("2025-01-10T09:15:00Z")),
	)
	h := newTestHandler(repo, &fakeProvider{}, nil)

	req := withAuth(httptest.NewRequest(http.MethodGet, "/api/events/feed.ics", nil), nil)
	rec := httptest.NewRecorder()
	h.Feed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q, want text/calendar", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"BEGIN:VCALENDAR", "BEGIN:VEVENT", "SUMMARY:Standup"} {
		if !strings.Contains(body, want) {
			t.Errorf("feed body missing %q", want)
		}
	}
}

package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/digitalnextlvl/agenda/internal/auth"
	"github.com/digitalnextlvl/agenda/internal/calendar"
	"github.com/digitalnextlvl/agenda/internal/config"
	"github.com/digitalnextlvl/agenda/internal/google"
	"github.com/digitalnextlvl/agenda/internal/store"
)

const testUserID int64 = 100

type fakeEventRepo struct {
	events map[string]store.LocalEvent

	listErr error
}

func newFakeEventRepo(events ...store.LocalEvent) *fakeEventRepo {
	repo := &fakeEventRepo{events: make(map[string]store.LocalEvent)}
	for _, e := range events {
		repo.events[e.ID] = e
	}
	return repo
}

func (f *fakeEventRepo) Create(_ context.Context, event store.LocalEvent) (*store.LocalEvent, error) {
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	f.events[event.ID] = event
	return &event, nil
}

func (f *fakeEventRepo) GetByID(_ context.Context, userID int64, id string) (*store.LocalEvent, error) {
	e, ok := f.events[id]
	if !ok || e.UserID != userID {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeEventRepo) ListByUser(_ context.Context, userID int64) ([]store.LocalEvent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []store.LocalEvent
	for _, e := range f.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (f *fakeEventRepo) Update(_ context.Context, event store.LocalEvent) (*store.LocalEvent, error) {
	current, ok := f.events[event.ID]
	if !ok || current.UserID != event.UserID {
		return nil, nil
	}
	event.GoogleEventID = current.GoogleEventID
	f.events[event.ID] = event
	return &event, nil
}

func (f *fakeEventRepo) SetGoogleEventID(_ context.Context, userID int64, id, googleEventID string) error {
	e, ok := f.events[id]
	if !ok || e.UserID != userID {
		return store.ErrNotFound
	}
	e.GoogleEventID = &googleEventID
	f.events[id] = e
	return nil
}

func (f *fakeEventRepo) Delete(_ context.Context, userID int64, id string) error {
	e, ok := f.events[id]
	if !ok || e.UserID != userID {
		return store.ErrNotFound
	}
	delete(f.events, id)
	return nil
}

type fakeProvider struct {
	events []*gcal.Event

	listErr   error
	createErr error
	updateErr error
	deleteErr error

	createCalls int
	updateCalls int
	deleteCalls int
}

func (f *fakeProvider) ListEvents(context.Context, int64) ([]*gcal.Event, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.events, nil
}

func (f *fakeProvider) CreateEvent(_ context.Context, _ int64, in google.EventInput) (*gcal.Event, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &gcal.Event{Id: fmt.Sprintf("gcal-%d", f.createCalls), Summary: in.Title}, nil
}

func (f *fakeProvider) UpdateEvent(_ context.Context, _ int64, eventID string, in google.EventInput) (*gcal.Event, error) {
	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &gcal.Event{Id: eventID, Summary: in.Title}, nil
}

func (f *fakeProvider) DeleteEvent(context.Context, int64, string) error {
	f.deleteCalls++
	return f.deleteErr
}

type fakeSessionRepo struct {
	sessions map[string]store.Session
}

func (f *fakeSessionRepo) Create(_ context.Context, s store.Session) (*store.Session, error) {
	f.sessions[s.ID] = s
	return &s, nil
}

func (f *fakeSessionRepo) GetByTokenHash(_ context.Context, hash string) (*store.Session, error) {
	for _, s := range f.sessions {
		if s.TokenHash == hash {
			cp := s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeSessionRepo) GetByID(_ context.Context, id string) (*store.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeSessionRepo) ListByUser(_ context.Context, userID int64) ([]store.Session, error) {
	var out []store.Session
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeSessionRepo) TouchLastSeen(context.Context, string) error { return nil }

func (f *fakeSessionRepo) Delete(_ context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionRepo) DeleteExpired(context.Context) error { return nil }

type fakeGoogleTokenRepo struct {
	token *store.GoogleToken
	err   error
}

func (f *fakeGoogleTokenRepo) Get(context.Context, int64) (*store.GoogleToken, error) {
	return f.token, f.err
}

func (f *fakeGoogleTokenRepo) Save(_ context.Context, token store.GoogleToken) error {
	f.token = &token
	return nil
}

func (f *fakeGoogleTokenRepo) UpdateAccessToken(context.Context, int64, string, time.Time, time.Time) (bool, error) {
	return false, nil
}

func (f *fakeGoogleTokenRepo) Delete(context.Context, int64) error {
	f.token = nil
	return nil
}

type fakeAPITokenRepo struct {
	tokens map[int64]store.APIToken

	revokeCalls int
}

func (f *fakeAPITokenRepo) Create(_ context.Context, t store.APIToken) (*store.APIToken, error) {
	t.ID = int64(len(f.tokens) + 1)
	f.tokens[t.ID] = t
	return &t, nil
}

func (f *fakeAPITokenRepo) GetByID(_ context.Context, id int64) (*store.APIToken, error) {
	t, ok := f.tokens[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeAPITokenRepo) ListByUser(_ context.Context, userID int64) ([]store.APIToken, error) {
	var out []store.APIToken
	for _, t := range f.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAPITokenRepo) Revoke(_ context.Context, id int64) error {
	f.revokeCalls++
	t, ok := f.tokens[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	t.RevokedAt = &now
	f.tokens[id] = t
	return nil
}

func (f *fakeAPITokenRepo) TouchLastUsed(context.Context, int64) error { return nil }

// newTestHandler assembles a Handler over in-memory fakes.
func newTestHandler(repo *fakeEventRepo, provider *fakeProvider, stor *store.Store) *Handler {
	cfg := &config.Config{BaseURL: "http://localhost:8080"}
	if stor == nil {
		stor = &store.Store{}
	}
	return &Handler{
		cfg:       cfg,
		store:     stor,
		provider:  provider,
		calendars: calendar.NewService(repo, provider),
	}
}

// withAuth attaches an authenticated user and optional chi URL params to a
// test request.
func withAuth(req *http.Request, params map[string]string) *http.Request {
	ctx := auth.WithUser(req.Context(), &store.User{ID: testUserID, Email: "user@example.com"})
	ctx = auth.WithSessionID(ctx, "current-session")

	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func localEvent(id string, title string, start, end time.Time) store.LocalEvent {
	return store.LocalEvent{
		ID:       id,
		UserID:   testUserID,
		Title:    title,
		StartsAt: start,
		EndsAt:   end,
		Color:    calendar.DefaultColor,
	}
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

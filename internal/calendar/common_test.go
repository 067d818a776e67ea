package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/digitalnextlvl/agenda/internal/google"
	"github.com/digitalnextlvl/agenda/internal/store"
)

type fakeEventRepo struct {
	events map[string]store.LocalEvent

	listErr   error
	createErr error
	updateErr error
	deleteErr error

	createCalls int
	updateCalls int
	deleteCalls int
}

func newFakeEventRepo(events ...store.LocalEvent) *fakeEventRepo {
	repo := &fakeEventRepo{events: make(map[string]store.LocalEvent)}
	for _, e := range events {
		repo.events[e.ID] = e
	}
	return repo
}

func (f *fakeEventRepo) Create(_ context.Context, event store.LocalEvent) (*store.LocalEvent, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now
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
	f.updateCalls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	current, ok := f.events[event.ID]
	if !ok || current.UserID != event.UserID {
		return nil, nil
	}
	event.GoogleEventID = current.GoogleEventID
	event.CreatedAt = current.CreatedAt
	event.UpdatedAt = time.Now()
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
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
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

	createdID string

	listCalls   int
	createCalls int
	updateCalls int
	deleteCalls int

	lastUpdateID string
	lastDeleteID string
}

func (f *fakeProvider) ListEvents(context.Context, int64) ([]*gcal.Event, error) {
	f.listCalls++
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
	id := f.createdID
	if id == "" {
		id = fmt.Sprintf("gcal-%d", f.createCalls)
	}
	return &gcal.Event{
		Id:      id,
		Summary: in.Title,
		Start:   &gcal.EventDateTime{DateTime: in.Start},
		End:     &gcal.EventDateTime{DateTime: in.End},
	}, nil
}

func (f *fakeProvider) UpdateEvent(_ context.Context, _ int64, eventID string, in google.EventInput) (*gcal.Event, error) {
	f.updateCalls++
	f.lastUpdateID = eventID
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &gcal.Event{Id: eventID, Summary: in.Title}, nil
}

func (f *fakeProvider) DeleteEvent(_ context.Context, _ int64, eventID string) error {
	f.deleteCalls++
	f.lastDeleteID = eventID
	return f.deleteErr
}

func timedProviderEvent(id, summary, start, end string) *gcal.Event {
	return &gcal.Event{
		Id:      id,
		Summary: summary,
		Start:   &gcal.EventDateTime{DateTime: start},
		End:     &gcal.EventDateTime{DateTime: end},
	}
}

func localEvent(id string, userID int64, title string, start, end time.Time) store.LocalEvent {
	return store.LocalEvent{
		ID:       id,
		UserID:   userID,
		Title:    title,
		StartsAt: start,
		EndsAt:   end,
		Color:    DefaultColor,
	}
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

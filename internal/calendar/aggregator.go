package calendar

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/digitalnextlvl/agenda/internal/google"
	"github.com/digitalnextlvl/agenda/internal/store"
)

// Status is the aggregator's fetch-cycle state.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusFetching Status = "fetching"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

// Snapshot is the single {status, data, error} value the aggregator owns.
type Snapshot struct {
	Status Status
	Events []UnifiedEvent
	Err    error
}

// Provider is the subset of the Google client the aggregator depends on.
type Provider interface {
	ListEvents(ctx context.Context, userID int64) ([]*gcal.Event, error)
	CreateEvent(ctx context.Context, userID int64, in google.EventInput) (*gcal.Event, error)
	UpdateEvent(ctx context.Context, userID int64, eventID string, in google.EventInput) (*gcal.Event, error)
	DeleteEvent(ctx context.Context, userID int64, eventID string) error
}

// EventInput is the editable field set for local events.
type EventInput struct {
	Title       string
	Description *string
	StartsAt    time.Time
	EndsAt      time.Time
	Location    *string
	Color       string
}

// MutationResult reports a unified create/update outcome. Event is nil when
// the operation was refused (external origin or unknown id). SyncErr carries
// a non-fatal provider push failure; the local mutation stands regardless.
type MutationResult struct {
	Event   *store.LocalEvent
	SyncErr error
}

// DeleteResult reports a unified delete outcome.
type DeleteResult struct {
	Deleted bool
	SyncErr error
}

// Aggregator merges local and provider events into one timeline for a single
// user and routes mutations by origin. All mutation+refresh pairs are
// serialized behind one mutex, so overlapping calls from rapid interaction
// cannot interleave their refetches.
type Aggregator struct {
	userID   int64
	events   store.EventRepository
	provider Provider
	now      func() time.Time

	mu       sync.Mutex
	snapshot Snapshot
}

func NewAggregator(userID int64, events store.EventRepository, provider Provider) *Aggregator {
	return &Aggregator{
		userID:   userID,
		events:   events,
		provider: provider,
		now:      time.Now,
		snapshot: Snapshot{Status: StatusIdle},
	}
}

// Refresh runs one full fetch cycle and returns the resulting snapshot.
func (a *Aggregator) Refresh(ctx context.Context) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshLocked(ctx)
}

// refreshLocked fetches local first, then external; the local error wins when
// both fail. Provider events that fail projection are skipped with a warning
// rather than poisoning the whole cycle.
func (a *Aggregator) refreshLocked(ctx context.Context) Snapshot {
	a.snapshot = Snapshot{Status: StatusFetching, Events: a.snapshot.Events}

	locals, err := a.events.ListByUser(ctx, a.userID)
	if err != nil {
		a.snapshot = Snapshot{Status: StatusFailed, Err: err}
		return a.snapshot
	}

	raw, err := a.provider.ListEvents(ctx, a.userID)
	if err != nil {
		a.snapshot = Snapshot{Status: StatusFailed, Err: err}
		return a.snapshot
	}

	externals := make([]ExternalEvent, 0, len(raw))
	for _, e := range raw {
		ext, err := ExternalFromProvider(e)
		if err != nil {
			log.Printf("[WARN] skipping malformed provider event: %v", err)
			continue
		}
		externals = append(externals, ext)
	}

	a.snapshot = Snapshot{Status: StatusReady, Events: Merge(locals, externals)}
	return a.snapshot
}

// Snapshot returns the current state without triggering a fetch.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot
}

// Create stores a new local event and, when syncToGoogle is set, pushes it to
// the provider, recording the provider id on first success. The local create
// stands even when the push fails; a refresh runs either way.
func (a *Aggregator) Create(ctx context.Context, in EventInput, syncToGoogle bool) (MutationResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	color := in.Color
	if color == "" {
		color = DefaultColor
	}

	event, err := a.events.Create(ctx, store.LocalEvent{
		ID:          uuid.NewString(),
		UserID:      a.userID,
		Title:       in.Title,
		Description: in.Description,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
		Location:    in.Location,
		Color:       color,
	})
	if err != nil {
		a.refreshLocked(ctx)
		return MutationResult{}, err
	}

	var syncErr error
	if syncToGoogle {
		created, err := a.provider.CreateEvent(ctx, a.userID, providerInput(*event))
		if err != nil {
			syncErr = err
			log.Printf("[WARN] push to google failed for event %s: %v", event.ID, err)
		} else if created != nil && created.Id != "" {
			if err := a.events.SetGoogleEventID(ctx, a.userID, event.ID, created.Id); err != nil {
				syncErr = err
			} else {
				event.GoogleEventID = &created.Id
			}
		}
	}

	a.refreshLocked(ctx)
	return MutationResult{Event: event, SyncErr: syncErr}, nil
}

// Update applies changes to a local-origin event. Provider-native events are
// not editable here; those calls are a refused no-op. The provider copy is
// updated only when the event already carries a provider id.
func (a *Aggregator) Update(ctx context.Context, id string, in EventInput, syncToGoogle bool) (MutationResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	target := a.resolveLocked(ctx, id)
	if target == nil || target.Origin == OriginExternal {
		return MutationResult{}, nil
	}

	current := target.Local
	color := in.Color
	if color == "" {
		color = current.Color
	}

	event, err := a.events.Update(ctx, store.LocalEvent{
		ID:          id,
		UserID:      a.userID,
		Title:       in.Title,
		Description: in.Description,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
		Location:    in.Location,
		Color:       color,
	})
	if err != nil {
		a.refreshLocked(ctx)
		return MutationResult{}, err
	}
	if event == nil {
		a.refreshLocked(ctx)
		return MutationResult{}, nil
	}

	var syncErr error
	if syncToGoogle && event.GoogleEventID != nil && *event.GoogleEventID != "" {
		if _, err := a.provider.UpdateEvent(ctx, a.userID, *event.GoogleEventID, providerInput(*event)); err != nil {
			syncErr = err
			log.Printf("[WARN] google update failed for event %s: %v", event.ID, err)
		}
	}

	a.refreshLocked(ctx)
	return MutationResult{Event: event, SyncErr: syncErr}, nil
}

// Delete removes a local-origin event, optionally deleting the provider copy
// first. External-origin events are a refused no-op.
func (a *Aggregator) Delete(ctx context.Context, id string, deleteFromGoogle bool) (DeleteResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	target := a.resolveLocked(ctx, id)
	if target == nil || target.Origin == OriginExternal {
		return DeleteResult{}, nil
	}

	var syncErr error
	if deleteFromGoogle && target.GoogleEventID != "" {
		if err := a.provider.DeleteEvent(ctx, a.userID, target.GoogleEventID); err != nil {
			syncErr = err
			log.Printf("[WARN] google delete failed for event %s: %v", id, err)
		}
	}

	if err := a.events.Delete(ctx, a.userID, id); err != nil {
		a.refreshLocked(ctx)
		return DeleteResult{SyncErr: syncErr}, err
	}

	a.refreshLocked(ctx)
	return DeleteResult{Deleted: true, SyncErr: syncErr}, nil
}

// Resolve looks up an event by id in the unified list. Returns a copy so the
// caller cannot mutate the snapshot.
func (a *Aggregator) Resolve(ctx context.Context, id string) *UnifiedEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	e := a.resolveLocked(ctx, id)
	if e == nil {
		return nil
	}
	cp := *e
	return &cp
}

// resolveLocked finds an event in the current unified list, refreshing first
// when no successful fetch has happened yet.
func (a *Aggregator) resolveLocked(ctx context.Context, id string) *UnifiedEvent {
	if a.snapshot.Status != StatusReady {
		if snap := a.refreshLocked(ctx); snap.Status != StatusReady {
			return nil
		}
	}
	for i := range a.snapshot.Events {
		if a.snapshot.Events[i].ID == id {
			return &a.snapshot.Events[i]
		}
	}
	return nil
}

// EventsForDate filters the held list to events starting on the given day.
// Pure filter; no network access.
func (a *Aggregator) EventsForDate(date time.Time) []UnifiedEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	y, m, d := date.Date()
	var out []UnifiedEvent
	for _, e := range a.snapshot.Events {
		ey, em, ed := e.StartsAt.In(date.Location()).Date()
		if e.AllDay {
			ey, em, ed = e.StartsAt.Date()
		}
		if ey == y && em == m && ed == d {
			out = append(out, e)
		}
	}
	return out
}

// TodayEvents filters the held list to today's events.
func (a *Aggregator) TodayEvents() []UnifiedEvent {
	return a.EventsForDate(a.now())
}

// UpcomingEvents returns events starting within the next `days` days, capped
// at `limit` entries (10 when limit is zero or negative).
func (a *Aggregator) UpcomingEvents(days, limit int) []UnifiedEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}
	now := a.now()
	cutoff := now.AddDate(0, 0, days)

	var out []UnifiedEvent
	for _, e := range a.snapshot.Events {
		if e.StartsAt.Before(now) || e.StartsAt.After(cutoff) {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out
}

func providerInput(e store.LocalEvent) google.EventInput {
	in := google.EventInput{
		Title: e.Title,
		Start: e.StartsAt.Format(time.RFC3339),
		End:   e.EndsAt.Format(time.RFC3339),
	}
	if e.Description != nil {
		in.Description = *e.Description
	}
	if e.Location != nil {
		in.Location = *e.Location
	}
	return in
}

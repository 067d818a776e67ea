package calendar

import (
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/digitalnextlvl/agenda/internal/store"
)

// Origin tags which backing store produced a unified event and therefore
// where its mutations are routed.
type Origin string

const (
	OriginLocal    Origin = "local"
	OriginExternal Origin = "external"
)

const (
	// DefaultColor is stamped on local events created without a color.
	DefaultColor = "#3B82F6"
	// ExternalColor is the fixed display color for provider-native events.
	ExternalColor = "#4285F4"
)

// EventTime is either a timed instant or an all-day date. Exactly one shape
// is populated by construction.
type EventTime struct {
	allDay bool
	at     time.Time
	date   string
}

// TimedAt builds a timed EventTime.
func TimedAt(t time.Time) EventTime {
	return EventTime{at: t}
}

// AllDayOn builds an all-day EventTime from a YYYY-MM-DD date.
func AllDayOn(date string) (EventTime, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return EventTime{}, fmt.Errorf("parse all-day date %q: %w", date, err)
	}
	return EventTime{allDay: true, at: day, date: date}, nil
}

// AllDay reports whether this is an all-day date rather than a timed instant.
func (t EventTime) AllDay() bool { return t.allDay }

// Time returns the instant used for ordering; midnight UTC for all-day dates.
func (t EventTime) Time() time.Time { return t.at }

// String renders the wire form: RFC 3339 for timed, YYYY-MM-DD for all-day.
func (t EventTime) String() string {
	if t.allDay {
		return t.date
	}
	return t.at.Format(time.RFC3339)
}

// Attendee is the subset of provider attendee data this system consumes.
type Attendee struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// ExternalEvent is a read-mostly projection of a Google Calendar entry.
type ExternalEvent struct {
	ID          string
	Summary     string
	Description string
	Start       EventTime
	End         EventTime
	Location    string
	Attendees   []Attendee
}

// ExternalFromProvider projects a provider event into an ExternalEvent.
func ExternalFromProvider(e *gcal.Event) (ExternalEvent, error) {
	start, err := eventTimeFromProvider(e.Start)
	if err != nil {
		return ExternalEvent{}, fmt.Errorf("event %s start: %w", e.Id, err)
	}
	end, err := eventTimeFromProvider(e.End)
	if err != nil {
		return ExternalEvent{}, fmt.Errorf("event %s end: %w", e.Id, err)
	}

	ext := ExternalEvent{
		ID:          e.Id,
		Summary:     e.Summary,
		Description: e.Description,
		Start:       start,
		End:         end,
		Location:    e.Location,
	}
	for _, a := range e.Attendees {
		if a == nil {
			continue
		}
		ext.Attendees = append(ext.Attendees, Attendee{Email: a.Email, DisplayName: a.DisplayName})
	}
	return ext, nil
}

func eventTimeFromProvider(t *gcal.EventDateTime) (EventTime, error) {
	if t == nil {
		return EventTime{}, fmt.Errorf("missing time")
	}
	if t.DateTime != "" {
		at, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return EventTime{}, fmt.Errorf("parse datetime %q: %w", t.DateTime, err)
		}
		return TimedAt(at), nil
	}
	if t.Date != "" {
		return AllDayOn(t.Date)
	}
	return EventTime{}, fmt.Errorf("neither date nor datetime set")
}

// UnifiedEvent is the merged, presentation-facing projection. The origin tag
// is immutable for the lifetime of the projection.
type UnifiedEvent struct {
	ID            string
	Title         string
	Description   string
	Start         string
	End           string
	Location      string
	Origin        Origin
	Color         string
	GoogleEventID string
	AllDay        bool

	// Parsed instants for ordering and filtering.
	StartsAt time.Time
	EndsAt   time.Time

	// Back-reference to whichever record produced the projection.
	Local    *store.LocalEvent
	External *ExternalEvent
}

// UnifiedFromLocal projects a local event row.
func UnifiedFromLocal(e store.LocalEvent) UnifiedEvent {
	u := UnifiedEvent{
		ID:       e.ID,
		Title:    e.Title,
		Start:    e.StartsAt.Format(time.RFC3339),
		End:      e.EndsAt.Format(time.RFC3339),
		Origin:   OriginLocal,
		Color:    e.Color,
		StartsAt: e.StartsAt,
		EndsAt:   e.EndsAt,
		Local:    &e,
	}
	if e.Description != nil {
		u.Description = *e.Description
	}
	if e.Location != nil {
		u.Location = *e.Location
	}
	if e.GoogleEventID != nil {
		u.GoogleEventID = *e.GoogleEventID
	}
	return u
}

// UnifiedFromExternal projects a provider event.
func UnifiedFromExternal(e ExternalEvent) UnifiedEvent {
	return UnifiedEvent{
		ID:            e.ID,
		Title:         e.Summary,
		Description:   e.Description,
		Start:         e.Start.String(),
		End:           e.End.String(),
		Location:      e.Location,
		Origin:        OriginExternal,
		Color:         ExternalColor,
		GoogleEventID: e.ID,
		AllDay:        e.Start.AllDay(),
		StartsAt:      e.Start.Time(),
		EndsAt:        e.End.Time(),
		External:      &e,
	}
}

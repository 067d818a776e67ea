package google

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/digitalnextlvl/agenda/internal/metrics"
)

// AccessTokenSource yields a valid access token for a user.
type AccessTokenSource interface {
	AccessToken(ctx context.Context, userID int64) (string, error)
}

// EventInput is the field set this system maps onto a provider event.
type EventInput struct {
	Title       string
	Description string
	Start       string // RFC 3339
	End         string // RFC 3339
	Location    string
}

// Client wraps the Google Calendar API for per-user, stored-credential calls.
type Client struct {
	tokens   AccessTokenSource
	timeZone string
	now      func() time.Time

	// newService is swappable in tests.
	newService func(ctx context.Context, accessToken string) (*gcal.Service, error)
}

func NewClient(tokens AccessTokenSource, timeZone string) *Client {
	return &Client{
		tokens:   tokens,
		timeZone: timeZone,
		now:      time.Now,
		newService: func(ctx context.Context, accessToken string) (*gcal.Service, error) {
			source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
			return gcal.NewService(ctx, option.WithTokenSource(source))
		},
	}
}

func (c *Client) service(ctx context.Context, userID int64) (*gcal.Service, error) {
	token, err := c.tokens.AccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	service, err := c.newService(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return service, nil
}

// ListEvents returns the user's primary-calendar events for the next month,
// with recurring events expanded to single instances, ordered by start time.
func (c *Client) ListEvents(ctx context.Context, userID int64) ([]*gcal.Event, error) {
	service, err := c.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	now := c.now()
	// The window is one calendar month, not a fixed day count.
	list, err := service.Events.List("primary").
		TimeMin(now.Format(time.RFC3339)).
		TimeMax(now.AddDate(0, 1, 0).Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	metrics.ObserveGoogleCall("list", start, err)
	if err != nil {
		return nil, wrapAPIError(err)
	}

	return list.Items, nil
}

// CreateEvent inserts a new event into the user's primary calendar and
// returns it with the provider-assigned identifier.
func (c *Client) CreateEvent(ctx context.Context, userID int64, in EventInput) (*gcal.Event, error) {
	service, err := c.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	created, err := service.Events.Insert("primary", c.mapEvent(in)).
		SendUpdates("none").
		Context(ctx).
		Do()
	metrics.ObserveGoogleCall("create", start, err)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return created, nil
}

// UpdateEvent issues a full replace of an existing provider event.
func (c *Client) UpdateEvent(ctx context.Context, userID int64, eventID string, in EventInput) (*gcal.Event, error) {
	service, err := c.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	updated, err := service.Events.Update("primary", eventID, c.mapEvent(in)).
		SendUpdates("none").
		Context(ctx).
		Do()
	metrics.ObserveGoogleCall("update", start, err)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return updated, nil
}

// DeleteEvent removes an event from the user's primary calendar.
func (c *Client) DeleteEvent(ctx context.Context, userID int64, eventID string) error {
	service, err := c.service(ctx, userID)
	if err != nil {
		return err
	}

	start := time.Now()
	err = service.Events.Delete("primary", eventID).
		SendUpdates("none").
		Context(ctx).
		Do()
	metrics.ObserveGoogleCall("delete", start, err)
	if err != nil {
		return wrapAPIError(err)
	}
	return nil
}

func (c *Client) mapEvent(in EventInput) *gcal.Event {
	return &gcal.Event{
		Summary:     in.Title,
		Description: in.Description,
		Location:    in.Location,
		Start:       &gcal.EventDateTime{DateTime: in.Start, TimeZone: c.timeZone},
		End:         &gcal.EventDateTime{DateTime: in.End, TimeZone: c.timeZone},
	}
}

func wrapAPIError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{StatusCode: gerr.Code, Message: gerr.Message}
	}
	return err
}

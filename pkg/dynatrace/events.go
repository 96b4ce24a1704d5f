package dynatrace

import (
	"context"
	"net/http"
	"net/url"
)

// IngestEventTypes lists the event types accepted by POST /events/ingest
var IngestEventTypes = []string{
	"AVAILABILITY_EVENT",
	"CUSTOM_ALERT",
	"CUSTOM_ANNOTATION",
	"CUSTOM_CONFIGURATION",
	"CUSTOM_DEPLOYMENT",
	"CUSTOM_INFO",
	"ERROR_EVENT",
	"MARKED_FOR_TERMINATION",
	"PERFORMANCE_EVENT",
	"RESOURCE_CONTENTION_EVENT",
}

// ListEventsParams filters GET /events
type ListEventsParams struct {
	Page
	Timeframe
	EventSelector  string
	EntitySelector string
}

// ListEvents lists events observed within the timeframe
func (c *Client) ListEvents(ctx context.Context, p ListEventsParams) (*EventsList, error) {
	q := url.Values{}
	p.Timeframe.apply(q)
	set(q, "eventSelector", p.EventSelector)
	set(q, "entitySelector", p.EntitySelector)
	return getJSON[EventsList](ctx, c, "/events", p.Page.apply(q))
}

// GetEvent retrieves a single event
func (c *Client) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	return getJSON[Event](ctx, c, "/events/"+seg(eventID), nil)
}

// IngestEvent pushes a custom event to the matched entities
func (c *Client) IngestEvent(ctx context.Context, ev EventIngest) (*EventIngestResults, error) {
	return sendJSON[EventIngestResults](ctx, c, http.MethodPost, "/events/ingest", nil, ev)
}

// ListEventTypes lists the event types
func (c *Client) ListEventTypes(ctx context.Context, page Page) (*EventTypesList, error) {
	return getJSON[EventTypesList](ctx, c, "/eventTypes", page.apply(url.Values{}))
}

// GetEventType retrieves one event type
func (c *Client) GetEventType(ctx context.Context, eventType string) (*EventType, error) {
	return getJSON[EventType](ctx, c, "/eventTypes/"+seg(eventType), nil)
}

// ListEventProperties lists the properties that may be set on events
func (c *Client) ListEventProperties(ctx context.Context, page Page) (*EventPropertiesList, error) {
	return getJSON[EventPropertiesList](ctx, c, "/eventProperties", page.apply(url.Values{}))
}

// GetEventProperty retrieves one event property
func (c *Client) GetEventProperty(ctx context.Context, key string) (*EventProperty, error) {
	return getJSON[EventProperty](ctx, c, "/eventProperties/"+seg(key), nil)
}

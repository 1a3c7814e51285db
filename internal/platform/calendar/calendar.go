// Package calendar talks to the external calendar service that mirrors
// clinic appointments. Sync is best effort: booking never fails because the
// calendar is down, it just leaves the appointment without an event id.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// ErrExternal marks failures of the calendar service itself, as opposed to
// bad input on our side.
var ErrExternal = errors.New("calendar service unavailable")

// Event is the payload pushed to the calendar service for an appointment.
type Event struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	StaffID       uuid.UUID `json:"staff_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Title         string    `json:"title"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

// Client pushes appointment events to an external calendar.
type Client interface {
	CreateEvent(ctx context.Context, ev Event) (string, error)
	UpdateEvent(ctx context.Context, eventID string, ev Event) error
	DeleteEvent(ctx context.Context, eventID string) error
}

type httpClient struct {
	rc *resty.Client
}

// NewHTTPClient returns a Client backed by the calendar service's REST API.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)
	return &httpClient{rc: rc}
}

type eventResponse struct {
	EventID string `json:"event_id"`
}

func (c *httpClient) CreateEvent(ctx context.Context, ev Event) (string, error) {
	var out eventResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(ev).
		SetResult(&out).
		Post("/v1/events")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExternal, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: create event returned %d", ErrExternal, resp.StatusCode())
	}
	return out.EventID, nil
}

func (c *httpClient) UpdateEvent(ctx context.Context, eventID string, ev Event) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(ev).
		Put("/v1/events/" + eventID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExternal, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: update event returned %d", ErrExternal, resp.StatusCode())
	}
	return nil
}

func (c *httpClient) DeleteEvent(ctx context.Context, eventID string) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		Delete("/v1/events/" + eventID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExternal, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: delete event returned %d", ErrExternal, resp.StatusCode())
	}
	return nil
}

// NoopClient is used when no calendar service is configured. Every create
// reports success with an empty event id.
type NoopClient struct{}

func (NoopClient) CreateEvent(ctx context.Context, ev Event) (string, error) { return "", nil }
func (NoopClient) UpdateEvent(ctx context.Context, eventID string, ev Event) error {
	return nil
}
func (NoopClient) DeleteEvent(ctx context.Context, eventID string) error { return nil }

// MockClient records calls for tests and can be told to fail.
type MockClient struct {
	Created []Event
	Updated []Event
	Deleted []string
	FailAll bool
	NextID  string
}

func (m *MockClient) CreateEvent(ctx context.Context, ev Event) (string, error) {
	if m.FailAll {
		return "", fmt.Errorf("%w: mock failure", ErrExternal)
	}
	m.Created = append(m.Created, ev)
	if m.NextID != "" {
		return m.NextID, nil
	}
	return "evt-" + ev.AppointmentID.String(), nil
}

func (m *MockClient) UpdateEvent(ctx context.Context, eventID string, ev Event) error {
	if m.FailAll {
		return fmt.Errorf("%w: mock failure", ErrExternal)
	}
	m.Updated = append(m.Updated, ev)
	return nil
}

func (m *MockClient) DeleteEvent(ctx context.Context, eventID string) error {
	if m.FailAll {
		return fmt.Errorf("%w: mock failure", ErrExternal)
	}
	m.Deleted = append(m.Deleted, eventID)
	return nil
}

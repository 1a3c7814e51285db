package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestHTTPClient_CreateEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/events" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("unexpected auth header: %s", got)
		}
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"event_id": "evt-42"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", 2*time.Second)
	id, err := c.CreateEvent(context.Background(), Event{
		AppointmentID: uuid.New(),
		Title:         "General Checkup",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "evt-42" {
		t.Errorf("expected evt-42, got %s", id)
	}
}

func TestHTTPClient_CreateEvent_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", 2*time.Second)
	_, err := c.CreateEvent(context.Background(), Event{AppointmentID: uuid.New()})
	if !errors.Is(err, ErrExternal) {
		t.Fatalf("expected ErrExternal, got %v", err)
	}
}

func TestMockClient_FailAll(t *testing.T) {
	m := &MockClient{FailAll: true}
	if _, err := m.CreateEvent(context.Background(), Event{}); !errors.Is(err, ErrExternal) {
		t.Fatalf("expected ErrExternal, got %v", err)
	}
	if len(m.Created) != 0 {
		t.Error("expected no recorded events on failure")
	}
}

package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/records"
)

func newTestServer(t *testing.T, hub *Hub, ownerID string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, ownerID)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != want {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.Clients(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDeliversEventsToOwner(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := newTestServer(t, hub, "user-1")
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	hub.Publish("user-1", records.Event{
		Action: records.ActionCreated,
		Kind:   records.KindEntry,
		ID:     "abc",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, payload, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var ev records.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Action != records.ActionCreated || ev.Kind != records.KindEntry || ev.ID != "abc" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestHubScopesEventsToOwner(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := newTestServer(t, hub, "user-1")
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	hub.Publish("user-2", records.Event{Action: records.ActionCreated, Kind: records.KindEntry, ID: "foreign"})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, _, err := conn.Read(ctx); err == nil {
		t.Fatal("received another user's event")
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := newTestServer(t, hub, "user-1")
	dial(t, srv)
	waitForClients(t, hub, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*3; i++ {
			hub.Publish("user-1", records.Event{Action: records.ActionUpdated, Kind: records.KindHabit, ID: "h"})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestHubUnsubscribesOnDisconnect(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := newTestServer(t, hub, "user-1")
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	conn.Close(websocket.StatusNormalClosure, "bye")
	waitForClients(t, hub, 0)
}

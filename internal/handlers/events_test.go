package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/events"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/records"
)

func waitForSubscribers(t *testing.T, hub *events.Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != want {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", hub.Clients(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signup(t, "live@example.com", "pw12345")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Browsers cannot set headers on a websocket, so the token rides the
	// query string.
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/events?token=" + token
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()
	waitForSubscribers(t, ts.hub, 1)

	resp := ts.do(t, "POST", "/api/entries", token, map[string]any{"title": "Live", "date": "2025-06-01"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var entry records.Entry
	decodeBody(t, resp, &entry)

	_, payload, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev struct {
		Action string        `json:"action"`
		Kind   string        `json:"kind"`
		ID     string        `json:"id"`
		Record records.Entry `json:"record"`
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Action != records.ActionCreated || ev.Kind != records.KindEntry || ev.ID != entry.ID {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Record.Title != "Live" {
		t.Fatalf("event record = %+v", ev.Record)
	}
}

func TestEventStreamRequiresToken(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "shy@example.com", "pw12345")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/api/events"
	conn, resp, err := websocket.Dial(ctx, url, nil)
	if err == nil {
		conn.CloseNow()
		t.Fatal("anonymous dial succeeded")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("handshake status = %d, want 401", resp.StatusCode)
	}
	if ts.hub.Clients() != 0 {
		t.Fatalf("subscribers = %d after rejected dial", ts.hub.Clients())
	}
}

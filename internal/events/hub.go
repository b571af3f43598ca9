// Package events fans record changes out to connected clients over
// websockets. Subscriptions are per user: a client only ever sees changes
// to its own records.
package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/records"
)

const (
	subscriberBuffer = 64
	writeTimeout     = 5 * time.Second
)

// Hub tracks connected clients by user and broadcasts change events to
// them. A slow client has events dropped rather than stalling the writers.
type Hub struct {
	log *zap.Logger

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch chan []byte
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:  log,
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// Publish sends a change event to every connection the owner has open.
// It never blocks: full subscriber buffers drop the event.
func (h *Hub) Publish(ownerID string, ev records.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("could not encode change event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[ownerID] {
		select {
		case sub.ch <- payload:
		default:
			h.log.Warn("dropping event for slow subscriber",
				zap.String("user", ownerID),
				zap.String("kind", ev.Kind))
		}
	}
}

// Clients reports the number of open subscriptions across all users.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, subs := range h.subs {
		n += len(subs)
	}
	return n
}

// Serve upgrades the request to a websocket and streams the owner's change
// events until the client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, ownerID string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	sub := h.subscribe(ownerID)
	defer h.unsubscribe(ownerID, sub)
	h.log.Info("event stream opened", zap.String("user", ownerID))

	// The client never sends application messages; CloseRead keeps control
	// frames flowing and cancels the context when the peer disconnects.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			h.log.Info("event stream closed", zap.String("user", ownerID))
			return
		case payload := <-sub.ch:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				h.log.Info("event stream write failed, dropping client",
					zap.String("user", ownerID),
					zap.Error(err))
				return
			}
		}
	}
}

func (h *Hub) subscribe(ownerID string) *subscriber {
	sub := &subscriber{ch: make(chan []byte, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[*subscriber]struct{})
	}
	h.subs[ownerID][sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(ownerID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[ownerID], sub)
	if len(h.subs[ownerID]) == 0 {
		delete(h.subs, ownerID)
	}
}

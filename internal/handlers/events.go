package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/events"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/middleware"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/records"
)

type EventsHandler struct {
	hub     *events.Hub
	entries *records.EntryService
	habits  *records.HabitService
	log     *zap.Logger
}

func NewEventsHandler(hub *events.Hub, entries *records.EntryService, habits *records.HabitService, log *zap.Logger) *EventsHandler {
	return &EventsHandler{hub: hub, entries: entries, habits: habits, log: log}
}

// Stream upgrades to a WebSocket and feeds the caller every change to
// their records until they hang up. The caller's listing snapshots are
// refreshed in the background on connect.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	go h.refresh(userID)
	h.hub.Serve(w, r, userID)
}

func (h *EventsHandler) refresh(ownerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.entries.Refresh(ctx, ownerID); err != nil {
		h.log.Warn("entry snapshot refresh failed", zap.Error(err))
	}
	if err := h.habits.Refresh(ctx, ownerID); err != nil {
		h.log.Warn("habit snapshot refresh failed", zap.Error(err))
	}
}

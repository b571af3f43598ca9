package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/docstore"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/events"
)

type HealthHandler struct {
	store docstore.Store
	hub   *events.Hub
	log   *zap.Logger
}

func NewHealthHandler(store docstore.Store, hub *events.Hub, log *zap.Logger) *HealthHandler {
	return &HealthHandler{store: store, hub: hub, log: log}
}

type healthResponse struct {
	Status      string         `json:"status"`
	Records     map[string]int `json:"records"`
	Subscribers int            `json:"subscribers"`
}

// Get answers 200 while the store is reachable, with document counts and
// the number of live event subscribers.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.log.Warn("health ping failed", zap.Error(err))
		http.Error(w, "store unreachable", http.StatusServiceUnavailable)
		return
	}

	resp := healthResponse{Status: "ok", Records: map[string]int{}, Subscribers: h.hub.Clients()}
	for _, c := range []string{docstore.Entries, docstore.Habits, docstore.HabitEntries} {
		n, err := h.store.Count(r.Context(), c)
		if err != nil {
			h.log.Warn("count failed", zap.String("collection", c), zap.Error(err))
			continue
		}
		resp.Records[c] = n
	}
	writeJSON(w, http.StatusOK, resp)
}

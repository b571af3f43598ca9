package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/middleware"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/records"
)

type SummaryHandler struct {
	habits *records.HabitService
	log    *zap.Logger
}

func NewSummaryHandler(habits *records.HabitService, log *zap.Logger) *SummaryHandler {
	return &SummaryHandler{habits: habits, log: log}
}

// Get reports per-habit hours for the day, week and month around the
// caller's "today". Accepts optional query param: local_date=YYYY-MM-DD.
func (h *SummaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	sum, err := h.habits.Summary(r.Context(), userID, r.URL.Query().Get("local_date"))
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

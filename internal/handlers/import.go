package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/middleware"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/records"
)

type ImportHandler struct {
	importer *records.Importer
	log      *zap.Logger
}

func NewImportHandler(importer *records.Importer, log *zap.Logger) *ImportHandler {
	return &ImportHandler{importer: importer, log: log}
}

// Import replays a legacy client export through the record services. Rows
// that fail validation are skipped and reported; any other failure aborts
// the run.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	var payload records.ImportPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	report, err := h.importer.Import(r.Context(), userID, payload)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

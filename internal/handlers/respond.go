package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/records"
)

// writeJSON sends v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeErr maps record service errors onto statuses. Anything that is not
// a validation or not-found problem is logged and answered as a plain 500.
func writeErr(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case records.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case records.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		log.Error("request failed", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

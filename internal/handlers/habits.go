package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/middleware"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/records"
)

type HabitHandler struct {
	habits *records.HabitService
	log    *zap.Logger
}

func NewHabitHandler(habits *records.HabitService, log *zap.Logger) *HabitHandler {
	return &HabitHandler{habits: habits, log: log}
}

func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	list, err := h.habits.List(r.Context(), userID)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *HabitHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	habit, err := h.habits.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	var input records.HabitInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	habit, err := h.habits.Create(r.Context(), userID, input)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, habit)
}

func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	var input records.HabitInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	habit, err := h.habits.Update(r.Context(), userID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

// Delete removes a habit and all of its entries. The habit only goes once
// every entry went; a failed cascade keeps it and answers 500.
func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	if err := h.habits.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil && !records.IsNotFound(err) {
		writeErr(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEntries returns a habit's logged days oldest first. Optional query
// params start_date and end_date bound the range.
func (h *HabitHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	q := r.URL.Query()
	list, err := h.habits.ListEntries(r.Context(), userID, chi.URLParam(r, "id"), records.DateRange{From: q.Get("start_date"), To: q.Get("end_date")})
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *HabitHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	var input records.HabitEntryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	entry, err := h.habits.CreateEntry(r.Context(), userID, chi.URLParam(r, "id"), input)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *HabitHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	var input records.HabitEntryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	entry, err := h.habits.UpdateEntry(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "entryID"), input)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *HabitHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	if err := h.habits.DeleteEntry(r.Context(), userID, chi.URLParam(r, "id"), chi.URLParam(r, "entryID")); err != nil && !records.IsNotFound(err) {
		writeErr(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

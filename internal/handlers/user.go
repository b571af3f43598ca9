package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/middleware"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/models"
)

type UserHandler struct {
	users models.UserStore
	log   *zap.Logger
}

func NewUserHandler(users models.UserStore, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

// GetMe returns the current user's profile
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	u, err := h.users.ByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.log.Error("profile fetch failed", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// UpdateMe updates provided fields on the current user's profile. An
// empty avatarUrl clears it.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	var body struct {
		DisplayName *string `json:"displayName"`
		AvatarURL   *string `json:"avatarUrl"`
		Password    *string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	patch := models.UserPatch{DisplayName: body.DisplayName, AvatarURL: body.AvatarURL}
	if body.Password != nil {
		if *body.Password == "" {
			http.Error(w, "password cannot be empty", http.StatusBadRequest)
			return
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*body.Password), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "could not hash password", http.StatusInternalServerError)
			return
		}
		hash := string(hashed)
		patch.PasswordHash = &hash
	}
	if patch == (models.UserPatch{}) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	u, err := h.users.Update(r.Context(), userID, patch)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.log.Error("profile update failed", zap.Error(err))
		http.Error(w, "could not update", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/SalithaMarasinghe/Pin-Potha/internal/models"
	"github.com/SalithaMarasinghe/Pin-Potha/internal/services"
)

// GoogleVerifier validates a Google ID token and returns the identity it
// attests. *services.GoogleVerifier implements it; tests plug in fakes.
type GoogleVerifier interface {
	Verify(ctx context.Context, rawToken string) (services.GoogleIdentity, error)
}

type AuthHandler struct {
	users     models.UserStore
	google    GoogleVerifier
	jwtSecret []byte
	log       *zap.Logger
}

// NewAuthHandler wires the auth endpoints. google may be nil when no
// client id is configured; the Google route then answers 501.
func NewAuthHandler(users models.UserStore, google GoogleVerifier, jwtSecret []byte, log *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, google: google, jwtSecret: jwtSecret, log: log}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	c.Email = strings.TrimSpace(strings.ToLower(c.Email))
	if c.Email == "" || c.Password == "" {
		http.Error(w, "email and password required", http.StatusBadRequest)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "could not hash password", http.StatusInternalServerError)
		return
	}

	hash := string(hashed)
	user := models.User{Email: c.Email, PasswordHash: &hash}
	if err := h.users.Create(r.Context(), &user); err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		h.log.Error("signup failed", zap.Error(err))
		http.Error(w, "could not create user", http.StatusInternalServerError)
		return
	}

	token, err := h.issueJWT(user.ID)
	if err != nil {
		http.Error(w, "could not issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	c.Email = strings.TrimSpace(strings.ToLower(c.Email))
	if c.Email == "" || c.Password == "" {
		http.Error(w, "email and password required", http.StatusBadRequest)
		return
	}

	user, err := h.users.ByEmail(r.Context(), c.Email)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.log.Error("login failed", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if !user.HasPassword() || bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(c.Password)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.issueJWT(user.ID)
	if err != nil {
		http.Error(w, "could not issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

type googleRequest struct {
	IDToken string `json:"idToken"`
}

// Google exchanges a verified Google ID token for a session token,
// creating or linking the account as needed.
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		http.Error(w, "google sign-in not configured", http.StatusNotImplemented)
		return
	}
	var req googleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	ident, err := h.google.Verify(r.Context(), req.IDToken)
	if err != nil {
		http.Error(w, "invalid google token", http.StatusUnauthorized)
		return
	}

	user, err := h.googleUser(r.Context(), ident)
	if err != nil {
		h.log.Error("google sign-in failed", zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	token, err := h.issueJWT(user.ID)
	if err != nil {
		http.Error(w, "could not issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

// googleUser resolves the account for a verified identity: by subject
// first, then by linking the subject onto an existing email account, then
// by creating a fresh account.
func (h *AuthHandler) googleUser(ctx context.Context, ident services.GoogleIdentity) (models.User, error) {
	user, err := h.users.ByGoogleSub(ctx, ident.Sub)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return models.User{}, err
	}

	user, err = h.users.ByEmail(ctx, ident.Email)
	if err == nil {
		return h.users.Update(ctx, user.ID, models.UserPatch{GoogleSub: &ident.Sub})
	}
	if !errors.Is(err, models.ErrUserNotFound) {
		return models.User{}, err
	}

	user = models.User{Email: ident.Email, GoogleSub: &ident.Sub, DisplayName: ident.Name}
	if ident.Picture != "" {
		user.AvatarURL = &ident.Picture
	}
	if err := h.users.Create(ctx, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (h *AuthHandler) issueJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

package models

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemUserStore is the in-memory UserStore.
type MemUserStore struct {
	mu      sync.RWMutex
	users   map[string]User
	byEmail map[string]string
}

func NewMemUserStore() *MemUserStore {
	return &MemUserStore{
		users:   make(map[string]User),
		byEmail: make(map[string]string),
	}
}

func (s *MemUserStore) Create(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, taken := s.byEmail[email]; taken {
		return ErrEmailTaken
	}

	u.ID = uuid.NewString()
	u.Email = email
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = *u
	s.byEmail[email] = u.ID
	return nil
}

func (s *MemUserStore) ByID(ctx context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *MemUserStore) ByEmail(ctx context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *MemUserStore) ByGoogleSub(ctx context.Context, sub string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.GoogleSub != nil && *u.GoogleSub == sub {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (s *MemUserStore) Update(ctx context.Context, id string, patch UserPatch) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	if patch.DisplayName != nil {
		u.DisplayName = *patch.DisplayName
	}
	if patch.AvatarURL != nil {
		if *patch.AvatarURL == "" {
			u.AvatarURL = nil
		} else {
			v := *patch.AvatarURL
			u.AvatarURL = &v
		}
	}
	if patch.PasswordHash != nil {
		v := *patch.PasswordHash
		u.PasswordHash = &v
	}
	if patch.GoogleSub != nil {
		v := *patch.GoogleSub
		u.GoogleSub = &v
	}
	u.UpdatedAt = time.Now().UTC()

	s.users[id] = u
	return u, nil
}

package models

import "time"

type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash *string   `db:"password_hash" json:"-"`
	DisplayName  string    `db:"display_name" json:"displayName"`
	AvatarURL    *string   `db:"avatar_url" json:"avatarUrl,omitempty"`
	GoogleSub    *string   `db:"google_sub" json:"-"`
	// EmailBlindIndex is the HMAC digest rows are matched by when emails
	// are stored encrypted. Empty when the store runs in plaintext mode.
	EmailBlindIndex string    `db:"email_blind_index" json:"-"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// HasPassword reports whether the account can sign in with a password.
// Accounts created through Google sign-in may not have one.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

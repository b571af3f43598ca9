package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// UserPatch updates a subset of a user's fields. Nil pointers are left
// untouched; an empty-string AvatarURL clears it.
type UserPatch struct {
	DisplayName  *string
	AvatarURL    *string
	PasswordHash *string
	GoogleSub    *string
}

// UserStore persists accounts. Two implementations exist: Postgres for
// production and an in-memory store for tests and database-less dev runs.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	ByID(ctx context.Context, id string) (User, error)
	ByEmail(ctx context.Context, email string) (User, error)
	ByGoogleSub(ctx context.Context, sub string) (User, error)
	Update(ctx context.Context, id string, patch UserPatch) (User, error)
}

// EmailCodec seals emails at rest and derives the digest rows are looked
// up by. A nil codec stores plaintext.
type EmailCodec interface {
	SealEmail(email string) (sealed, digest string, err error)
	OpenEmail(sealed string) (string, error)
	EmailDigest(email string) string
}

// PGUserStore is the Postgres UserStore.
type PGUserStore struct {
	db    *sqlx.DB
	codec EmailCodec
}

func NewPGUserStore(db *sqlx.DB, codec EmailCodec) *PGUserStore {
	return &PGUserStore{db: db, codec: codec}
}

// Create inserts the user, assigning the id and timestamps on u in place.
// u.Email keeps the plaintext; only the stored column is sealed.
func (s *PGUserStore) Create(ctx context.Context, u *User) error {
	u.ID = uuid.NewString()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	stored, digest := u.Email, ""
	if s.codec != nil {
		var err error
		stored, digest, err = s.codec.SealEmail(u.Email)
		if err != nil {
			return fmt.Errorf("seal email: %w", err)
		}
	}
	u.EmailBlindIndex = digest

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, avatar_url, google_sub, email_blind_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, u.ID, stored, u.PasswordHash, u.DisplayName, u.AvatarURL, u.GoogleSub, digest).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PGUserStore) ByID(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	return s.opened(u)
}

func (s *PGUserStore) ByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	query, key := `SELECT * FROM users WHERE email = $1`, email
	if s.codec != nil {
		query, key = `SELECT * FROM users WHERE email_blind_index = $1`,
			s.codec.EmailDigest(email)
	}

	var u User
	err := s.db.GetContext(ctx, &u, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("load user by email: %w", err)
	}
	return s.opened(u)
}

func (s *PGUserStore) ByGoogleSub(ctx context.Context, sub string) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE google_sub = $1`, sub)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("load user by google sub: %w", err)
	}
	return s.opened(u)
}

// Update applies the patch with a dynamically built SET clause so only the
// named columns are touched.
func (s *PGUserStore) Update(ctx context.Context, id string, patch UserPatch) (User, error) {
	set := []string{"updated_at = NOW()"}
	args := []interface{}{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.DisplayName != nil {
		add("display_name", *patch.DisplayName)
	}
	if patch.AvatarURL != nil {
		if *patch.AvatarURL == "" {
			set = append(set, "avatar_url = NULL")
		} else {
			add("avatar_url", *patch.AvatarURL)
		}
	}
	if patch.PasswordHash != nil {
		add("password_hash", *patch.PasswordHash)
	}
	if patch.GoogleSub != nil {
		add("google_sub", *patch.GoogleSub)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING *`,
		strings.Join(set, ", "), len(args))

	var u User
	err := s.db.GetContext(ctx, &u, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return s.opened(u)
}

// opened decrypts the email column on rows read back from the database.
// Rows written before encryption was enabled hold plaintext and pass
// through unchanged.
func (s *PGUserStore) opened(u User) (User, error) {
	if s.codec == nil {
		return u, nil
	}
	email, err := s.codec.OpenEmail(u.Email)
	if err != nil {
		return User{}, fmt.Errorf("open email: %w", err)
	}
	u.Email = email
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

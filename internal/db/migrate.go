package db

import (
	"context"

	"github.com/jmoiron/sqlx"
)

func RunMigrations(db *sqlx.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT UNIQUE NOT NULL,
    password_hash TEXT,
    display_name TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    doc JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_owner
    ON documents (collection, owner_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_documents_date
    ON documents (collection, owner_id, (doc->>'date'));

CREATE INDEX IF NOT EXISTS idx_documents_habit
    ON documents (collection, owner_id, (doc->>'habitId'));
`
	_, err := db.ExecContext(context.Background(), schema)
	if err != nil {
		return err
	}

	alters := `
DO $$ BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns WHERE table_name='users' AND column_name='avatar_url'
    ) THEN
        ALTER TABLE users ADD COLUMN avatar_url TEXT;
    END IF;
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns WHERE table_name='users' AND column_name='google_sub'
    ) THEN
        ALTER TABLE users ADD COLUMN google_sub TEXT UNIQUE;
    END IF;
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns WHERE table_name='users' AND column_name='email_blind_index'
    ) THEN
        ALTER TABLE users ADD COLUMN email_blind_index TEXT NOT NULL DEFAULT '';
    END IF;
END $$;

-- Sealed emails are nondeterministic, so uniqueness under encryption is
-- enforced on the digest. Plaintext rows keep an empty digest and are
-- covered by the unique constraint on email itself.
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_blind_index
    ON users (email_blind_index) WHERE email_blind_index <> '';`
	_, err = db.ExecContext(context.Background(), alters)
	return err
}

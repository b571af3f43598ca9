package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Postgres stores every document in a single JSONB table. Identity,
// ownership and timestamps live in dedicated columns; everything else is
// the doc payload. Partial updates ride on JSONB concatenation so a patch
// touches only the fields it names.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an already-open database handle. The caller owns
// migrations; Close closes the handle.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Insert(ctx context.Context, collection, ownerID string, doc Document) (Document, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}

	id := uuid.NewString()
	var createdAt, updatedAt time.Time
	err = p.db.QueryRowContext(ctx, `
		INSERT INTO documents (collection, id, owner_id, doc)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, collection, id, ownerID, payload).Scan(&createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	stored := doc.Clone()
	stored["id"] = id
	stored["createdAt"] = createdAt
	stored["updatedAt"] = updatedAt
	return stored, nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	var (
		payload              []byte
		createdAt, updatedAt time.Time
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT doc, created_at, updated_at FROM documents
		WHERE collection = $1 AND id = $2
	`, collection, id).Scan(&payload, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return decodeDoc(payload, id, createdAt, updatedAt)
}

func (p *Postgres) Update(ctx context.Context, collection, id string, fields Document) (Document, error) {
	if fields == nil {
		fields = Document{}
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal patch: %w", err)
	}

	var (
		payload              []byte
		createdAt, updatedAt time.Time
	)
	err = p.db.QueryRowContext(ctx, `
		UPDATE documents
		SET doc = doc || $3, updated_at = NOW()
		WHERE collection = $1 AND id = $2
		RETURNING doc, created_at, updated_at
	`, collection, id, patch).Scan(&payload, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}
	return decodeDoc(payload, id, createdAt, updatedAt)
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	res, err := p.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = $1 AND id = $2
	`, collection, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Query(ctx context.Context, q Query) ([]Document, error) {
	query := `
		SELECT id, doc, created_at, updated_at FROM documents
		WHERE collection = $1 AND owner_id = $2`
	args := []interface{}{q.Collection, q.OwnerID}

	for field, want := range q.Equals {
		args = append(args, field)
		query += fmt.Sprintf(" AND doc->>$%d", len(args))
		args = append(args, want)
		query += fmt.Sprintf(" = $%d", len(args))
	}
	if q.DateFrom != "" {
		args = append(args, q.DateFrom)
		query += fmt.Sprintf(" AND doc->>'date' >= $%d", len(args))
	}
	if q.DateTo != "" {
		args = append(args, q.DateTo)
		query += fmt.Sprintf(" AND doc->>'date' <= $%d", len(args))
	}

	switch q.Order {
	case OrderDateAsc:
		query += " ORDER BY doc->>'date' ASC, created_at ASC"
	default:
		query += " ORDER BY created_at DESC, id DESC"
	}
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var (
			id                   string
			payload              []byte
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&id, &payload, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := decodeDoc(payload, id, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (p *Postgres) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents WHERE collection = $1
	`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func decodeDoc(payload []byte, id string, createdAt, updatedAt time.Time) (Document, error) {
	doc := Document{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	doc["id"] = id
	doc["createdAt"] = createdAt
	doc["updatedAt"] = updatedAt
	return doc, nil
}

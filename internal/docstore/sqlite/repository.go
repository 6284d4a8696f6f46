// Package sqlite persists docstore collections in a single SQLite
// database. Field maps are stored as JSON bodies; predicates are
// evaluated in Go after scanning the collection, which is plenty for the
// month-sized result sets this application works with.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"budgetplanner/internal/docstore"
)

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

var _ docstore.Store = (*Repository)(nil)

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, now: time.Now}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Query scans the collection in insertion order and applies the
// predicates in Go.
func (r *Repository) Query(ctx context.Context, collection string, filters []docstore.Where) ([]docstore.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, body FROM documents WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collection, err)
	}
	defer rows.Close()

	var out []docstore.Document
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		fields, err := decodeFields(body)
		if err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
		doc := docstore.Document{ID: id, Fields: fields}
		matched := true
		for _, w := range filters {
			ok, err := docstore.Matches(doc, w)
			if err != nil {
				return nil, err
			}
			if !ok {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, doc)
		}
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var body string
	err := r.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("load document %s: %w", id, err)
	}
	fields, err := decodeFields(body)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("decode document %s: %w", id, err)
	}
	return docstore.Document{ID: id, Fields: fields}, nil
}

func (r *Repository) Insert(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	id := uuid.NewString()
	body, err := encodeFields(docstore.ResolveTimestamps(fields, r.now()))
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO documents (id, collection, body, seq)
		 VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM documents WHERE collection = ?))`,
		id, collection, body, collection)
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}

	slog.DebugContext(ctx, "document inserted", "collection", collection, "id", id)
	return id, nil
}

func (r *Repository) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	var body string
	err := r.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load document %s: %w", id, err)
	}

	existing, err := decodeFields(body)
	if err != nil {
		return fmt.Errorf("decode document %s: %w", id, err)
	}
	for k, v := range docstore.ResolveTimestamps(fields, r.now()) {
		existing[k] = v
	}
	merged, err := encodeFields(existing)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", id, err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE documents SET body = ? WHERE collection = ? AND id = ?`, merged, collection, id)
	if err != nil {
		return fmt.Errorf("update document %s: %w", id, err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, collection, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// JSON cannot round-trip time.Time typed values through `any`, so time
// fields are wrapped in a one-key object on the way in and unwrapped on
// the way out.
const timeKey = "$time"

func encodeFields(fields docstore.Fields) (string, error) {
	wrapped := make(map[string]any, len(fields))
	for k, v := range fields {
		if t, ok := v.(time.Time); ok {
			wrapped[k] = map[string]string{timeKey: t.UTC().Format(time.RFC3339Nano)}
			continue
		}
		wrapped[k] = v
	}
	b, err := json.Marshal(wrapped)
	return string(b), err
}

func decodeFields(body string) (docstore.Fields, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, err
	}
	fields := make(docstore.Fields, len(raw))
	for k, v := range raw {
		if obj, ok := v.(map[string]any); ok && len(obj) == 1 {
			if ts, ok := obj[timeKey].(string); ok {
				t, err := time.Parse(time.RFC3339Nano, ts)
				if err != nil {
					return nil, err
				}
				fields[k] = t
				continue
			}
		}
		fields[k] = v
	}
	return fields, nil
}

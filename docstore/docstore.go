// Package docstore reads and writes the local replica of the replicated
// document store.
//
// Peers replicate documents independently; this package only ever touches
// the local SQL replica and gives no ordering guarantee relative to
// writers on other peers.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veldt/lens/errors"
	"github.com/veldt/lens/projection"
)

// DefaultListLimit caps List when the caller does not choose a limit.
const DefaultListLimit = 200

// ListOptions shape a List call.
type ListOptions struct {
	// Limit caps the number of rows returned; 0 means DefaultListLimit.
	Limit int
	// NewestFirst returns rows in descending creation order.
	NewestFirst bool
}

// Store reads and writes documents on the local replica.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewStore creates a document store.
// If logger is nil the store operates silently.
func NewStore(db *sql.DB, logger *zap.SugaredLogger) *Store {
	return &Store{db: db, logger: logger}
}

// Put persists a document under a schema and returns its assigned ID.
func (s *Store) Put(ctx context.Context, schemaID string, body json.RawMessage) (string, error) {
	if schemaID == "" {
		return "", errors.NewInvalidRequestError("schema id is required")
	}
	if !json.Valid(body) {
		return "", errors.NewInvalidRequestError("document body is not valid JSON")
	}

	id := "DOC" + uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, schema_id, body, created_at) VALUES (?, ?, ?, ?)`,
		id, schemaID, string(body), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		err = errors.Wrapf(err, "failed to put document %s", id)
		err = errors.WithDetailf(err, "Schema: %s", schemaID)
		return "", err
	}

	if s.logger != nil {
		s.logger.Debugw("Document stored",
			"doc_id", id,
			"schema_id", schemaID,
			"size", len(body),
		)
	}
	return id, nil
}

// List returns a schema's documents as projection rows with only the
// original value populated.
func (s *Store) List(ctx context.Context, schemaID string, opts ListOptions) ([]projection.Row, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	order := "ASC"
	if opts.NewestFirst {
		order = "DESC"
	}

	query := `SELECT id, body, created_at FROM documents WHERE schema_id = ? ORDER BY created_at ` + order + ` LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, schemaID, limit)
	if err != nil {
		err = errors.Wrap(err, "failed to list documents")
		err = errors.WithDetailf(err, "Schema: %s", schemaID)
		return nil, err
	}
	defer rows.Close()

	var out []projection.Row
	for rows.Next() {
		var id, body, createdAt string
		if err := rows.Scan(&id, &body, &createdAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan document")
		}
		t, _ := time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, projection.Row{
			ID:       id,
			Time:     t,
			Original: json.RawMessage(body),
		})
	}
	return out, rows.Err()
}

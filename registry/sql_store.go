package registry

import (
	"context"
	"database/sql"
	"time"

	"github.com/veldt/lens/errors"
)

const definitionColumns = "id, schema_id, name, expression, list_view, created_at, updated_at"

// SQLStore implements Store over the local SQL replica of the query store.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a SQL-backed query store.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Insert persists a new definition.
func (s *SQLStore) Insert(ctx context.Context, def *QueryDefinition) error {
	query := `
		INSERT INTO queries (` + definitionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		def.ID, def.SchemaID, def.Name, def.Expression, def.ListView,
		def.CreatedAt.Format(time.RFC3339Nano),
		def.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		err = errors.Wrapf(err, "failed to insert query definition %s", def.ID)
		err = errors.WithDetailf(err, "Schema: %s", def.SchemaID)
		return err
	}
	return nil
}

// Get returns one definition by ID.
func (s *SQLStore) Get(ctx context.Context, id string) (*QueryDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM queries WHERE id = ?`

	def, err := scanDefinition(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("query definition %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get query definition %s", id)
	}
	return def, nil
}

// Update fully overwrites an existing definition.
func (s *SQLStore) Update(ctx context.Context, def *QueryDefinition) error {
	query := `
		UPDATE queries
		SET name = ?, expression = ?, list_view = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		def.Name, def.Expression, def.ListView,
		def.UpdatedAt.Format(time.RFC3339Nano),
		def.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update query definition %s", def.ID)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to update query definition %s", def.ID)
	}
	if affected == 0 {
		return errors.NewNotFoundError("query definition %s not found", def.ID)
	}
	return nil
}

// Delete removes a definition.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM queries WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete query definition %s", id)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to delete query definition %s", id)
	}
	if affected == 0 {
		return errors.NewNotFoundError("query definition %s not found", id)
	}
	return nil
}

// List returns all definitions owned by a schema.
func (s *SQLStore) List(ctx context.Context, schemaID string) ([]*QueryDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM queries WHERE schema_id = ? ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, schemaID)
	if err != nil {
		err = errors.Wrap(err, "failed to list query definitions")
		err = errors.WithDetailf(err, "Schema: %s", schemaID)
		return nil, err
	}
	defer rows.Close()

	var defs []*QueryDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan query definition")
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDefinition(row rowScanner) (*QueryDefinition, error) {
	var def QueryDefinition
	var createdAt, updatedAt string

	err := row.Scan(
		&def.ID, &def.SchemaID, &def.Name, &def.Expression, &def.ListView,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	def.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	def.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &def, nil
}

// Ensure SQLStore implements the interface
var _ Store = (*SQLStore)(nil)

// Package registry persists named list-view expressions per logical
// schema and maintains the soft "at most one active list view" invariant.
//
// The backing store is a replicated log with independent writers: two
// peers can each observe "no conflict" and both flag a query, producing a
// transient multi-flag state. The registry never prevents that — it
// resolves it on read, deterministically, and surfaces a warning.
package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veldt/lens/errors"
	"github.com/veldt/lens/pattern"
)

// QueryDefinition is a named expression owned by one schema.
type QueryDefinition struct {
	ID         string    `db:"id" json:"id"` // QDID: QD + UUID
	SchemaID   string    `db:"schema_id" json:"schema_id"`
	Name       string    `db:"name" json:"name"`
	Expression string    `db:"expression" json:"expression"`
	ListView   bool      `db:"list_view" json:"list_view"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// NewQueryID generates a registry-assigned query identifier.
func NewQueryID() string {
	return "QD" + uuid.New().String()
}

// Store is the backing query store. It is replicated and multi-writer:
// calls give no ordering guarantee relative to writers on other peers,
// and implementations expose no cross-peer mutual exclusion. Store
// failures are wrapped and propagated; no retry policy lives here.
type Store interface {
	// Insert persists a new definition.
	Insert(ctx context.Context, def *QueryDefinition) error
	// Get returns one definition by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*QueryDefinition, error)
	// Update fully overwrites an existing definition, or ErrNotFound.
	Update(ctx context.Context, def *QueryDefinition) error
	// Delete removes a definition, or ErrNotFound.
	Delete(ctx context.Context, id string) error
	// List returns all definitions owned by a schema, in no guaranteed order.
	List(ctx context.Context, schemaID string) ([]*QueryDefinition, error)
}

// Registry exposes CRUD over persisted query definitions plus the
// list-view exclusivity protocol.
type Registry struct {
	store  Store
	logger *zap.SugaredLogger
}

// New creates a registry over a backing store.
// If logger is nil the registry operates silently.
func New(store Store, logger *zap.SugaredLogger) *Registry {
	return &Registry{store: store, logger: logger}
}

// Add persists a new named expression and returns its assigned ID.
func (r *Registry) Add(ctx context.Context, schemaID, name, expression string, listView bool) (string, error) {
	if schemaID == "" {
		return "", errors.NewInvalidRequestError("schema id is required")
	}
	if name == "" {
		return "", errors.NewInvalidRequestError("query name is required")
	}

	now := time.Now().UTC()
	def := &QueryDefinition{
		ID:         NewQueryID(),
		SchemaID:   schemaID,
		Name:       name,
		Expression: expression,
		ListView:   listView,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.store.Insert(ctx, def); err != nil {
		return "", errors.Wrap(err, "failed to add query definition")
	}
	return def.ID, nil
}

// Update fully replaces a definition's name, expression, and list-view
// flag. Schema ownership never changes. Returns ErrNotFound when the ID
// does not exist.
func (r *Registry) Update(ctx context.Context, id, name, expression string, listView bool) error {
	if name == "" {
		return errors.NewInvalidRequestError("query name is required")
	}
	def, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	def.Name = name
	def.Expression = expression
	def.ListView = listView
	def.UpdatedAt = time.Now().UTC()
	return r.store.Update(ctx, def)
}

// Remove deletes a definition. Returns ErrNotFound when the ID does not
// exist.
func (r *Registry) Remove(ctx context.Context, id string) error {
	return r.store.Delete(ctx, id)
}

// List returns all definitions owned by a schema.
func (r *Registry) List(ctx context.Context, schemaID string) ([]*QueryDefinition, error) {
	return r.store.List(ctx, schemaID)
}

// GetListViewQuery returns the schema's active list-view definition, or
// nil when none is flagged.
//
// When independent writers have flagged more than one definition, the
// lexicographically smallest ID wins. The rule is stable and independent
// of storage iteration order, so every peer resolves the same winner; the
// discarded duplicates are named in a warning, never an error.
func (r *Registry) GetListViewQuery(ctx context.Context, schemaID string) (*QueryDefinition, error) {
	defs, err := r.store.List(ctx, schemaID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read list view query")
	}

	var flagged []*QueryDefinition
	for _, def := range defs {
		if def.ListView {
			flagged = append(flagged, def)
		}
	}
	if len(flagged) == 0 {
		return nil, nil
	}

	sort.Slice(flagged, func(i, j int) bool { return flagged[i].ID < flagged[j].ID })

	if len(flagged) > 1 {
		discarded := make([]string, 0, len(flagged)-1)
		for _, def := range flagged[1:] {
			discarded = append(discarded, def.ID)
		}
		if r.logger != nil {
			r.logger.Warnw("Multiple queries flagged as list view for schema",
				"schema_id", schemaID,
				"selected", flagged[0].ID,
				"discarded", discarded,
			)
		}
	}

	return flagged[0], nil
}

// ConfirmFunc asks the operator to approve a step of the set-as-list-view
// protocol. Returning false aborts the step.
type ConfirmFunc func(prompt string) bool

// SetListViewOptions configures the set-as-list-view protocol.
type SetListViewOptions struct {
	// Confirm approves steps that need explicit operator sign-off:
	// flagging an expression that failed classification, and replacing a
	// different definition's flag. Nil declines both.
	Confirm ConfirmFunc
}

func (o SetListViewOptions) confirm(prompt string) bool {
	if o.Confirm == nil {
		return false
	}
	return o.Confirm(prompt)
}

// SetListView makes queryID the schema's list view.
//
// The protocol is client-side and non-atomic: clearing the previous
// holder and flagging the candidate are two independent writes against a
// concurrently-writable store. A crash or a race between them can leave
// zero or multiple flagged definitions — readers must re-derive truth
// through GetListViewQuery rather than caching the flag.
func (r *Registry) SetListView(ctx context.Context, schemaID, queryID string, opts SetListViewOptions) error {
	defs, err := r.store.List(ctx, schemaID)
	if err != nil {
		return errors.Wrap(err, "failed to read query definitions")
	}

	var candidate *QueryDefinition
	for _, def := range defs {
		if def.ID == queryID {
			candidate = def
			break
		}
	}
	if candidate == nil {
		return errors.NewNotFoundError("query %s not found for schema %s", queryID, schemaID)
	}

	if res := pattern.Classify(candidate.Expression); !res.Valid {
		prompt := fmt.Sprintf("Expression is not a valid list view (%s). Set it anyway?", res.Reason)
		if !opts.confirm(prompt) {
			return errors.Wrap(errors.ErrDeclined, "expression failed classification")
		}
	}

	current, err := r.GetListViewQuery(ctx, schemaID)
	if err != nil {
		return err
	}
	if current != nil && current.ID == candidate.ID {
		return nil // already the active list view
	}

	now := time.Now().UTC()
	if current != nil {
		prompt := fmt.Sprintf("%q is already the list view for this schema. Replace it?", current.Name)
		if !opts.confirm(prompt) {
			return errors.Wrap(errors.ErrDeclined, "list view already assigned")
		}
		current.ListView = false
		current.UpdatedAt = now
		if err := r.store.Update(ctx, current); err != nil {
			return errors.Wrap(err, "failed to clear previous list view")
		}
	}

	candidate.ListView = true
	candidate.UpdatedAt = now
	if err := r.store.Update(ctx, candidate); err != nil {
		return errors.Wrap(err, "failed to set list view")
	}

	if r.logger != nil {
		r.logger.Infow("List view assigned",
			"schema_id", schemaID,
			"query_id", candidate.ID,
			"query_name", candidate.Name,
		)
	}
	return nil
}

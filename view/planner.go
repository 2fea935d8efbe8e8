// Package view composes the list-view pipeline: registry lookup,
// expression classification, batch projection, and consistency scoring.
//
// The output is a Plan — everything a presentation layer needs to decide
// between a table and fallback rendering. Rendering itself happens
// elsewhere; callers substitute their own placeholder wherever a row's
// Projected value is nil.
package view

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/veldt/lens/consistency"
	"github.com/veldt/lens/docstore"
	"github.com/veldt/lens/pattern"
	"github.com/veldt/lens/projection"
	"github.com/veldt/lens/registry"
	"github.com/veldt/lens/session"
)

// Source names which value of each row the consistency verdict scored.
type Source string

const (
	// SourceProjected means projected values were scored.
	SourceProjected Source = "projected"
	// SourceOriginal means original documents were scored.
	SourceOriginal Source = "original"
)

// Plan is the full input for rendering one schema's rows.
type Plan struct {
	// Query is the stored definition that drove the plan, nil for ad-hoc
	// expressions or schemas without a list view.
	Query *registry.QueryDefinition
	// Classification of the driving expression. Invalid when no
	// expression was available.
	Classification pattern.Result
	// Rows in input order, projected where possible.
	Rows []projection.Row
	// Consistency is the showability verdict for Source values.
	Consistency consistency.Result
	// Source is which value of the rows was scored.
	Source Source
}

// DocumentLister reads the rows a plan renders.
type DocumentLister interface {
	List(ctx context.Context, schemaID string, opts docstore.ListOptions) ([]projection.Row, error)
}

// Planner builds rendering plans for schemas.
type Planner struct {
	docs      DocumentLister
	registry  *registry.Registry
	projector *projection.Projector
	logger    *zap.SugaredLogger
}

// NewPlanner creates a planner.
// If logger is nil the planner operates silently.
func NewPlanner(docs DocumentLister, reg *registry.Registry, projector *projection.Projector, logger *zap.SugaredLogger) *Planner {
	return &Planner{
		docs:      docs,
		registry:  reg,
		projector: projector,
		logger:    logger,
	}
}

// Plan builds the automatic plan for a schema: its active list-view
// query, re-derived from the registry on every call, drives projection
// and scoring. Without a usable query the original documents are scored
// instead.
func (p *Planner) Plan(ctx context.Context, schemaID string, opts docstore.ListOptions) (*Plan, error) {
	rows, err := p.docs.List(ctx, schemaID, opts)
	if err != nil {
		return nil, err
	}

	def, err := p.registry.GetListViewQuery(ctx, schemaID)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return p.originalPlan(nil, pattern.Result{Kind: pattern.KindInvalid, Reason: "no list view query assigned"}, rows), nil
	}

	res := pattern.Classify(def.Expression)
	if !res.Valid {
		if p.logger != nil {
			p.logger.Warnw("Stored list view expression is invalid",
				"schema_id", schemaID,
				"query_id", def.ID,
				"reason", res.Reason,
			)
		}
		return p.originalPlan(def, res, rows), nil
	}

	projected, err := p.projector.ProjectAll(ctx, rows, res)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Query:          def,
		Classification: res,
		Rows:           projected,
		Consistency:    consistency.Analyze(projected, consistency.SelectProjected),
		Source:         SourceProjected,
	}, nil
}

// PlanExpression builds a plan for an ad-hoc expression. An empty text
// falls back to the session's last entered expression, when one exists.
func (p *Planner) PlanExpression(ctx context.Context, schemaID, text string, opts docstore.ListOptions) (*Plan, error) {
	if strings.TrimSpace(text) == "" {
		if last, ok := session.Expression(ctx); ok {
			text = last
		}
	}

	rows, err := p.docs.List(ctx, schemaID, opts)
	if err != nil {
		return nil, err
	}

	res := pattern.Classify(text)
	if !res.Valid {
		return p.originalPlan(nil, res, rows), nil
	}

	projected, err := p.projector.ProjectAll(ctx, rows, res)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Classification: res,
		Rows:           projected,
		Consistency:    consistency.Analyze(projected, consistency.SelectProjected),
		Source:         SourceProjected,
	}, nil
}

func (p *Planner) originalPlan(def *registry.QueryDefinition, res pattern.Result, rows []projection.Row) *Plan {
	return &Plan{
		Query:          def,
		Classification: res,
		Rows:           rows,
		Consistency:    consistency.Analyze(rows, consistency.SelectOriginal),
		Source:         SourceOriginal,
	}
}

package projection

import (
	"bytes"
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/veldt/lens/errors"
	"github.com/veldt/lens/pattern"
)

// DefaultParallelism bounds how many documents a batch projection
// evaluates concurrently.
const DefaultParallelism = 4

// Projector applies a classified expression across batches of documents.
type Projector struct {
	eval        Evaluator
	parallelism int
	logger      *zap.SugaredLogger
}

// NewProjector creates a projector with the default parallelism.
// If logger is nil the projector operates silently.
func NewProjector(eval Evaluator, logger *zap.SugaredLogger) *Projector {
	return NewProjectorWithParallelism(eval, logger, DefaultParallelism)
}

// NewProjectorWithParallelism creates a projector with a caller-chosen
// concurrency bound. Values below 1 fall back to sequential evaluation.
func NewProjectorWithParallelism(eval Evaluator, logger *zap.SugaredLogger, parallelism int) *Projector {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Projector{
		eval:        eval,
		parallelism: parallelism,
		logger:      logger,
	}
}

// Project evaluates a single ad-hoc expression against one document and
// returns the projected value re-encoded as JSON.
func (p *Projector) Project(doc json.RawMessage, expression string) (json.RawMessage, error) {
	val, err := p.eval.Evaluate(doc, expression)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(val)
	if err != nil {
		return nil, &EvalError{Expression: expression, Err: err}
	}
	return out, nil
}

// ProjectAll applies a classified expression to every row. Documents are
// independent, so evaluation runs in parallel up to the configured bound,
// but the result sequence always preserves input order.
//
// Per-document failures are isolated: a failing row comes back with
// Projected nil and Original intact, and the batch continues. Context
// cancellation is the one exception — it aborts the batch and the
// ctx error is propagated to the caller.
func (p *Projector) ProjectAll(ctx context.Context, rows []Row, res pattern.Result) ([]Row, error) {
	if !res.Valid {
		return nil, errors.Wrap(errors.ErrInvalidRequest, "cannot project an invalid list view expression")
	}

	out := make([]Row, len(rows))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)

	for i, row := range rows {
		i, row := i, row
		out[i] = Row{ID: row.ID, Time: row.Time, Original: row.Original}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			projected, err := p.projectRow(row.Original, res)
			if err != nil {
				if p.logger != nil {
					p.logger.Debugw("Projection failed for document",
						"doc_id", row.ID,
						"error", err,
					)
				}
				return nil // row keeps Projected nil; batch continues
			}
			out[i].Projected = projected
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// projectRow builds the projected object for one document, evaluating one
// engine expression per column and assembling the JSON object in column
// order. Any column failing fails the whole row.
func (p *Projector) projectRow(doc json.RawMessage, res pattern.Result) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range res.Columns {
		val, err := p.eval.Evaluate(doc, col.Expression)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(val)
		if err != nil {
			return nil, &EvalError{Expression: col.Expression, Err: err}
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col.Key)
		if err != nil {
			return nil, &EvalError{Expression: col.Expression, Err: err}
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return json.RawMessage(buf.Bytes()), nil
}

// Package projection applies list-view expressions to JSON documents.
//
// Expression evaluation is delegated to the JMESPath engine behind the
// Evaluator interface. Documents and projections travel as json.RawMessage
// so the top-level key order of a projected object survives intact.
package projection

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmespath/go-jmespath"

	"github.com/veldt/lens/errors"
)

// Row is one document flowing through the projection pipeline.
type Row struct {
	ID        string          `json:"id"`
	Time      time.Time       `json:"time"`
	Projected json.RawMessage `json:"projected,omitempty"` // nil when evaluation failed
	Original  json.RawMessage `json:"original"`            // always retained
}

// EvalError records the rejection of one document by the expression
// engine. It is isolated to that document and never aborts a batch.
type EvalError struct {
	Expression string
	Err        error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("expression %q failed to evaluate: %v", e.Expression, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// Evaluator evaluates one expression against one JSON document.
// Implementations must return an error rather than panic on malformed
// expressions.
type Evaluator interface {
	Evaluate(doc json.RawMessage, expression string) (interface{}, error)
}

// JMESPathEvaluator evaluates expressions with the JMESPath engine.
// The supported list-view shapes (multiselect hashes, dotted property
// paths) are JMESPath grammar.
type JMESPathEvaluator struct{}

// Evaluate decodes doc and searches it with the expression. Engine
// rejections and parser panics both come back as *EvalError.
func (JMESPathEvaluator) Evaluate(doc json.RawMessage, expression string) (result interface{}, err error) {
	// The jmespath parser panics on some malformed expressions instead of
	// returning an error; contain those here.
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &EvalError{Expression: expression, Err: errors.Newf("expression engine panic: %v", r)}
		}
	}()

	var data interface{}
	if err := json.Unmarshal(doc, &data); err != nil {
		return nil, &EvalError{Expression: expression, Err: err}
	}

	out, err := jmespath.Search(expression, data)
	if err != nil {
		return nil, &EvalError{Expression: expression, Err: err}
	}
	return out, nil
}

// Ensure JMESPathEvaluator implements the interface
var _ Evaluator = JMESPathEvaluator{}

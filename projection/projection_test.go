package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldt/lens/errors"
	"github.com/veldt/lens/pattern"
)

func TestJMESPathEvaluatorPropertyPath(t *testing.T) {
	eval := JMESPathEvaluator{}

	doc := json.RawMessage(`{"title": "Report", "meta": {"owner": "ada"}}`)

	out, err := eval.Evaluate(doc, "title")
	require.NoError(t, err)
	assert.Equal(t, "Report", out)

	out, err = eval.Evaluate(doc, "meta.owner")
	require.NoError(t, err)
	assert.Equal(t, "ada", out)
}

func TestJMESPathEvaluatorMissingFieldIsNull(t *testing.T) {
	eval := JMESPathEvaluator{}

	out, err := eval.Evaluate(json.RawMessage(`{"title": "Report"}`), "status")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestJMESPathEvaluatorMalformedExpression(t *testing.T) {
	eval := JMESPathEvaluator{}

	_, err := eval.Evaluate(json.RawMessage(`{"title": "Report"}`), "[invalid")
	require.Error(t, err)

	var evalErr *EvalError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, "[invalid", evalErr.Expression)
}

func TestJMESPathEvaluatorMalformedDocument(t *testing.T) {
	eval := JMESPathEvaluator{}

	_, err := eval.Evaluate(json.RawMessage(`{not json`), "title")
	require.Error(t, err)

	var evalErr *EvalError
	assert.True(t, errors.As(err, &evalErr))
}

func TestProjectSingleExpression(t *testing.T) {
	p := NewProjector(JMESPathEvaluator{}, nil)

	out, err := p.Project(json.RawMessage(`{"title": "Report", "status": "open"}`), "{title: title, status: status}")
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, map[string]interface{}{"title": "Report", "status": "open"}, decoded)
}

func TestProjectAllPreservesColumnOrder(t *testing.T) {
	p := NewProjector(JMESPathEvaluator{}, nil)
	res := pattern.Classify("[].{title: title, status: status}")
	require.True(t, res.Valid)

	rows := []Row{{ID: "d1", Original: json.RawMessage(`{"status": "open", "title": "Report"}`)}}

	out, err := p.ProjectAll(context.Background(), rows, res)
	require.NoError(t, err)
	require.Len(t, out, 1)

	// The projected object is assembled in column order, not document order.
	assert.Equal(t, `{"title":"Report","status":"open"}`, string(out[0].Projected))
}

func TestProjectAllPreservesInputOrder(t *testing.T) {
	p := NewProjectorWithParallelism(JMESPathEvaluator{}, nil, 8)
	res := pattern.Classify("[].{n: n}")
	require.True(t, res.Valid)

	var rows []Row
	for i := 0; i < 100; i++ {
		rows = append(rows, Row{
			ID:       fmt.Sprintf("d%03d", i),
			Original: json.RawMessage(fmt.Sprintf(`{"n": %d}`, i)),
		})
	}

	out, err := p.ProjectAll(context.Background(), rows, res)
	require.NoError(t, err)
	require.Len(t, out, 100)

	for i, row := range out {
		assert.Equal(t, fmt.Sprintf("d%03d", i), row.ID)
		assert.Equal(t, fmt.Sprintf(`{"n":%d}`, i), string(row.Projected))
	}
}

func TestProjectAllIsolatesFailures(t *testing.T) {
	p := NewProjector(JMESPathEvaluator{}, nil)
	res := pattern.Classify("[].{title: title}")
	require.True(t, res.Valid)

	rows := []Row{
		{ID: "good-1", Original: json.RawMessage(`{"title": "a"}`)},
		{ID: "broken", Original: json.RawMessage(`{not json`)},
		{ID: "good-2", Original: json.RawMessage(`{"title": "b"}`)},
	}

	out, err := p.ProjectAll(context.Background(), rows, res)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, `{"title":"a"}`, string(out[0].Projected))
	assert.Nil(t, out[1].Projected, "failing row records a nil projection")
	assert.Equal(t, rows[1].Original, out[1].Original, "original is retained as fallback")
	assert.Equal(t, `{"title":"b"}`, string(out[2].Projected))
}

func TestProjectAllRejectsInvalidClassification(t *testing.T) {
	p := NewProjector(JMESPathEvaluator{}, nil)

	_, err := p.ProjectAll(context.Background(), nil, pattern.Classify(""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestProjectAllPropagatesCancellation(t *testing.T) {
	p := NewProjector(JMESPathEvaluator{}, nil)
	res := pattern.Classify("[].{title: title}")
	require.True(t, res.Valid)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := []Row{{ID: "d1", Original: json.RawMessage(`{"title": "a"}`)}}
	_, err := p.ProjectAll(ctx, rows, res)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestEvalErrorMessage(t *testing.T) {
	err := &EvalError{Expression: "title", Err: errors.New("boom")}
	assert.Contains(t, err.Error(), `"title"`)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, "boom", err.Unwrap().Error())
}

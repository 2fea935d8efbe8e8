package view

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldt/lens/docstore"
	lenstest "github.com/veldt/lens/internal/testing"
	"github.com/veldt/lens/pattern"
	"github.com/veldt/lens/projection"
	"github.com/veldt/lens/registry"
	"github.com/veldt/lens/session"
)

type fixture struct {
	docs    *docstore.Store
	reg     *registry.Registry
	planner *Planner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := lenstest.CreateTestDB(t)
	docs := docstore.NewStore(conn, nil)
	reg := registry.New(registry.NewSQLStore(conn), nil)
	projector := projection.NewProjector(projection.JMESPathEvaluator{}, nil)
	return &fixture{
		docs:    docs,
		reg:     reg,
		planner: NewPlanner(docs, reg, projector, nil),
	}
}

func (f *fixture) putTasks(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		body := fmt.Sprintf(`{"title": "task %d", "status": "open", "noise": %d}`, i, i)
		_, err := f.docs.Put(context.Background(), "tasks", json.RawMessage(body))
		require.NoError(t, err)
	}
}

func TestPlanWithActiveListView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putTasks(t, 5)

	id, err := f.reg.Add(ctx, "tasks", "Board", "[].{title: title, status: status}", true)
	require.NoError(t, err)

	plan, err := f.planner.Plan(ctx, "tasks", docstore.ListOptions{})
	require.NoError(t, err)

	require.NotNil(t, plan.Query)
	assert.Equal(t, id, plan.Query.ID)
	assert.Equal(t, pattern.KindObjectProjection, plan.Classification.Kind)
	assert.Equal(t, SourceProjected, plan.Source)

	require.Len(t, plan.Rows, 5)
	for _, row := range plan.Rows {
		assert.NotNil(t, row.Projected)
		assert.NotNil(t, row.Original)
	}

	require.True(t, plan.Consistency.CanShowColumns, "reason: %s", plan.Consistency.Reason)
	assert.Equal(t, []string{"title", "status"}, plan.Consistency.Columns)
}

func TestPlanWithoutListView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putTasks(t, 3)

	plan, err := f.planner.Plan(ctx, "tasks", docstore.ListOptions{})
	require.NoError(t, err)

	assert.Nil(t, plan.Query)
	assert.False(t, plan.Classification.Valid)
	assert.Equal(t, SourceOriginal, plan.Source)

	// Uniform originals are still showable as a table.
	require.True(t, plan.Consistency.CanShowColumns)
	assert.Equal(t, []string{"title", "status", "noise"}, plan.Consistency.Columns)
}

func TestPlanFallsBackWhenStoredExpressionInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putTasks(t, 3)

	_, err := f.reg.Add(ctx, "tasks", "Broken", "!!! nope", true)
	require.NoError(t, err)

	plan, err := f.planner.Plan(ctx, "tasks", docstore.ListOptions{})
	require.NoError(t, err)

	require.NotNil(t, plan.Query)
	assert.False(t, plan.Classification.Valid)
	assert.Equal(t, SourceOriginal, plan.Source)
	assert.True(t, plan.Consistency.CanShowColumns)
}

func TestPlanExpressionAdHoc(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putTasks(t, 4)

	plan, err := f.planner.PlanExpression(ctx, "tasks", "[title, status]", docstore.ListOptions{})
	require.NoError(t, err)

	assert.Nil(t, plan.Query)
	assert.Equal(t, pattern.KindPropertyArray, plan.Classification.Kind)
	assert.Equal(t, SourceProjected, plan.Source)
	require.True(t, plan.Consistency.CanShowColumns)
	assert.Equal(t, []string{"title", "status"}, plan.Consistency.Columns)
}

func TestPlanExpressionUsesSessionFallback(t *testing.T) {
	f := newFixture(t)
	f.putTasks(t, 2)

	ctx := session.WithExpression(context.Background(), "[].{title: title}")

	plan, err := f.planner.PlanExpression(ctx, "tasks", "   ", docstore.ListOptions{})
	require.NoError(t, err)

	assert.True(t, plan.Classification.Valid)
	assert.Equal(t, []string{"title"}, plan.Classification.ColumnKeys())
	assert.Equal(t, SourceProjected, plan.Source)
}

func TestPlanExpressionInvalidScoresOriginals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.putTasks(t, 2)

	plan, err := f.planner.PlanExpression(ctx, "tasks", "9not valid", docstore.ListOptions{})
	require.NoError(t, err)

	assert.False(t, plan.Classification.Valid)
	assert.Equal(t, SourceOriginal, plan.Source)
	assert.True(t, plan.Consistency.CanShowColumns)
}

func TestPlanEmptySchema(t *testing.T) {
	f := newFixture(t)

	plan, err := f.planner.Plan(context.Background(), "empty", docstore.ListOptions{})
	require.NoError(t, err)

	assert.Empty(t, plan.Rows)
	assert.False(t, plan.Consistency.CanShowColumns)
	assert.Equal(t, "No data to analyze", plan.Consistency.Reason)
}

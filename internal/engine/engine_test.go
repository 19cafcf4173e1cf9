package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsheet/internal/cachekey"
	"flowsheet/internal/ops"
	"flowsheet/internal/privacy"
	"flowsheet/internal/query"
)

func newTestCache() *cachekey.Manager { return cachekey.New() }

func rangeQuery(id string, grid [][]any, steps []query.Step) *query.Query {
	return &query.Query{
		ID:     id,
		Name:   id,
		Source: query.Source{Kind: query.SourceRange, Grid: grid},
		Steps:  steps,
	}
}

func TestExecuteQueryAppliesStepsInOrder(t *testing.T) {
	q := rangeQuery("q1", [][]any{
		{"Region", "Sales"},
		{"East", 100.0},
		{"West", 50.0},
	}, []query.Step{
		{Kind: query.StepFilterRows, FilterRows: ops.Predicate{
			Comparison: &ops.Comparison{Column: "Sales", Op: ops.OpGreaterThan, Value: 60.0},
		}},
	})

	e := New(nil, map[string]*query.Query{"q1": q}, Options{})
	tbl, err := e.ExecuteQuery(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.RowCount())
}

func TestExecuteQueryResolvesQueryRefMerge(t *testing.T) {
	left := rangeQuery("left", [][]any{
		{"ID", "Name"},
		{1.0, "Ann"},
	}, nil)
	right := rangeQuery("right", [][]any{
		{"ID", "Score"},
		{1.0, 99.0},
	}, nil)
	main := rangeQuery("main", [][]any{
		{"ID", "Name"},
		{1.0, "Ann"},
	}, []query.Step{
		{Kind: query.StepMerge, RightQueryID: "right", MergeOptions: ops.MergeOptions{
			LeftKeys: []string{"ID"}, RightKeys: []string{"ID"}, JoinType: ops.JoinLeft,
		}},
	})

	queries := map[string]*query.Query{"left": left, "right": right, "main": main}
	e := New(nil, queries, Options{})
	tbl, err := e.ExecuteQuery(context.Background(), main)
	require.NoError(t, err)
	assert.True(t, tbl.HasColumn("Score"))
}

func TestExecuteQueryAbortsWhenContextCanceled(t *testing.T) {
	q := rangeQuery("q", [][]any{{"A"}, {1.0}}, nil)
	e := New(nil, map[string]*query.Query{"q": q}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.ExecuteQuery(ctx, q)
	require.Error(t, err)
	var abortErr *AbortError
	assert.ErrorAs(t, err, &abortErr)
}

func TestExecuteQueryStreamingDeliversAllRows(t *testing.T) {
	q := rangeQuery("q", [][]any{
		{"A"}, {1.0}, {2.0}, {3.0},
	}, nil)
	e := New(nil, map[string]*query.Query{"q": q}, Options{})
	var total int
	_, _, err := e.ExecuteQueryStreaming(context.Background(), q, func(batch [][]any) error {
		total += len(batch)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestExecuteQueryRejectsPrivacyIncompatibleMerge(t *testing.T) {
	left := rangeQuery("left", [][]any{{"ID"}, {1.0}}, nil)
	right := rangeQuery("right", [][]any{{"ID"}, {1.0}}, nil)
	right.Source.PrivacyLevel = "private"
	main := rangeQuery("main", [][]any{{"ID"}, {1.0}}, []query.Step{
		{Kind: query.StepMerge, RightQueryID: "right", MergeOptions: ops.MergeOptions{
			LeftKeys: []string{"ID"}, RightKeys: []string{"ID"}, JoinType: ops.JoinInner,
		}},
	})
	main.Source.PrivacyLevel = "public"

	queries := map[string]*query.Query{"left": left, "right": right, "main": main}
	levels := privacy.Levels{}
	e := New(nil, queries, Options{Privacy: levels})
	_, err := e.ExecuteQuery(context.Background(), main)
	require.NoError(t, err) // public is compatible with private, so this should still succeed

	// Now make main organizational, which is no longer compatible with
	// right's private level (only an exact match or public is compatible).
	main.Source.PrivacyLevel = "organizational"
	_, err = e.ExecuteQuery(context.Background(), main)
	require.Error(t, err)
	var fwErr *privacy.FirewallError
	assert.ErrorAs(t, err, &fwErr)
}

func TestExecuteQueryCachesRepeatedCalls(t *testing.T) {
	q := rangeQuery("q", [][]any{{"A"}, {1.0}}, nil)
	e := New(nil, map[string]*query.Query{"q": q}, Options{Cache: newTestCache()})
	_, meta1, err := e.ExecuteQueryWithMeta(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, meta1.CacheHit)
	_, meta2, err := e.ExecuteQueryWithMeta(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, meta2.CacheHit)
}

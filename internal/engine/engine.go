// Package engine executes a Query against its Source and step chain
// (spec §4.10), resolving query-ref sources recursively, folding
// source fetches when the planner allows it, enforcing the privacy
// firewall before any cross-source combine, and serializing repeated
// builds of the same cache key.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"flowsheet/internal/cachekey"
	"flowsheet/internal/folding"
	"flowsheet/internal/privacy"
	"flowsheet/internal/query"
	"flowsheet/internal/sources"
	"flowsheet/internal/table"
)

// AbortError is raised when ctx is canceled at a suspension point.
// It is always this concrete type so callers can `errors.As` it
// distinctly from other failures (spec §5).
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string {
	if e.Reason == "" {
		return "AbortError"
	}
	return fmt.Sprintf("AbortError: %s", e.Reason)
}

// Options configures one Engine. Logger defaults to zap.NewNop() when
// nil; a nil Cache disables result caching, and a nil Privacy map
// leaves every source unrestricted.
type Options struct {
	Logger  *zap.Logger
	Cache   *cachekey.Manager
	Privacy privacy.Levels
}

// Engine executes Queries within a fixed set of named tables and
// sibling queries (spec §4.6 `table`/`query-ref` sources).
type Engine struct {
	tables  map[string]*table.Table
	queries map[string]*query.Query
	opts    Options
}

// New builds an Engine. tables backs SourceTable lookups; queries
// backs SourceQueryRef lookups (including self-references for
// recursive/diamond query graphs, which the caller is responsible for
// keeping acyclic).
func New(tables map[string]*table.Table, queries map[string]*query.Query, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{tables: tables, queries: queries, opts: opts}
}

// Meta describes one executed query's provenance, the `meta` half of
// `executeQueryWithMeta`.
type Meta struct {
	RefreshedAt time.Time
	RowCount    int
	Folded      bool
	CacheHit    bool
}

// ExecuteQuery runs q to completion and returns its resulting Table.
func (e *Engine) ExecuteQuery(ctx context.Context, q *query.Query) (*table.Table, error) {
	t, _, err := e.ExecuteQueryWithMeta(ctx, q)
	return t, err
}

// ExecuteQueryWithMeta runs q and also reports cache/folding
// provenance for the result.
func (e *Engine) ExecuteQueryWithMeta(ctx context.Context, q *query.Query) (*table.Table, Meta, error) {
	return e.ExecuteQueryStreaming(ctx, q, nil)
}

// BatchFunc is invoked once per materialized batch during streaming
// execution. A non-nil error aborts execution; rows already delivered
// to earlier batches are not retracted.
type BatchFunc func(batch [][]any) error

// ExecuteQueryStreaming runs q, optionally materializing the result in
// row batches via onBatch. onBatch == nil just executes the query and
// returns the full table, matching ExecuteQueryWithMeta's behavior.
func (e *Engine) ExecuteQueryStreaming(ctx context.Context, q *query.Query, onBatch BatchFunc) (*table.Table, Meta, error) {
	if err := checkAbort(ctx); err != nil {
		return nil, Meta{}, err
	}

	plan := folding.Compute(q.Steps)
	foldedSource, residualSteps, folded := e.applyFold(q.Source, q.Steps, plan)

	if err := e.checkPrivacy(foldedSource, residualSteps); err != nil {
		return nil, Meta{}, err
	}

	cacheHit := false
	build := func() (any, error) {
		return e.runQuery(ctx, foldedSource, residualSteps)
	}

	var result any
	var err error
	key, ok := cacheKeyFor(q, foldedSource)
	if ok && e.opts.Cache != nil {
		if _, hit := e.opts.Cache.Get(key); hit {
			cacheHit = true
		}
		result, err = e.opts.Cache.GetOrBuild(key, build)
	} else {
		result, err = build()
	}
	if err != nil {
		return nil, Meta{}, err
	}
	t := result.(*table.Table)

	if onBatch != nil {
		if err := materializeBatches(t, onBatch); err != nil {
			return nil, Meta{}, err
		}
	}

	e.opts.Logger.Debug("query executed",
		zap.String("query", q.ID), zap.Bool("folded", folded), zap.Bool("cacheHit", cacheHit), zap.Int("rows", t.RowCount()))

	return t, Meta{RefreshedAt: now(), RowCount: t.RowCount(), Folded: folded, CacheHit: cacheHit}, nil
}

// runQuery loads foldedSource and applies steps in order, honoring
// abort at every step boundary (spec §5 suspension points).
func (e *Engine) runQuery(ctx context.Context, src query.Source, steps []query.Step) (*table.Table, error) {
	env := &sources.Environment{Tables: e.tables, QueryResults: map[string]*table.Table{}}
	if src.Kind == query.SourceQueryRef {
		if err := e.resolveQueryRef(ctx, src.RefID, env); err != nil {
			return nil, err
		}
	}
	t, err := sources.Load(ctx, src, env)
	if err != nil {
		return nil, fmt.Errorf("engine: load source for query %w", err)
	}

	for _, step := range steps {
		if err := checkAbort(ctx); err != nil {
			return nil, err
		}
		t, err = e.applyStep(ctx, t, step, env)
		if err != nil {
			return nil, fmt.Errorf("engine: step %q (%s): %w", step.Name, step.Kind, err)
		}
	}
	return t, nil
}

func materializeBatches(t *table.Table, onBatch BatchFunc) error {
	const defaultBatchSize = 1000
	rows := t.RowCount()
	for start := 0; start < rows; start += defaultBatchSize {
		end := start + defaultBatchSize
		if end > rows {
			end = rows
		}
		batch := make([][]any, 0, end-start)
		for r := start; r < end; r++ {
			row, err := t.GetRow(r)
			if err != nil {
				return err
			}
			batch = append(batch, row)
		}
		if err := onBatch(batch); err != nil {
			return err
		}
	}
	return nil
}

// resolveQueryRef populates env.QueryResults[refID] (and transitively
// everything refID depends on) by executing the referenced query.
func (e *Engine) resolveQueryRef(ctx context.Context, refID string, env *sources.Environment) error {
	if _, ok := env.QueryResults[refID]; ok {
		return nil
	}
	ref, ok := e.queries[refID]
	if !ok {
		return fmt.Errorf("engine: unknown query reference %q", refID)
	}
	t, err := e.ExecuteQuery(ctx, ref)
	if err != nil {
		return fmt.Errorf("engine: execute referenced query %q: %w", refID, err)
	}
	env.QueryResults[refID] = t
	return nil
}

func checkAbort(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return &AbortError{Reason: ctx.Err().Error()}
	default:
		return nil
	}
}

func cacheKeyFor(q *query.Query, src query.Source) (string, bool) {
	return cachekey.Key(cachekey.Signature{
		QuerySignature:   q.ID,
		SourceSignature:  privacy.SourceID(src),
		ContextSignature: "default",
		OperationsHash:   operationsHash(q.Steps),
	})
}

func operationsHash(steps []query.Step) string {
	h := "steps:"
	for _, s := range steps {
		h += string(s.Kind) + ":" + s.Name + "|"
	}
	return h
}

// now is a seam so tests don't depend on wall-clock time.
var now = time.Now

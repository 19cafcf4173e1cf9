// Package retrieval implements searchWorkbookRag (spec §4.18): embed
// a query, search the vector store, and optionally rerank and dedupe
// the results.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"flowsheet/internal/rect"
	"flowsheet/internal/region"
	"flowsheet/internal/vectorstore"
)

// Embedder is the subset of internal/embed.Embedder the searcher
// needs.
type Embedder interface {
	Embed(text string) []float64
}

// Options configures one search call. Rerank and Dedupe are both
// off by default (nil/false): pure vector search unless requested.
type Options struct {
	QueryText  string
	WorkbookID string
	TopK       float64
	Rerank     bool
	Dedupe     bool
}

// Result is one search hit, the vector store's score optionally
// boosted by a lexical rerank pass.
type Result struct {
	Record vectorstore.Record
	Score  float64
}

// SearchWorkbookRAG runs the pipeline: embed -> vector store query ->
// optional lexical rerank -> optional overlap dedupe.
func SearchWorkbookRAG(ctx context.Context, store vectorstore.Store, embedder Embedder, opts Options) ([]Result, error) {
	vector := embedder.Embed(opts.QueryText)

	hits, err := store.Query(ctx, vector, opts.TopK, vectorstore.QueryOptions{WorkbookID: opts.WorkbookID})
	if err != nil {
		return nil, fmt.Errorf("retrieval: query: %w", err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{Record: h.Record, Score: h.Score}
	}

	if opts.Rerank {
		results = rerank(results, opts.QueryText)
	}
	if opts.Dedupe {
		results = dedupeOverlapping(results)
	}
	return results, nil
}

// rerank boosts each result's score by how many distinct query terms
// appear in its stored text, a cheap lexical signal layered on top of
// the cosine-similarity ranking.
func rerank(results []Result, queryText string) []Result {
	terms := queryTerms(queryText)
	if len(terms) == 0 {
		return results
	}
	const boostPerTerm = 0.01
	for i := range results {
		text := strings.ToLower(results[i].Record.Text)
		matched := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				matched++
			}
		}
		results[i].Score += float64(matched) * boostPerTerm
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}

func queryTerms(queryText string) []string {
	fields := strings.Fields(strings.ToLower(queryText))
	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, f := range fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// dedupeOverlapping drops a lower-scoring result whose chunk rect
// overlaps a higher-scoring result already kept on the same sheet,
// using the same intersection-ratio suppression threshold the chunker
// uses for near-duplicate detected regions.
func dedupeOverlapping(results []Result) []Result {
	const overlapThreshold = 0.5

	var kept []Result
	var keptRects []placedRect
	for _, r := range results {
		rr, sheet, ok := chunkRect(r.Record)
		if !ok {
			kept = append(kept, r)
			continue
		}
		duplicate := false
		for _, p := range keptRects {
			if p.sheet == sheet && rect.IntersectionRatio(rr, p.rect) > overlapThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, r)
		keptRects = append(keptRects, placedRect{sheet: sheet, rect: rr})
	}
	return kept
}

type placedRect struct {
	sheet string
	rect  region.Rect
}

// chunkRect recovers a result's sheet/rect from its stored metadata,
// the only place the index pipeline records them (spec §4.17 stores
// chunk metadata verbatim alongside the vector).
func chunkRect(r vectorstore.Record) (region.Rect, string, bool) {
	sheet, _ := r.Metadata["sheet"].(string)
	rectMap, ok := r.Metadata["rect"].(map[string]any)
	if !ok {
		return region.Rect{}, "", false
	}
	r0, ok1 := asInt(rectMap["r0"])
	c0, ok2 := asInt(rectMap["c0"])
	r1, ok3 := asInt(rectMap["r1"])
	c1, ok4 := asInt(rectMap["c1"])
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return region.Rect{}, "", false
	}
	return region.Rect{R0: r0, C0: c0, R1: r1, C1: c1}, sheet, true
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

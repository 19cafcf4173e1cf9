package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsheet/internal/vectorstore"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(text string) []float64 {
	if text == "revenue" {
		return []float64{1, 0}
	}
	return []float64{0, 1}
}

func rectMeta(sheet string, r0, c0, r1, c1 int) map[string]any {
	return map[string]any{
		"sheet": sheet,
		"rect":  map[string]any{"r0": r0, "c0": c0, "r1": r1, "c1": c1},
	}
}

func TestSearchWorkbookRAGReturnsVectorStoreOrder(t *testing.T) {
	store := vectorstore.NewMemoryStore(2)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, []vectorstore.Record{
		{ID: "a", WorkbookID: "wb1", Vector: []float64{1, 0}, Text: "revenue chunk", Metadata: map[string]any{}},
		{ID: "b", WorkbookID: "wb1", Vector: []float64{0, 1}, Text: "units chunk", Metadata: map[string]any{}},
	}))

	results, err := SearchWorkbookRAG(ctx, store, fakeEmbedder{}, Options{QueryText: "revenue", WorkbookID: "wb1", TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Record.ID)
}

func TestSearchWorkbookRAGRerankBoostsLexicalMatch(t *testing.T) {
	store := vectorstore.NewMemoryStore(2)
	ctx := context.Background()
	// Both records tie on cosine similarity; only "b" mentions "quarterly".
	require.NoError(t, store.Upsert(ctx, []vectorstore.Record{
		{ID: "a", WorkbookID: "wb1", Vector: []float64{1, 1}, Text: "monthly totals", Metadata: map[string]any{}},
		{ID: "b", WorkbookID: "wb1", Vector: []float64{1, 1}, Text: "quarterly totals", Metadata: map[string]any{}},
	}))

	results, err := SearchWorkbookRAG(ctx, store, fakeEmbedder{}, Options{QueryText: "quarterly totals", WorkbookID: "wb1", TopK: 2, Rerank: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].Record.ID)
}

func TestSearchWorkbookRAGDedupeDropsOverlappingLowerScoredRect(t *testing.T) {
	store := vectorstore.NewMemoryStore(2)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, []vectorstore.Record{
		{ID: "best", WorkbookID: "wb1", Vector: []float64{1, 0}, Text: "a", Metadata: rectMeta("Sheet1", 0, 0, 5, 5)},
		{ID: "overlap", WorkbookID: "wb1", Vector: []float64{0.9, 0.1}, Text: "b", Metadata: rectMeta("Sheet1", 1, 1, 4, 4)},
		{ID: "distinct", WorkbookID: "wb1", Vector: []float64{0, 1}, Text: "c", Metadata: rectMeta("Sheet1", 20, 20, 25, 25)},
	}))

	results, err := SearchWorkbookRAG(ctx, store, fakeEmbedder{}, Options{QueryText: "revenue", WorkbookID: "wb1", TopK: 3, Dedupe: true})
	require.NoError(t, err)

	var ids []string
	for _, r := range results {
		ids = append(ids, r.Record.ID)
	}
	assert.Contains(t, ids, "best")
	assert.NotContains(t, ids, "overlap")
	assert.Contains(t, ids, "distinct")
}

func TestSearchWorkbookRAGDedupeKeepsRecordsWithoutRectMetadata(t *testing.T) {
	store := vectorstore.NewMemoryStore(2)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, []vectorstore.Record{
		{ID: "a", WorkbookID: "wb1", Vector: []float64{1, 0}, Text: "a", Metadata: map[string]any{}},
		{ID: "b", WorkbookID: "wb1", Vector: []float64{0.9, 0.1}, Text: "b", Metadata: map[string]any{}},
	}))

	results, err := SearchWorkbookRAG(ctx, store, fakeEmbedder{}, Options{QueryText: "revenue", WorkbookID: "wb1", TopK: 2, Dedupe: true})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

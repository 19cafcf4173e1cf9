package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowsheet/internal/chunk"
	"flowsheet/internal/progress"
	"flowsheet/internal/region"
	"flowsheet/internal/vectorstore"
	"flowsheet/internal/workbook"
)

type fakeEmbedder struct {
	dim int
}

func (f *fakeEmbedder) Dimension() int   { return f.dim }
func (f *fakeEmbedder) Identity() string { return "fake:v1" }
func (f *fakeEmbedder) EmbedTexts(texts []string) [][]float64 {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v := make([]float64, f.dim)
		for j := range v {
			v[j] = float64(len(t) + j)
		}
		out[i] = v
	}
	return out
}

func oneSheetOneTable() []chunk.SheetInput {
	return []chunk.SheetInput{
		{
			Name:  "Sheet1",
			Sheet: &workbook.Sheet{Dense: [][]any{{"a", "b"}, {1, 2}}},
			Tables: []chunk.NamedArea{
				{Name: "T1", Rect: region.Rect{R0: 0, C0: 0, R1: 1, C1: 1}},
			},
		},
	}
}

func TestIndexWorkbookUpsertsNewChunks(t *testing.T) {
	store := vectorstore.NewMemoryStore(4)
	embedder := &fakeEmbedder{dim: 4}

	result, err := IndexWorkbook(context.Background(), "wb1", oneSheetOneTable(), chunk.Limits{}, store, embedder, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalChunks)
	assert.Equal(t, 1, result.Upserted)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Deleted)

	list, err := store.List(context.Background(), vectorstore.ListOptions{WorkbookID: "wb1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "fake:v1", list[0].Metadata["embedder"])
}

func TestIndexWorkbookSkipsUnchangedChunks(t *testing.T) {
	store := vectorstore.NewMemoryStore(4)
	embedder := &fakeEmbedder{dim: 4}
	ctx := context.Background()

	_, err := IndexWorkbook(ctx, "wb1", oneSheetOneTable(), chunk.Limits{}, store, embedder, Options{})
	require.NoError(t, err)

	result, err := IndexWorkbook(ctx, "wb1", oneSheetOneTable(), chunk.Limits{}, store, embedder, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Upserted)
	assert.Equal(t, 1, result.Skipped)
}

func TestIndexWorkbookDeletesRemovedChunks(t *testing.T) {
	store := vectorstore.NewMemoryStore(4)
	embedder := &fakeEmbedder{dim: 4}
	ctx := context.Background()

	_, err := IndexWorkbook(ctx, "wb1", oneSheetOneTable(), chunk.Limits{}, store, embedder, Options{})
	require.NoError(t, err)

	result, err := IndexWorkbook(ctx, "wb1", []chunk.SheetInput{}, chunk.Limits{}, store, embedder, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)

	list, err := store.List(ctx, vectorstore.ListOptions{WorkbookID: "wb1"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIndexWorkbookRunsMetadataOnlyPathWhenContentUnchanged(t *testing.T) {
	store := vectorstore.NewMemoryStore(4)
	embedder := &fakeEmbedder{dim: 4}
	ctx := context.Background()

	_, err := IndexWorkbook(ctx, "wb1", oneSheetOneTable(), chunk.Limits{}, store, embedder, Options{})
	require.NoError(t, err)

	calls := 0
	opts := Options{Transform: func(c chunk.Chunk) map[string]any {
		calls++
		return map[string]any{"revision": calls}
	}}
	result, err := IndexWorkbook(ctx, "wb1", oneSheetOneTable(), chunk.Limits{}, store, embedder, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Upserted)
	assert.Equal(t, 1, result.Skipped)

	list, err := store.List(ctx, vectorstore.ListOptions{WorkbookID: "wb1", IncludeVector: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotEmpty(t, list[0].Vector)
}

func TestIndexWorkbookAbortsBeforeAnyWriteOnEmbedderMismatch(t *testing.T) {
	store := vectorstore.NewMemoryStore(4)
	badEmbedder := &fakeEmbedder{dim: 2} // wrong dimension vs store

	_, err := IndexWorkbook(context.Background(), "wb1", oneSheetOneTable(), chunk.Limits{}, store, badEmbedder, Options{})
	assert.Error(t, err)

	list, err := store.List(context.Background(), vectorstore.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIndexWorkbookReportsProgressEvents(t *testing.T) {
	store := vectorstore.NewMemoryStore(4)
	embedder := &fakeEmbedder{dim: 4}

	var phases []progress.Phase
	opts := Options{OnProgress: func(e progress.Event) {
		phases = append(phases, e.Phase)
	}}
	_, err := IndexWorkbook(context.Background(), "wb1", oneSheetOneTable(), chunk.Limits{}, store, embedder, opts)
	require.NoError(t, err)
	assert.Contains(t, phases, progress.PhaseChunk)
	assert.Contains(t, phases, progress.PhaseUpsert)
}

func TestIndexWorkbookAbortsWhenContextAlreadyCanceled(t *testing.T) {
	store := vectorstore.NewMemoryStore(4)
	embedder := &fakeEmbedder{dim: 4}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := IndexWorkbook(ctx, "wb1", oneSheetOneTable(), chunk.Limits{}, store, embedder, Options{})
	assert.Error(t, err)
}

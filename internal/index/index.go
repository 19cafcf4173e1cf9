// Package index implements the RAG indexing pipeline of spec §4.17:
// chunk a workbook, diff against what the vector store already holds,
// embed what changed, and write the result back.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"flowsheet/internal/chunk"
	"flowsheet/internal/progress"
	"flowsheet/internal/vectorstore"
)

// Embedder is the subset of internal/embed.Embedder the pipeline
// needs, kept as an interface so tests can substitute a fake.
type Embedder interface {
	EmbedTexts(texts []string) [][]float64
	Dimension() int
	Identity() string
}

// TransformFunc derives a chunk's stored metadata (and its hash) from
// a detected Chunk; the pipeline calls it once per chunk regardless of
// whether that chunk's content changed, so metadata-only updates are
// detected even when the rendered text is unchanged.
type TransformFunc func(c chunk.Chunk) map[string]any

// Options configures one indexWorkbook run.
type Options struct {
	EmbedBatchSize int // 0 means unbounded (one batch)
	Transform      TransformFunc
	OnProgress     progress.Reporter
	Concurrency    int // errgroup limit for batch embedding; 0 means sequential
	RenderOptions  chunk.RenderOptions
}

// Result is indexWorkbook's return value (spec §4.17 step 8).
type Result struct {
	TotalChunks int
	Upserted    int
	Skipped     int
	Deleted     int
}

// EmbedderMismatchError reports a batch embedding result that fails
// validation: wrong count, wrong length, or a non-finite value (spec
// §7). On this error the pipeline performs no writes.
type EmbedderMismatchError struct {
	Reason string
}

func (e *EmbedderMismatchError) Error() string {
	return fmt.Sprintf("EmbedderMismatch: %s", e.Reason)
}

// AbortError mirrors spec §5's cooperative-abort contract: a write
// already in flight when ctx is canceled is awaited to completion
// before this error propagates, so the store never holds a partial
// batch.
type AbortError struct{}

func (e *AbortError) Error() string { return "AbortError" }

type classification int

const (
	classUnchanged classification = iota
	classMetadataOnly
	classUpsert
)

type planned struct {
	chunk    chunk.Chunk
	text     string
	hash     string
	meta     map[string]any
	metaHash string
	class    classification
}

// IndexWorkbook runs the pipeline described at spec §4.17.
func IndexWorkbook(ctx context.Context, workbookID string, sheets []chunk.SheetInput, limits chunk.Limits, store vectorstore.Store, embedder Embedder, opts Options) (Result, error) {
	if err := checkAbort(ctx); err != nil {
		return Result{}, err
	}

	chunks := chunk.DetectChunks(workbookID, sheets, limits)
	opts.OnProgress.Emit(progress.Event{Phase: progress.PhaseChunk, Processed: len(chunks), Total: intPtr(len(chunks))})

	plans := make([]planned, len(chunks))
	for i, c := range chunks {
		if err := checkAbort(ctx); err != nil {
			return Result{}, err
		}
		text := chunk.Render(c, opts.RenderOptions)
		meta := map[string]any{}
		if opts.Transform != nil {
			meta = opts.Transform(c)
		}
		meta["embedder"] = embedder.Identity()
		plans[i] = planned{
			chunk:    c,
			text:     text,
			hash:     chunk.ContentHash(text),
			meta:     meta,
			metaHash: hashMetadata(meta),
		}
		opts.OnProgress.Emit(progress.Event{Phase: progress.PhaseHash, Processed: i + 1, Total: intPtr(len(chunks))})
	}

	existing, err := loadExisting(ctx, store, workbookID)
	if err != nil {
		return Result{}, err
	}

	seenIDs := make(map[string]bool, len(plans))
	for i, p := range plans {
		seenIDs[p.chunk.ID] = true
		prior, ok := existing[p.chunk.ID]
		switch {
		case !ok:
			plans[i].class = classUpsert
		case prior.ContentHash != p.hash:
			plans[i].class = classUpsert
		case prior.MetadataHash != p.metaHash:
			plans[i].class = classMetadataOnly
		default:
			plans[i].class = classUnchanged
		}
	}

	var toEmbed []int
	var metadataOnly []int
	for i, p := range plans {
		switch p.class {
		case classUpsert:
			toEmbed = append(toEmbed, i)
		case classMetadataOnly:
			metadataOnly = append(metadataOnly, i)
		}
	}

	vectors, err := embedBatches(ctx, embedder, plans, toEmbed, opts)
	if err != nil {
		return Result{}, err
	}

	if err := writeUpserts(ctx, store, workbookID, plans, toEmbed, vectors, opts); err != nil {
		return Result{}, err
	}
	if err := writeMetadataOnly(ctx, store, plans, metadataOnly, opts); err != nil {
		return Result{}, err
	}

	var toDelete []string
	for id := range existing {
		if !seenIDs[id] {
			toDelete = append(toDelete, id)
		}
	}
	sort.Strings(toDelete)
	if len(toDelete) > 0 {
		if err := store.Delete(ctx, toDelete); err != nil {
			return Result{}, err
		}
	}
	opts.OnProgress.Emit(progress.Event{Phase: progress.PhaseDelete, Processed: len(toDelete), Total: intPtr(len(toDelete))})

	return Result{
		TotalChunks: len(chunks),
		Upserted:    len(toEmbed),
		Skipped:     len(plans) - len(toEmbed),
		Deleted:     len(toDelete),
	}, nil
}

func loadExisting(ctx context.Context, store vectorstore.Store, workbookID string) (map[string]vectorstore.ContentHashEntry, error) {
	entries, err := store.ListContentHashes(ctx, vectorstore.ListOptions{WorkbookID: workbookID})
	if err != nil {
		return nil, fmt.Errorf("index: list existing content hashes: %w", err)
	}
	out := make(map[string]vectorstore.ContentHashEntry, len(entries))
	for _, e := range entries {
		out[e.ID] = e
	}
	return out, nil
}

func embedBatches(ctx context.Context, embedder Embedder, plans []planned, toEmbed []int, opts Options) (map[int][]float64, error) {
	if len(toEmbed) == 0 {
		return nil, nil
	}
	batchSize := opts.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = len(toEmbed)
	}

	var batches [][]int
	for i := 0; i < len(toEmbed); i += batchSize {
		end := min(i+batchSize, len(toEmbed))
		batches = append(batches, toEmbed[i:end])
	}

	results := make(map[int][]float64, len(toEmbed))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	} else {
		g.SetLimit(1)
	}

	processed := 0
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			if err := checkAbort(gctx); err != nil {
				return err
			}
			texts := make([]string, len(batch))
			for j, idx := range batch {
				texts[j] = plans[idx].text
			}
			vectors := embedder.EmbedTexts(texts)
			if err := validateBatch(vectors, len(batch), embedder.Dimension()); err != nil {
				return err
			}
			mu.Lock()
			for j, idx := range batch {
				results[idx] = vectors[j]
			}
			processed += len(batch)
			opts.OnProgress.Emit(progress.Event{Phase: progress.PhaseEmbed, Processed: processed, Total: intPtr(len(toEmbed))})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func validateBatch(vectors [][]float64, wantCount, dim int) error {
	if len(vectors) != wantCount {
		return &EmbedderMismatchError{Reason: fmt.Sprintf("expected %d vectors, got %d", wantCount, len(vectors))}
	}
	for _, v := range vectors {
		if len(v) != dim {
			return &EmbedderMismatchError{Reason: fmt.Sprintf("expected dimension %d, got %d", dim, len(v))}
		}
		for _, x := range v {
			if x != x || x > maxFloat || x < -maxFloat {
				return &EmbedderMismatchError{Reason: "non-finite value in embedding"}
			}
		}
	}
	return nil
}

const maxFloat = 1.7976931348623157e+308

func writeUpserts(ctx context.Context, store vectorstore.Store, workbookID string, plans []planned, toEmbed []int, vectors map[int][]float64, opts Options) error {
	if len(toEmbed) == 0 {
		return nil
	}
	records := make([]vectorstore.Record, len(toEmbed))
	for i, idx := range toEmbed {
		p := plans[idx]
		records[i] = vectorstore.Record{
			ID:           p.chunk.ID,
			WorkbookID:   workbookID,
			Vector:       vectors[idx],
			Text:         p.text,
			ContentHash:  p.hash,
			MetadataHash: p.metaHash,
			Metadata:     p.meta,
		}
	}
	err := store.Upsert(ctx, records)
	opts.OnProgress.Emit(progress.Event{Phase: progress.PhaseUpsert, Processed: len(records), Total: intPtr(len(records))})
	if err != nil {
		return fmt.Errorf("index: upsert: %w", err)
	}
	return checkAbort(ctx)
}

func writeMetadataOnly(ctx context.Context, store vectorstore.Store, plans []planned, metadataOnly []int, opts Options) error {
	if len(metadataOnly) == 0 {
		return nil
	}
	updates := make([]vectorstore.MetadataUpdate, len(metadataOnly))
	for i, idx := range metadataOnly {
		p := plans[idx]
		updates[i] = vectorstore.MetadataUpdate{ID: p.chunk.ID, MetadataHash: p.metaHash, Metadata: p.meta}
	}
	err := store.UpdateMetadata(ctx, updates)
	if err != nil {
		return fmt.Errorf("index: update metadata: %w", err)
	}
	return checkAbort(ctx)
}

func hashMetadata(meta map[string]any) string {
	b, _ := json.Marshal(meta)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func checkAbort(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return &AbortError{}
	default:
		return nil
	}
}

func intPtr(n int) *int { return &n }

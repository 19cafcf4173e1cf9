package vectorstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store backed by a plain map, guarded by
// a single mutex (spec §5: "Vector Store implementations are expected
// to serialize their own writes").
type MemoryStore struct {
	dimension int

	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore returns an empty store fixed to the given vector
// dimension.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{dimension: dimension, records: make(map[string]Record)}
}

func (s *MemoryStore) Upsert(ctx context.Context, records []Record) error {
	if err := checkAbort(ctx); err != nil {
		return err
	}
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return &VectorDimensionMismatchError{Expected: s.dimension, Actual: len(r.Vector)}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		vec := make([]float64, len(r.Vector))
		copy(vec, r.Vector)
		r.Vector = vec
		s.records[r.ID] = r
	}
	return nil
}

func (s *MemoryStore) UpdateMetadata(ctx context.Context, updates []MetadataUpdate) error {
	if err := checkAbort(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		existing, ok := s.records[u.ID]
		if !ok {
			continue
		}
		existing.Metadata = u.Metadata
		existing.MetadataHash = u.MetadataHash
		s.records[u.ID] = existing
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := checkAbort(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	out := r
	out.Vector = append([]float64(nil), r.Vector...)
	return &out, nil
}

func (s *MemoryStore) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	if err := checkAbort(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.records {
		if opts.WorkbookID != "" && r.WorkbookID != opts.WorkbookID {
			continue
		}
		rec := r
		if opts.IncludeVector {
			rec.Vector = append([]float64(nil), r.Vector...)
		} else {
			rec.Vector = nil
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListContentHashes(ctx context.Context, opts ListOptions) ([]ContentHashEntry, error) {
	if err := checkAbort(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ContentHashEntry
	for _, r := range s.records {
		if opts.WorkbookID != "" && r.WorkbookID != opts.WorkbookID {
			continue
		}
		out = append(out, ContentHashEntry{ID: r.ID, ContentHash: r.ContentHash, MetadataHash: r.MetadataHash})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, ids []string) error {
	if err := checkAbort(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, vector []float64, topK float64, opts QueryOptions) ([]ScoredRecord, error) {
	if err := checkAbort(ctx); err != nil {
		return nil, err
	}
	k, ok, err := ValidateTopK(topK)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if len(vector) != s.dimension {
		return nil, &VectorDimensionMismatchError{Expected: s.dimension, Actual: len(vector)}
	}

	s.mu.Lock()
	var scored []ScoredRecord
	for _, r := range s.records {
		if opts.WorkbookID != "" && r.WorkbookID != opts.WorkbookID {
			continue
		}
		rec := r
		rec.Vector = append([]float64(nil), r.Vector...)
		scored = append(scored, ScoredRecord{Record: rec, Score: cosineSimilarity(vector, r.Vector)})
	}
	s.mu.Unlock()

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Record.ID < scored[j].Record.ID
	})
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

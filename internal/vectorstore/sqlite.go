package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	_ "modernc.org/sqlite"
)

func resetFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SQLiteStore is a persisted Store backed by a single SQLite table.
// contentHash and metadataHash are stored as their own columns so
// ListContentHashes never deserializes Metadata or Vector (spec
// §4.16's "persistent stores must expose these as separate columns").
type SQLiteStore struct {
	dimension      int
	resetOnCorrupt bool

	mu sync.Mutex
	db *sql.DB
}

// OpenSQLiteStore opens (creating if absent) a SQLite-backed store at
// path, fixed to dimension. When resetOnCorrupt is set, a detected
// corrupt database file is dropped and recreated empty rather than
// returned as an error (spec §4.16).
func OpenSQLiteStore(path string, dimension int, resetOnCorrupt bool) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: open sqlite: %w", err)
	}
	s := &SQLiteStore{dimension: dimension, resetOnCorrupt: resetOnCorrupt, db: db}
	if err := s.ensureSchema(); err != nil {
		if resetOnCorrupt {
			_ = db.Close()
			if rerr := resetFile(path); rerr != nil {
				return nil, fmt.Errorf("vectorstore: reset corrupt store: %w", rerr)
			}
			db, err = sql.Open("sqlite", path)
			if err != nil {
				return nil, fmt.Errorf("vectorstore: reopen after reset: %w", err)
			}
			s.db = db
			if err := s.ensureSchema(); err != nil {
				return nil, fmt.Errorf("vectorstore: schema after reset: %w", err)
			}
			return s, nil
		}
		return nil, fmt.Errorf("vectorstore: schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS records (
	id TEXT PRIMARY KEY,
	workbook_id TEXT NOT NULL,
	vector BLOB NOT NULL,
	text TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	metadata_hash TEXT NOT NULL,
	metadata TEXT NOT NULL
)`)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float64 {
	n := len(buf) / 8
	v := make([]float64, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return v
}

func (s *SQLiteStore) Upsert(ctx context.Context, records []Record) error {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
INSERT INTO records (id, workbook_id, vector, text, content_hash, metadata_hash, metadata)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	workbook_id=excluded.workbook_id, vector=excluded.vector, text=excluded.text,
	content_hash=excluded.content_hash, metadata_hash=excluded.metadata_hash, metadata=excluded.metadata`)
	if err != nil {
		return fmt.Errorf("vectorstore: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("vectorstore: marshal metadata for %q: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.WorkbookID, encodeVector(r.Vector), r.Text, r.ContentHash, r.MetadataHash, meta); err != nil {
			return fmt.Errorf("vectorstore: upsert %q: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpdateMetadata(ctx context.Context, updates []MetadataUpdate) error {
	if err := checkAbort(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: begin metadata update: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE records SET metadata_hash = ?, metadata = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("vectorstore: prepare metadata update: %w", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		meta, err := json.Marshal(u.Metadata)
		if err != nil {
			return fmt.Errorf("vectorstore: marshal metadata for %q: %w", u.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, u.MetadataHash, meta, u.ID); err != nil {
			return fmt.Errorf("vectorstore: update metadata %q: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := checkAbort(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `SELECT workbook_id, vector, text, content_hash, metadata_hash, metadata FROM records WHERE id = ?`, id)
	var r Record
	r.ID = id
	var vecBuf []byte
	var metaBuf string
	if err := row.Scan(&r.WorkbookID, &vecBuf, &r.Text, &r.ContentHash, &r.MetadataHash, &metaBuf); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("vectorstore: get %q: %w", id, err)
	}
	r.Vector = decodeVector(vecBuf)
	if err := json.Unmarshal([]byte(metaBuf), &r.Metadata); err != nil {
		return nil, fmt.Errorf("vectorstore: unmarshal metadata for %q: %w", id, err)
	}
	return &r, nil
}

func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]Record, error) {
	if err := checkAbort(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, workbook_id, vector, text, content_hash, metadata_hash, metadata FROM records`
	args := []any{}
	if opts.WorkbookID != "" {
		query += ` WHERE workbook_id = ?`
		args = append(args, opts.WorkbookID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var vecBuf []byte
		var metaBuf string
		if err := rows.Scan(&r.ID, &r.WorkbookID, &vecBuf, &r.Text, &r.ContentHash, &r.MetadataHash, &metaBuf); err != nil {
			return nil, fmt.Errorf("vectorstore: scan list row: %w", err)
		}
		if opts.IncludeVector {
			r.Vector = decodeVector(vecBuf)
		}
		if err := json.Unmarshal([]byte(metaBuf), &r.Metadata); err != nil {
			return nil, fmt.Errorf("vectorstore: unmarshal metadata for %q: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListContentHashes(ctx context.Context, opts ListOptions) ([]ContentHashEntry, error) {
	if err := checkAbort(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, content_hash, metadata_hash FROM records`
	args := []any{}
	if opts.WorkbookID != "" {
		query += ` WHERE workbook_id = ?`
		args = append(args, opts.WorkbookID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: list content hashes: %w", err)
	}
	defer rows.Close()

	var out []ContentHashEntry
	for rows.Next() {
		var e ContentHashEntry
		if err := rows.Scan(&e.ID, &e.ContentHash, &e.MetadataHash); err != nil {
			return nil, fmt.Errorf("vectorstore: scan content hash row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, ids []string) error {
	if err := checkAbort(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: begin delete: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`DELETE FROM records WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("vectorstore: prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("vectorstore: delete %q: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Query(ctx context.Context, vector []float64, topK float64, opts QueryOptions) ([]ScoredRecord, error) {
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

	all, err := s.List(ctx, ListOptions{WorkbookID: opts.WorkbookID, IncludeVector: true})
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredRecord, len(all))
	for i, r := range all {
		scored[i] = ScoredRecord{Record: r, Score: cosineSimilarity(vector, r.Vector)}
	}
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

// Package cachekey computes cache keys for query results and
// serializes concurrent builds of the same key (spec §4.8).
package cachekey

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Signature is the set of inputs a cache key is derived from. Any empty
// required field (every field but FoldingSignature) makes the whole key
// unavailable, since it means
// the caller couldn't establish that part of the signature — per spec,
// that forces a cache bypass rather than a guess.
type Signature struct {
	QuerySignature   string
	SourceSignature  string
	ContextSignature string
	OperationsHash   string
	FoldingSignature string // optional; empty when folding didn't apply
}

// Key computes the sha256 of the canonical JSON encoding of sig, or
// reports ok=false when sig is missing a required field and the
// caller should bypass the cache for this call.
func Key(sig Signature) (key string, ok bool) {
	if sig.QuerySignature == "" || sig.SourceSignature == "" || sig.ContextSignature == "" || sig.OperationsHash == "" {
		return "", false
	}
	// map keys sorted by encoding/json already gives us canonical
	// ordering; the struct's field order is fixed so this is
	// deterministic across calls regardless of map iteration.
	b, err := json.Marshal(sig)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), true
}

// BuildFunc produces the value for a cache miss.
type BuildFunc func() (any, error)

// Manager serializes concurrent builds of the same key: the first
// caller for a key runs build; every other concurrent caller for that
// same key waits on the first caller's result instead of starting a
// duplicate build (spec §4.8). It is the one piece of shared mutable
// state in the engine besides the stores themselves. Eviction is LRU,
// bounded by maxEntries (0 means unbounded).
type Manager struct {
	mu         sync.Mutex
	inFlight   map[string]*buildFuture
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	maxEntries int
}

type lruEntry struct {
	key   string
	value any
}

type buildFuture struct {
	done  chan struct{}
	value any
	err   error
}

// New returns an empty Manager with unbounded storage.
func New() *Manager {
	return NewWithCapacity(0)
}

// NewWithCapacity returns an empty Manager that evicts its
// least-recently-used entry once more than maxEntries are published.
// maxEntries <= 0 means unbounded.
func NewWithCapacity(maxEntries int) *Manager {
	return &Manager{
		inFlight:   make(map[string]*buildFuture),
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

// Get returns a previously published value for key, if any.
func (m *Manager) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	m.order.MoveToFront(el)
	return el.Value.(*lruEntry).value, true
}

// GetOrBuild returns the cached value for key, building it with build
// if absent. Concurrent callers for the same key block on the first
// caller's build rather than each starting their own (at-most-one
// concurrent build per key).
func (m *Manager) GetOrBuild(key string, build BuildFunc) (any, error) {
	m.mu.Lock()
	if el, ok := m.entries[key]; ok {
		m.order.MoveToFront(el)
		v := el.Value.(*lruEntry).value
		m.mu.Unlock()
		return v, nil
	}
	if f, ok := m.inFlight[key]; ok {
		m.mu.Unlock()
		<-f.done
		return f.value, f.err
	}
	f := &buildFuture{done: make(chan struct{})}
	m.inFlight[key] = f
	m.mu.Unlock()

	f.value, f.err = build()
	close(f.done)

	m.mu.Lock()
	delete(m.inFlight, key)
	if f.err == nil {
		m.publishLocked(key, f.value)
	}
	m.mu.Unlock()

	return f.value, f.err
}

func (m *Manager) publishLocked(key string, value any) {
	if el, ok := m.entries[key]; ok {
		el.Value.(*lruEntry).value = value
		m.order.MoveToFront(el)
		return
	}
	el := m.order.PushFront(&lruEntry{key: key, value: value})
	m.entries[key] = el
	if m.maxEntries > 0 && m.order.Len() > m.maxEntries {
		oldest := m.order.Back()
		if oldest != nil {
			m.order.Remove(oldest)
			delete(m.entries, oldest.Value.(*lruEntry).key)
		}
	}
}

// Evict removes key's published value, if present.
func (m *Manager) Evict(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[key]; ok {
		m.order.Remove(el)
		delete(m.entries, key)
	}
}

// NewBuildToken returns a fresh identifier for a single build attempt,
// used by callers that need to correlate progress events or log lines
// with one particular in-flight build.
func NewBuildToken() string {
	return uuid.NewString()
}

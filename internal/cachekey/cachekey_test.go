package cachekey

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIsDeterministicForEqualSignatures(t *testing.T) {
	sig := Signature{QuerySignature: "q", SourceSignature: "s", ContextSignature: "c", OperationsHash: "o"}
	k1, ok1 := Key(sig)
	k2, ok2 := Key(sig)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, k1, k2)
}

func TestKeyDiffersWhenFoldingSignatureDiffers(t *testing.T) {
	base := Signature{QuerySignature: "q", SourceSignature: "s", ContextSignature: "c", OperationsHash: "o"}
	folded := base
	folded.FoldingSignature = "fold1"
	k1, _ := Key(base)
	k2, _ := Key(folded)
	assert.NotEqual(t, k1, k2)
}

func TestKeyUnavailableWhenSignatureMissing(t *testing.T) {
	_, ok := Key(Signature{QuerySignature: "q", SourceSignature: "s", ContextSignature: ""})
	assert.False(t, ok)
}

func TestGetOrBuildCachesResult(t *testing.T) {
	m := New()
	var calls int32
	build := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		return 42, nil
	}
	v1, err := m.GetOrBuild("k", build)
	require.NoError(t, err)
	v2, err := m.GetOrBuild("k", build)
	require.NoError(t, err)
	assert.Equal(t, 42, v1)
	assert.Equal(t, 42, v2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrBuildJoinsInFlightBuild(t *testing.T) {
	m := New()
	var calls int32
	release := make(chan struct{})
	build := func() (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "done", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _ := m.GetOrBuild("shared", build)
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "done", results[0])
	assert.Equal(t, "done", results[1])
}

func TestGetOrBuildDoesNotCacheErrors(t *testing.T) {
	m := New()
	boom := errors.New("boom")
	var calls int32
	build := func() (any, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return nil, boom
		}
		return "ok", nil
	}
	_, err := m.GetOrBuild("k", build)
	assert.ErrorIs(t, err, boom)
	v, err := m.GetOrBuild("k", build)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestEvictRemovesPublishedValue(t *testing.T) {
	m := New()
	_, _ = m.GetOrBuild("k", func() (any, error) { return 1, nil })
	m.Evict("k")
	_, ok := m.Get("k")
	assert.False(t, ok)
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	m := NewWithCapacity(2)
	_, _ = m.GetOrBuild("a", func() (any, error) { return 1, nil })
	_, _ = m.GetOrBuild("b", func() (any, error) { return 2, nil })
	m.Get("a") // touch a, making b the LRU entry
	_, _ = m.GetOrBuild("c", func() (any, error) { return 3, nil })

	_, bOK := m.Get("b")
	_, aOK := m.Get("a")
	_, cOK := m.Get("c")
	assert.False(t, bOK)
	assert.True(t, aOK)
	assert.True(t, cOK)
}

func TestNewBuildTokenIsUnique(t *testing.T) {
	assert.NotEqual(t, NewBuildToken(), NewBuildToken())
}

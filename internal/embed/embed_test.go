package embed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func vectorNorm(v []float64) float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	return math.Sqrt(sumSq)
}

func TestEmbedEmptyTextYieldsZeroVector(t *testing.T) {
	e := New(64, 0)
	v := e.Embed("   ")
	for _, x := range v {
		assert.Equal(t, 0.0, x)
	}
}

func TestEmbedIsL2Normalized(t *testing.T) {
	e := New(64, 0)
	v := e.Embed("revenue by region and quarter")
	norm := vectorNorm(v)
	assert.InDelta(t, 1.0, norm, 1e-9)
}

func TestEmbedIsDeterministic(t *testing.T) {
	e := New(64, 0)
	a := e.Embed("North America Revenue")
	b := e.Embed("North America Revenue")
	assert.Equal(t, a, b)
}

func TestEmbedDifferentTextsProduceDifferentVectors(t *testing.T) {
	e := New(64, 0)
	a := e.Embed("apples")
	b := e.Embed("oranges")
	assert.NotEqual(t, a, b)
}

func TestIdentityStringIncludesDimension(t *testing.T) {
	e := New(128, 0)
	assert.Equal(t, "hash:v2:128", e.Identity())
}

func TestTokenizeSplitsCamelCase(t *testing.T) {
	toks := tokenize("camelCaseWord")
	assert.Equal(t, []string{"camel", "case", "word"}, toks)
}

func TestTokenizeSplitsAcronymBoundary(t *testing.T) {
	toks := tokenize("HTTPServer")
	assert.Equal(t, []string{"http", "server"}, toks)
}

func TestTokenizeSplitsDigitBoundary(t *testing.T) {
	toks := tokenize("Q4Revenue2024")
	assert.Equal(t, []string{"q", "4", "revenue", "2024"}, toks)
}

func TestTokenizeSplitsUnderscoresAndPunctuation(t *testing.T) {
	toks := tokenize("north_america, revenue!")
	assert.Equal(t, []string{"north", "america", "revenue"}, toks)
}

func TestTokenizeTreatsNonASCIIAsSeparator(t *testing.T) {
	toks := tokenize("café menu")
	assert.Equal(t, []string{"caf", "menu"}, toks)
}

func TestTokenizeNeverPanicsOnEmptyInput(t *testing.T) {
	assert.NotPanics(t, func() {
		tokenize("")
	})
}

func TestEmbedTextsEmbedsEachIndependently(t *testing.T) {
	e := New(32, 0)
	vecs := e.EmbedTexts([]string{"alpha", "beta"})
	assert.Len(t, vecs, 2)
	assert.Equal(t, e.Embed("alpha"), vecs[0])
	assert.Equal(t, e.Embed("beta"), vecs[1])
}

func TestHashTokenCacheClearsAtCapacity(t *testing.T) {
	e := New(64, 2)
	e.hashToken("a")
	e.hashToken("b")
	assert.Len(t, e.cache, 2)
	e.hashToken("c")
	assert.LessOrEqual(t, len(e.cache), 2)
}

func TestHashTokenCacheReturnsConsistentResult(t *testing.T) {
	e := New(64, 8)
	idx1, sign1 := e.hashToken("revenue")
	idx2, sign2 := e.hashToken("revenue")
	assert.Equal(t, idx1, idx2)
	assert.Equal(t, sign1, sign2)
}

// Package config loads the engine's TOML configuration file: cache
// sizing, region-detector limits, the hash embedder's dimension, and
// connector timeouts, following the same top-level-keys-not-nested
// layout the schema TOML parser uses.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// EngineConfig is the top-level TOML document. [cache], [detector],
// [embedder], and [connectors] are all top-level keys, not nested
// under a single root table.
type EngineConfig struct {
	Cache      CacheConfig      `toml:"cache"`
	Detector   DetectorConfig   `toml:"detector"`
	Embedder   EmbedderConfig   `toml:"embedder"`
	Connectors ConnectorsConfig `toml:"connectors"`
}

// CacheConfig maps [cache].
type CacheConfig struct {
	MaxEntries int `toml:"max_entries"`
	TTLSeconds int `toml:"ttl_seconds"`
}

// TTL returns the configured time-to-live as a time.Duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// DetectorConfig maps [detector], the Region Detector and Chunker's
// sizing limits (spec §4.13/§4.14's maxRows/maxCols/overlap threshold).
type DetectorConfig struct {
	MaxChunkRows      int     `toml:"max_chunk_rows"`
	MaxChunkCols      int     `toml:"max_chunk_cols"`
	OverlapThreshold  float64 `toml:"overlap_threshold"`
	MaxFormulasPerRow int     `toml:"max_formulas_per_row"`
}

// EmbedderConfig maps [embedder].
type EmbedderConfig struct {
	Dimension int `toml:"dimension"`
	CacheSize int `toml:"cache_size"`
}

// ConnectorsConfig maps [connectors], the connector timeout setting.
// It is parsed and validated here; no source adapter reads it.
type ConnectorsConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Timeout returns the configured connector timeout as a time.Duration.
func (c ConnectorsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Defaults returns the configuration applied when no file is loaded
// or a field is omitted from it.
func Defaults() EngineConfig {
	return EngineConfig{
		Cache: CacheConfig{
			MaxEntries: 500,
			TTLSeconds: 300,
		},
		Detector: DetectorConfig{
			MaxChunkRows:      200,
			MaxChunkCols:      50,
			OverlapThreshold:  0.8,
			MaxFormulasPerRow: 20,
		},
		Embedder: EmbedderConfig{
			Dimension: 256,
			CacheSize: 10000,
		},
		Connectors: ConnectorsConfig{
			TimeoutSeconds: 30,
		},
	}
}

// Parser reads engine TOML configuration files.
type Parser struct{}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile opens the file at path and parses it as engine config.
func (p *Parser) ParseFile(path string) (*EngineConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open file %q: %w", path, err)
	}
	defer f.Close()

	return p.Parse(f)
}

// Parse reads TOML content from r. Fields left unset by the document
// keep the value already in cfg at decode time, so starting from
// Defaults() means an omitted section (or field within one) falls
// back to its default rather than its zero value.
func (p *Parser) Parse(r io.Reader) (*EngineConfig, error) {
	cfg := Defaults()
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode error: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidationError reports a structurally valid but semantically
// out-of-range configuration value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func validate(cfg *EngineConfig) error {
	switch {
	case cfg.Cache.MaxEntries <= 0:
		return &ValidationError{Field: "cache.max_entries", Reason: "must be positive"}
	case cfg.Cache.TTLSeconds < 0:
		return &ValidationError{Field: "cache.ttl_seconds", Reason: "must not be negative"}
	case cfg.Detector.MaxChunkRows <= 0:
		return &ValidationError{Field: "detector.max_chunk_rows", Reason: "must be positive"}
	case cfg.Detector.MaxChunkCols <= 0:
		return &ValidationError{Field: "detector.max_chunk_cols", Reason: "must be positive"}
	case cfg.Detector.OverlapThreshold <= 0 || cfg.Detector.OverlapThreshold > 1:
		return &ValidationError{Field: "detector.overlap_threshold", Reason: "must be in (0,1]"}
	case cfg.Embedder.Dimension <= 0:
		return &ValidationError{Field: "embedder.dimension", Reason: "must be positive"}
	case cfg.Connectors.TimeoutSeconds <= 0:
		return &ValidationError{Field: "connectors.timeout_seconds", Reason: "must be positive"}
	}
	return nil
}

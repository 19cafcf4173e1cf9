package main

import (
	"fmt"

	"flowsheet/internal/config"
)

// loadConfig reads the engine config at path, or returns Defaults()
// when path is empty.
func loadConfig(path string) (*config.EngineConfig, error) {
	if path == "" {
		cfg := config.Defaults()
		return &cfg, nil
	}
	cfg, err := config.NewParser().ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

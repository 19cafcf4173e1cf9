package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flowsheet/internal/cachekey"
	"flowsheet/internal/engine"
	"flowsheet/internal/privacy"
	"flowsheet/internal/query"
	"flowsheet/internal/table"
)

type runFlags struct {
	outFile string
	format  string
}

func runCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <query.m>",
		Short: "Execute an M-language query file and print the resulting grid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.outFile, "output", "o", "", "Output file for the result grid (stdout if omitted)")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "json", "Output format: json")
	return cmd
}

func runRun(cmd *cobra.Command, path string, flags *runFlags) error {
	if flags.format != "json" {
		return fmt.Errorf("unsupported format %q: only \"json\" is supported", flags.format)
	}

	configPath, _ := cmd.Flags().GetString("config")
	logFile, _ := cmd.Flags().GetString("log-file")
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read query file %q: %w", path, err)
	}

	q, err := query.CompileM(path, path, string(src))
	if err != nil {
		return fmt.Errorf("compile query %q: %w", path, err)
	}

	logger := newLogger(logFile)
	defer func() { _ = logger.Sync() }()

	eng := engine.New(nil, map[string]*query.Query{q.ID: q}, engine.Options{
		Logger:  logger,
		Cache:   cachekey.NewWithCapacity(cfg.Cache.MaxEntries),
		Privacy: privacy.Levels{},
	})

	result, err := eng.ExecuteQuery(context.Background(), q)
	if err != nil {
		return fmt.Errorf("execute query: %w", err)
	}

	grid := result.ToGrid(table.ToGridOptions{IncludeHeader: true})
	return writeGridJSON(grid, flags.outFile)
}

func writeGridJSON(grid [][]any, outFile string) error {
	data, err := json.MarshalIndent(grid, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result grid: %w", err)
	}

	if outFile == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(outFile, append(data, '\n'), 0o644)
}

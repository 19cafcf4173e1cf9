package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"flowsheet/internal/chunk"
	"flowsheet/internal/embed"
	"flowsheet/internal/index"
	"flowsheet/internal/progress"
	"flowsheet/internal/vectorstore"
)

type indexFlags struct {
	storePath string
	useMemory bool
}

func indexCmd() *cobra.Command {
	flags := &indexFlags{}
	cmd := &cobra.Command{
		Use:   "index <workbook.json>",
		Short: "Run the RAG indexing pipeline against a workbook file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.storePath, "store", "flowsheet.vectors.db", "Path to the SQLite vector store")
	cmd.Flags().BoolVar(&flags.useMemory, "in-memory", false, "Use a throwaway in-memory store instead of --store (nothing persists)")
	return cmd
}

func runIndex(cmd *cobra.Command, path string, flags *indexFlags) error {
	configPath, _ := cmd.Flags().GetString("config")
	logFile, _ := cmd.Flags().GetString("log-file")
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	workbookID, sheets, err := loadWorkbook(path)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(flags, cfg.Embedder.Dimension)
	if err != nil {
		return err
	}
	defer closeStore()

	embedder := embed.New(cfg.Embedder.Dimension, cfg.Embedder.CacheSize)
	logger := newLogger(logFile)
	defer func() { _ = logger.Sync() }()

	result, err := index.IndexWorkbook(context.Background(), workbookID, sheets, chunk.Limits{
		MaxRows:           cfg.Detector.MaxChunkRows,
		MaxCols:           cfg.Detector.MaxChunkCols,
		SuppressThreshold: cfg.Detector.OverlapThreshold,
	}, store, embedder, index.Options{
		OnProgress: func(e progress.Event) {
			logger.Info("index progress", zapPhase(e)...)
		},
	})
	if err != nil {
		return fmt.Errorf("index workbook %q: %w", workbookID, err)
	}

	fmt.Printf("indexed %q: %d chunks, %d upserted, %d skipped, %d deleted\n",
		workbookID, result.TotalChunks, result.Upserted, result.Skipped, result.Deleted)
	return nil
}

func openStore(flags *indexFlags, dimension int) (vectorstore.Store, func(), error) {
	if flags.useMemory {
		return vectorstore.NewMemoryStore(dimension), func() {}, nil
	}
	store, err := vectorstore.OpenSQLiteStore(flags.storePath, dimension, true)
	if err != nil {
		return nil, nil, fmt.Errorf("open vector store %q: %w", flags.storePath, err)
	}
	return store, func() { _ = store.Close() }, nil
}

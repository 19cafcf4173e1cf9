package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flowsheet/internal/embed"
	"flowsheet/internal/retrieval"
	"flowsheet/internal/vectorstore"
)

type searchFlags struct {
	storePath  string
	workbookID string
	topK       float64
	rerank     bool
	dedupe     bool
}

func searchCmd() *cobra.Command {
	flags := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search <query text>",
		Short: "Run retrieval against an indexed workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.storePath, "store", "flowsheet.vectors.db", "Path to the SQLite vector store")
	cmd.Flags().StringVar(&flags.workbookID, "workbook-id", "", "Restrict results to one workbook (required)")
	cmd.Flags().Float64Var(&flags.topK, "top-k", 5, "Number of results to return")
	cmd.Flags().BoolVar(&flags.rerank, "rerank", true, "Boost results whose text contains query terms")
	cmd.Flags().BoolVar(&flags.dedupe, "dedupe", true, "Drop lower-scored results that overlap a higher-scored chunk's rect")
	return cmd
}

func runSearch(cmd *cobra.Command, queryText string, flags *searchFlags) error {
	if flags.workbookID == "" {
		return fmt.Errorf("--workbook-id is required")
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	store, err := vectorstore.OpenSQLiteStore(flags.storePath, cfg.Embedder.Dimension, false)
	if err != nil {
		return fmt.Errorf("open vector store %q: %w", flags.storePath, err)
	}
	defer func() { _ = store.Close() }()

	embedder := embed.New(cfg.Embedder.Dimension, cfg.Embedder.CacheSize)

	results, err := retrieval.SearchWorkbookRAG(context.Background(), store, embedder, retrieval.Options{
		QueryText:  queryText,
		WorkbookID: flags.workbookID,
		TopK:       flags.topK,
		Rerank:     flags.rerank,
		Dedupe:     flags.dedupe,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	return writeSearchResults(results)
}

func writeSearchResults(results []retrieval.Result) error {
	type hit struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
		Text  string  `json:"text"`
	}
	out := make([]hit, len(results))
	for i, r := range results {
		out[i] = hit{ID: r.Record.ID, Score: r.Score, Text: r.Record.Text}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal search results: %w", err)
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}

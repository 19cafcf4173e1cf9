// Package main contains the cli implementation of the tool. It uses
// cobra for cli implementation, following the same per-subcommand
// flags-struct-plus-RunE shape as the schema toolchain this module was
// built alongside.
package main

import (
	"os"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "flowsheet",
		Short: "Query engine and workbook RAG indexer",
	}

	rootCmd.PersistentFlags().String("config", "", "Path to engine TOML config (defaults applied if omitted)")
	rootCmd.PersistentFlags().String("log-file", "", "Path to a log file; stderr is used when omitted")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(searchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

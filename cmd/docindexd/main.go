package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docindex/internal/cli"
	"github.com/cloo-solutions/docindex/internal/cli/admin"
	"github.com/cloo-solutions/docindex/internal/cli/local"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "docindexd",
		Short:        "Docindex daemon and CLI",
		Long:         "Docindex splits documents into chunks and keeps a search index in sync with them",
		SilenceUsage: true,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.ReindexStaleCmd())
	rootCmd.AddCommand(local.ChunkCmd())
	rootCmd.AddCommand(local.IndexCmd())
	rootCmd.AddCommand(local.SearchCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

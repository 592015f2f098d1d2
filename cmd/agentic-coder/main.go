package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "agentic-coder",
		Short: "Agentic Coder - local-model coding agent",
		Long: `Agentic Coder runs coding tasks against projects in a workspace using a
locally hosted model. Submitted runs are queued, processed by a worker that
proposes full-file edits inside the project sandbox, and recorded as diffs
awaiting file-level review.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

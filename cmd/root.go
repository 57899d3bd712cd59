// Package cmd implements the anser command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var debugChunks bool

var rootCmd = &cobra.Command{
	Use:   "anser",
	Short: "Anser answers questions grounded in your documents",
	Long: `Anser is a retrieval-augmented question-answering tool.

Ingest documents once, then ask questions; answers are grounded in the
ingested text and cite their sources. Running anser with no subcommand
starts an interactive chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugChunks, "debug", false,
		"print retrieved chunks before each answer")
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var useCache bool

	rootCmd := &cobra.Command{
		Use:   "sdig [path]",
		Short: "Session digest - summarize a Claude Code conversation log",
		Long: `Reads a Claude Code JSONL session and prints the first 25 messages,
messages 100-120 and the last 20, each cut to 800 characters.

Without a path the source comes from $SDIG_SOURCE, source_path in
~/.config/sdig/config.toml, or the newest session under claude_root.`,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd, args, useCache)
		},
	}
	rootCmd.Flags().BoolVar(&useCache, "cache", false, "Serve unchanged sessions from the digest cache")

	rootCmd.AddCommand(digestCmd())
	rootCmd.AddCommand(viewCmd())
	rootCmd.AddCommand(indexCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(openCmd())
	rootCmd.AddCommand(doctorCmd())

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/session-digest/internal/index"
)

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Parse every session under claude_root into the digest cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			db, err := index.OpenDB(a.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			stderr := cmd.ErrOrStderr()
			fmt.Fprintf(stderr, "Scanning %s\n", a.cfg.ClaudeRoot)

			stats, err := index.IndexAll(ctx, db, a.cfg.ClaudeRoot, a.parseOptions())
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			fmt.Fprintf(stderr, "Done. %s\n", stats)
			return nil
		},
	}
}

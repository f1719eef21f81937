package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/session-digest/internal/index"
)

func listCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions under claude_root, newest first",
		Long: `Refreshes the digest cache and prints one TSV row per session:
  path, messages, lines, last timestamp`,
		Args: cobra.NoArgs,
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

			if _, err := index.IndexAll(ctx, db, a.cfg.ClaudeRoot, a.parseOptions()); err != nil {
				return fmt.Errorf("index: %w", err)
			}

			rows, err := db.ListSources()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, r := range rows {
				if limit > 0 && i >= limit {
					break
				}
				last := r.LastTS
				if last == "" {
					last = "-"
				}
				fmt.Fprintf(out, "%s\t%d\t%d\t%s\n", r.Path, r.Records, r.Lines, last)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Max rows (0 = no limit)")

	return cmd
}

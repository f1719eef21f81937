package main

import (
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/session-digest/internal/open"
)

func openCmd() *cobra.Command {
	var record int

	cmd := &cobra.Command{
		Use:   "open [path]",
		Short: "Open the session file in $EDITOR at a message's line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			path, err := a.resolveSource(args)
			if err != nil {
				return err
			}
			s, err := a.loadSession(ctx, path, a.cfg.Cache)
			if err != nil {
				return err
			}

			line, err := open.LineOf(s, record)
			if err != nil {
				return err
			}
			return open.OpenRecord(path, line)
		},
	}

	cmd.Flags().IntVar(&record, "record", 1, "1-based message position, as printed in the digest")

	return cmd
}

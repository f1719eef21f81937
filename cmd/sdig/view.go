package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/session-digest/internal/tui"
	"github.com/Zuo-Peng/session-digest/internal/window"
)

func viewCmd() *cobra.Command {
	var useCache bool

	cmd := &cobra.Command{
		Use:   "view [path]",
		Short: "Browse the digest windows interactively",
		Long:  `Opens a TUI with one tab per window. Falls back to the plain digest when stdout is not a terminal.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Interactive TUI when stdout is a terminal; plain digest for pipes
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return runDigest(cmd, args, useCache)
			}

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
			s, err := a.loadSession(ctx, path, useCache || a.cfg.Cache)
			if err != nil {
				return err
			}

			return tui.Run(s, window.Split(s.Records, a.layout()))
		},
	}
	cmd.Flags().BoolVar(&useCache, "cache", false, "Serve unchanged sessions from the digest cache")

	return cmd
}

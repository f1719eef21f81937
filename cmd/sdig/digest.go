package main

import (
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/session-digest/internal/output"
	"github.com/Zuo-Peng/session-digest/internal/render"
	"github.com/Zuo-Peng/session-digest/internal/window"
)

func digestCmd() *cobra.Command {
	var useCache bool

	cmd := &cobra.Command{
		Use:   "digest [path]",
		Short: "Print the head, middle and tail of a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd, args, useCache)
		},
	}
	cmd.Flags().BoolVar(&useCache, "cache", false, "Serve unchanged sessions from the digest cache")

	return cmd
}

func runDigest(cmd *cobra.Command, args []string, useCache bool) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	// validate the sink before reading anything
	w, err := output.NewWriter(cmd.OutOrStdout(), a.outputOptions())
	if err != nil {
		return err
	}

	path, err := a.resolveSource(args)
	if err != nil {
		return err
	}

	s, err := a.loadSession(ctx, path, useCache || a.cfg.Cache)
	if err != nil {
		return err
	}

	if err := render.WriteReport(w, s, window.Split(s.Records, a.layout())); err != nil {
		return err
	}
	return w.Flush()
}

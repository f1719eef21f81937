package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/session-digest/internal/config"
	"github.com/Zuo-Peng/session-digest/internal/index"
	"github.com/Zuo-Peng/session-digest/internal/output"
	"github.com/Zuo-Peng/session-digest/internal/scan"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify config, source, output encoding and cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "=== Config ===")
			if cfg.File != "" {
				fmt.Fprintf(out, "  File: %s\n", cfg.File)
			} else {
				fmt.Fprintln(out, "  File: (none, using defaults)")
			}
			d := cfg.Digest
			fmt.Fprintf(out, "  Windows: head=%d middle=%d-%d tail=%d max_chars=%d\n",
				d.HeadSize, d.MiddleFirst, d.MiddleLast, d.TailSize, d.MaxChars)

			fmt.Fprintln(out, "\n=== Roots ===")
			checkDir(out, "Claude", cfg.ClaudeRoot)
			if files, err := scan.ScanRoot(cfg.ClaudeRoot); err != nil {
				fmt.Fprintf(out, "  scan error: %v\n", err)
			} else {
				fmt.Fprintf(out, "  Session files: %d\n", len(files))
			}

			fmt.Fprintln(out, "\n=== Source ===")
			switch {
			case cfg.SourcePath != "":
				checkFile(out, "Configured", cfg.SourcePath)
			default:
				if latest, err := scan.Latest(cfg.ClaudeRoot); err != nil {
					fmt.Fprintf(out, "  Newest: %v\n", err)
				} else {
					checkFile(out, "Newest", latest.Path)
				}
			}

			fmt.Fprintln(out, "\n=== Output ===")
			opts := output.Options{Encoding: cfg.Output.Encoding, OnError: cfg.Output.OnError}
			if w, err := output.NewWriter(io.Discard, opts); err != nil {
				fmt.Fprintf(out, "  Status: INVALID (%v)\n", err)
			} else {
				fmt.Fprintf(out, "  Encoding: %s, on_error: %s (OK)\n", w.Name(), cfg.Output.OnError)
			}

			fmt.Fprintln(out, "\n=== Cache ===")
			fmt.Fprintf(out, "  Path: %s\n", cfg.DBPath)
			if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
				fmt.Fprintln(out, "  Status: NOT FOUND (run 'sdig index' first)")
				return nil
			}

			db, err := index.OpenDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer db.Close()

			sources, err := db.SourceCount()
			if err != nil {
				return fmt.Errorf("count sources: %w", err)
			}
			records, err := db.RecordCount()
			if err != nil {
				return fmt.Errorf("count records: %w", err)
			}
			fmt.Fprintf(out, "  Sessions: %d\n", sources)
			fmt.Fprintf(out, "  Messages: %d\n", records)

			if info, err := os.Stat(cfg.DBPath); err == nil {
				sizeMB := float64(info.Size()) / 1024 / 1024
				fmt.Fprintf(out, "\n=== DB Size: %.1f MB ===\n", sizeMB)
			}
			return nil
		},
	}
}

func checkDir(out io.Writer, name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Fprintf(out, "  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Fprintf(out, "  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Fprintf(out, "  %s: %s (OK)\n", name, path)
	}
}

func checkFile(out io.Writer, name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Fprintf(out, "  %s: %s (NOT FOUND)\n", name, path)
	} else if info.IsDir() {
		fmt.Fprintf(out, "  %s: %s (IS A DIRECTORY)\n", name, path)
	} else {
		fmt.Fprintf(out, "  %s: %s (OK, %d bytes)\n", name, path, info.Size())
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Zuo-Peng/session-digest/internal/config"
	"github.com/Zuo-Peng/session-digest/internal/index"
	"github.com/Zuo-Peng/session-digest/internal/logging"
	"github.com/Zuo-Peng/session-digest/internal/output"
	"github.com/Zuo-Peng/session-digest/internal/parse"
	"github.com/Zuo-Peng/session-digest/internal/scan"
	"github.com/Zuo-Peng/session-digest/internal/telemetry"
	"github.com/Zuo-Peng/session-digest/internal/window"
)

// app carries what every subcommand needs: config, logger and telemetry.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup []func()
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, logCloser, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}
	a.cleanup = append(a.cleanup, func() { logCloser.Close() })

	shutdown, err := telemetry.Init(ctx, telemetry.Options{
		TraceFile:   cfg.Telemetry.TraceFile,
		MetricsFile: cfg.Telemetry.MetricsFile,
		Version:     version,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.cleanup = append(a.cleanup, shutdown)

	if cfg.File != "" {
		logger.Debug("config loaded", "file", cfg.File)
	}
	return a, nil
}

// close runs cleanups in reverse order so telemetry flushes before the log
// file is closed.
func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

func (a *app) parseOptions() parse.Options {
	return parse.Options{MaxChars: a.cfg.Digest.MaxChars}
}

func (a *app) layout() window.Layout {
	d := a.cfg.Digest
	return window.Layout{
		HeadSize:    d.HeadSize,
		MiddleFirst: d.MiddleFirst,
		MiddleLast:  d.MiddleLast,
		TailSize:    d.TailSize,
	}
}

func (a *app) outputOptions() output.Options {
	return output.Options{Encoding: a.cfg.Output.Encoding, OnError: a.cfg.Output.OnError}
}

// resolveSource picks the session file: explicit argument, then the
// configured source (config file or $SDIG_SOURCE), then the newest session
// under claude_root.
func (a *app) resolveSource(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if a.cfg.SourcePath != "" {
		return a.cfg.SourcePath, nil
	}
	latest, err := scan.Latest(a.cfg.ClaudeRoot)
	if err != nil {
		return "", fmt.Errorf("no source given and none found under %s: %w", a.cfg.ClaudeRoot, err)
	}
	a.logger.Info("using newest session", "path", latest.Path)
	return latest.Path, nil
}

// loadSession parses path, through the cache when useCache is set. A cache
// that cannot be opened is skipped.
func (a *app) loadSession(ctx context.Context, path string, useCache bool) (*parse.Session, error) {
	if !useCache {
		return parse.ParseFile(ctx, path, a.parseOptions())
	}

	db, err := index.OpenDB(a.cfg.DBPath)
	if err != nil {
		a.logger.Warn("digest cache unavailable", "db", a.cfg.DBPath, "error", err)
		return parse.ParseFile(ctx, path, a.parseOptions())
	}
	defer db.Close()

	s, hit, err := index.Load(ctx, db, path, a.parseOptions())
	if err != nil {
		return nil, err
	}
	a.logger.Debug("session loaded", "path", path, "cache_hit", hit, "records", len(s.Records))
	return s, nil
}

package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Zuo-Peng/session-digest/internal/parse"
	"github.com/Zuo-Peng/session-digest/internal/scan"
)

var tracer = otel.Tracer("github.com/Zuo-Peng/session-digest/internal/index")

type Stats struct {
	Scanned int
	Updated int
	Skipped int
	Pruned  int
	Errors  int
}

func (s Stats) String() string {
	return fmt.Sprintf("scanned=%d updated=%d skipped=%d pruned=%d errors=%d",
		s.Scanned, s.Updated, s.Skipped, s.Pruned, s.Errors)
}

// Load returns the session stored in path, served from the cache when the
// file's mtime and size and the truncation budget are unchanged. The source
// is always opened, so an unreadable file fails even when cached.
func Load(ctx context.Context, db *DB, path string, opts parse.Options) (*parse.Session, bool, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, false, fmt.Errorf("resolve %s: %w", path, err)
	}

	ctx, span := tracer.Start(ctx, "index.load", trace.WithAttributes(attribute.String("path", key)))
	defer span.End()

	f, meta, err := parse.OpenSource(key)
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	maxChars := effectiveMaxChars(opts)
	needs, err := needsUpdate(db, meta, maxChars)
	if err != nil {
		slog.Warn("cache lookup failed", "path", key, "error", err)
		needs = true
	}

	if !needs {
		s, err := db.LoadSession(key)
		if err == nil && s != nil {
			s.Meta = meta
			span.SetAttributes(attribute.Bool("cache_hit", true))
			slog.Debug("cache hit", "path", key, "records", len(s.Records))
			return s, true, nil
		}
		if err != nil {
			slog.Warn("cache read failed", "path", key, "error", err)
		}
	}

	span.SetAttributes(attribute.Bool("cache_hit", false))
	s, err := parse.Parse(ctx, f, opts)
	if err != nil {
		return nil, false, err
	}
	s.Meta = meta

	if err := db.StoreSession(s, maxChars); err != nil {
		slog.Warn("cache write failed", "path", key, "error", err)
	}
	return s, false, nil
}

// IndexAll refreshes the cache for every session under root and prunes
// sources whose files are gone.
func IndexAll(ctx context.Context, db *DB, root string, opts parse.Options) (Stats, error) {
	ctx, span := tracer.Start(ctx, "index.all")
	defer span.End()

	var stats Stats

	files, err := scan.ScanRoot(root)
	if err != nil {
		return stats, fmt.Errorf("scan: %w", err)
	}
	stats.Scanned = len(files)

	// track which files we see, for pruning
	seen := make(map[string]struct{})
	maxChars := effectiveMaxChars(opts)

	for _, fi := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		key, err := filepath.Abs(fi.Path)
		if err != nil {
			key = fi.Path
		}
		seen[key] = struct{}{}

		info, err := db.GetSourceInfo(key)
		if err != nil {
			stats.Errors++
			continue
		}
		if info != nil && info.Mtime == fi.Mtime && info.Size == fi.Size && info.MaxChars == maxChars {
			stats.Skipped++
			continue
		}

		s, err := parse.ParseFile(ctx, key, opts)
		if err != nil {
			stats.Errors++
			slog.Warn("parse session", "path", key, "error", err)
			continue
		}
		if err := db.StoreSession(s, maxChars); err != nil {
			stats.Errors++
			slog.Warn("index session", "path", key, "error", err)
			continue
		}
		stats.Updated++
	}

	pruned, err := pruneSources(db, root, seen)
	if err != nil {
		return stats, fmt.Errorf("prune: %w", err)
	}
	stats.Pruned = pruned

	span.SetAttributes(
		attribute.Int("scanned", stats.Scanned),
		attribute.Int("updated", stats.Updated),
	)
	return stats, nil
}

func effectiveMaxChars(opts parse.Options) int {
	if opts.MaxChars <= 0 {
		return parse.DefaultMaxChars
	}
	return opts.MaxChars
}

func needsUpdate(db *DB, meta parse.SourceMeta, maxChars int) (bool, error) {
	info, err := db.GetSourceInfo(meta.Path)
	if err != nil {
		return false, err
	}
	if info == nil {
		return true, nil // new source
	}
	return info.Mtime != meta.Mtime.UnixNano() || info.Size != meta.Size || info.MaxChars != maxChars, nil
}

// pruneSources drops cached sources under root that were not seen. Sources
// cached from elsewhere are left alone.
func pruneSources(db *DB, root string, seen map[string]struct{}) (int, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return 0, err
	}
	prefix := absRoot + string(filepath.Separator)

	all, err := db.AllSourcePaths()
	if err != nil {
		return 0, err
	}

	pruned := 0
	for path := range all {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		if _, ok := seen[path]; !ok {
			if err := db.DeleteSource(path); err != nil {
				return pruned, err
			}
			pruned++
		}
	}
	return pruned, nil
}

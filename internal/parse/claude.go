package parse

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// maxLineSize caps the bytes buffered for one line. Longer lines are
// counted and skipped.
const maxLineSize = 64 * 1024 * 1024 // 64MB

// DefaultMaxChars is the per-record text budget, in code points.
const DefaultMaxChars = 800

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const instrumentationName = "github.com/Zuo-Peng/session-digest/internal/parse"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	linesCounter, _   = meter.Int64Counter("sdig.lines", metric.WithDescription("Input lines read"))
	recordsCounter, _ = meter.Int64Counter("sdig.records", metric.WithDescription("Records extracted"))
)

type Options struct {
	MaxChars int // 0 = DefaultMaxChars
}

func (o Options) maxChars() int {
	if o.MaxChars <= 0 {
		return DefaultMaxChars
	}
	return o.MaxChars
}

// ParseFile opens filePath and extracts every record from it.
func ParseFile(ctx context.Context, filePath string, opts Options) (*Session, error) {
	f, meta, err := OpenSource(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Parse(ctx, f, opts)
	if err != nil {
		return nil, err
	}
	s.Meta = meta
	return s, nil
}

// OpenSource opens a session file and stats it. The caller closes the file.
func OpenSource(filePath string) (*os.File, SourceMeta, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, SourceMeta{}, fmt.Errorf("open source: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, SourceMeta{}, fmt.Errorf("stat source: %w", err)
	}
	return f, SourceMeta{Path: filePath, Mtime: info.ModTime(), Size: info.Size()}, nil
}

// Parse reads r to completion. Lines that are not qualifying records are
// counted and skipped; only read errors are returned.
func Parse(ctx context.Context, r io.Reader, opts Options) (*Session, error) {
	return parseLines(ctx, r, opts, maxLineSize)
}

func parseLines(ctx context.Context, r io.Reader, opts Options, maxLine int) (*Session, error) {
	ctx, span := tracer.Start(ctx, "parse.session")
	defer span.End()

	ls := &lineSplitter{max: maxLine}
	scanner := bufio.NewScanner(r)
	// two spare bytes so a full line plus "\r\n" always fits
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine+2)
	scanner.Split(ls.split)

	maxChars := opts.maxChars()
	s := &Session{}
	for scanner.Scan() {
		s.Lines++
		if s.Lines%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		res := ExtractLine(scanner.Bytes(), maxChars)
		if !res.OK {
			continue
		}
		res.Record.LineNumber = s.Lines
		s.Records = append(s.Records, res.Record)
	}
	if err := scanner.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read source")
		return nil, fmt.Errorf("read source: %w", err)
	}

	span.SetAttributes(
		attribute.Int("lines", s.Lines),
		attribute.Int("records", len(s.Records)),
	)
	linesCounter.Add(ctx, int64(s.Lines))
	recordsCounter.Add(ctx, int64(len(s.Records)))

	return s, nil
}

// ExtractLine turns one JSONL line into a record. Keys are matched exactly.
func ExtractLine(line []byte, maxChars int) LineResult {
	var rec map[string]json.RawMessage
	if err := json.Unmarshal(line, &rec); err != nil || rec == nil {
		return LineResult{}
	}

	role, ok := stringField(rec["type"])
	if !ok || (role != RoleUser && role != RoleAssistant) {
		return LineResult{}
	}

	text, ok := extractText(rec["message"])
	if !ok {
		return LineResult{}
	}
	if isBlank(text) {
		return LineResult{}
	}

	return LineResult{
		Record: Record{
			Role:      role,
			Text:      truncate(text, maxChars),
			Timestamp: timestampField(rec["timestamp"]),
		},
		OK: true,
	}
}

// extractText concatenates the text blocks of message.content. A shape
// mismatch yields "" with ok=true; a text block whose text is not a string
// makes the whole line unusable (ok=false).
func extractText(raw json.RawMessage) (string, bool) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", true
	}

	var blocks []json.RawMessage
	if err := json.Unmarshal(msg["content"], &blocks); err != nil {
		return "", true
	}

	var b strings.Builder
	for _, raw := range blocks {
		var block map[string]json.RawMessage
		if err := json.Unmarshal(raw, &block); err != nil || block == nil {
			continue
		}
		if typ, ok := stringField(block["type"]); !ok || typ != "text" {
			continue
		}
		t, present := block["text"]
		if !present {
			continue
		}
		s, ok := stringField(t)
		if !ok {
			return "", false
		}
		b.WriteString(s)
	}
	return b.String(), true
}

// stringField decodes raw only if it holds a JSON string; null is not a string.
func stringField(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func timestampField(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if s, ok := stringField(raw); ok {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// isBlank reports whether s is empty or whitespace only. The ASCII
// information separators count as whitespace too.
func isBlank(s string) bool {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
	}) == ""
}

// truncate cuts s to its first n code points.
func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// lineSplitter is a split function that drops lines longer than max
// bytes. Such a line is consumed as it streams in and comes back as an
// empty token, so it still counts as a line.
type lineSplitter struct {
	max        int
	discarding bool
}

func (ls *lineSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	advance, token, err := scanLines(data, atEOF)
	if ls.discarding {
		switch {
		case token != nil:
			ls.discarding = false
			return advance, []byte{}, nil
		case atEOF:
			ls.discarding = false
			return 0, []byte{}, nil
		}
		return pending(data), nil, nil
	}
	if token != nil {
		if len(token) > ls.max {
			return advance, []byte{}, nil
		}
		return advance, token, err
	}
	if n := pending(data); n > ls.max {
		ls.discarding = true
		return n, nil, nil
	}
	return 0, nil, nil
}

// pending is the length of the unterminated line at the start of data. A
// trailing "\r" is left alone since it may begin a "\r\n".
func pending(data []byte) int {
	n := len(data)
	if n > 0 && data[n-1] == '\r' {
		n--
	}
	return n
}

// scanLines splits on "\n", "\r\n" and a lone "\r".
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if !atEOF {
			// need one more byte to tell "\r" from "\r\n"
			return 0, nil, nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

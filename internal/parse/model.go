package parse

import "time"

// SourceMeta identifies the file a session was read from.
type SourceMeta struct {
	Path  string
	Mtime time.Time
	Size  int64
}

type Record struct {
	Role       string // "user" or "assistant"
	Text       string
	Timestamp  string
	LineNumber int // line number in original file
}

// LineResult is the outcome of a single input line. OK is false when the
// line was skipped; skipped lines carry no diagnostic.
type LineResult struct {
	Record Record
	OK     bool
}

type Session struct {
	Meta    SourceMeta
	Lines   int
	Records []Record
}

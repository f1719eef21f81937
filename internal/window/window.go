// Package window selects the fixed inspection windows of a record sequence.
package window

import (
	"fmt"

	"github.com/Zuo-Peng/session-digest/internal/parse"
)

const (
	DefaultHeadSize    = 25
	DefaultMiddleFirst = 100
	DefaultMiddleLast  = 120
	DefaultTailSize    = 20
)

// Layout holds the window bounds. Middle bounds are 1-based and inclusive.
type Layout struct {
	HeadSize    int
	MiddleFirst int
	MiddleLast  int
	TailSize    int
}

func DefaultLayout() Layout {
	return Layout{
		HeadSize:    DefaultHeadSize,
		MiddleFirst: DefaultMiddleFirst,
		MiddleLast:  DefaultMiddleLast,
		TailSize:    DefaultTailSize,
	}
}

type Window struct {
	Title   string
	First   int // 1-based position of Records[0]
	Records []parse.Record
}

// Position returns the 1-based position of the i-th record in the window.
func (w Window) Position(i int) int {
	return w.First + i
}

// Split returns the head, middle and tail windows of records. Windows may
// overlap or be empty.
func Split(records []parse.Record, l Layout) []Window {
	return []Window{
		Head(records, l.HeadSize),
		Middle(records, l.MiddleFirst, l.MiddleLast),
		Tail(records, l.TailSize),
	}
}

func Head(records []parse.Record, size int) Window {
	return Window{
		Title:   "BEGINNING OF CONVERSATION",
		First:   1,
		Records: slice(records, 0, size),
	}
}

func Middle(records []parse.Record, first, last int) Window {
	return Window{
		Title:   fmt.Sprintf("MIDDLE OF CONVERSATION (Messages %d-%d)", first, last),
		First:   first,
		Records: slice(records, first-1, last),
	}
}

func Tail(records []parse.Record, size int) Window {
	start := len(records) - size
	if start < 0 {
		start = 0
	}
	return Window{
		Title:   fmt.Sprintf("END OF CONVERSATION (Last %d messages)", size),
		First:   start + 1,
		Records: slice(records, start, len(records)),
	}
}

// slice returns records[from:to] clamped to the sequence bounds.
func slice(records []parse.Record, from, to int) []parse.Record {
	if from < 0 {
		from = 0
	}
	if to > len(records) {
		to = len(records)
	}
	if from >= to {
		return nil
	}
	return records[from:to]
}

// Package output encodes the digest for the terminal or file it is written to.
package output

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	OnErrorIgnore  = "ignore"
	OnErrorReplace = "replace"
	OnErrorStrict  = "strict"
)

const DefaultEncoding = "utf-8"

type Options struct {
	Encoding string // any WHATWG encoding label; "" = utf-8
	OnError  string // ignore | replace | strict; "" = ignore
}

// ErrUnencodable is returned in strict mode when text cannot be represented
// in the target encoding.
var ErrUnencodable = errors.New("unencodable character")

// Writer converts UTF-8 text to the configured encoding. Incomplete UTF-8
// sequences at the end of a Write are held until the next Write or Flush.
type Writer struct {
	w       io.Writer
	name    string
	enc     *encoding.Encoder // nil for utf-8
	onError string
	pending []byte
}

// Validate checks opts without building a writer.
func Validate(opts Options) error {
	_, err := NewWriter(io.Discard, opts)
	return err
}

func NewWriter(w io.Writer, opts Options) (*Writer, error) {
	onError := strings.ToLower(strings.TrimSpace(opts.OnError))
	switch onError {
	case "":
		onError = OnErrorIgnore
	case OnErrorIgnore, OnErrorReplace, OnErrorStrict:
	default:
		return nil, fmt.Errorf("unknown on_error policy %q", opts.OnError)
	}

	label := strings.TrimSpace(opts.Encoding)
	if label == "" {
		label = DefaultEncoding
	}
	e, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", opts.Encoding, err)
	}
	name, err := htmlindex.Name(e)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", opts.Encoding, err)
	}

	ow := &Writer{w: w, name: name, onError: onError}
	if name != DefaultEncoding {
		ow.enc = e.NewEncoder()
	}
	return ow, nil
}

// Name is the canonical name of the target encoding.
func (w *Writer) Name() string {
	return w.name
}

func (w *Writer) Write(p []byte) (int, error) {
	n := len(p)
	if len(w.pending) > 0 {
		p = append(w.pending, p...)
		w.pending = nil
	}

	cut := incompleteTail(p)
	if cut < len(p) {
		w.pending = append([]byte(nil), p[cut:]...)
		p = p[:cut]
	}

	out, err := w.convert(p)
	if err != nil {
		return 0, err
	}
	if _, err := w.w.Write(out); err != nil {
		return 0, err
	}
	return n, nil
}

// Flush converts any held partial sequence under the error policy.
func (w *Writer) Flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	p := w.pending
	w.pending = nil
	out, err := w.convert(p)
	if err != nil {
		return err
	}
	_, err = w.w.Write(out)
	return err
}

func (w *Writer) convert(p []byte) ([]byte, error) {
	if w.enc == nil {
		if utf8.Valid(p) {
			return p, nil
		}
		switch w.onError {
		case OnErrorReplace:
			return bytes.ToValidUTF8(p, []byte(string(utf8.RuneError))), nil
		case OnErrorStrict:
			return nil, fmt.Errorf("utf-8: invalid byte sequence: %w", ErrUnencodable)
		default:
			return bytes.ToValidUTF8(p, nil), nil
		}
	}

	if out, err := w.enc.Bytes(p); err == nil {
		return out, nil
	}

	// rune by rune so a single bad character does not cost the whole chunk
	var buf bytes.Buffer
	for len(p) > 0 {
		r, size := utf8.DecodeRune(p)
		chunk := p[:size]
		p = p[size:]

		var out []byte
		var err error
		if r == utf8.RuneError && size == 1 {
			err = ErrUnencodable
		} else {
			out, err = w.enc.Bytes(chunk)
		}
		if err == nil {
			buf.Write(out)
			continue
		}

		switch w.onError {
		case OnErrorReplace:
			buf.WriteByte('?')
		case OnErrorStrict:
			return nil, fmt.Errorf("%s: %q: %w", w.name, chunk, ErrUnencodable)
		}
	}
	return buf.Bytes(), nil
}

// incompleteTail returns the index where a trailing, possibly incomplete
// UTF-8 sequence starts, or len(p) when p ends on a rune boundary.
func incompleteTail(p []byte) int {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(p[i]) {
			continue
		}
		if utf8.FullRune(p[i:]) {
			return len(p)
		}
		return i
	}
	return len(p)
}

package parse_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Zuo-Peng/session-digest/internal/parse"
)

func textLine(role, text string) string {
	return `{"type":"` + role + `","message":{"content":[{"type":"text","text":"` + text + `"}]}}`
}

func TestParseExample(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"user","message":{"content":[{"type":"text","text":"hello"}]}}`,
		`this is not json {`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"world"}]},"timestamp":"t1"}`,
	}, "\n") + "\n"

	s, err := parse.Parse(context.Background(), strings.NewReader(input), parse.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Lines != 3 {
		t.Fatalf("lines = %d, want 3", s.Lines)
	}
	if len(s.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(s.Records))
	}

	want := []parse.Record{
		{Role: "user", Text: "hello", Timestamp: "", LineNumber: 1},
		{Role: "assistant", Text: "world", Timestamp: "t1", LineNumber: 3},
	}
	for i, w := range want {
		if s.Records[i] != w {
			t.Errorf("record %d = %+v, want %+v", i, s.Records[i], w)
		}
	}
}

func TestExtractLineSkips(t *testing.T) {
	cases := map[string]string{
		"malformed":        `{"type":"user","message":`,
		"empty":            ``,
		"array":            `[1,2,3]`,
		"null":             `null`,
		"string":           `"user"`,
		"other type":       `{"type":"summary","message":{"content":[{"type":"text","text":"x"}]}}`,
		"type not string":  `{"type":1,"message":{"content":[{"type":"text","text":"x"}]}}`,
		"no message":       `{"type":"user"}`,
		"message string":   `{"type":"user","message":"hello"}`,
		"content string":   `{"type":"user","message":{"content":"hello"}}`,
		"content object":   `{"type":"user","message":{"content":{"type":"text","text":"x"}}}`,
		"whitespace only":  `{"type":"user","message":{"content":[{"type":"text","text":" \n\t "}]}}`,
		"separator chars":  `{"type":"user","message":{"content":[{"type":"text","text":"\u001c\u001f"}]}}`,
		"no text blocks":   `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Read"}]}}`,
		"text is number":   `{"type":"user","message":{"content":[{"type":"text","text":"a"},{"type":"text","text":5}]}}`,
		"text is null":     `{"type":"user","message":{"content":[{"type":"text","text":null}]}}`,
		"key case differs": `{"TYPE":"user","message":{"content":[{"type":"text","text":"x"}]}}`,
		"role case":        `{"type":"User","message":{"content":[{"type":"text","text":"x"}]}}`,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			if res := parse.ExtractLine([]byte(line), parse.DefaultMaxChars); res.OK {
				t.Fatalf("expected skip, got %+v", res.Record)
			}
		})
	}
}

func TestExtractLineConcatenatesTextBlocks(t *testing.T) {
	line := `{"type":"assistant","timestamp":"2025-01-02T03:04:05Z","message":{"role":"assistant","content":[
		{"type":"text","text":"one "},
		"loose string",
		{"type":"thinking","thinking":"hmm","text":"hidden"},
		{"type":"text"},
		{"type":"tool_use","text":"skip"},
		{"type":"text","text":"two"}]}}`
	res := parse.ExtractLine([]byte(strings.ReplaceAll(line, "\n", "")), parse.DefaultMaxChars)
	if !res.OK {
		t.Fatalf("expected record")
	}
	if res.Record.Text != "one two" {
		t.Errorf("text = %q, want %q", res.Record.Text, "one two")
	}
	if res.Record.Role != "assistant" {
		t.Errorf("role = %q", res.Record.Role)
	}
	if res.Record.Timestamp != "2025-01-02T03:04:05Z" {
		t.Errorf("timestamp = %q", res.Record.Timestamp)
	}
}

func TestExtractLineKeepsSurroundingWhitespace(t *testing.T) {
	res := parse.ExtractLine([]byte(textLine("user", `  padded\n`)), parse.DefaultMaxChars)
	if !res.OK {
		t.Fatalf("expected record")
	}
	if res.Record.Text != "  padded\n" {
		t.Errorf("text = %q", res.Record.Text)
	}
}

func TestExtractLineTimestamps(t *testing.T) {
	base := `{"type":"user","message":{"content":[{"type":"text","text":"x"}]}`
	cases := []struct {
		suffix string
		want   string
	}{
		{`}`, ""},
		{`,"timestamp":null}`, ""},
		{`,"timestamp":"2024-05-01"}`, "2024-05-01"},
		{`,"timestamp":1714550400}`, "1714550400"},
		{`,"timestamp":{"s": 1}}`, `{"s":1}`},
	}
	for _, c := range cases {
		res := parse.ExtractLine([]byte(base+c.suffix), parse.DefaultMaxChars)
		if !res.OK {
			t.Fatalf("%s: expected record", c.suffix)
		}
		if res.Record.Timestamp != c.want {
			t.Errorf("%s: timestamp = %q, want %q", c.suffix, res.Record.Timestamp, c.want)
		}
	}
}

func TestTruncation(t *testing.T) {
	short := strings.Repeat("a", 800)
	res := parse.ExtractLine([]byte(textLine("user", short)), parse.DefaultMaxChars)
	if res.Record.Text != short {
		t.Fatalf("800-char text was altered")
	}

	long := strings.Repeat("ab", 500)
	res = parse.ExtractLine([]byte(textLine("user", long)), parse.DefaultMaxChars)
	if res.Record.Text != long[:800] {
		t.Fatalf("long text not cut to prefix")
	}

	// code points, not bytes
	multi := strings.Repeat("żółw ", 200)
	res = parse.ExtractLine([]byte(textLine("user", multi)), parse.DefaultMaxChars)
	if n := utf8.RuneCountInString(res.Record.Text); n != 800 {
		t.Fatalf("rune count = %d, want 800", n)
	}
	if !strings.HasPrefix(multi, res.Record.Text) {
		t.Fatalf("truncated text is not a prefix")
	}

	res = parse.ExtractLine([]byte(textLine("user", "abcdef")), 3)
	if res.Record.Text != "abc" {
		t.Fatalf("text = %q, want abc", res.Record.Text)
	}
}

func TestParseLineEndings(t *testing.T) {
	cases := []struct {
		name  string
		input string
		lines int
	}{
		{"lf", textLine("user", "a") + "\n" + textLine("user", "b") + "\n", 2},
		{"no trailing newline", textLine("user", "a") + "\n" + textLine("user", "b"), 2},
		{"crlf", textLine("user", "a") + "\r\n" + textLine("user", "b") + "\r\n", 2},
		{"cr", textLine("user", "a") + "\r" + textLine("user", "b") + "\r", 2},
		{"blank lines", "\n\n" + textLine("user", "a") + "\n\n", 4},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s, err := parse.Parse(context.Background(), strings.NewReader(c.input), parse.Options{})
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if s.Lines != c.lines {
				t.Errorf("lines = %d, want %d", s.Lines, c.lines)
			}
		})
	}
}

func TestParseSkipsOversizedLine(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates a 65 MiB line")
	}
	huge := textLine("user", strings.Repeat("x", 65*1024*1024))
	input := textLine("user", "before") + "\n" + huge + "\n" + textLine("assistant", "after") + "\n"

	s, err := parse.Parse(context.Background(), strings.NewReader(input), parse.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Lines != 3 {
		t.Errorf("lines = %d, want 3", s.Lines)
	}
	if len(s.Records) != 2 || s.Records[0].Text != "before" || s.Records[1].Text != "after" {
		t.Fatalf("records = %+v", s.Records)
	}
	if s.Records[1].LineNumber != 3 {
		t.Errorf("after line = %d, want 3", s.Records[1].LineNumber)
	}
}

func TestParsePreservesOrder(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 300; i++ {
		switch i % 3 {
		case 0:
			b.WriteString(textLine("user", strings.Repeat("u", i%7+1)))
		case 1:
			b.WriteString("{broken")
		default:
			b.WriteString(textLine("assistant", strings.Repeat("a", i%5+1)))
		}
		b.WriteString("\n")
	}

	s, err := parse.Parse(context.Background(), strings.NewReader(b.String()), parse.Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Lines != 300 {
		t.Fatalf("lines = %d", s.Lines)
	}
	if len(s.Records) != 200 {
		t.Fatalf("records = %d, want 200", len(s.Records))
	}
	prev := 0
	for _, r := range s.Records {
		if r.LineNumber <= prev {
			t.Fatalf("records out of order at line %d", r.LineNumber)
		}
		prev = r.LineNumber
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	if err := os.WriteFile(path, []byte(textLine("user", "hi")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := parse.ParseFile(context.Background(), path, parse.Options{})
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if s.Meta.Path != path || s.Meta.Size == 0 || s.Meta.Mtime.IsZero() {
		t.Errorf("meta not filled: %+v", s.Meta)
	}

	if _, err := parse.ParseFile(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl"), parse.Options{}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

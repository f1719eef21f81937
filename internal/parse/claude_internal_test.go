package parse

import (
	"context"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestParseLinesOverCap(t *testing.T) {
	const maxLine = 80
	short := `{"type":"user","message":{"content":[{"type":"text","text":"ok"}]}}`
	long := `{"type":"user","message":{"content":[{"type":"text","text":"` + strings.Repeat("y", 200) + `"}]}}`

	cases := []struct {
		name    string
		input   string
		lines   int
		records []int // line numbers of extracted records
	}{
		{"lf", short + "\n" + long + "\n" + short + "\n", 3, []int{1, 3}},
		{"crlf", short + "\r\n" + long + "\r\n" + short + "\r\n", 3, []int{1, 3}},
		{"lone cr", short + "\r" + long + "\r" + short, 3, []int{1, 3}},
		{"last line", short + "\n" + long, 2, []int{1}},
		{"only line", long + "\n", 1, nil},
		{"exactly at cap", strings.Repeat(" ", maxLine) + "\n" + short + "\n", 2, []int{2}},
	}
	for _, c := range cases {
		for _, oneByte := range []bool{false, true} {
			name := c.name
			if oneByte {
				name += "/one byte reads"
			}
			t.Run(name, func(t *testing.T) {
				var src io.Reader = strings.NewReader(c.input)
				if oneByte {
					src = iotest.OneByteReader(src)
				}
				s, err := parseLines(context.Background(), src, Options{}, maxLine)
				if err != nil {
					t.Fatalf("parseLines: %v", err)
				}
				if s.Lines != c.lines {
					t.Errorf("lines = %d, want %d", s.Lines, c.lines)
				}
				if len(s.Records) != len(c.records) {
					t.Fatalf("records = %+v, want lines %v", s.Records, c.records)
				}
				for i, want := range c.records {
					if s.Records[i].LineNumber != want || s.Records[i].Text != "ok" {
						t.Errorf("record %d = %+v, want line %d", i, s.Records[i], want)
					}
				}
			})
		}
	}
}

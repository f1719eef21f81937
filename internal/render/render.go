package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/session-digest/internal/parse"
	"github.com/Zuo-Peng/session-digest/internal/window"
)

const (
	colorReset  = "\033[0m"
	colorUser   = "\033[1;34m" // bold blue
	colorAssist = "\033[1;32m" // bold green
	colorDim    = "\033[2m"
)

const ruleWidth = 80

var (
	heavyRule = strings.Repeat("=", ruleWidth)
	lightRule = strings.Repeat("-", ruleWidth)
)

// WriteReport writes the plain-text digest: counts, then every window.
func WriteReport(w io.Writer, s *parse.Session, windows []window.Window) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Total lines processed: %d\n", s.Lines)
	fmt.Fprintf(bw, "Total messages extracted: %d\n\n", len(s.Records))
	fmt.Fprintln(bw, heavyRule)
	fmt.Fprintln(bw, "CONVERSATION SUMMARY")
	fmt.Fprintln(bw, heavyRule)

	for _, win := range windows {
		writeWindow(bw, win)
	}

	return bw.Flush()
}

// WindowText renders a single window the way WriteReport does.
func WindowText(win window.Window) string {
	var b strings.Builder
	bw := bufio.NewWriter(&b)
	writeWindow(bw, win)
	bw.Flush()
	return b.String()
}

func writeWindow(bw *bufio.Writer, win window.Window) {
	fmt.Fprintf(bw, "\n--- %s ---\n\n", win.Title)
	for i, r := range win.Records {
		fmt.Fprintf(bw, "[%d] %s (%s):\n", win.Position(i), strings.ToUpper(r.Role), r.Timestamp)
		fmt.Fprintln(bw, r.Text)
		fmt.Fprintln(bw, lightRule)
	}
}

// StyledWindow renders a window with ANSI colors for the terminal viewer,
// wrapping lines at width columns (0 = no wrap).
func StyledWindow(win window.Window, width int) string {
	if len(win.Records) == 0 {
		return colorDim + "(no messages in this window)" + colorReset + "\n"
	}

	var b strings.Builder
	separator := colorDim + strings.Repeat("-", 50) + colorReset

	writeLine := func(s string) {
		for _, wl := range WrapLine(s, width) {
			b.WriteString(wl)
			b.WriteString("\n")
		}
	}

	for i, r := range win.Records {
		if i > 0 {
			writeLine(separator)
		}

		roleColor := colorDim
		switch r.Role {
		case parse.RoleUser:
			roleColor = colorUser
		case parse.RoleAssistant:
			roleColor = colorAssist
		}

		writeLine(fmt.Sprintf("%s[%d] %s%s %s%s%s",
			roleColor, win.Position(i), strings.ToUpper(r.Role), colorReset,
			colorDim, r.Timestamp, colorReset))

		for _, tl := range strings.Split(IndentLines(r.Text, "  "), "\n") {
			writeLine(tl)
		}
		writeLine("")
	}
	return b.String()
}

// IndentLines prepends each line of text with the given prefix.
func IndentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// WrapLine breaks a single line into multiple lines that fit within maxWidth
// visible columns, correctly skipping ANSI escape sequences when measuring width.
func WrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	i := 0
	for i < len(line) {
		// check for ANSI escape sequence: ESC[ ... m
		if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++ // include 'm'
			}
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)

		if visW+rw > maxWidth {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}

		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}

	if len(result) == 0 {
		return []string{""}
	}
	return result
}

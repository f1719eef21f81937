package open

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Zuo-Peng/session-digest/internal/parse"
)

// LineOf returns the input line of the record at 1-based position pos.
// Lines are counted the way the parser splits them, so a lone "\r" ends a
// line. Editors that only break on "\n" will number such files lower.
func LineOf(s *parse.Session, pos int) (int, error) {
	if pos < 1 || pos > len(s.Records) {
		return 0, fmt.Errorf("record %d out of range (session has %d)", pos, len(s.Records))
	}
	return s.Records[pos-1].LineNumber, nil
}

// OpenRecord opens filePath in $EDITOR (default less) at lineNum.
func OpenRecord(filePath string, lineNum int) error {
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("file not found: %s", filePath)
	}
	if lineNum < 1 {
		lineNum = 1
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "less"
	}

	cmd := editorCommand(editor, filePath, lineNum)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func editorCommand(editor, filePath string, lineNum int) *exec.Cmd {
	switch {
	case strings.Contains(editor, "vim") || strings.Contains(editor, "nvim"):
		return exec.Command(editor, fmt.Sprintf("+%d", lineNum), filePath)
	case strings.Contains(editor, "code"):
		return exec.Command(editor, "--goto", filePath+":"+strconv.Itoa(lineNum))
	case strings.Contains(editor, "less"):
		return exec.Command(editor, "+"+strconv.Itoa(lineNum), filePath)
	default:
		return exec.Command(editor, filePath)
	}
}

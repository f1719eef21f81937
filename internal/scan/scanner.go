package scan

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrNoSessions = errors.New("no session files found")

type FileInfo struct {
	Path  string
	Mtime int64
	Size  int64
}

// ScanRoot walks a Claude projects directory for session JSONL files,
// newest first. A missing root yields no files and no error.
func ScanRoot(root string) ([]FileInfo, error) {
	if root == "" {
		return nil, nil
	}

	var files []FileInfo
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable dirs
		}
		if info.IsDir() {
			if filepath.Base(path) == "subagents" {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".jsonl" {
			return nil
		}
		if strings.Contains(filepath.Base(path), "sessions-index") {
			return nil
		}
		files = append(files, FileInfo{
			Path:  path,
			Mtime: info.ModTime().UnixNano(),
			Size:  info.Size(),
		})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Mtime != files[j].Mtime {
			return files[i].Mtime > files[j].Mtime
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// Latest returns the most recently modified session under root.
func Latest(root string) (FileInfo, error) {
	files, err := ScanRoot(root)
	if err != nil {
		return FileInfo{}, err
	}
	if len(files) == 0 {
		return FileInfo{}, ErrNoSessions
	}
	return files[0], nil
}

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	// MaxTitleLength caps project titles, in runes.
	MaxTitleLength = 120
	// MaxFileNameLength caps the base name of exported files, in runes.
	MaxFileNameLength = 100
	// DefaultTitle names projects created without a usable title.
	DefaultTitle = "Untitled"
	// DefaultFileName is used when a title has no file-safe characters.
	DefaultFileName = "captions"
)

// ErrInvalidOutputDir is wrapped by every ValidateOutputDir failure.
var ErrInvalidOutputDir = errors.New("invalid output_dir")

// ProjectTitle normalises a user-supplied title for display in the project
// document. Whitespace runs, including newlines and tabs, collapse to one
// space; other control and format characters are dropped. The result is
// capped at MaxTitleLength runes and falls back to DefaultTitle when empty.
func ProjectTitle(raw string) string {
	title := truncateRunes(collapse(raw), MaxTitleLength)
	if title == "" {
		return DefaultTitle
	}
	return title
}

// FileName derives an export file base name from a project title. Runes other
// than letters, digits, marks and " -_.,()" become '_', leading and trailing
// dots and spaces are trimmed, and the result is capped at MaxFileNameLength
// runes. A title with nothing usable yields DefaultFileName.
func FileName(title string) string {
	var b strings.Builder
	for _, r := range collapse(title) {
		if isFileNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	name := strings.Trim(truncateRunes(b.String(), MaxFileNameLength), " .")
	if strings.Trim(name, "_") == "" {
		return DefaultFileName
	}
	return name
}

func collapse(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
			continue
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}

func isFileNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
		return true
	}
	return strings.ContainsRune(" -_.,()", r)
}

// ValidateOutputDir requires dir to be a clean path, free of "..", naming an
// existing directory.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: output_dir is required", ErrInvalidOutputDir)
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("%w: output_dir cannot contain path traversal", ErrInvalidOutputDir)
		}
	}
	if filepath.Clean(dir) != dir {
		return fmt.Errorf("%w: output_dir must be a clean path", ErrInvalidOutputDir)
	}

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: output_dir does not exist", ErrInvalidOutputDir)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrInvalidOutputDir, err)
	case !info.IsDir():
		return fmt.Errorf("%w: output_dir is not a directory", ErrInvalidOutputDir)
	}
	return nil
}

package library

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeName strips control characters and replaces path-hostile runes
// so user-supplied names are safe as filenames. maxLen <= 0 disables
// truncation.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}

// ValidateFileName rejects names that could escape the directory they are
// resolved under.
func ValidateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("file name is required")
	}
	if name != filepath.Base(name) {
		return fmt.Errorf("file name cannot contain path separators")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("invalid file name")
	}
	return nil
}

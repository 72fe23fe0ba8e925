package extractor

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

var pageMarkerLine = regexp.MustCompile(`(?i)^\[PAGE\s+\d+\]`)

var skippedPrefixes = []string{"page ", "chapter ", "section "}

// ResolveTitle picks a display title: the metadata title, else the first
// plausible heading among the first 10 lines, else the file name.
func ResolveTitle(path, metaTitle, fullText string) string {
	if t := strings.TrimSpace(metaTitle); t != "" {
		return t
	}
	lines := strings.Split(strings.TrimSpace(fullText), "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	for _, line := range lines {
		if isTitleLine(strings.TrimSpace(line)) {
			return strings.TrimSpace(line)
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isTitleLine(line string) bool {
	n := utf8.RuneCountInString(line)
	if n <= 3 || n >= 200 {
		return false
	}
	lower := strings.ToLower(line)
	for _, p := range skippedPrefixes {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	return !strings.HasPrefix(line, "[PAGE") && !pageMarkerLine.MatchString(line)
}

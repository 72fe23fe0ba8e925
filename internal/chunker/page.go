package chunker

import (
	"strconv"
	"strings"

	"contextiq/internal/domain"
)

const pageMarker = domain.PageMarkerPrefix

// ResolvePage returns the page number of the nearest "[PAGE n]" marker that
// starts and opens completely before the rune offset. Missing or malformed
// markers report false.
func ResolvePage(fullText string, offset int) (int, bool) {
	if offset <= 0 {
		return 0, false
	}
	prefix := fullText[:byteOffset(fullText, offset)]
	pos := strings.LastIndex(prefix, pageMarker)
	if pos < 0 {
		return 0, false
	}
	rest := fullText[pos+len(pageMarker):]
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return 0, false
	}
	page, err := strconv.Atoi(strings.TrimSpace(rest[:end]))
	if err != nil {
		return 0, false
	}
	return page, true
}

// byteOffset converts a rune offset into a byte offset, clamped to len(s).
func byteOffset(s string, runeOffset int) int {
	i := 0
	for b := range s {
		if i == runeOffset {
			return b
		}
		i++
	}
	return len(s)
}

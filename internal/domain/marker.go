package domain

import "strconv"

// PageMarkerPrefix opens the inline marker that precedes each page's text in
// Document.FullText. The full grammar is "[PAGE <n>]" followed by a newline.
const PageMarkerPrefix = "[PAGE "

// PageMarker renders the marker for 1-based page n.
func PageMarker(n int) string {
	return PageMarkerPrefix + strconv.Itoa(n) + "]"
}

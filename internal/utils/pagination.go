// Package utils provides small helpers shared across layers, currently the
// pagination-window parsing used by the session history listing.
package utils

import "strconv"

// AtoiDefault parses s as an int, returning def when s is empty or not a
// plain integer (no trimming, no partial parses).
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampPageWindow turns raw page/page_size query values into a bounded
// pagination window: page is 1-based, size is clamped to [1, maxSize] with
// defaultSize applied when the value is missing or malformed. Malformed
// page values fall back to the first page rather than erroring, so a
// hand-edited listing URL still renders.
func ClampPageWindow(pageStr, sizeStr string, defaultSize, maxSize int) (page, size int) {
	page = AtoiDefault(pageStr, 1)
	if page < 1 {
		page = 1
	}
	size = AtoiDefault(sizeStr, defaultSize)
	if size < 1 {
		size = 1
	}
	if size > maxSize {
		size = maxSize
	}
	return page, size
}

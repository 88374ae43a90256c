// Package utils holds query and path parameter helpers shared by the HTTP
// handlers.
package utils

import (
	"strconv"
	"strings"
)

// IntInRange parses s as a decimal int, returning def when s is blank or
// malformed, and clamps the result to [lo, hi]. hi <= 0 leaves the upper end
// open.
func IntInRange(s string, def, lo, hi int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		n = def
	}
	if n < lo {
		n = lo
	}
	if hi > 0 && n > hi {
		n = hi
	}
	return n
}

// ParseID parses a positive decimal int64 identifier such as a path
// parameter. ok is false for empty, malformed, zero or negative input.
func ParseID(s string) (id int64, ok bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// TotalPages returns the number of pages needed for total items.
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

package version

import (
	"strconv"
	"strings"
)

// Compare orders two version tags numerically, segment by segment.
//
// A single leading non-numeric prefix character (typically "v") is stripped
// from each input before splitting on ".". Segments that are missing or do
// not parse as integers count as 0, so "v2.0" and "2.0.0" compare equal.
// This is deliberately not a semver comparison: pre-release and build
// metadata suffixes parse as 0 and can order incorrectly. Known limitation,
// kept for compatibility with existing plugin tags.
//
// Returns -1 if a < b, 1 if a > b and 0 otherwise. An empty input on either
// side yields 0, which means "no information" rather than "equal" — callers
// must not conclude a component is up to date from that case.
func Compare(a, b string) int {
	if a == "" || b == "" {
		return 0
	}

	as := strings.Split(stripPrefix(a), ".")
	bs := strings.Split(stripPrefix(b), ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		av := segment(as, i)
		bv := segment(bs, i)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	}
	return 0
}

// stripPrefix removes one leading non-digit character, e.g. the "v" in "v1.2.0".
func stripPrefix(s string) string {
	if len(s) > 0 && (s[0] < '0' || s[0] > '9') {
		return s[1:]
	}
	return s
}

func segment(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return n
}

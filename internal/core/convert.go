package core

// convert.go provides the cell-level conversions shared by every stage.
//
// These functions handle the messy reality of creature exports:
//   - Assorted spellings of "no value" (NA, N/A, NaN, null, ...)
//   - Thousands separators and decimal points in integer columns
//   - Various boolean representations (yes/no, true/false, 1/0)
//   - Excel formula prefixes (="value") and stray quotes
//
// Parse* functions report ok=false for missing or invalid input and never
// return an error; callers decide whether that is worth a warning.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// naTokens are the cell values treated as missing, compared case-insensitively.
var naTokens = map[string]struct{}{
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"<na>": {},
	"#n/a": {},
}

// IsMissing reports whether a cell holds no value: empty after trimming or
// one of the NA tokens.
func IsMissing(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	_, ok := naTokens[strings.ToLower(s)]
	return ok
}

// ParseFloat converts a cell to a float64.
// Thousands separators and surrounding spaces are accepted.
func ParseFloat(s string) (float64, bool) {
	s = CleanCell(s)
	if IsMissing(s) {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "_", "")
	if !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// ParseInt converts a cell to an int64. Fractional values are truncated
// toward zero ("45.9" -> 45, "-2.5" -> -2).
func ParseInt(s string) (int64, bool) {
	f, ok := ParseFloat(s)
	if !ok {
		return 0, false
	}
	f = math.Trunc(f)
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// ParseBool converts a cell to a bool.
// Accepts various representations: true/false, yes/no, t/f, y/n, 1/0.
func ParseBool(s string) (bool, bool) {
	s = strings.TrimSpace(strings.ToLower(CleanCell(s)))
	switch s {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// FormatInt renders an optional integer; nil becomes the empty string.
func FormatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

// FormatFloat renders an optional float with the shortest exact
// representation; nil becomes the empty string.
func FormatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// FormatBool renders a bool as "true" or "false".
func FormatBool(b bool) string {
	return strconv.FormatBool(b)
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are lowercased for case-insensitive matching.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, dup := idx[key]; dup {
			continue
		}
		idx[key] = i
	}
	return idx
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)

	return strings.TrimSpace(s)
}

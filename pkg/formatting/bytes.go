// Package formatting provides human-readable formatting and parsing utilities
// for byte sizes.
package formatting

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// All units are base-1024.
var units = []string{
	"B", "KB", "MB",
	"GB", "TB", "PB",
	"EB", "ZB", "YB",
}

var bytesPattern = regexp.MustCompile(`^(\d+\.?\d*)\s*([A-Za-z]*)$`)

// FormatBytes converts a byte count to a human-readable string using base-1024 units.
// Negative precision values are clamped to zero.
func FormatBytes(n int64, precision int) string {
	if n == 0 {
		return "0 B"
	}
	if n < 0 {
		return "-" + FormatBytes(-n, precision)
	}

	precision = max(precision, 0)

	f := float64(n)
	i := min(int(math.Floor(math.Log(f)/math.Log(1024))), len(units)-1)

	if i == 0 {
		return strconv.FormatInt(n, 10) + " B"
	}

	size := f / math.Pow(1024, float64(i))
	return strconv.FormatFloat(size, 'f', precision, 64) + " " + units[i]
}

// ParseBytes parses a human-readable byte size string (e.g., "512MB") into a byte count.
// Accepted units are B through YB, their IEC spellings (KiB, MiB, ...), and
// single-letter forms (K, M, G, ...), all base-1024 and case-insensitive.
// A bare number is bytes. Sizes that overflow int64 are rejected.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size string")
	}

	matches := bytesPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	idx, err := unitIndex(matches[2])
	if err != nil {
		return 0, err
	}

	n := value * math.Pow(1024, float64(idx))
	if n >= math.MaxInt64 {
		return 0, fmt.Errorf("byte size %q overflows int64", s)
	}

	return int64(n), nil
}

func unitIndex(unit string) (int, error) {
	u := strings.ToUpper(unit)
	switch {
	case u == "":
		return 0, nil
	case len(u) == 3 && strings.HasSuffix(u, "IB"):
		u = u[:1] + "B"
	case len(u) == 1 && u != "B":
		u += "B"
	}

	idx := slices.Index(units, u)
	if idx == -1 {
		return 0, fmt.Errorf("unknown byte size unit: %q", unit)
	}
	return idx, nil
}

// Package formatting provides human-readable byte sizes and tolerant JSON
// extraction from language model replies.
package formatting

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// units are base-1024 suffixes; units[i] is 1<<(10*i) bytes.
var units = [...]string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d*)?)\s*([A-Za-z]*)$`)

// FormatBytes renders n with the largest unit that keeps the value at or
// above one, using precision decimal places (negative precision means zero).
func FormatBytes(n int64, precision int) string {
	if n < 0 {
		if n == math.MinInt64 {
			return "-8 EB"
		}
		return "-" + FormatBytes(-n, precision)
	}

	i := 0
	for i < len(units)-1 && n >= int64(1)<<(10*(i+1)) {
		i++
	}

	value := float64(n) / float64(int64(1)<<(10*i))
	return strconv.FormatFloat(value, 'f', max(precision, 0), 64) + " " + units[i]
}

// ParseBytes reads a size such as "64MB", "1.5 GiB" or "4096". Units are
// case-insensitive, base-1024, and may carry the binary "i" infix. A bare
// number is a byte count.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}

	unit := strings.ToUpper(m[2])
	if len(unit) == 3 && unit[1:] == "IB" {
		unit = unit[:1] + "B"
	}
	if unit == "" {
		unit = "B"
	}

	for i, u := range units {
		if u != unit {
			continue
		}
		bytes := value * float64(int64(1)<<(10*i))
		if bytes >= math.MaxInt64 {
			return 0, fmt.Errorf("byte size %q overflows", s)
		}
		return int64(bytes), nil
	}
	return 0, fmt.Errorf("unknown byte size unit %q", m[2])
}

package report

import (
	"regexp"
	"strconv"
	"strings"
)

// Size is a parsed mailbox/folder size. Known is false when the raw string
// matched none of the formats; callers decide the fallback rather than the
// parser masking bad data as zero bytes.
type Size struct {
	Bytes int64
	Known bool
}

// The mail API reports sizes in several string shapes. Patterns are tried
// in order; the parenthesized byte count is the most precise when present.
var (
	parenBytesRe = regexp.MustCompile(`\(([\d,]+)\s*bytes?\)`)
	bareBytesRe  = regexp.MustCompile(`^([\d,]+)\s*bytes?$`)
	unitRe       = regexp.MustCompile(`(?i)^([\d,]+(?:\.\d+)?)\s*(B|KB|MB|GB|TB)$`)
	digitsRe     = regexp.MustCompile(`^\d+$`)
)

var unitMultipliers = map[string]float64{
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
}

// ParseSize interprets a vendor-formatted size string, e.g.
// "9.2 GB (9,876,543,210 bytes)", "9876543210 bytes", "9.2 GB", "9876543210".
func ParseSize(raw string) Size {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Size{}
	}
	if m := parenBytesRe.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.ParseInt(stripCommas(m[1]), 10, 64); err == nil {
			return Size{Bytes: n, Known: true}
		}
	}
	if m := bareBytesRe.FindStringSubmatch(raw); m != nil {
		if n, err := strconv.ParseInt(stripCommas(m[1]), 10, 64); err == nil {
			return Size{Bytes: n, Known: true}
		}
	}
	if m := unitRe.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(stripCommas(m[1]), 64); err == nil {
			return Size{Bytes: int64(v * unitMultipliers[strings.ToUpper(m[2])]), Known: true}
		}
	}
	if digitsRe.MatchString(raw) {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return Size{Bytes: n, Known: true}
		}
	}
	return Size{}
}

func stripCommas(s string) string {
	return strings.ReplaceAll(s, ",", "")
}

// FormatBytes renders a byte count for the human report.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(n)/float64(div), 'f', 1, 64) + " " + []string{"KB", "MB", "GB", "TB"}[exp]
}

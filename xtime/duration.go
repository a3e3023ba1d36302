// Package xtime extends time.Duration parsing and formatting with day, week,
// month and year units.
package xtime

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
	year  = 365 * day
)

var (
	durationPartRx = regexp.MustCompile(`(\d*\.\d+|\d+)[^\d]*`)

	// Checked in order, so that e.g. "ms" is never mistaken for months.
	longUnits = []struct {
		suffix string
		size   time.Duration
	}{
		{"d", day}, {"D", day},
		{"w", week}, {"W", week},
		{"M", month},
		{"y", year}, {"Y", year},
	}
)

// ParseDuration parses a duration string. In addition to the units accepted by
// time.ParseDuration, it accepts "d"/"D" (days), "w"/"W" (weeks), "M" (30-day
// months) and "y"/"Y" (365-day years), e.g. "10d", "-1.5w" or "1Y2M3d4h".
func ParseDuration(s string) (time.Duration, error) {
	orig := s
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	parts := durationPartRx.FindAllString(s, -1)
	if len(parts) == 0 || strings.Join(parts, "") != s {
		return 0, fmt.Errorf("invalid duration %q", orig)
	}

	var sum time.Duration
	for _, part := range parts {
		scale := time.Duration(1)
		for _, u := range longUnits {
			if strings.HasSuffix(part, u.suffix) {
				part = strings.TrimSuffix(part, u.suffix) + "h"
				scale = u.size / time.Hour
				break
			}
		}

		dur, err := time.ParseDuration(part)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", orig, err)
		}
		sum += dur * scale
	}

	if neg {
		sum = -sum
	}

	return sum, nil
}

// FormatDuration formats d using the largest units first, e.g. "1w2d",
// "1h30m" or "-3Y4M". Parts smaller than round are omitted, and the result is
// always accepted by ParseDuration.
func FormatDuration(d, round time.Duration) string {
	if round > 0 {
		d = d.Round(round)
	}
	if d == 0 {
		return "0s"
	}

	neg := d < 0
	if neg {
		d = -d
	}

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}

	for _, u := range []struct {
		suffix string
		size   time.Duration
	}{
		{"Y", year}, {"M", month}, {"w", week}, {"d", day},
		{"h", time.Hour}, {"m", time.Minute}, {"s", time.Second},
		{"ms", time.Millisecond}, {"µs", time.Microsecond}, {"ns", time.Nanosecond},
	} {
		if u.size < round {
			break
		}
		if n := d / u.size; n > 0 {
			fmt.Fprintf(&sb, "%d%s", n, u.suffix)
			d -= n * u.size
		}
	}

	return sb.String()
}

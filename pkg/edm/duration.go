package edm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses an ISO 8601 day-time duration: [-]P[nD][T[nH][nM][n[.n]S]]
func ParseDuration(s string) (time.Duration, error) {
	orig := s
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 2 {
		return 0, fmt.Errorf("invalid duration %q", orig)
	}
	s = s[1:]

	var total float64
	inTime := false
	seen := ""
	for len(s) > 0 {
		if s[0] == 'T' {
			if inTime || len(s) == 1 {
				return 0, fmt.Errorf("invalid duration %q", orig)
			}
			inTime = true
			s = s[1:]
			continue
		}
		i := 0
		for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
			i++
		}
		if i == 0 || i == len(s) {
			return 0, fmt.Errorf("invalid duration %q", orig)
		}
		n, err := strconv.ParseFloat(s[:i], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", orig)
		}
		unit := s[i]
		if strings.IndexByte(seen, unit) >= 0 {
			return 0, fmt.Errorf("invalid duration %q: repeated %c", orig, unit)
		}
		seen += string(unit)

		switch {
		case unit == 'D' && !inTime:
			total += n * float64(24*time.Hour)
		case unit == 'H' && inTime:
			total += n * float64(time.Hour)
		case unit == 'M' && inTime:
			total += n * float64(time.Minute)
		case unit == 'S' && inTime:
			total += n * float64(time.Second)
		default:
			return 0, fmt.Errorf("invalid duration %q: unexpected %c", orig, unit)
		}
		if strings.Contains(s[:i], ".") && unit != 'S' {
			return 0, fmt.Errorf("invalid duration %q: fractions only allowed on seconds", orig)
		}
		s = s[i+1:]
	}

	if total > math.MaxInt64 {
		return 0, fmt.Errorf("duration %q out of range", orig)
	}
	d := time.Duration(math.Round(total))
	if neg {
		d = -d
	}
	return d, nil
}

// FormatDuration renders d as an ISO 8601 day-time duration
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}
	var sb strings.Builder
	if d < 0 {
		sb.WriteByte('-')
		d = -d
	}
	sb.WriteByte('P')

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute

	if days > 0 {
		sb.WriteString(strconv.FormatInt(int64(days), 10))
		sb.WriteByte('D')
	}
	if hours == 0 && minutes == 0 && d == 0 {
		return sb.String()
	}
	sb.WriteByte('T')
	if hours > 0 {
		sb.WriteString(strconv.FormatInt(int64(hours), 10))
		sb.WriteByte('H')
	}
	if minutes > 0 {
		sb.WriteString(strconv.FormatInt(int64(minutes), 10))
		sb.WriteByte('M')
	}
	if d > 0 {
		sb.WriteString(strconv.FormatFloat(d.Seconds(), 'f', -1, 64))
		sb.WriteByte('S')
	}
	return sb.String()
}

// Package dates normalizes the heterogeneous publish-date strings found on
// gazette listing pages. A string may carry an Arabic Hijri date, a numeric
// Gregorian date in one of several delimiter styles, or both.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Normalized is the result of parsing one raw date string. Gregorian is nil
// when no valid calendar date could be derived; Hijri preserves the raw
// string verbatim when an Arabic Hijri pattern matched.
type Normalized struct {
	Gregorian *time.Time
	Hijri     string
}

// ISO renders the Gregorian date as YYYY-MM-DD, or "" when unset.
func (n Normalized) ISO() string {
	if n.Gregorian == nil {
		return ""
	}
	return n.Gregorian.Format("2006-01-02")
}

// hijriMonths maps Arabic month names and their single-word aliases to a
// 1-based month index. The aliases exist because date strings sometimes
// carry only the first word of a two-word month name.
var hijriMonths = map[string]int{
	"محرم":         1,
	"صفر":          2,
	"ربيع":         3,
	"ربيع الأول":   3,
	"ربيع الثاني":  4,
	"جمادى":        5,
	"جمادى الأولى": 5,
	"جمادى الثانية": 6,
	"رجب":          7,
	"شعبان":        8,
	"رمضان":        9,
	"شوال":         10,
	"ذو القعدة":    11,
	"ذو الحجة":     12,
}

var (
	hijriPattern = regexp.MustCompile(`(\d{1,2})\s+([\x{0600}-\x{06FF}]+(?:\s+[\x{0600}-\x{06FF}]+)*)\s+(\d{4})`)

	// Numeric patterns in priority order; the first match wins.
	isoPattern   = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
	slashPattern = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	dashPattern  = regexp.MustCompile(`(\d{1,2})-(\d{1,2})-(\d{4})`)
)

// Normalize parses a raw date string. Unparseable input yields a zero
// Normalized; callers persist the raw string either way.
func Normalize(raw string) Normalized {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Normalized{}
	}

	var out Normalized
	if m := hijriPattern.FindStringSubmatch(raw); m != nil {
		out.Hijri = raw
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		if g := hijriToGregorian(day, m[2], year); g != nil {
			out.Gregorian = g
		}
	}

	if out.Gregorian == nil {
		out.Gregorian = parseNumeric(raw)
	}
	return out
}

// hijriToGregorian converts an approximate Gregorian equivalent using the
// linear formula floor(year*0.970224 + 622 - 1.33). This is a lossy
// heuristic, never more than single-day accurate, and deliberately not a
// calendrical conversion.
func hijriToGregorian(day int, monthName string, year int) *time.Time {
	month, ok := hijriMonths[monthName]
	if !ok {
		// Two-word names occasionally arrive truncated by markup; fall
		// back to the first word's alias.
		first, _, _ := strings.Cut(monthName, " ")
		if month, ok = hijriMonths[first]; !ok {
			return nil
		}
	}
	gregorianYear := int(float64(year)*0.970224 + 622 - 1.33)
	return validDate(gregorianYear, month, day)
}

func parseNumeric(raw string) *time.Time {
	if m := isoPattern.FindStringSubmatch(raw); m != nil {
		return validDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := slashPattern.FindStringSubmatch(raw); m != nil {
		return validDate(atoi(m[3]), atoi(m[2]), atoi(m[1]))
	}
	if m := dashPattern.FindStringSubmatch(raw); m != nil {
		return validDate(atoi(m[3]), atoi(m[2]), atoi(m[1]))
	}
	return nil
}

// validDate builds a UTC date and rejects components that do not survive a
// round trip (time.Date silently normalizes e.g. Feb 31).
func validDate(year, month, day int) *time.Time {
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return nil
	}
	return &t
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

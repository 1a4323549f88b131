package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical textual form of every date the extractor emits.
const DateLayout = "01/02/2006"

var (
	weekdayPattern = regexp.MustCompile(`(?i)\b(Monday|Tuesday|Wednesday|Thursday|Friday|Saturday|Sunday|Mon|Tue|Wed|Thu|Fri|Sat|Sun)\b,?\s*`)
	datePattern    = regexp.MustCompile(`\d{1,4}[/\-.]\d{1,2}[/\-.]\d{2,4}`)
	timePattern    = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*([AP])\.?\s*M\.?`)
	amountPattern  = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d+)?)`)
	precinctDigits = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// Register pages use several layouts for the same date.
var dateLayouts = []string{
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"2006-01-02",
	"2006/01/02",
	"1-2-2006",
	"01-02-2006",
	"01.02.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"January 2 2006",
	"2-Jan-2006",
	"02-Jan-2006",
	"2 Jan 2006",
	"2 January 2006",
}

var precinctWords = map[string]string{
	"one":   "1",
	"two":   "2",
	"three": "3",
	"four":  "4",
	"five":  "5",
}

// cleanText collapses runs of whitespace (including non-breaking spaces).
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeDate returns the date in MM/DD/YYYY form.
func NormalizeDate(raw string) (string, bool) {
	s := cleanText(raw)
	if s == "" {
		return "", false
	}
	if t, ok := parseDate(s); ok {
		return t.Format(DateLayout), true
	}

	s = weekdayPattern.ReplaceAllString(s, "")
	if t, ok := parseDate(s); ok {
		return t.Format(DateLayout), true
	}

	// Dates embedded in longer text, e.g. "04/02/2020 10:00 AM".
	if m := datePattern.FindString(s); m != "" {
		if t, ok := parseDate(m); ok {
			return t.Format(DateLayout), true
		}
	}
	return "", false
}

// ParseCanonicalDate parses a date produced by NormalizeDate.
func ParseCanonicalDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, s)
	return t, err == nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() < 1900 {
				return time.Time{}, false
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeTime returns the first clock time in raw as "H:MM AM".
func NormalizeTime(raw string) (string, bool) {
	m := timePattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 12 {
		return "", false
	}
	minute, err := strconv.Atoi(m[2])
	if err != nil || minute > 59 {
		return "", false
	}
	return strconv.Itoa(hour) + ":" + m[2] + " " + strings.ToUpper(m[3]) + "M", true
}

// NormalizeAmount returns the first dollar figure in raw as a plain decimal
// string without trailing zeros: "$1,200.00" becomes "1200".
func NormalizeAmount(raw string) (string, bool) {
	m := amountPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return "", false
	}
	return d.String(), true
}

// NormalizePrecinct maps "Precinct One" or "Precinct 3" to the digit form.
func NormalizePrecinct(raw string) (string, bool) {
	s := strings.ToLower(cleanText(raw))
	if s == "" {
		return "", false
	}
	for _, field := range strings.Fields(s) {
		if n, ok := precinctWords[strings.Trim(field, ",.")]; ok {
			return n, true
		}
	}
	if m := precinctDigits.FindString(s); m != "" {
		return m, true
	}
	return "", false
}

func optional(s string) *string {
	s = cleanText(s)
	if s == "" {
		return nil
	}
	return &s
}

func optionalFrom(raw string, normalize func(string) (string, bool)) *string {
	if v, ok := normalize(raw); ok {
		return &v
	}
	return nil
}

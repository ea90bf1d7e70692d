package refinement

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// dateTextRx finds a date-looking substring inside evidence text.
var dateTextRx = regexp.MustCompile(`\b(\d{1,2}\s+[A-Za-z]{3,9},?\s+\d{4}|\d{1,2}\s*[/-]\s*\d{1,2}\s*[/-]\s*\d{2,4}|[A-Za-z]{3,9},?\s+\d{4}|\d{4})\b`)

var (
	numericDateRx = regexp.MustCompile(`(\d{1,4})\s*[/.-]\s*(\d{1,2})\s*[/.-]\s*(\d{1,4})`)
	dateTokenRx   = regexp.MustCompile(`[A-Za-z]+|\d+`)
)

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// Parsed years must fall in this range.
const (
	minYear     = 1900
	maxYear     = 2100
	defaultYear = 1900
	// twoDigitSpan is how far a two-digit year may land from the current year.
	twoDigitSpan = 50
)

// now anchors the two-digit year window.
var now = time.Now

// monthOf matches a word of at least three letters against the month names.
func monthOf(word string) int {
	w := strings.ToLower(word)
	if len(w) < 3 {
		return 0
	}
	for i, name := range monthNames {
		if strings.HasPrefix(name, w) {
			return i + 1
		}
	}
	return 0
}

// expandYear widens a one or two digit year into the century that puts it
// within twoDigitSpan years of the current year: in 2026, "75" is 2075 and
// "76" is 1976.
func expandYear(digits string) int {
	y, _ := strconv.Atoi(digits)
	if len(digits) > 2 {
		return y
	}
	current := now().Year()
	y += current / 100 * 100
	switch {
	case y >= current+twoDigitSpan:
		y -= 100
	case y < current-twoDigitSpan:
		y += 100
	}
	return y
}

// ParseDate reads a date leniently: day before month, words other than
// month names ignored, missing parts taken from 1900-01-01. It returns the
// ISO date and false when nothing usable is found, the date does not exist,
// or the year is outside 1900-2100.
func ParseDate(s string) (string, bool) {
	year, month, day := 0, 0, 0

	if m := numericDateRx.FindStringSubmatch(s); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		if len(m[1]) == 4 {
			c, _ := strconv.Atoi(m[3])
			year, month, day = a, b, c
		} else {
			day, month, year = a, b, expandYear(m[3])
			if month > 12 && day <= 12 {
				day, month = month, day
			}
		}
	} else {
		found := false
		for _, tok := range dateTokenRx.FindAllString(s, -1) {
			if tok[0] < '0' || tok[0] > '9' {
				if month == 0 {
					if mo := monthOf(tok); mo > 0 {
						month, found = mo, true
					}
				}
				continue
			}
			n, _ := strconv.Atoi(tok)
			switch {
			case len(tok) == 4 && year == 0:
				year, found = n, true
			case len(tok) <= 2 && n >= 1 && n <= 31 && day == 0:
				day, found = n, true
			case len(tok) <= 2 && year == 0:
				year, found = expandYear(tok), true
			default:
				return "", false
			}
		}
		if !found {
			return "", false
		}
	}

	if year == 0 {
		year = defaultYear
	}
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	if year < minYear || year > maxYear || month < 1 || month > 12 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

// EvidenceDate parses the date-looking substring of evidence that overlaps
// raw, the mention the evidence was attached to. Other dates in the same
// sentence are ignored.
func EvidenceDate(evidence, raw string) (string, bool) {
	raw = strings.TrimSpace(strings.Join(strings.Fields(raw), " "))
	if raw == "" {
		return "", false
	}
	for _, m := range dateTextRx.FindAllString(evidence, -1) {
		if strings.Contains(m, raw) || strings.Contains(raw, m) {
			return ParseDate(m)
		}
	}
	return "", false
}

package refinement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withYear(t *testing.T, year int) {
	t.Helper()
	prev := now
	now = func() time.Time { return time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })
}

func TestParseDate(t *testing.T) {
	withYear(t, 2026)
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"5 January, 2024", "2024-01-05", true},
		{"31 March, 2025", "2025-03-31", true},
		{"January 2024", "2024-01-01", true},
		{"2024", "2024-01-01", true},
		{"Sept 2023", "2023-09-01", true},
		{"the deadline is 14 Feb 2026 at noon", "2026-02-14", true},
		{"March", "1900-03-01", true},
		{"05/03/2024", "2024-03-05", true},
		{"03/25/2024", "2024-03-25", true},
		{"2024-03-05", "2024-03-05", true},
		{"1/2/24", "2024-02-01", true},
		{"1/2/85", "1985-02-01", true},
		{"1/2/70", "2070-02-01", true},
		{"31/02/2024", "", false},
		{"30 February 2024", "", false},
		{"1850", "", false},
		{"2150", "", false},
		{"no date at all", "", false},
		{"", "", false},
		{"12345", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandYear(t *testing.T) {
	tests := []struct {
		year   int
		digits string
		want   int
	}{
		{2026, "24", 2024},
		{2026, "70", 2070},
		{2026, "75", 2075},
		{2026, "76", 1976},
		{2026, "99", 1999},
		{2026, "00", 2000},
		{2026, "5", 2005},
		{2026, "2031", 2031},
		{2080, "20", 2120},
		{2080, "31", 2031},
	}
	for _, tt := range tests {
		t.Run(tt.digits, func(t *testing.T) {
			withYear(t, tt.year)
			assert.Equal(t, tt.want, expandYear(tt.digits))
		})
	}
}

func TestEvidenceDate(t *testing.T) {
	tests := []struct {
		name     string
		evidence string
		raw      string
		want     string
		ok       bool
	}{
		{"day month year", "Returns are due by 15 March 2024.", "15 March 2024", "2024-03-15", true},
		{"comma after month", "The employer shall file no later than 31 March, 2025.", "31 March, 2025", "2025-03-31", true},
		{"numeric widens year", "Review due 01/07/2025 at the latest", "2025", "2025-07-01", true},
		{"month year", "Starting June 2026 the rule applies", "June 2026", "2026-06-01", true},
		{"year only", "Within the year 2027", "2027", "2027-01-01", true},
		{"second date in sentence", "Returns for 2024 are due by 31 March, 2025.", "31 March, 2025", "2025-03-31", true},
		{"first date in sentence", "Returns for 2024 are due by 31 March, 2025.", "2024", "2024-01-01", true},
		{"mention not in evidence", "Returns are due by 15 March 2024.", "2030", "", false},
		{"nothing here", "nothing here", "2024", "", false},
		{"empty", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EvidenceDate(tt.evidence, tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

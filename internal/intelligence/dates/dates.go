// Package dates finds calendar-date mentions in normalized text and assigns
// each one a role from the keywords around it.
package dates

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/clauselens/internal/intelligence/textnorm"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

// Roles assigned by ClassifyRole.
const (
	RoleEffectiveStart   = "EFFECTIVE_START"
	RoleFilingDeadline   = "FILING_DEADLINE"
	RoleReviewMilestone  = "REVIEW_MILESTONE"
	RoleEnforcementStart = "ENFORCEMENT_START"
	RoleOther            = "OTHER"
)

// ContextRadius is the number of runes taken on each side of a date when scoring roles.
const ContextRadius = 140

const monthAlt = `January|February|March|April|May|June|July|August|September|October|November|December`

var (
	dmyRx = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(` + monthAlt + `),?\s+((?:19|20)\d{2})\b`)
	myRx  = regexp.MustCompile(`(?i)\b(` + monthAlt + `),?\s+((?:19|20)\d{2})\b`)
	yRx   = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
)

var months = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
}

// Match is one date mention with rune offsets.
type Match struct {
	Raw         string
	ISO         string
	Start       int
	End         int
	Granularity profile.Granularity
}

// ToISO formats a date as YYYY-MM-DD. A zero day becomes 1 and an empty month
// becomes September; the day is clamped to [1, 28].
func ToISO(day int, month string, year int) string {
	m := 9
	if month != "" {
		if v, ok := months[strings.ToLower(month)]; ok {
			m = v
		}
	}
	d := day
	if d == 0 {
		d = 1
	}
	if d < 1 {
		d = 1
	}
	if d > 28 {
		d = 28
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, m, d)
}

// Extract returns every date mention in x ordered by start offset. Patterns
// are applied day-month-year first, then month-year, then year-only; a match
// overlapping an earlier claim is skipped.
func Extract(x *textnorm.Index) []Match {
	text := x.Text()
	var (
		hits    []Match
		claimed [][2]int
	)
	overlaps := func(s, e int) bool {
		for _, c := range claimed {
			if !(e <= c[0] || s >= c[1]) {
				return true
			}
		}
		return false
	}
	add := func(loc []int, iso string, g profile.Granularity) {
		claimed = append(claimed, [2]int{loc[0], loc[1]})
		hits = append(hits, Match{
			Raw:         text[loc[0]:loc[1]],
			ISO:         iso,
			Start:       x.Rune(loc[0]),
			End:         x.Rune(loc[1]),
			Granularity: g,
		})
	}

	for _, loc := range dmyRx.FindAllStringSubmatchIndex(text, -1) {
		day, _ := strconv.Atoi(text[loc[2]:loc[3]])
		year, _ := strconv.Atoi(text[loc[6]:loc[7]])
		add(loc, ToISO(day, text[loc[4]:loc[5]], year), profile.GranularityDayMonthYear)
	}
	for _, loc := range myRx.FindAllStringSubmatchIndex(text, -1) {
		if overlaps(loc[0], loc[1]) {
			continue
		}
		year, _ := strconv.Atoi(text[loc[4]:loc[5]])
		add(loc, ToISO(0, text[loc[2]:loc[3]], year), profile.GranularityMonthYear)
	}
	for _, loc := range yRx.FindAllStringSubmatchIndex(text, -1) {
		if overlaps(loc[0], loc[1]) {
			continue
		}
		year, _ := strconv.Atoi(text[loc[2]:loc[3]])
		add(loc, ToISO(0, "", year), profile.GranularityYearOnly)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Start < hits[j].Start })
	return hits
}

// ---------------------------------------------------------------------------
// Role classification
// ---------------------------------------------------------------------------

type roleKeywords struct {
	role     string
	keywords []string
}

// roleTable is ordered; ties go to the earlier role.
var roleTable = []roleKeywords{
	{RoleEffectiveStart, []string{"effective from", "comes into force", "commences", "effective date"}},
	{RoleFilingDeadline, []string{"file", "filing", "return", "deadline", "submit", "no later than"}},
	{RoleReviewMilestone, []string{"review", "readiness", "assessment", "interim"}},
	{RoleEnforcementStart, []string{"enforcement", "penalties apply", "liable from"}},
}

// ClassifyRole scores the window of ContextRadius runes around [start, end)
// by keyword proximity to the window center: 3 points under 30 runes away,
// 2 under 70, otherwise 1. It returns the best role, its share of the total
// score and the per-role scores. Without any keyword the role is OTHER.
func ClassifyRole(x *textnorm.Index, start, end int) (string, float64, map[string]int) {
	lo := start - ContextRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + ContextRadius
	if hi > x.Len() {
		hi = x.Len()
	}
	ctx := strings.ToLower(x.Slice(lo, hi))
	cx := textnorm.NewIndex(ctx)
	center := cx.Len() / 2

	scores := make(map[string]int)
	var order []string
	for _, rk := range roleTable {
		for _, kw := range rk.keywords {
			for from := 0; from <= len(ctx); {
				i := strings.Index(ctx[from:], kw)
				if i < 0 {
					break
				}
				pos := cx.Rune(from + i)
				dist := pos - center
				if dist < 0 {
					dist = -dist
				}
				if dist > ContextRadius {
					dist = ContextRadius
				}
				if _, seen := scores[rk.role]; !seen {
					order = append(order, rk.role)
				}
				switch {
				case dist < 30:
					scores[rk.role] += 3
				case dist < 70:
					scores[rk.role] += 2
				default:
					scores[rk.role]++
				}
				from += i + len(kw)
			}
		}
	}
	if len(scores) == 0 {
		scores[RoleOther] = 1
		order = append(order, RoleOther)
	}

	total := 0
	best, bestVal := "", -1
	for _, role := range order {
		v := scores[role]
		total += v
		if v > bestVal {
			best, bestVal = role, v
		}
	}
	if total < 1 {
		total = 1
	}
	return best, textnorm.Round(float64(bestVal)/float64(total), 3), scores
}

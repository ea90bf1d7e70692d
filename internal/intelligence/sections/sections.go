// Package sections detects document headings, maps them onto a fixed section
// taxonomy and resolves the section enclosing any rune offset.
package sections

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/turtacn/clauselens/pkg/types/profile"
)

// MaxHeadingLen is the longest trimmed line, in runes, that can be a heading.
const MaxHeadingLen = 80

var headingRx = regexp.MustCompile(`^\s*([A-Z][A-Za-z0-9 &/()+\-]{2,})\s*$`)

type canonRule struct {
	rx   *regexp.Regexp
	name string
}

// canonRules is evaluated in order; the first match wins.
var canonRules = []canonRule{
	{regexp.MustCompile(`(?i)Applicability|Scope|Definitions`), "Applicability"},
	{regexp.MustCompile(`(?i)Compliance|Regulatory|Registers|Records`), "Compliance & Regulatory"},
	{regexp.MustCompile(`(?i)Wages|Benefits|Remuneration|Leave`), "Wages & Benefits"},
	{regexp.MustCompile(`(?i)Industrial Relations|Grievance|Dispute|Conciliation|Tribunal`), "Industrial Relations"},
	{regexp.MustCompile(`(?i)Health|Safety|HSE|OSH|Wellbeing`), "Health & Safety"},
	{regexp.MustCompile(`(?i)Enforcement|Penalty|Penalties|Prosecution|Sanction`), "Enforcement & Penalties"},
}

// Canonicalize maps a raw heading onto the section taxonomy, or returns it unchanged.
func Canonicalize(raw string) string {
	for _, rule := range canonRules {
		if rule.rx.MatchString(raw) {
			return rule.name
		}
	}
	return raw
}

// DetectHeadings returns every line that looks like a heading, with the rune
// offset of the line start and its trimmed text.
func DetectHeadings(text string) []profile.Heading {
	var out []profile.Heading
	pos := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if utf8.RuneCountInString(trimmed) <= MaxHeadingLen && headingRx.MatchString(strings.TrimSuffix(line, "\n")) {
			out = append(out, profile.Heading{
				Offset:        pos,
				RawText:       trimmed,
				CanonicalName: Canonicalize(trimmed),
			})
		}
		pos += utf8.RuneCountInString(line)
	}
	return out
}

// Resolver answers section lookups for one document.
type Resolver struct {
	headings []profile.Heading
}

// NewResolver builds a Resolver over headings ordered by offset.
func NewResolver(headings []profile.Heading) *Resolver {
	return &Resolver{headings: headings}
}

// Headings returns the headings the resolver was built with.
func (r *Resolver) Headings() []profile.Heading { return r.headings }

// Lookup returns the canonical name of the last heading at or before offset.
func (r *Resolver) Lookup(offset int) (string, bool) {
	var last *profile.Heading
	for i := range r.headings {
		if r.headings[i].Offset > offset {
			break
		}
		last = &r.headings[i]
	}
	if last == nil {
		return "", false
	}
	return last.CanonicalName, true
}

// Section is Lookup with the "General" fallback.
func (r *Resolver) Section(offset int) string {
	if name, ok := r.Lookup(offset); ok {
		return name
	}
	return profile.DefaultSection
}

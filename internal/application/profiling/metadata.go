package profiling

import (
	"regexp"
	"sort"
	"strings"

	"github.com/turtacn/clauselens/internal/intelligence/textnorm"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

type namedPattern struct {
	rx   *regexp.Regexp
	name string
}

var statutePatterns = []namedPattern{
	{regexp.MustCompile(`(?i)\bConsolidated Labour Compliance Code\b`), "Consolidated Labour Compliance Code"},
	{regexp.MustCompile(`(?i)\bIndustrial Relations Code\b`), "Industrial Relations Code"},
}

var (
	locationRx  = regexp.MustCompile(`(?i)\bLocation\s*:\s*(.+?)(?:\r?\n|$)`)
	placePairRx = regexp.MustCompile(`\b([A-Z][a-zA-Z]+),\s*([A-Z][a-zA-Z]+)\b`)
)

// jurisdictionWindow is how many leading runes are searched for a place pair.
const jurisdictionWindow = 300

type docTypeRule struct {
	label    string
	patterns []*regexp.Regexp
}

var docTypeVocab = []docTypeRule{
	{"Employment Rules Summary", []*regexp.Regexp{
		regexp.MustCompile(`(?i)employment rules`),
		regexp.MustCompile(`(?i)labour compliance`),
	}},
	{"Privacy Policy", []*regexp.Regexp{
		regexp.MustCompile(`(?i)privacy policy`),
		regexp.MustCompile(`(?i)data protection policy`),
	}},
}

// Statutes lists the known codes named in text, sorted and unique.
func Statutes(text string) []string {
	out := []string{}
	for _, p := range statutePatterns {
		if p.rx.MatchString(text) {
			out = append(out, p.name)
		}
	}
	sort.Strings(out)
	return out
}

// Jurisdiction reads a "Location:" line, else the first "Word, Word" pair in
// the opening runes of the document. It returns nil when neither is present.
func Jurisdiction(x *textnorm.Index) *string {
	if m := locationRx.FindStringSubmatch(x.Text()); m != nil {
		v := strings.TrimRight(strings.TrimSpace(m[1]), ".")
		return &v
	}
	if m := placePairRx.FindStringSubmatch(x.Slice(0, jurisdictionWindow)); m != nil {
		v := m[1] + ", " + m[2]
		return &v
	}
	return nil
}

// DocumentType matches the vocabulary against the text and the first heading,
// then falls back to the first heading itself.
func DocumentType(text string, headings []profile.Heading) string {
	title := ""
	if len(headings) > 0 {
		title = strings.ToLower(headings[0].RawText)
	}
	for _, rule := range docTypeVocab {
		for _, rx := range rule.patterns {
			if rx.MatchString(text) || rx.MatchString(title) {
				return rule.label
			}
		}
	}
	if len(headings) > 0 {
		return strings.TrimSpace(headings[0].RawText)
	}
	return profile.UnknownDocumentType
}

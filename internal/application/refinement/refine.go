// Package refinement turns a Profile into the consumer-facing RefinedProfile:
// low-quality clauses are filtered out and re-merged, dates are re-scored with
// section priors, and clauses are sorted into semantic buckets.
package refinement

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/turtacn/clauselens/internal/intelligence/textnorm"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

// undatedSortKey places dates without an ISO value last.
const undatedSortKey = "9999-99-99"

// Refine runs filter, merge, date re-scoring, bucketization, document type
// selection and legal context extraction, in that order.
func Refine(p *profile.Profile) (*profile.RefinedProfile, error) {
	if p == nil {
		return nil, errors.NoUsableInput("no profile to refine")
	}

	kept := Filter(p.Clauses)
	merged := MergeClauses(kept)

	out := &profile.RefinedProfile{
		DocumentType:    SelectDocumentType(p.DocumentType, merged),
		Jurisdiction:    copyString(p.Jurisdiction),
		StatutesOrCodes: append([]string(nil), p.StatutesOrCodes...),
		Dates:           RefineDates(p.ImportantDates),
		LegalContext:    ExtractLegalContext(merged),
		Buckets:         Bucketize(merged),
		Meta: profile.RefinedMeta{SourceQuality: profile.SourceQuality{
			MeanSpanConfidence: meanConfidence(merged),
			SpansUsed:          len(merged),
			SpansDropped:       len(p.Clauses) - len(kept),
		}},
	}
	return out, nil
}

// Filter drops clauses below MinSpanConfidence or shorter than MinSpanLength
// runes once whitespace is collapsed.
func Filter(clauses []profile.Clause) []profile.Clause {
	out := make([]profile.Clause, 0, len(clauses))
	for _, c := range clauses {
		if c.Confidence < MinSpanConfidence {
			continue
		}
		if utf8.RuneCountInString(textnorm.CollapseSpace(c.Text)) < MinSpanLength {
			continue
		}
		out = append(out, c)
	}
	return out
}

// MergeClauses sorts by (section, category, start, end) and folds a clause
// into its predecessor when both share section and category and the gap is at
// most MergeGapChars. Merged text is joined with one space and the higher
// confidence wins.
func MergeClauses(clauses []profile.Clause) []profile.Clause {
	sorted := append([]profile.Clause(nil), clauses...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.End < b.End
	})

	var out []profile.Clause
	for _, c := range sorted {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.Section == c.Section && last.Category == c.Category && c.Start-last.End <= MergeGapChars {
				last.Text = textnorm.CollapseSpace(last.Text + " " + c.Text)
				if c.End > last.End {
					last.End = c.End
				}
				if c.Confidence > last.Confidence {
					last.Confidence = c.Confidence
				}
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// RefineDates re-parses every date mention and re-scores its role. The
// result is ordered by ISO date with undated mentions last.
func RefineDates(mentions []profile.DateMention) []profile.RefinedDate {
	out := make([]profile.RefinedDate, 0, len(mentions))
	for _, d := range mentions {
		iso := d.ISODate
		if v, ok := ParseDate(d.RawText); ok {
			iso = v
		}
		if v, ok := EvidenceDate(d.Evidence, d.RawText); ok {
			iso = v
		}
		role, conf := ChooseDateRole(d.Evidence, d.Section)
		out = append(out, profile.RefinedDate{
			RawText:        d.RawText,
			ISODate:        iso,
			Role:           role,
			RoleConfidence: textnorm.Round(conf, 3),
			Evidence:       truncateRunes(textnorm.CollapseSpace(d.Evidence), MaxEvidenceLen),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return dateSortKey(out[i]) < dateSortKey(out[j]) })
	return out
}

func dateSortKey(d profile.RefinedDate) string {
	if d.ISODate == "" {
		return undatedSortKey
	}
	return d.ISODate
}

type roleScore struct {
	role  string
	score float64
}

// ChooseDateRole scores evidence against the weighted role patterns plus the
// priors of section. The best score s maps to confidence min(0.5+0.1*s, 0.95);
// ties go to the role that scored first. With no score at all the role is
// FILING_DEADLINE (0.5) when the evidence mentions a due date or deadline,
// else EFFECTIVE_START (0.4).
func ChooseDateRole(evidence, section string) (string, float64) {
	window := strings.ToLower(evidence)
	var scores []roleScore
	add := func(role string, w float64) {
		for i := range scores {
			if scores[i].role == role {
				scores[i].score += w
				return
			}
		}
		scores = append(scores, roleScore{role, w})
	}

	for _, p := range rolePatterns {
		if p.rx.MatchString(window) {
			add(p.role, p.weight)
		}
	}
	for _, p := range sectionPriors[section] {
		add(p.role, p.weight)
	}

	if len(scores) == 0 {
		if dueRx.MatchString(window) {
			return RoleFilingDeadline, 0.5
		}
		return RoleEffectiveStart, 0.4
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s.score > best.score {
			best = s
		}
	}
	conf := 0.5 + 0.1*best.score
	if conf > 0.95 {
		conf = 0.95
	}
	return best.role, conf
}

// Bucketize sorts clause texts into buckets, de-duplicated by collapsed text
// with the first occurrence kept.
func Bucketize(clauses []profile.Clause) map[profile.Bucket][]string {
	out := make(map[profile.Bucket][]string)
	seen := make(map[profile.Bucket]map[string]struct{})
	for _, c := range clauses {
		b, ok := BucketFor(c.Category)
		if !ok {
			continue
		}
		text := textnorm.CollapseSpace(c.Text)
		if text == "" {
			continue
		}
		if seen[b] == nil {
			seen[b] = make(map[string]struct{})
		}
		if _, dup := seen[b][text]; dup {
			continue
		}
		seen[b][text] = struct{}{}
		out[b] = append(out[b], text)
	}
	return out
}

// SelectDocumentType keeps an upstream type and otherwise infers one from the
// clause text.
func SelectDocumentType(upstream string, clauses []profile.Clause) string {
	if upstream != "" && upstream != profile.UnknownDocumentType {
		return upstream
	}
	texts := make([]string, len(clauses))
	for i, c := range clauses {
		texts[i] = c.Text
	}
	blob := strings.ToLower(strings.Join(texts, " "))
	switch {
	case strings.Contains(blob, "code") && strings.Contains(blob, "labour"):
		return DocTypeLabourCode
	case strings.Contains(blob, "policy") && strings.Contains(blob, "compliance"):
		return DocTypeCompliancePolicy
	default:
		return DocTypeLegalSummary
	}
}

// ExtractLegalContext takes the scope from the first Definitions or
// Applicability clause and the exemptions from the first Industrial_Relations
// or Applicability clause that mentions an exemption or exclusion.
func ExtractLegalContext(clauses []profile.Clause) profile.LegalContext {
	var lc profile.LegalContext
	for _, c := range clauses {
		if scopeCategories[c.Category] {
			lc.Scope = textnorm.CollapseSpace(c.Text)
			break
		}
	}
	for _, c := range clauses {
		if exemptionCategories[c.Category] && exemptionRx.MatchString(strings.ToLower(c.Text)) {
			lc.Exemptions = textnorm.CollapseSpace(c.Text)
			break
		}
	}
	return lc
}

func meanConfidence(clauses []profile.Clause) float64 {
	if len(clauses) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range clauses {
		sum += c.Confidence
	}
	return textnorm.Round(sum/float64(len(clauses)), 3)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

package clause_ner

import (
	"regexp"
	"sort"

	"github.com/turtacn/clauselens/internal/intelligence/textnorm"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

// MergeMaxGap is the widest gap, in runes, two spans may be bridged across.
const MergeMaxGap = 3

var punctBridge = regexp.MustCompile(`^[\s,;\x{2014}\x{2013}-]*$`)

// bridges reports whether the gap text between two spans lets them merge.
// Only whitespace and , ; - bridge. Any word, stopwords such as "and" or
// "of" included, keeps the spans apart.
func bridges(gap string) bool {
	return punctBridge.MatchString(gap)
}

func shouldMerge(acc, next profile.EntitySpan, x *textnorm.Index) bool {
	if next.Category != acc.Category {
		return false
	}
	if next.Start-acc.End > MergeMaxGap {
		return false
	}
	return bridges(x.Slice(acc.End, next.Start))
}

// Merge joins same-category spans separated by a short punctuation-only gap.
// Spans are stably sorted by (start, end) and folded left to right once.
// Confidence and uncertainty of a merge are the plain mean of the two sides.
// Merge is idempotent: merging its own output changes nothing.
func Merge(spans []profile.EntitySpan, x *textnorm.Index) []profile.EntitySpan {
	if len(spans) == 0 {
		return nil
	}
	sorted := make([]profile.EntitySpan, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	out := []profile.EntitySpan{sorted[0]}
	for _, next := range sorted[1:] {
		acc := &out[len(out)-1]
		if !shouldMerge(*acc, next, x) {
			out = append(out, next)
			continue
		}
		if next.End > acc.End {
			acc.End = next.End
		}
		acc.Confidence = textnorm.Round((acc.Confidence+next.Confidence)/2, 3)
		acc.Uncertainty = textnorm.Round((acc.Uncertainty+next.Uncertainty)/2, 3)
		acc.Text = x.Slice(acc.Start, acc.End)
	}
	return out
}

// LabelSet returns the sorted distinct categories of spans.
func LabelSet(spans []profile.EntitySpan) []string {
	seen := make(map[string]struct{}, len(spans))
	out := make([]string, 0, len(spans))
	for _, s := range spans {
		if _, ok := seen[s.Category]; ok {
			continue
		}
		seen[s.Category] = struct{}{}
		out = append(out, s.Category)
	}
	sort.Strings(out)
	return out
}

package profiling

import (
	"github.com/turtacn/clauselens/internal/intelligence/sections"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

// BuildClauses places every span in its section and tallies categories. The
// histogram is ordered by descending count; equal counts keep first-seen order.
func BuildClauses(spans []profile.EntitySpan, resolver *sections.Resolver) ([]profile.Clause, profile.Topics) {
	clauses := make([]profile.Clause, 0, len(spans))
	topics := profile.Topics{}
	index := make(map[string]int)

	for _, s := range spans {
		clauses = append(clauses, profile.Clause{
			Section:     resolver.Section(s.Start),
			Category:    s.Category,
			Text:        s.Text,
			Start:       s.Start,
			End:         s.End,
			Confidence:  s.Confidence,
			Uncertainty: s.Uncertainty,
		})
		if i, ok := index[s.Category]; ok {
			topics[i].Count++
			continue
		}
		index[s.Category] = len(topics)
		topics = append(topics, profile.TopicCount{Category: s.Category, Count: 1})
	}
	return clauses, sortTopics(topics)
}

// sortTopics is a stable insertion sort by descending count.
func sortTopics(t profile.Topics) profile.Topics {
	for i := 1; i < len(t); i++ {
		for j := i; j > 0 && t[j].Count > t[j-1].Count; j-- {
			t[j], t[j-1] = t[j-1], t[j]
		}
	}
	return t
}

package profiling

import (
	"github.com/turtacn/clauselens/internal/intelligence/dates"
	"github.com/turtacn/clauselens/internal/intelligence/sections"
	"github.com/turtacn/clauselens/internal/intelligence/textnorm"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

// DateMentions extracts dates, scores their roles and attaches the section
// and the whitespace-collapsed sentence each one appears in.
func DateMentions(x *textnorm.Index, resolver *sections.Resolver) []profile.DateMention {
	sentences := textnorm.SentenceSpans(x)
	matches := dates.Extract(x)
	out := make([]profile.DateMention, 0, len(matches))
	for _, m := range matches {
		role, conf, scores := dates.ClassifyRole(x, m.Start, m.End)
		dm := profile.DateMention{
			RawText:        m.Raw,
			ISODate:        m.ISO,
			Start:          m.Start,
			End:            m.End,
			Granularity:    m.Granularity,
			Role:           role,
			RoleConfidence: conf,
			RoleScores:     scores,
			Section:        resolver.Section(m.Start),
		}
		if sp, ok := textnorm.SentenceAt(sentences, m.Start); ok {
			dm.Evidence = textnorm.CollapseSpace(x.Slice(sp.Start, sp.End))
		}
		out = append(out, dm)
	}
	return out
}

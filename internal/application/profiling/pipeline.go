package profiling

import (
	"time"

	"github.com/turtacn/clauselens/internal/intelligence/clause_ner"
	"github.com/turtacn/clauselens/internal/intelligence/sections"
	"github.com/turtacn/clauselens/internal/intelligence/textnorm"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

// Pipeline stage names, reported in stage duration metrics.
const (
	StageNormalize = "normalize"
	StageClassify  = "classify"
	StageDecode    = "decode"
	StageSections  = "sections"
	StageDates     = "dates"
	StageAggregate = "aggregate"
)

// GeneratedAtLayout formats Meta.GeneratedAt.
const GeneratedAtLayout = "2006-01-02T15:04:05Z"

type stageObserver func(stage string, d time.Duration)

// Assemble builds a Profile from normalized text and the classifier output
// for that text. It is deterministic apart from generatedAt.
func Assemble(normalized string, pred *clause_ner.Prediction, model string, generatedAt time.Time) (*profile.Profile, error) {
	return assemble(normalized, pred, model, generatedAt, nil)
}

func assemble(text string, pred *clause_ner.Prediction, model string, generatedAt time.Time, observe stageObserver) (*profile.Profile, error) {
	timed := func(stage string, fn func()) {
		start := time.Now()
		fn()
		if observe != nil {
			observe(stage, time.Since(start))
		}
	}

	x := textnorm.NewIndex(text)

	var (
		decoded *clause_ner.DecodeResult
		err     error
	)
	timed(StageDecode, func() { decoded, err = clause_ner.Decode(pred, x) })
	if err != nil {
		return nil, err
	}

	var (
		headings []profile.Heading
		resolver *sections.Resolver
	)
	timed(StageSections, func() {
		headings = sections.DetectHeadings(text)
		resolver = sections.NewResolver(headings)
	})

	var mentions []profile.DateMention
	timed(StageDates, func() { mentions = DateMentions(x, resolver) })

	p := &profile.Profile{}
	timed(StageAggregate, func() {
		clauses, topics := BuildClauses(decoded.Spans, resolver)
		labelSet := decoded.LabelSet
		if labelSet == nil {
			labelSet = []string{}
		}
		*p = profile.Profile{
			DocumentType:    DocumentType(text, headings),
			Jurisdiction:    Jurisdiction(x),
			StatutesOrCodes: Statutes(text),
			ImportantDates:  mentions,
			Topics:          topics,
			Clauses:         clauses,
			KeyPoints:       KeyPoints(x, MaxKeyPoints),
			Meta: profile.Meta{
				Model:       model,
				GeneratedAt: generatedAt.UTC().Format(GeneratedAtLayout),
				LabelSet:    labelSet,
				Quality:     QualityReport(x.Len(), decoded.Spans),
			},
		}
	})
	return p, nil
}

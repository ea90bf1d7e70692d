package refinement

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clauselens/internal/application/profiling"
	"github.com/turtacn/clauselens/internal/intelligence/clause_ner"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

func clause(section, category, text string, start, end int, conf float64) profile.Clause {
	return profile.Clause{Section: section, Category: category, Text: text, Start: start, End: end, Confidence: conf}
}

func TestRefine_NilProfile(t *testing.T) {
	_, err := Refine(nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNoUsableInput))
}

func TestFilter_Thresholds(t *testing.T) {
	text30 := "Employers shall keep records.."
	require.Len(t, text30, 30)

	tests := []struct {
		name string
		c    profile.Clause
		keep bool
	}{
		{"low confidence", clause("S", "Obligations", text30, 0, 30, 0.50), false},
		{"survives", clause("S", "Obligations", text30, 0, 30, 0.60), true},
		{"at threshold", clause("S", "Obligations", text30, 0, 30, MinSpanConfidence), true},
		{"too short", clause("S", "Obligations", "Keep records.", 0, 13, 0.9), false},
		{"short after collapsing", clause("S", "Obligations", "Keep      records      now   ok", 0, 31, 0.9), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter([]profile.Clause{tt.c})
			if tt.keep {
				assert.Len(t, got, 1)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestMergeClauses(t *testing.T) {
	in := []profile.Clause{
		clause("Wages", "Obligations", "pay wages monthly", 38, 55, 0.6),
		clause("Wages", "Obligations", "keep  payroll records", 10, 31, 0.9),
		clause("Wages", "Rights", "workers may appeal", 32, 50, 0.7),
		clause("General", "Obligations", "file returns", 0, 12, 0.8),
		clause("Wages", "Obligations", "display notices", 70, 85, 0.7),
	}
	got := MergeClauses(in)
	require.Len(t, got, 4)

	assert.Equal(t, "General", got[0].Section)

	merged := got[1]
	assert.Equal(t, "Wages", merged.Section)
	assert.Equal(t, "Obligations", merged.Category)
	assert.Equal(t, "keep payroll records pay wages monthly", merged.Text)
	assert.Equal(t, 10, merged.Start)
	assert.Equal(t, 55, merged.End)
	assert.Equal(t, 0.9, merged.Confidence)

	assert.Equal(t, "display notices", got[2].Text, "gap of 15 is not bridged")
	assert.Equal(t, "Rights", got[3].Category)
	assert.Equal(t, 38, in[0].Start, "input untouched")
}

func TestMergeClauses_OverlapKeepsOuterEnd(t *testing.T) {
	got := MergeClauses([]profile.Clause{
		clause("S", "A", "aaaa bbbb cccc", 0, 14, 0.6),
		clause("S", "A", "bbbb", 5, 9, 0.7),
	})
	require.Len(t, got, 1)
	assert.Equal(t, 14, got[0].End)
	assert.Equal(t, 0.7, got[0].Confidence)
}

func TestChooseDateRole(t *testing.T) {
	tests := []struct {
		name     string
		evidence string
		section  string
		role     string
		conf     float64
	}{
		{"filing pattern", "Returns due by 5 May 2024.", "", RoleFilingDeadline, 0.72},
		{"highest pattern wins", "The Act comes into force on 1 July; a review follows.", "", RoleEffectiveStart, 0.7},
		{"sunset over transition", "The rule expires at the sunset, valid until 2030", "", RoleSunset, 0.68},
		{"section prior only", "Statement for 2024.", "Disclosure & Reporting", RoleFilingDeadline, 0.57},
		{"prior adds to pattern", "Interim review in 2025.", "Compliance & Regulatory", RoleReadinessReview, 0.7},
		{"tie keeps first scored", "Effective from 1 May; deadline 2 May.", "Contracting Requirements", RoleEffectiveStart, 0.72},
		{"due fallback", "Payment is due soon.", "", RoleFilingDeadline, 0.5},
		{"default", "On 1 May 2024.", "General", RoleEffectiveStart, 0.4},
		{"prior stacks on pattern", "effective from; comes into force; commencement", "Compliance & Regulatory", RoleEffectiveStart, 0.76},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, conf := ChooseDateRole(tt.evidence, tt.section)
			assert.Equal(t, tt.role, role)
			assert.InDelta(t, tt.conf, conf, 1e-9)
			assert.LessOrEqual(t, conf, 0.95)
		})
	}
}

func TestChooseDateRole_Strongest(t *testing.T) {
	_, conf := ChooseDateRole("x", "")
	assert.Equal(t, 0.4, conf)

	role, conf := ChooseDateRole("deadline", "Disclosure & Reporting")
	assert.Equal(t, RoleFilingDeadline, role)
	assert.InDelta(t, 0.79, conf, 1e-9)
}

func TestRefineDates(t *testing.T) {
	in := []profile.DateMention{
		{RawText: "2031", ISODate: "2031-09-01", Section: "General"},
		{RawText: "gibberish", ISODate: "", Evidence: "no date here"},
		{RawText: "2024", ISODate: "2024-09-01", Evidence: "  Reports   due by   15/03/2024 at the latest. "},
		{RawText: "sometime", ISODate: "2020-05-05"},
	}
	got := RefineDates(in)
	require.Len(t, got, 4)

	assert.Equal(t, "sometime", got[0].RawText, "unparseable raw text keeps upstream iso")
	assert.Equal(t, "2020-05-05", got[0].ISODate)

	assert.Equal(t, "2024", got[1].RawText)
	assert.Equal(t, "2024-03-15", got[1].ISODate, "evidence date containing the mention wins")
	assert.Equal(t, RoleFilingDeadline, got[1].Role)
	assert.Equal(t, "Reports due by 15/03/2024 at the latest.", got[1].Evidence)

	assert.Equal(t, "2031-01-01", got[2].ISODate)
	assert.Equal(t, "gibberish", got[3].RawText, "undated last")
	assert.Equal(t, "", got[3].ISODate)
}

func TestRefineDates_EvidenceTruncated(t *testing.T) {
	long := ""
	for i := 0; i < 60; i++ {
		long += "word "
	}
	got := RefineDates([]profile.DateMention{{RawText: "2024", Evidence: long}})
	require.Len(t, got, 1)
	assert.Len(t, []rune(got[0].Evidence), MaxEvidenceLen)
}

func TestBucketize(t *testing.T) {
	got := Bucketize([]profile.Clause{
		clause("S", "Obligations", "Keep   registers of workers", 0, 1, 1),
		clause("S", "Audit_Records", "Keep registers of workers", 0, 1, 1),
		clause("S", "Obligations", "Keep registers of workers and wages", 0, 1, 1),
		clause("S", "Rights", "Workers may appeal dismissal", 0, 1, 1),
		clause("S", "Industrial_Relations", "Disputes go to the tribunal", 0, 1, 1),
		clause("S", "Definitions", "Worker means any person", 0, 1, 1),
		clause("S", "Cross_Reference", "   ", 0, 1, 1),
	})
	assert.Equal(t, map[profile.Bucket][]string{
		profile.BucketObligations:       {"Keep registers of workers", "Keep registers of workers and wages"},
		profile.BucketRights:            {"Workers may appeal dismissal"},
		profile.BucketDisputeResolution: {"Disputes go to the tribunal"},
	}, got)
}

func TestBucketFor_EveryBucketReachable(t *testing.T) {
	reached := make(map[profile.Bucket]bool)
	for _, b := range bucketOf {
		reached[b] = true
	}
	for _, b := range profile.Buckets {
		assert.True(t, reached[b], b)
	}
	_, ok := BucketFor("Definitions")
	assert.False(t, ok)
}

func TestSelectDocumentType(t *testing.T) {
	tests := []struct {
		name     string
		upstream string
		texts    []string
		want     string
	}{
		{"upstream kept", "Privacy Policy", []string{"labour code"}, "Privacy Policy"},
		{"labour code", "", []string{"The Labour", "code applies"}, DocTypeLabourCode},
		{"compliance policy", profile.UnknownDocumentType, []string{"This policy sets compliance rules"}, DocTypeCompliancePolicy},
		{"fallback", "", []string{"nothing relevant"}, DocTypeLegalSummary},
		{"unknown upstream is absent", profile.UnknownDocumentType, []string{"nothing relevant"}, DocTypeLegalSummary},
		{"no clauses", "", nil, DocTypeLegalSummary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cs []profile.Clause
			for _, s := range tt.texts {
				cs = append(cs, clause("S", "X", s, 0, 1, 1))
			}
			assert.Equal(t, tt.want, SelectDocumentType(tt.upstream, cs))
		})
	}
}

func TestExtractLegalContext(t *testing.T) {
	lc := ExtractLegalContext([]profile.Clause{
		clause("S", "Obligations", "Not scope", 0, 1, 1),
		clause("S", "Applicability", "Applies to   all employers", 0, 1, 1),
		clause("S", "Definitions", "Employer means a person", 0, 1, 1),
		clause("S", "Industrial_Relations", "Small firms are excluded from  balloting", 0, 1, 1),
		clause("S", "Applicability", "An exemption exists for charities", 0, 1, 1),
	})
	assert.Equal(t, "Applies to all employers", lc.Scope)
	assert.Equal(t, "Small firms are excluded from balloting", lc.Exemptions)

	assert.Equal(t, profile.LegalContext{}, ExtractLegalContext(nil))
}

func TestRefine_SourceQuality(t *testing.T) {
	p := &profile.Profile{
		DocumentType: "Employment Rules Summary",
		Clauses: []profile.Clause{
			clause("S", "Obligations", "Employers shall keep all registers", 0, 34, 0.9),
			clause("S", "Obligations", "and display notices at the gate", 36, 67, 0.7),
			clause("S", "Rights", "Workers may appeal any dismissal", 80, 112, 0.6),
			clause("S", "Rights", "weak", 120, 124, 0.99),
			clause("S", "Penalties", "Fines of up to ten thousand apply", 130, 163, 0.3),
		},
	}
	r, err := Refine(p)
	require.NoError(t, err)
	assert.Equal(t, "Employment Rules Summary", r.DocumentType)
	assert.Equal(t, 2, r.Meta.SourceQuality.SpansUsed)
	assert.Equal(t, 2, r.Meta.SourceQuality.SpansDropped)
	assert.Equal(t, 0.75, r.Meta.SourceQuality.MeanSpanConfidence)
	assert.Equal(t, []string{"Employers shall keep all registers and display notices at the gate"}, r.Bucket(profile.BucketObligations))
	assert.Equal(t, []string{"Workers may appeal any dismissal"}, r.Bucket(profile.BucketRights))
	assert.Empty(t, r.Bucket(profile.BucketPenalties))
}

var wordRx = regexp.MustCompile(`\w+`)

func TestPipeline_ComplianceDocument(t *testing.T) {
	text := "COMPLIANCE AND REGULATORY\nThe employer shall file the annual return no later than 31 March, 2025.\n"
	c := clause_ner.Chunk{}
	first := true
	for _, loc := range wordRx.FindAllStringIndex(text, -1) {
		c.Offsets = append(c.Offsets, [2]int{loc[0], loc[1]})
		switch {
		case loc[0] < 26:
			c.LabelIDs = append(c.LabelIDs, 0)
			c.Probs = append(c.Probs, []float64{1, 0, 0})
		case first:
			c.LabelIDs = append(c.LabelIDs, 1)
			c.Probs = append(c.Probs, []float64{0.1, 0.8, 0.1})
			first = false
		default:
			c.LabelIDs = append(c.LabelIDs, 2)
			c.Probs = append(c.Probs, []float64{0.1, 0.1, 0.8})
		}
	}
	pred := &clause_ner.Prediction{
		Labels: map[int]string{0: "O", 1: "B-Obligations", 2: "I-Obligations"},
		Chunks: []clause_ner.Chunk{c},
	}

	p, err := profiling.Assemble(text, pred, "legal-ner", time.Unix(0, 0))
	require.NoError(t, err)
	require.Len(t, p.Clauses, 1)
	assert.Equal(t, "Compliance & Regulatory", p.Clauses[0].Section)
	require.Len(t, p.ImportantDates, 1)
	assert.Equal(t, "31 March, 2025", p.ImportantDates[0].RawText)
	assert.Equal(t, "2025-03-28", p.ImportantDates[0].ISODate)
	assert.Equal(t, "FILING_DEADLINE", p.ImportantDates[0].Role)

	r, err := Refine(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"The employer shall file the annual return no later than 31 March, 2025"}, r.Bucket(profile.BucketObligations))
	require.Len(t, r.Dates, 1)
	assert.Equal(t, "31 March, 2025", r.Dates[0].RawText)
	assert.Equal(t, "2025-03-31", r.Dates[0].ISODate)
	assert.Equal(t, RoleEffectiveStart, r.Dates[0].Role)
	assert.Equal(t, 0.56, r.Dates[0].RoleConfidence)
	assert.Equal(t, "COMPLIANCE AND REGULATORY", r.DocumentType)
	assert.Equal(t, 1, r.Meta.SourceQuality.SpansUsed)
}

func TestPipeline_TwoDatesInOneSentence(t *testing.T) {
	text := "Returns for 2024 are due by 31 March, 2025.\n"
	p, err := profiling.Assemble(text, &clause_ner.Prediction{Labels: map[int]string{0: "O"}}, "m", time.Unix(0, 0))
	require.NoError(t, err)
	require.Len(t, p.ImportantDates, 2)

	r, err := Refine(p)
	require.NoError(t, err)
	require.Len(t, r.Dates, 2)
	assert.Equal(t, "2024", r.Dates[0].RawText)
	assert.Equal(t, "2024-01-01", r.Dates[0].ISODate)
	assert.Equal(t, "31 March, 2025", r.Dates[1].RawText)
	assert.Equal(t, "2025-03-31", r.Dates[1].ISODate)
}

func TestPipeline_EmptyDocument(t *testing.T) {
	p, err := profiling.Assemble("", &clause_ner.Prediction{}, "m", time.Unix(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, p.Meta.Quality.SpanCount)
	assert.Equal(t, 0.0, p.Meta.Quality.CoverageRatio)
	assert.Len(t, p.Meta.Quality.RedFlags, 2)

	r, err := Refine(p)
	require.NoError(t, err)
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &keys))
	for _, b := range profile.Buckets {
		assert.NotContains(t, keys, string(b))
	}
	assert.NotContains(t, keys, "dates")
	assert.NotContains(t, keys, "statutes_or_codes")
	assert.Equal(t, DocTypeLegalSummary, r.DocumentType)
}

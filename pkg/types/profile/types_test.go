package profile

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGranularity_IsValid(t *testing.T) {
	assert.True(t, GranularityDayMonthYear.IsValid())
	assert.True(t, GranularityYearOnly.IsValid())
	assert.False(t, Granularity("WEEK").IsValid())
}

func TestBucket_IsValid(t *testing.T) {
	assert.True(t, BucketObligations.IsValid())
	assert.True(t, BucketCrossReferences.IsValid())
	assert.False(t, Bucket("misc").IsValid())
	assert.Len(t, Buckets, 8)
}

func TestTopics_MarshalKeepsOrder(t *testing.T) {
	topics := Topics{{"Obligations", 3}, {"Rights", 3}, {"Applicability", 1}}

	data, err := json.Marshal(topics)
	require.NoError(t, err)
	assert.Equal(t, `{"Obligations":3,"Rights":3,"Applicability":1}`, string(data))

	var back Topics
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, topics, back)
	assert.Equal(t, 3, back.Get("Rights"))
	assert.Equal(t, 0, back.Get("Missing"))
}

func TestTopics_EmptyAndNull(t *testing.T) {
	data, err := json.Marshal(Topics{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	var tp Topics
	require.NoError(t, json.Unmarshal([]byte(`null`), &tp))
	assert.Nil(t, tp)
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &tp))
	assert.Error(t, json.Unmarshal([]byte(`{"a":"x"}`), &tp))
}

func TestRefinedProfile_MarshalOmitsEmpty(t *testing.T) {
	rp := RefinedProfile{
		DocumentType: "Legal Summary",
		Buckets:      map[Bucket][]string{BucketRights: {}},
		Meta:         RefinedMeta{SourceQuality: SourceQuality{}},
	}

	data, err := json.Marshal(rp)
	require.NoError(t, err)
	assert.Equal(t,
		`{"document_type":"Legal Summary","jurisdiction":null,"legal_context":{},"meta":{"source_quality":{"mean_span_confidence":0,"spans_used":0,"spans_dropped":0}}}`,
		string(data))
}

func TestRefinedProfile_MarshalOrder(t *testing.T) {
	loc := "Lagos, Nigeria"
	rp := RefinedProfile{
		DocumentType:    "Labour Compliance Code Summary",
		Jurisdiction:    &loc,
		StatutesOrCodes: []string{"Industrial Relations Code"},
		Dates:           []RefinedDate{{RawText: "2025", ISODate: "2025-09-01", Role: "EFFECTIVE_START", RoleConfidence: 0.4}},
		LegalContext:    LegalContext{Scope: "Applies to all employers."},
		Buckets: map[Bucket][]string{
			BucketGovernance:  {"Board oversight applies."},
			BucketObligations: {"Employers shall keep registers."},
		},
	}

	data, err := json.Marshal(rp)
	require.NoError(t, err)
	s := string(data)

	keys := []string{`"document_type"`, `"jurisdiction"`, `"statutes_or_codes"`, `"dates"`, `"legal_context"`, `"obligations"`, `"governance"`, `"meta"`}
	last := -1
	for _, k := range keys {
		idx := strings.Index(s, k)
		require.GreaterOrEqual(t, idx, 0, k)
		assert.Greater(t, idx, last, k)
		last = idx
	}

	var back RefinedProfile
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rp.DocumentType, back.DocumentType)
	require.NotNil(t, back.Jurisdiction)
	assert.Equal(t, loc, *back.Jurisdiction)
	assert.Equal(t, rp.Buckets, back.Buckets)
	assert.Equal(t, rp.Dates, back.Dates)
	assert.Equal(t, []string{"Board oversight applies."}, back.Bucket(BucketGovernance))
	assert.Nil(t, back.Bucket(BucketRights))
}

func TestProfile_JSONShape(t *testing.T) {
	p := Profile{
		DocumentType: "Unknown",
		Topics:       Topics{{"Obligations", 1}},
		Meta:         Meta{Quality: Quality{RedFlags: []string{RedFlagLowCoverage}}},
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Nil(t, generic["jurisdiction"])
	assert.Equal(t, map[string]interface{}{"Obligations": float64(1)}, generic["topics"])

	var back Profile
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p.Topics, back.Topics)
	assert.Equal(t, p.Meta.Quality.RedFlags, back.Meta.Quality.RedFlags)
}

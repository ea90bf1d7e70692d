package sections

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clauselens/pkg/types/profile"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"COMPLIANCE AND REGULATORY", "Compliance & Regulatory"},
		{"Scope of Application", "Applicability"},
		{"Definitions", "Applicability"},
		{"Annual Leave", "Wages & Benefits"},
		{"Grievance Handling", "Industrial Relations"},
		{"OSH Duties", "Health & Safety"},
		{"Penalties", "Enforcement & Penalties"},
		{"Miscellaneous", "Miscellaneous"},
		// first rule wins
		{"Scope of Compliance", "Applicability"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.raw))
		})
	}
}

func TestDetectHeadings(t *testing.T) {
	text := "COMPLIANCE AND REGULATORY\nThe employer shall file the annual return no later than 31 March, 2025.\n  Health & Safety (OSH)  \nlowercase line\nÉtat\nOK\n"

	heads := DetectHeadings(text)
	require.Len(t, heads, 2)

	assert.Equal(t, profile.Heading{Offset: 0, RawText: "COMPLIANCE AND REGULATORY", CanonicalName: "Compliance & Regulatory"}, heads[0])
	assert.Equal(t, 98, heads[1].Offset)
	assert.Equal(t, "Health & Safety (OSH)", heads[1].RawText)
	assert.Equal(t, "Health & Safety", heads[1].CanonicalName)
}

func TestDetectHeadings_RuneOffsets(t *testing.T) {
	text := "Préambule général\nSCOPE\n"
	heads := DetectHeadings(text)
	require.Len(t, heads, 1)
	assert.Equal(t, 18, heads[0].Offset)
	assert.Equal(t, "SCOPE", heads[0].RawText)
}

func TestDetectHeadings_TooLong(t *testing.T) {
	long := "A" + strings.Repeat("b", MaxHeadingLen)
	assert.Empty(t, DetectHeadings(long+"\n"))
	assert.Len(t, DetectHeadings(long[:MaxHeadingLen]+"\n"), 1)
}

func TestResolver(t *testing.T) {
	r := NewResolver([]profile.Heading{
		{Offset: 10, RawText: "SCOPE", CanonicalName: "Applicability"},
		{Offset: 50, RawText: "Misc", CanonicalName: "Misc"},
	})

	_, ok := r.Lookup(5)
	assert.False(t, ok)
	assert.Equal(t, profile.DefaultSection, r.Section(5))
	assert.Equal(t, "Applicability", r.Section(10))
	assert.Equal(t, "Applicability", r.Section(49))
	assert.Equal(t, "Misc", r.Section(50))
	assert.Equal(t, "Misc", r.Section(1000))
	assert.Len(t, r.Headings(), 2)

	assert.Equal(t, profile.DefaultSection, NewResolver(nil).Section(0))
}

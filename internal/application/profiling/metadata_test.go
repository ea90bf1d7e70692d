package profiling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clauselens/internal/intelligence/textnorm"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

func TestStatutes(t *testing.T) {
	text := "Under the industrial relations code and the Consolidated Labour Compliance Code, " +
		"and again the Industrial Relations Code."
	assert.Equal(t, []string{"Consolidated Labour Compliance Code", "Industrial Relations Code"}, Statutes(text))
	assert.Equal(t, []string{}, Statutes("nothing here"))
}

func TestJurisdiction(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *string
	}{
		{"location line", "Summary\nlocation:  Lagos State, Nigeria.\nMore", strPtr("Lagos State, Nigeria")},
		{"place pair", "Issued in Nairobi, Kenya for employers.", strPtr("Nairobi, Kenya")},
		{"none", "no places in lower case, here", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Jurisdiction(textnorm.NewIndex(tt.text))
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestJurisdiction_PairOutsideWindow(t *testing.T) {
	text := ""
	for len(text) < 320 {
		text += "filler words "
	}
	text += "Accra, Ghana"
	assert.Nil(t, Jurisdiction(textnorm.NewIndex(text)))
}

func TestDocumentType(t *testing.T) {
	heads := []profile.Heading{{Offset: 0, RawText: "WORKPLACE HANDBOOK"}}
	tests := []struct {
		name     string
		text     string
		headings []profile.Heading
		want     string
	}{
		{"vocabulary in text", "These Employment Rules apply.", heads, "Employment Rules Summary"},
		{"second vocabulary", "Our data protection policy says", nil, "Privacy Policy"},
		{"title", "body", []profile.Heading{{RawText: "PRIVACY POLICY"}}, "Privacy Policy"},
		{"first heading fallback", "body", heads, "WORKPLACE HANDBOOK"},
		{"unknown", "body", nil, profile.UnknownDocumentType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DocumentType(tt.text, tt.headings))
		})
	}
}

func strPtr(s string) *string { return &s }

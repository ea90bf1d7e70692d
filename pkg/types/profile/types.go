package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Granularity describes how much of a calendar date a mention specifies.
type Granularity string

const (
	GranularityDayMonthYear Granularity = "DAY_MONTH_YEAR"
	GranularityMonthYear    Granularity = "MONTH_YEAR"
	GranularityYearOnly     Granularity = "YEAR_ONLY"
)

// IsValid checks if the Granularity is one of the known values.
func (g Granularity) IsValid() bool {
	switch g {
	case GranularityDayMonthYear, GranularityMonthYear, GranularityYearOnly:
		return true
	default:
		return false
	}
}

// DefaultSection is the section assigned to offsets that no heading precedes.
const DefaultSection = "General"

// UnknownDocumentType is reported when nothing in a document identifies its type.
const UnknownDocumentType = "Unknown"

// EntitySpan is a contiguous rune range of the source text tagged with a category.
type EntitySpan struct {
	Category    string  `json:"category"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	Uncertainty float64 `json:"uncertainty"`
}

// Len returns the span length in runes.
func (s EntitySpan) Len() int { return s.End - s.Start }

// Heading is a detected section heading.
type Heading struct {
	Offset        int    `json:"offset"`
	RawText       string `json:"raw_text"`
	CanonicalName string `json:"canonical_name"`
}

// DateMention is a calendar date found in the text with its inferred role.
type DateMention struct {
	RawText        string         `json:"raw_text"`
	ISODate        string         `json:"iso_date"`
	Start          int            `json:"start"`
	End            int            `json:"end"`
	Granularity    Granularity    `json:"granularity"`
	Role           string         `json:"role"`
	RoleConfidence float64        `json:"role_confidence"`
	RoleScores     map[string]int `json:"role_scores"`
	Section        string         `json:"section,omitempty"`
	Evidence       string         `json:"evidence,omitempty"`
}

// Clause is an entity span placed in its document section.
type Clause struct {
	Section     string  `json:"section"`
	Category    string  `json:"category"`
	Text        string  `json:"text"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
	Confidence  float64 `json:"confidence"`
	Uncertainty float64 `json:"uncertainty"`
}

// TopicCount is one entry of the topic histogram.
type TopicCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Topics is a topic histogram ordered by descending count. It serializes as a
// JSON object whose key order is the slice order.
type Topics []TopicCount

// Get returns the count recorded for category.
func (t Topics) Get(category string) int {
	for _, tc := range t {
		if tc.Category == category {
			return tc.Count
		}
	}
	return 0
}

// MarshalJSON implements json.Marshaler.
func (t Topics) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, tc := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(tc.Category)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", tc.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, preserving document key order.
func (t *Topics) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*t = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("topics: expected object, got %v", tok)
	}
	out := Topics{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("topics: expected string key, got %v", keyTok)
		}
		var n int
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("topics: value for %q: %w", key, err)
		}
		out = append(out, TopicCount{Category: key, Count: n})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*t = out
	return nil
}

// Red flag messages reported in Quality.RedFlags.
const (
	RedFlagLowCoverage   = "Very low coverage — check if model is appropriate for this document type."
	RedFlagLowConfidence = "Low mean span confidence — results may be unreliable."
)

// Quality summarizes how much of a document the model recognized and how sure it was.
type Quality struct {
	TextLength         int      `json:"text_length"`
	SpanCount          int      `json:"span_count"`
	CoverageRatio      float64  `json:"coverage_ratio"`
	MeanSpanConfidence float64  `json:"mean_span_confidence"`
	RedFlags           []string `json:"red_flags"`
}

// Meta carries provenance for a Profile.
type Meta struct {
	Model       string   `json:"model"`
	GeneratedAt string   `json:"generated_at"`
	LabelSet    []string `json:"label_set"`
	Quality     Quality  `json:"quality"`
}

// Profile is the structured view of one analyzed document.
type Profile struct {
	DocumentType    string        `json:"document_type"`
	Jurisdiction    *string       `json:"jurisdiction"`
	StatutesOrCodes []string      `json:"statutes_or_codes"`
	ImportantDates  []DateMention `json:"important_dates"`
	Topics          Topics        `json:"topics"`
	Clauses         []Clause      `json:"clauses"`
	KeyPoints       []string      `json:"key_points"`
	Meta            Meta          `json:"meta"`
}

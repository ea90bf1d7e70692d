package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Bucket is a semantic grouping clauses are sorted into during refinement.
type Bucket string

const (
	BucketObligations       Bucket = "obligations"
	BucketRights            Bucket = "rights"
	BucketPenalties         Bucket = "penalties"
	BucketSafety            Bucket = "safety"
	BucketDisputeResolution Bucket = "dispute_resolution"
	BucketFilingsReporting  Bucket = "filings_reporting"
	BucketGovernance        Bucket = "governance"
	BucketCrossReferences   Bucket = "cross_references"
)

// Buckets lists every bucket in output order.
var Buckets = []Bucket{
	BucketObligations,
	BucketRights,
	BucketPenalties,
	BucketSafety,
	BucketDisputeResolution,
	BucketFilingsReporting,
	BucketGovernance,
	BucketCrossReferences,
}

// IsValid checks if the Bucket is one of the known values.
func (b Bucket) IsValid() bool {
	for _, known := range Buckets {
		if b == known {
			return true
		}
	}
	return false
}

// RefinedDate is a date mention after section-aware role re-scoring.
type RefinedDate struct {
	RawText        string  `json:"raw_text"`
	ISODate        string  `json:"iso_date"`
	Role           string  `json:"role"`
	RoleConfidence float64 `json:"role_confidence"`
	Evidence       string  `json:"evidence"`
}

// LegalContext holds the scope and exemption statements of a document.
type LegalContext struct {
	Scope      string `json:"scope,omitempty"`
	Exemptions string `json:"exemptions,omitempty"`
}

// SourceQuality reports how many upstream clauses survived refinement.
type SourceQuality struct {
	MeanSpanConfidence float64 `json:"mean_span_confidence"`
	SpansUsed          int     `json:"spans_used"`
	SpansDropped       int     `json:"spans_dropped"`
}

// RefinedMeta carries refinement provenance.
type RefinedMeta struct {
	SourceQuality SourceQuality `json:"source_quality"`
}

// RefinedProfile is the consumer-facing view derived from a Profile. Empty
// lists and buckets are left out of its JSON form.
type RefinedProfile struct {
	DocumentType    string
	Jurisdiction    *string
	StatutesOrCodes []string
	Dates           []RefinedDate
	LegalContext    LegalContext
	Buckets         map[Bucket][]string
	Meta            RefinedMeta
}

// Bucket returns the entries of b, or nil.
func (r *RefinedProfile) Bucket(b Bucket) []string {
	if r == nil || r.Buckets == nil {
		return nil
	}
	return r.Buckets[b]
}

type jsonField struct {
	key   string
	value interface{}
}

// MarshalJSON implements json.Marshaler with a fixed key order.
func (r RefinedProfile) MarshalJSON() ([]byte, error) {
	fields := []jsonField{
		{"document_type", r.DocumentType},
		{"jurisdiction", r.Jurisdiction},
	}
	if len(r.StatutesOrCodes) > 0 {
		fields = append(fields, jsonField{"statutes_or_codes", r.StatutesOrCodes})
	}
	if len(r.Dates) > 0 {
		fields = append(fields, jsonField{"dates", r.Dates})
	}
	fields = append(fields, jsonField{"legal_context", r.LegalContext})
	for _, b := range Buckets {
		if entries := r.Buckets[b]; len(entries) > 0 {
			fields = append(fields, jsonField{string(b), entries})
		}
	}
	fields = append(fields, jsonField{"meta", r.Meta})

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		v, err := json.Marshal(f.value)
		if err != nil {
			return nil, fmt.Errorf("refined profile: field %s: %w", f.key, err)
		}
		fmt.Fprintf(&buf, "%q:", f.key)
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RefinedProfile) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := RefinedProfile{}
	decode := func(key string, dst interface{}) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("refined profile: field %s: %w", key, err)
		}
		return nil
	}
	if err := decode("document_type", &out.DocumentType); err != nil {
		return err
	}
	if err := decode("jurisdiction", &out.Jurisdiction); err != nil {
		return err
	}
	if err := decode("statutes_or_codes", &out.StatutesOrCodes); err != nil {
		return err
	}
	if err := decode("dates", &out.Dates); err != nil {
		return err
	}
	if err := decode("legal_context", &out.LegalContext); err != nil {
		return err
	}
	if err := decode("meta", &out.Meta); err != nil {
		return err
	}
	for _, b := range Buckets {
		var entries []string
		if err := decode(string(b), &entries); err != nil {
			return err
		}
		if len(entries) == 0 {
			continue
		}
		if out.Buckets == nil {
			out.Buckets = make(map[Bucket][]string)
		}
		out.Buckets[b] = entries
	}
	*r = out
	return nil
}

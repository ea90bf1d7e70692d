// Package clause_ner turns token-classification output for legal text into
// character spans: BIO decoding per chunk, then a merge pass across chunks.
package clause_ner

import (
	"math"
	"strings"

	"github.com/turtacn/clauselens/internal/intelligence/textnorm"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

// ---------------------------------------------------------------------------
// Labels
// ---------------------------------------------------------------------------

const (
	LabelOutside = "O"
	PrefixBegin  = "B"
	PrefixInside = "I"
)

// ParseLabel splits a label into prefix and category. Labels without a dash
// are treated as inside tokens of a category with that name.
func ParseLabel(label string) (prefix, category string) {
	i := strings.Index(label, "-")
	if i < 0 {
		return PrefixInside, label
	}
	return label[:i], label[i+1:]
}

// probFloor keeps log() finite in Entropy.
const probFloor = 1e-9

// Entropy returns the Shannon entropy (natural log) of p with every value clipped to [1e-9, 1].
func Entropy(p []float64) float64 {
	h := 0.0
	for _, v := range p {
		if v < probFloor {
			v = probFloor
		} else if v > 1 {
			v = 1
		}
		h -= v * math.Log(v)
	}
	return h
}

func maxProb(p []float64) float64 {
	m := p[0]
	for _, v := range p[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// ---------------------------------------------------------------------------
// Decoder state machine
// ---------------------------------------------------------------------------

type decoderState int

const (
	stateNoOpenSpan decoderState = iota
	stateOpenSpan
)

// decoder accumulates spans for one chunk. In stateOpenSpan the open span's
// category, bounds and per-token statistics are live.
type decoder struct {
	x     *textnorm.Index
	state decoderState

	category   string
	start, end int
	maxProbs   []float64
	entropies  []float64

	spans []profile.EntitySpan
}

func newDecoder(x *textnorm.Index) *decoder {
	return &decoder{x: x, state: stateNoOpenSpan}
}

// outside handles an "O" token.
func (d *decoder) outside() {
	d.close()
}

// token handles an entity token.
func (d *decoder) token(prefix, category string, start, end int, maxp, ent float64) {
	switch d.state {
	case stateNoOpenSpan:
		d.open(category, start, end)
	case stateOpenSpan:
		if prefix == PrefixBegin || category != d.category {
			d.close()
			d.open(category, start, end)
		} else if end > d.end {
			d.end = end
		}
	}
	d.maxProbs = append(d.maxProbs, maxp)
	d.entropies = append(d.entropies, ent)
}

func (d *decoder) open(category string, start, end int) {
	d.state = stateOpenSpan
	d.category = category
	d.start, d.end = start, end
	d.maxProbs = d.maxProbs[:0]
	d.entropies = d.entropies[:0]
}

func (d *decoder) close() {
	if d.state != stateOpenSpan {
		return
	}
	d.spans = append(d.spans, profile.EntitySpan{
		Category:    d.category,
		Start:       d.start,
		End:         d.end,
		Text:        d.x.Slice(d.start, d.end),
		Confidence:  textnorm.Round(mean(d.maxProbs), 3),
		Uncertainty: textnorm.Round(mean(d.entropies), 3),
	})
	d.state = stateNoOpenSpan
}

func (d *decoder) finish() []profile.EntitySpan {
	d.close()
	return d.spans
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := 0.0
	for _, f := range v {
		s += f
	}
	return s / float64(len(v))
}

// ValidateChunk checks that a chunk is consistent with the text it was scored
// on and with the label table.
func ValidateChunk(c Chunk, labels map[int]string, textLen int) error {
	if len(c.LabelIDs) != len(c.Offsets) || len(c.Probs) != len(c.Offsets) {
		return errors.InvalidInputShape("mismatched chunk arrays").
			WithDetailf("offsets=%d label_ids=%d probs=%d", len(c.Offsets), len(c.LabelIDs), len(c.Probs))
	}
	for i, off := range c.Offsets {
		a, b := off[0], off[1]
		if a < 0 || b > textLen {
			return errors.InvalidInputShape("token offsets outside text bounds").
				WithDetailf("token %d: [%d,%d) text_len=%d", i, a, b, textLen)
		}
		if a > b {
			return errors.InvalidInputShape("reversed token offsets").
				WithDetailf("token %d: [%d,%d)", i, a, b)
		}
		if a == b {
			continue
		}
		if _, ok := labels[c.LabelIDs[i]]; !ok {
			return errors.InvalidInputShape("unknown label id").
				WithDetailf("token %d: label_id=%d", i, c.LabelIDs[i])
		}
		if len(c.Probs[i]) == 0 {
			return errors.InvalidInputShape("empty probability vector").
				WithDetailf("token %d", i)
		}
	}
	return nil
}

// DecodeChunk converts one chunk of token predictions into entity spans in
// discovery order. Zero-width tokens are skipped. The chunk is validated
// first; a malformed chunk yields no spans and an InvalidInputShape error.
func DecodeChunk(c Chunk, labels map[int]string, x *textnorm.Index) ([]profile.EntitySpan, error) {
	if err := ValidateChunk(c, labels, x.Len()); err != nil {
		return nil, err
	}
	d := newDecoder(x)
	for i, off := range c.Offsets {
		a, b := off[0], off[1]
		if a == b {
			continue
		}
		label := labels[c.LabelIDs[i]]
		if label == LabelOutside {
			d.outside()
			continue
		}
		prefix, category := ParseLabel(label)
		d.token(prefix, category, a, b, maxProb(c.Probs[i]), Entropy(c.Probs[i]))
	}
	return d.finish(), nil
}

// chunkError tags a decode failure with the chunk it came from.
func chunkError(idx int, err error) error {
	return errors.Wrapf(err, errors.CodeUnknown, "decode chunk %d", idx)
}

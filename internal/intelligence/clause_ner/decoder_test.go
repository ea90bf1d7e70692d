package clause_ner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clauselens/internal/intelligence/textnorm"
	"github.com/turtacn/clauselens/pkg/errors"
)

var testLabels = map[int]string{
	0: "O",
	1: "B-Obligations",
	2: "I-Obligations",
	3: "B-Rights",
	4: "I-Rights",
	5: "Definitions",
}

func certain(id int) []float64 {
	p := make([]float64, len(testLabels))
	p[id] = 1
	return p
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		label, prefix, category string
	}{
		{"B-Obligations", "B", "Obligations"},
		{"I-Health_Safety", "I", "Health_Safety"},
		{"Definitions", "I", "Definitions"},
		{"B-Cross-Reference", "B", "Cross-Reference"},
	}
	for _, tt := range tests {
		p, c := ParseLabel(tt.label)
		assert.Equal(t, tt.prefix, p, tt.label)
		assert.Equal(t, tt.category, c, tt.label)
	}
}

func TestEntropy(t *testing.T) {
	assert.InDelta(t, 0, Entropy([]float64{1, 0, 0}), 1e-6)
	assert.InDelta(t, math.Log(2), Entropy([]float64{0.5, 0.5}), 1e-9)
	assert.False(t, math.IsNaN(Entropy([]float64{0, 0})))
}

func TestDecoder_Transitions(t *testing.T) {
	x := textnorm.NewIndex("abcdefghijklmnopqrstuvwxyz")

	t.Run("no open span then token opens", func(t *testing.T) {
		d := newDecoder(x)
		assert.Equal(t, stateNoOpenSpan, d.state)
		d.token("I", "Obligations", 0, 2, 1, 0)
		assert.Equal(t, stateOpenSpan, d.state)
	})

	t.Run("outside closes", func(t *testing.T) {
		d := newDecoder(x)
		d.token("B", "Obligations", 0, 2, 1, 0)
		d.outside()
		assert.Equal(t, stateNoOpenSpan, d.state)
		require.Len(t, d.spans, 1)
		d.outside()
		assert.Len(t, d.spans, 1)
	})

	t.Run("category change splits", func(t *testing.T) {
		d := newDecoder(x)
		d.token("B", "Obligations", 0, 2, 1, 0)
		d.token("I", "Rights", 2, 4, 1, 0)
		spans := d.finish()
		require.Len(t, spans, 2)
		assert.Equal(t, "Obligations", spans[0].Category)
		assert.Equal(t, "Rights", spans[1].Category)
	})

	t.Run("begin splits same category", func(t *testing.T) {
		d := newDecoder(x)
		d.token("B", "Obligations", 0, 2, 1, 0)
		d.token("B", "Obligations", 3, 5, 1, 0)
		assert.Len(t, d.finish(), 2)
	})

	t.Run("inside extends", func(t *testing.T) {
		d := newDecoder(x)
		d.token("B", "Obligations", 0, 5, 0.9, 0.2)
		d.token("I", "Obligations", 2, 4, 0.7, 0.4)
		d.token("I", "Obligations", 5, 8, 0.8, 0.3)
		spans := d.finish()
		require.Len(t, spans, 1)
		assert.Equal(t, 0, spans[0].Start)
		assert.Equal(t, 8, spans[0].End)
		assert.Equal(t, "abcdefgh", spans[0].Text)
		assert.Equal(t, 0.8, spans[0].Confidence)
		assert.Equal(t, 0.3, spans[0].Uncertainty)
	})
}

func TestDecodeChunk(t *testing.T) {
	text := "The employer shall file returns."
	x := textnorm.NewIndex(text)
	c := Chunk{
		Offsets:  [][2]int{{0, 0}, {0, 3}, {4, 12}, {13, 18}, {19, 23}, {24, 32}, {0, 0}},
		LabelIDs: []int{0, 0, 1, 2, 2, 0, 0},
		Probs: [][]float64{
			certain(0), certain(0),
			{0.1, 0.8, 0.1, 0, 0, 0},
			{0, 0.1, 0.9, 0, 0, 0},
			certain(2),
			certain(0), certain(0),
		},
	}

	spans, err := DecodeChunk(c, testLabels, x)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "Obligations", s.Category)
	assert.Equal(t, 4, s.Start)
	assert.Equal(t, 23, s.End)
	assert.Equal(t, "employer shall file", s.Text)
	assert.Equal(t, 0.9, s.Confidence)
	assert.GreaterOrEqual(t, s.Uncertainty, 0.0)
	assert.Equal(t, x.Slice(s.Start, s.End), s.Text)
}

func TestDecodeChunk_NoPrefixLabel(t *testing.T) {
	x := textnorm.NewIndex("Worker means any person")
	c := Chunk{
		Offsets:  [][2]int{{0, 6}, {7, 12}},
		LabelIDs: []int{5, 5},
		Probs:    [][]float64{certain(5), certain(5)},
	}
	spans, err := DecodeChunk(c, testLabels, x)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "Definitions", spans[0].Category)
	assert.Equal(t, "Worker means", spans[0].Text)
}

func TestDecodeChunk_Malformed(t *testing.T) {
	x := textnorm.NewIndex("short text")
	tests := []struct {
		name  string
		chunk Chunk
	}{
		{"mismatched lengths", Chunk{Offsets: [][2]int{{0, 5}}, LabelIDs: []int{1, 2}, Probs: [][]float64{certain(1)}}},
		{"out of bounds", Chunk{Offsets: [][2]int{{0, 50}}, LabelIDs: []int{1}, Probs: [][]float64{certain(1)}}},
		{"negative", Chunk{Offsets: [][2]int{{-1, 2}}, LabelIDs: []int{1}, Probs: [][]float64{certain(1)}}},
		{"reversed", Chunk{Offsets: [][2]int{{5, 2}}, LabelIDs: []int{1}, Probs: [][]float64{certain(1)}}},
		{"unknown label", Chunk{Offsets: [][2]int{{0, 5}}, LabelIDs: []int{42}, Probs: [][]float64{certain(1)}}},
		{"empty probs", Chunk{Offsets: [][2]int{{0, 5}}, LabelIDs: []int{1}, Probs: [][]float64{{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans, err := DecodeChunk(tt.chunk, testLabels, x)
			assert.Nil(t, spans)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInputShape))
		})
	}
}

func TestDecodeChunk_WellFormed(t *testing.T) {
	text := "Employers shall keep registers and must display notices."
	x := textnorm.NewIndex(text)
	c := Chunk{
		Offsets:  [][2]int{{0, 9}, {10, 15}, {16, 20}, {21, 30}, {31, 34}, {35, 39}, {40, 47}, {48, 55}, {55, 56}},
		LabelIDs: []int{1, 2, 2, 2, 0, 3, 4, 4, 0},
		Probs:    [][]float64{certain(1), certain(2), certain(2), certain(2), certain(0), certain(3), certain(4), certain(4), certain(0)},
	}
	spans, err := DecodeChunk(c, testLabels, x)
	require.NoError(t, err)
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.True(t, 0 <= s.Start && s.Start < s.End && s.End <= x.Len())
		assert.Equal(t, x.Slice(s.Start, s.End), s.Text)
		assert.GreaterOrEqual(t, s.Confidence, 0.0)
		assert.LessOrEqual(t, s.Confidence, 1.0)
	}
}

package clause_ner

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/clauselens/internal/intelligence/textnorm"
	"github.com/turtacn/clauselens/pkg/errors"
)

func TestDecode_OverlappingChunks(t *testing.T) {
	text := "Employers shall keep registers, display notices."
	x := textnorm.NewIndex(text)
	pred := &Prediction{
		Labels: testLabels,
		Chunks: []Chunk{
			{
				Offsets:  [][2]int{{0, 0}, {0, 9}, {10, 15}, {16, 20}, {21, 30}, {0, 0}},
				LabelIDs: []int{0, 1, 2, 2, 2, 0},
				Probs:    [][]float64{certain(0), certain(1), certain(2), certain(2), certain(2), certain(0)},
			},
			{
				Offsets:  [][2]int{{0, 0}, {21, 30}, {30, 31}, {32, 39}, {40, 47}, {47, 48}, {0, 0}},
				LabelIDs: []int{0, 1, 0, 1, 2, 0, 0},
				Probs:    [][]float64{certain(0), certain(1), certain(0), certain(1), certain(2), certain(0), certain(0)},
			},
		},
	}

	res, err := Decode(pred, x)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Decoded)
	require.Len(t, res.Spans, 1)
	assert.Equal(t, 0, res.Spans[0].Start)
	assert.Equal(t, 47, res.Spans[0].End)
	assert.Equal(t, "Employers shall keep registers, display notices", res.Spans[0].Text)
	assert.Equal(t, []string{"Obligations"}, res.LabelSet)
}

func TestDecode_MalformedChunkNamesIndex(t *testing.T) {
	x := textnorm.NewIndex("tiny")
	pred := &Prediction{
		Labels: testLabels,
		Chunks: []Chunk{
			{Offsets: [][2]int{{0, 4}}, LabelIDs: []int{1}, Probs: [][]float64{certain(1)}},
			{Offsets: [][2]int{{0, 9}}, LabelIDs: []int{1}, Probs: [][]float64{certain(1)}},
		},
	}
	res, err := Decode(pred, x)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInputShape))
	assert.Contains(t, err.Error(), "decode chunk 1")
}

func TestDecode_NilAndEmpty(t *testing.T) {
	_, err := Decode(nil, textnorm.NewIndex("x"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeNoUsableInput))

	res, err := Decode(&Prediction{Labels: testLabels}, textnorm.NewIndex(""))
	require.NoError(t, err)
	assert.Empty(t, res.Spans)
	assert.Empty(t, res.LabelSet)
}

func TestPrediction_Tokens(t *testing.T) {
	var nilPred *Prediction
	assert.Equal(t, 0, nilPred.Tokens())
	p := &Prediction{Chunks: []Chunk{{Offsets: make([][2]int, 3)}, {Offsets: make([][2]int, 2)}}}
	assert.Equal(t, 5, p.Tokens())
}

func TestStaticClassifier(t *testing.T) {
	pred := &Prediction{Labels: testLabels}
	c := NewStaticClassifier("", pred)
	assert.Equal(t, "static", c.Name())

	got, err := c.Classify(context.Background(), "anything", WindowOptions{})
	require.NoError(t, err)
	assert.Same(t, pred, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Classify(ctx, "anything", WindowOptions{})
	assert.Error(t, err)

	empty, err := NewStaticClassifier("m", nil).Classify(context.Background(), "", WindowOptions{})
	require.NoError(t, err)
	assert.Empty(t, empty.Chunks)
}

func TestLoadPrediction(t *testing.T) {
	in := `{"id2label":{"0":"O","1":"B-Obligations"},"chunks":[{"offsets":[[0,4]],"label_ids":[1],"probs":[[0.1,0.9]]}]}`
	p, err := LoadPrediction(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "B-Obligations", p.Labels[1])
	require.Len(t, p.Chunks, 1)
	assert.Equal(t, [2]int{0, 4}, p.Chunks[0].Offsets[0])

	_, err = LoadPrediction(strings.NewReader(`{"chunks":[]}`))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInputShape))

	_, err = LoadPrediction(strings.NewReader(`not json`))
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
}

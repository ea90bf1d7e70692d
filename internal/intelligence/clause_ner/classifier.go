package clause_ner

import (
	"context"
	"encoding/json"
	"io"

	"github.com/turtacn/clauselens/internal/intelligence/textnorm"
	"github.com/turtacn/clauselens/pkg/errors"
	"github.com/turtacn/clauselens/pkg/types/profile"
)

// TokenClassifier scores text with a token-classification model. Offsets in
// the returned chunks are rune offsets into text.
type TokenClassifier interface {
	Classify(ctx context.Context, text string, opts WindowOptions) (*Prediction, error)
	// Name identifies the model in profile metadata.
	Name() string
}

// Chunk is the model output for one sliding window. Zero-width offsets mark
// special or padding tokens.
type Chunk struct {
	Offsets  [][2]int    `json:"offsets"`
	LabelIDs []int       `json:"label_ids"`
	Probs    [][]float64 `json:"probs"`
}

// Prediction is the model output for a whole document.
type Prediction struct {
	Labels map[int]string `json:"id2label"`
	Chunks []Chunk        `json:"chunks"`
}

// Tokens returns the number of tokens across all chunks.
func (p *Prediction) Tokens() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, c := range p.Chunks {
		n += len(c.Offsets)
	}
	return n
}

// DecodeResult is the outcome of Decode.
type DecodeResult struct {
	// Spans are merged spans ordered by start.
	Spans []profile.EntitySpan
	// LabelSet lists the categories present in Spans, sorted.
	LabelSet []string
	// Decoded counts spans before merging.
	Decoded int
}

// Decode runs the BIO decoder over every chunk and merges the spans across
// chunks. Any malformed chunk fails the whole call with InvalidInputShape
// naming the chunk index.
func Decode(pred *Prediction, x *textnorm.Index) (*DecodeResult, error) {
	if pred == nil {
		return nil, errors.NoUsableInput("no prediction")
	}
	var all []profile.EntitySpan
	for i, c := range pred.Chunks {
		spans, err := DecodeChunk(c, pred.Labels, x)
		if err != nil {
			return nil, chunkError(i, err)
		}
		all = append(all, spans...)
	}
	merged := Merge(all, x)
	return &DecodeResult{
		Spans:    merged,
		LabelSet: LabelSet(merged),
		Decoded:  len(all),
	}, nil
}

// ---------------------------------------------------------------------------
// StaticClassifier
// ---------------------------------------------------------------------------

// StaticClassifier returns a fixed Prediction for any text. The CLI uses it
// to profile offline model output.
type StaticClassifier struct {
	name string
	pred *Prediction
}

// NewStaticClassifier wraps pred.
func NewStaticClassifier(name string, pred *Prediction) *StaticClassifier {
	if name == "" {
		name = "static"
	}
	return &StaticClassifier{name: name, pred: pred}
}

// LoadPrediction reads a Prediction from JSON.
func LoadPrediction(r io.Reader) (*Prediction, error) {
	var p Prediction
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode prediction")
	}
	if len(p.Labels) == 0 {
		return nil, errors.InvalidInputShape("prediction has no id2label table")
	}
	return &p, nil
}

// Classify implements TokenClassifier.
func (s *StaticClassifier) Classify(ctx context.Context, _ string, _ WindowOptions) (*Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pred == nil {
		return &Prediction{Labels: map[int]string{0: LabelOutside}}, nil
	}
	return s.pred, nil
}

// Name implements TokenClassifier.
func (s *StaticClassifier) Name() string { return s.name }

package clause_ner

import (
	"github.com/turtacn/clauselens/pkg/errors"
)

// Window defaults used when a request leaves them unset.
const (
	DefaultMaxLen    = 384
	DefaultStride    = 128
	DefaultBatchSize = 16
)

// WindowOptions controls sliding-window inference over long documents.
// Stride is the token overlap between consecutive windows.
type WindowOptions struct {
	MaxLen    int `json:"max_len" mapstructure:"max_len" yaml:"max_len"`
	Stride    int `json:"stride" mapstructure:"stride" yaml:"stride"`
	BatchSize int `json:"batch_size" mapstructure:"batch_size" yaml:"batch_size"`
}

// DefaultWindowOptions returns 384/128/16.
func DefaultWindowOptions() WindowOptions {
	return WindowOptions{MaxLen: DefaultMaxLen, Stride: DefaultStride, BatchSize: DefaultBatchSize}
}

// WithDefaults fills zero fields from DefaultWindowOptions. An unset stride
// is capped at a third of MaxLen so short windows still validate.
func (o WindowOptions) WithDefaults() WindowOptions {
	if o.MaxLen == 0 {
		o.MaxLen = DefaultMaxLen
	}
	if o.Stride == 0 {
		o.Stride = DefaultStride
		if third := o.MaxLen / 3; third < o.Stride {
			o.Stride = third
		}
	}
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	return o
}

// Validate checks the options for consistency.
func (o WindowOptions) Validate() error {
	if o.MaxLen <= 0 {
		return errors.InvalidParam("max_len must be positive")
	}
	if o.Stride < 0 {
		return errors.InvalidParam("stride must not be negative")
	}
	if o.Stride >= o.MaxLen {
		return errors.InvalidParam("stride must be smaller than max_len")
	}
	if o.BatchSize <= 0 {
		return errors.InvalidParam("batch_size must be positive")
	}
	return nil
}

// PlanWindows returns [start, end) token ranges covering numTokens with
// windows of maxLen tokens that overlap by stride. The last window ends at numTokens.
func PlanWindows(numTokens, maxLen, stride int) ([][2]int, error) {
	if err := (WindowOptions{MaxLen: maxLen, Stride: stride, BatchSize: 1}).Validate(); err != nil {
		return nil, err
	}
	if numTokens <= 0 {
		return nil, nil
	}
	if numTokens <= maxLen {
		return [][2]int{{0, numTokens}}, nil
	}

	step := maxLen - stride
	var windows [][2]int
	for start := 0; start < numTokens; start += step {
		end := start + maxLen
		if end > numTokens {
			end = numTokens
		}
		windows = append(windows, [2]int{start, end})
		if end == numTokens {
			break
		}
	}
	return windows, nil
}

// Batches returns how many model calls n windows need at batchSize.
func Batches(n, batchSize int) int {
	if n <= 0 || batchSize <= 0 {
		return 0
	}
	return (n + batchSize - 1) / batchSize
}

// Package textnorm canonicalizes document text and splits it into sentences.
// All offsets produced here are rune offsets into the normalized text.
package textnorm

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// dashReplacer folds en and em dashes into a plain hyphen.
var dashReplacer = strings.NewReplacer("\u2013", "-", "\u2014", "-")

// Normalize applies NFKC and replaces dash variants with "-".
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	return dashReplacer.Replace(norm.NFKC.String(s))
}

// CollapseSpace replaces every whitespace run with a single space and trims the ends.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Round rounds x to places decimals, halves away from zero.
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// ---------------------------------------------------------------------------
// Rune index
// ---------------------------------------------------------------------------

// Index maps between byte offsets and rune offsets of one string. Regular
// expressions report byte offsets; everything downstream speaks runes.
type Index struct {
	text       string
	runeToByte []int // len = runes+1
	byteToRune []int // len = bytes+1
}

// NewIndex builds an Index over text.
func NewIndex(text string) *Index {
	n := utf8.RuneCountInString(text)
	idx := &Index{
		text:       text,
		runeToByte: make([]int, 0, n+1),
		byteToRune: make([]int, len(text)+1),
	}
	r := 0
	for b := range text {
		idx.runeToByte = append(idx.runeToByte, b)
		idx.byteToRune[b] = r
		r++
	}
	idx.runeToByte = append(idx.runeToByte, len(text))
	idx.byteToRune[len(text)] = r
	// Continuation bytes map to the rune that contains them.
	for b := 1; b < len(text); b++ {
		if !utf8.RuneStart(text[b]) {
			idx.byteToRune[b] = idx.byteToRune[b-1]
		}
	}
	return idx
}

// Text returns the indexed string.
func (x *Index) Text() string { return x.text }

// Len returns the number of runes.
func (x *Index) Len() int { return len(x.runeToByte) - 1 }

// Rune converts a byte offset to a rune offset.
func (x *Index) Rune(byteOff int) int {
	if byteOff <= 0 {
		return 0
	}
	if byteOff >= len(x.byteToRune) {
		return x.Len()
	}
	return x.byteToRune[byteOff]
}

// Byte converts a rune offset to a byte offset.
func (x *Index) Byte(runeOff int) int {
	if runeOff <= 0 {
		return 0
	}
	if runeOff >= len(x.runeToByte) {
		return len(x.text)
	}
	return x.runeToByte[runeOff]
}

// Slice returns the text between two rune offsets, clamped to the string.
func (x *Index) Slice(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > x.Len() {
		end = x.Len()
	}
	if start >= end {
		return ""
	}
	return x.text[x.Byte(start):x.Byte(end)]
}

// ---------------------------------------------------------------------------
// Sentences
// ---------------------------------------------------------------------------

// Span is a half-open rune range [Start, End).
type Span struct {
	Start int
	End   int
}

var sentenceBoundary = regexp.MustCompile(`[.!?;]\s+|\n+`)

// SentenceSpans splits text at terminal punctuation followed by whitespace or
// at newline runs. Each span includes its boundary character; the trailing
// fragment is its own span. Spans are non-empty, ordered and disjoint.
func SentenceSpans(x *Index) []Span {
	var spans []Span
	start := 0
	for _, m := range sentenceBoundary.FindAllStringIndex(x.text, -1) {
		end := x.Rune(m[0]) + 1
		if end > start {
			spans = append(spans, Span{Start: start, End: end})
		}
		start = x.Rune(m[1])
	}
	if start < x.Len() {
		spans = append(spans, Span{Start: start, End: x.Len()})
	}
	return spans
}

// Sentences returns the text of every sentence span.
func Sentences(x *Index) []string {
	spans := SentenceSpans(x)
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = x.Slice(sp.Start, sp.End)
	}
	return out
}

// SentenceAt returns the span containing rune offset off, or false.
func SentenceAt(spans []Span, off int) (Span, bool) {
	for _, sp := range spans {
		if off >= sp.Start && off < sp.End {
			return sp, true
		}
		if sp.Start > off {
			break
		}
	}
	return Span{}, false
}

package profiling

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/turtacn/clauselens/internal/intelligence/textnorm"
)

const (
	// MaxKeyPoints caps the number of key points per profile.
	MaxKeyPoints = 14
	// minKeyPointLen is exclusive, in runes.
	minKeyPointLen = 40
)

var obligationRx = regexp.MustCompile(`(?i)\b(shall|must|required to|is required to|prohibited|ensure)\b`)

// KeyPoints returns up to limit sentences that use obligation language, in
// document order and de-duplicated case-insensitively. Sentences of 40 runes
// or fewer and those starting with "this summary" are skipped.
func KeyPoints(x *textnorm.Index, limit int) []string {
	points := []string{}
	seen := make(map[string]struct{})
	for _, sent := range textnorm.Sentences(x) {
		sent = textnorm.CollapseSpace(sent)
		if utf8.RuneCountInString(sent) <= minKeyPointLen || !obligationRx.MatchString(sent) {
			continue
		}
		key := strings.ToLower(sent)
		if strings.HasPrefix(key, "this summary") {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		points = append(points, sent)
	}
	if limit >= 0 && len(points) > limit {
		points = points[:limit]
	}
	return points
}

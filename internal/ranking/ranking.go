// Package ranking orders comparable listings by relevance to a search query.
package ranking

import (
	"math"
	"sort"
	"strings"

	"github.com/tanner-pham/Baller-sub000/internal/models"
)

// MaxResults is the number of comparables kept after scoring.
const MaxResults = 12

const (
	keywordWeight  = 2
	locationWeight = 1
	inBandWeight   = 2
)

type scored struct {
	item     models.NormalizedComparable
	score    int
	distance float64
}

// Rank de-duplicates candidates by link, scores them against query, and
// returns at most MaxResults entries that carry an image.
func Rank(candidates []models.NormalizedComparable, query models.SimilarSearchQuery) []models.NormalizedComparable {
	seen := make(map[string]struct{}, len(candidates))
	items := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if c.Link == "" {
			continue
		}
		if _, dup := seen[c.Link]; dup {
			continue
		}
		seen[c.Link] = struct{}{}
		s, d := Score(c, query)
		items = append(items, scored{item: c, score: s, distance: d})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].distance < items[j].distance
	})

	if len(items) > MaxResults {
		items = items[:MaxResults]
	}
	out := make([]models.NormalizedComparable, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.item.Image) == "" {
			continue
		}
		out = append(out, it.item)
	}
	return out
}

// Score returns the relevance score of c and its distance from the price band.
// The distance is +Inf when no band applies.
func Score(c models.NormalizedComparable, query models.SimilarSearchQuery) (int, float64) {
	title := strings.ToLower(c.Title)
	score := 0
	for _, kw := range query.Keywords {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			score += keywordWeight
		}
	}
	if query.Location != nil && *query.Location != "" &&
		strings.Contains(strings.ToLower(c.Location), strings.ToLower(*query.Location)) {
		score += locationWeight
	}

	distance := math.Inf(1)
	if query.MinPrice != nil && query.MaxPrice != nil && c.Price > 0 {
		lo, hi := float64(*query.MinPrice), float64(*query.MaxPrice)
		if c.Price >= lo && c.Price <= hi {
			score += inBandWeight
			distance = 0
		} else {
			distance = math.Min(math.Abs(c.Price-lo), math.Abs(c.Price-hi))
		}
	}
	return score, distance
}

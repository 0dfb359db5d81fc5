// Package fingerprint derives the deterministic similar-listings search query
// (and its hash) from a normalized listing.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/tanner-pham/Baller-sub000/internal/models"
)

const (
	maxKeywords    = 3
	minTokenLength = 3
	fallbackQuery  = "marketplace item"
)

var (
	nonAlnumRe     = regexp.MustCompile(`[^a-z0-9\s]`)
	nonPriceCharRe = regexp.MustCompile(`[^0-9.]`)
)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "new": {}, "used": {}, "like": {},
	"good": {}, "great": {}, "excellent": {}, "condition": {}, "sale": {}, "selling": {},
	"from": {}, "this": {}, "that": {}, "only": {}, "just": {}, "very": {}, "item": {},
	"obo": {}, "firm": {}, "free": {}, "pickup": {}, "works": {}, "working": {},
}

// hashInput fixes the field order of the digest input.
type hashInput struct {
	QueryText string  `json:"queryText"`
	Location  *string `json:"location"`
	MinPrice  *int    `json:"minPrice"`
	MaxPrice  *int    `json:"maxPrice"`
}

// Build derives the SimilarSearchQuery for a listing. It does no I/O.
func Build(listing models.NormalizedListing) models.SimilarSearchQuery {
	keywords := Keywords(models.Deref(listing.Title))
	location := LocationFilter(models.Deref(listing.Location))

	var minPrice, maxPrice *int
	if cents, ok := PriceCents(models.Deref(listing.Price)); ok {
		lo, hi := priceBand(cents, 80, 120)
		minPrice, maxPrice = &lo, &hi
	}

	queryText := strings.TrimSpace(strings.Join(keywords, " ") + " " + models.Deref(location))
	if queryText == "" {
		queryText = fallbackQuery
	}

	return models.SimilarSearchQuery{
		QueryText: queryText,
		Keywords:  keywords,
		Location:  location,
		MinPrice:  minPrice,
		MaxPrice:  maxPrice,
		Hash:      Hash(queryText, location, minPrice, maxPrice),
	}
}

// Hash is the hex SHA-256 of the JSON encoding of the query-driving fields.
// Keywords are not part of it since they derive from queryText.
// HTML characters are written literally so "&" hashes as "&", not "\u0026".
func Hash(queryText string, location *string, minPrice, maxPrice *int) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(hashInput{
		QueryText: queryText,
		Location:  location,
		MinPrice:  minPrice,
		MaxPrice:  maxPrice,
	})
	sum := sha256.Sum256(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	return hex.EncodeToString(sum[:])
}

// Keywords returns up to three significant tokens of a title.
func Keywords(title string) []string {
	cleaned := nonAlnumRe.ReplaceAllString(strings.ToLower(title), "")
	keywords := make([]string, 0, maxKeywords)
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) < minTokenLength {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		keywords = append(keywords, tok)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// LocationFilter returns the part of location before the first comma, or nil.
func LocationFilter(location string) *string {
	city, _, _ := strings.Cut(location, ",")
	city = strings.TrimSpace(city)
	if city == "" {
		return nil
	}
	return &city
}

// ParsePrice reads a numeric price out of a display string such as "$1,250".
func ParsePrice(display string) (float64, bool) {
	raw := nonPriceCharRe.ReplaceAllString(display, "")
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// PriceCents is ParsePrice expressed in whole cents, so bands can be computed
// without floating point drift.
func PriceCents(display string) (int64, bool) {
	v, ok := ParsePrice(display)
	if !ok {
		return 0, false
	}
	return int64(v*100 + 0.5), true
}

// priceBand returns floor(price*lowPct/100) and ceil(price*highPct/100).
func priceBand(cents int64, lowPct, highPct int64) (int, int) {
	lo := cents * lowPct / 10000
	hi := (cents*highPct + 9999) / 10000
	return int(lo), int(hi)
}

// Package models holds the listing, cache and job records shared across the service.
package models

// Condition values a listing may be normalized to.
const (
	ConditionNew         = "new"
	ConditionUsedLikeNew = "used_like_new"
	ConditionUsedGood    = "used_good"
	ConditionUsedFair    = "used_fair"
)

// NormalizedListing is the extracted form of a single listing page.
type NormalizedListing struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *string  `json:"price,omitempty"`
	Location    *string  `json:"location,omitempty"`
	Images      []string `json:"images"`
	SellerName  *string  `json:"sellerName,omitempty"`
	PostedTime  *string  `json:"postedTime,omitempty"`
	Condition   *string  `json:"condition,omitempty"`
}

// Usable reports whether the record carries at least a title, price or location.
func (l *NormalizedListing) Usable() bool {
	return nonEmpty(l.Title) || nonEmpty(l.Price) || nonEmpty(l.Location)
}

// NormalizedComparable is one similar listing. Link is its natural key.
type NormalizedComparable struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Location string  `json:"location"`
	Image    string  `json:"image"`
	Link     string  `json:"link"`
}

// SimpleListing is a search-result card before it is turned into a comparable.
type SimpleListing struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Price    string `json:"price"`
	Location string `json:"location"`
	Image    string `json:"image"`
	Link     string `json:"link"`
}

// SimilarSearchQuery is the deterministic search derived from a listing.
type SimilarSearchQuery struct {
	QueryText string   `json:"queryText"`
	Keywords  []string `json:"keywords"`
	Location  *string  `json:"location"`
	MinPrice  *int     `json:"minPrice"`
	MaxPrice  *int     `json:"maxPrice"`
	Hash      string   `json:"hash"`
}

// ConditionAssessment is the structured answer of the condition scorer.
type ConditionAssessment struct {
	Condition  string   `json:"condition"`
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	Summary    string   `json:"summary"`
	Issues     []string `json:"issues,omitempty"`
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

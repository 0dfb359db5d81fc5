package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tanner-pham/Baller-sub000/internal/models"
)

var (
	conditionSepRe = regexp.MustCompile(`[\s_\-]+`)
	trailingGoodRe = regexp.MustCompile(`(^|\s)good$`)
	trailingFairRe = regexp.MustCompile(`(^|\s)fair$`)
)

// listingTitle returns the title of a listing-shaped node. A bare "title"
// only counts when the node also carries a price.
func listingTitle(node map[string]any) string {
	if s := firstString(node, []string{"marketplace_listing_title"}, []string{"custom_title"}); s != "" {
		return s
	}
	if _, hasPrice := node["listing_price"]; hasPrice {
		if s, ok := node["title"].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func listingID(node map[string]any) string {
	return firstString(node, []string{"id"}, []string{"listing_id"})
}

// looksLikeListing matches objects carrying both an id and a listing title.
func looksLikeListing(node map[string]any) bool {
	return listingID(node) != "" && listingTitle(node) != ""
}

// formatPrice prefers a pre-formatted currency string and otherwise renders
// the numeric amount as "$" plus a thousands-grouped integer.
func formatPrice(node map[string]any) string {
	if s := firstString(node,
		[]string{"listing_price", "formatted_amount"},
		[]string{"formatted_price", "text"},
	); s != "" {
		return s
	}
	if v, ok := lookupNumber(node, "listing_price", "amount"); ok {
		return formatDollars(v)
	}
	if v, ok := lookupNumber(node, "listing_price", "amount_with_offset_in_currency"); ok {
		return formatDollars(v / 100)
	}
	if v, ok := lookupNumber(node, "price", "amount"); ok {
		return formatDollars(v)
	}
	return ""
}

func formatDollars(v float64) string {
	return "$" + groupThousands(int64(math.Round(v)))
}

func groupThousands(n int64) string {
	sign := ""
	if n < 0 {
		sign, n = "-", -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return sign + b.String()
}

// resolveLocation walks the location fallbacks in priority order.
func resolveLocation(node map[string]any) string {
	loc := lookupMap(node, "location")
	if loc == nil {
		loc = node
	}
	if s := firstString(loc,
		[]string{"reverse_geocode", "city_page", "display_name"},
		[]string{"reverse_geocode", "display_name"},
	); s != "" {
		return s
	}
	if s := firstString(node, []string{"location_text", "text"}); s != "" {
		return s
	}
	if s := firstString(loc, []string{"location_text", "text"}); s != "" {
		return s
	}
	city := lookupString(loc, "reverse_geocode", "city")
	state := lookupString(loc, "reverse_geocode", "state")
	switch {
	case city != "" && state != "":
		return city + ", " + state
	case city != "":
		return city
	}
	return ""
}

// NormalizeCondition maps free-text or enum condition values onto the four
// canonical conditions. Unrecognized text yields "".
func NormalizeCondition(raw string) string {
	s := strings.TrimSpace(conditionSepRe.ReplaceAllString(strings.ToLower(raw), " "))
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "like new"):
		return models.ConditionUsedLikeNew
	case trailingGoodRe.MatchString(s):
		return models.ConditionUsedGood
	case trailingFairRe.MatchString(s):
		return models.ConditionUsedFair
	case s == "new" || s == "brand new" || strings.HasPrefix(s, "new "):
		return models.ConditionNew
	}
	return ""
}

func nodeCondition(node map[string]any) string {
	if s := firstString(node, []string{"condition"}, []string{"listing_condition"}); s != "" {
		return NormalizeCondition(s)
	}
	attrs, _ := node["attribute_data"].([]any)
	for _, a := range attrs {
		name := strings.ToLower(lookupString(a, "attribute_name"))
		if name != "condition" {
			continue
		}
		if s := firstString(a, []string{"label"}, []string{"value"}); s != "" {
			return NormalizeCondition(s)
		}
	}
	return ""
}

func primaryPhoto(node map[string]any) string {
	return firstString(node,
		[]string{"primary_listing_photo", "image", "uri"},
		[]string{"primary_listing_photo", "listing_image", "uri"},
		[]string{"primary_photo", "image", "uri"},
		[]string{"listing_photos", "0", "image", "uri"},
	)
}

func sellerName(node map[string]any) string {
	return firstString(node,
		[]string{"marketplace_listing_seller", "name"},
		[]string{"seller", "name"},
		[]string{"story", "actors", "0", "name"},
	)
}

func description(node map[string]any) string {
	return firstString(node,
		[]string{"redacted_description", "text"},
		[]string{"description", "text"},
		[]string{"description"},
	)
}

func postedTime(node map[string]any) string {
	if ts, ok := lookupNumber(node, "creation_time"); ok && ts > 0 {
		return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
	}
	return ""
}

// listingFromNode converts one listing-shaped object. Images are the primary
// photo only; gallery images are appended by the caller.
func listingFromNode(node map[string]any) models.NormalizedListing {
	l := models.NormalizedListing{
		Title:       models.StringPtr(listingTitle(node)),
		Description: models.StringPtr(description(node)),
		Price:       models.StringPtr(formatPrice(node)),
		Location:    models.StringPtr(resolveLocation(node)),
		SellerName:  models.StringPtr(sellerName(node)),
		PostedTime:  models.StringPtr(postedTime(node)),
		Condition:   models.StringPtr(nodeCondition(node)),
		Images:      []string{},
	}
	if l.Title == nil {
		// Detail-page targets may carry a bare title with no price.
		if s, ok := node["title"].(string); ok {
			l.Title = models.StringPtr(strings.TrimSpace(s))
		}
	}
	if photo := primaryPhoto(node); photo != "" {
		l.Images = append(l.Images, photo)
	}
	return l
}

// dedupeStrings drops blanks and repeats, keeping first-seen order.
func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Package extract turns raw marketplace HTML into normalized listing records
// and search-result cards.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
	"github.com/tanner-pham/Baller-sub000/internal/models"
)

// Strategy names reported in Result.Strategy.
const (
	StrategyGenericWalk    = "generic_walk"
	StrategyExplicitShapes = "explicit_shapes"
	StrategyMetaDOM        = "meta_dom"
)

var (
	productPhotoAltRe = regexp.MustCompile(`(?i)product photo of`)
	domPriceRe        = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d{2})?`)
	domListedRe       = regexp.MustCompile(`(?i)listed\s+(.+?\sago)\s+in\s+([^\n]+)`)
	domConditionRe    = regexp.MustCompile(`(?i)condition\s*\n?\s*((?:used\s*-\s*)?(?:like new|good|fair)|brand new|new)\b`)
	domSellerRe       = regexp.MustCompile(`(?i)seller (?:information|details)\s*\n\s*([^\n]+)`)
)

// Result is the outcome of a successful listing extraction.
type Result struct {
	Listing  models.NormalizedListing
	Raw      map[string]any
	Strategy string
}

// ParseListingHTML runs the extraction strategies in order and returns the
// first usable record. Auth-wall pages fail without trying any strategy.
func ParseListingHTML(page string) (*Result, error) {
	if IsAuthWall(page) {
		return nil, &apperr.ExtractionError{Reason: "auth wall", AuthWall: true}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, &apperr.ExtractionError{Reason: "unparseable html: " + err.Error()}
	}
	gallery := galleryImages(doc)
	blocks := scriptJSONBlocks(doc)

	strategies := []struct {
		name string
		run  func() (map[string]any, models.NormalizedListing, bool)
	}{
		{StrategyGenericWalk, func() (map[string]any, models.NormalizedListing, bool) { return genericWalk(blocks) }},
		{StrategyExplicitShapes, func() (map[string]any, models.NormalizedListing, bool) { return explicitShapes(blocks) }},
		{StrategyMetaDOM, func() (map[string]any, models.NormalizedListing, bool) { return metaDOM(doc) }},
	}
	for _, s := range strategies {
		raw, listing, ok := s.run()
		if !ok {
			continue
		}
		listing.Images = dedupeStrings(append(listing.Images, gallery...))
		if !listing.Usable() {
			continue
		}
		return &Result{Listing: listing, Raw: raw, Strategy: s.name}, nil
	}
	return nil, &apperr.ExtractionError{Reason: "no strategy produced a usable listing"}
}

func genericWalk(blocks []any) (map[string]any, models.NormalizedListing, bool) {
	var found map[string]any
	for _, b := range blocks {
		stopped := walk(b, func(node map[string]any) walkAction {
			if !looksLikeListing(node) {
				return walkDescend
			}
			found = node
			return walkStop
		})
		if stopped {
			break
		}
	}
	if found == nil {
		return nil, models.NormalizedListing{}, false
	}
	return found, listingFromNode(found), true
}

// explicitShapes checks the two known page layouts directly.
func explicitShapes(blocks []any) (map[string]any, models.NormalizedListing, bool) {
	var found map[string]any
	for _, b := range blocks {
		walk(b, func(node map[string]any) walkAction {
			if t := lookupMap(node, "marketplace_product_details_page", "target"); t != nil {
				found = t
				return walkStop
			}
			if l := lookupMap(node, "marketplace_search", "feed_units", "edges", "0", "node", "listing"); l != nil {
				found = l
				return walkStop
			}
			return walkDescend
		})
		if found != nil {
			break
		}
	}
	if found == nil {
		return nil, models.NormalizedListing{}, false
	}
	return found, listingFromNode(found), true
}

func metaDOM(doc *goquery.Document) (map[string]any, models.NormalizedListing, bool) {
	meta := func(prop string) string {
		v, _ := doc.Find(`meta[property="` + prop + `"]`).First().Attr("content")
		return strings.TrimSpace(v)
	}
	title := meta("og:title")
	title = strings.TrimPrefix(title, "Marketplace - ")
	title = strings.TrimSuffix(title, " | Facebook")
	canonical, _ := doc.Find(`link[rel="canonical"]`).First().Attr("href")

	text := visibleText(doc.Selection)
	listing := models.NormalizedListing{
		Title:       models.StringPtr(strings.TrimSpace(title)),
		Description: models.StringPtr(meta("og:description")),
		Price:       models.StringPtr(strings.ReplaceAll(domPriceRe.FindString(text), " ", "")),
		Images:      []string{},
	}
	if img := meta("og:image"); img != "" {
		listing.Images = append(listing.Images, img)
	}
	if m := domListedRe.FindStringSubmatch(text); m != nil {
		listing.PostedTime = models.StringPtr(strings.TrimSpace(m[1]))
		listing.Location = models.StringPtr(strings.TrimSpace(m[2]))
	}
	if m := domConditionRe.FindStringSubmatch(text); m != nil {
		listing.Condition = models.StringPtr(NormalizeCondition(m[1]))
	}
	if m := domSellerRe.FindStringSubmatch(text); m != nil {
		listing.SellerName = models.StringPtr(strings.TrimSpace(m[1]))
	}

	raw := map[string]any{
		"og:title":       title,
		"og:description": meta("og:description"),
		"og:image":       meta("og:image"),
		"canonical":      strings.TrimSpace(canonical),
	}
	return raw, listing, listing.Usable()
}

func galleryImages(doc *goquery.Document) []string {
	var out []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		alt, _ := s.Attr("alt")
		if !productPhotoAltRe.MatchString(alt) {
			return
		}
		if src, ok := s.Attr("src"); ok {
			out = append(out, src)
		}
	})
	return out
}

// visibleText joins the non-script text nodes under sel, one per line.
func visibleText(sel *goquery.Selection) string {
	var lines []string
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	for _, n := range sel.Nodes {
		visit(n)
	}
	return strings.Join(lines, "\n")
}

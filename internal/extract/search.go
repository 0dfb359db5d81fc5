package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tanner-pham/Baller-sub000/internal/models"
)

// MaxSearchResults caps the cards returned for one search page.
const MaxSearchResults = 40

const defaultMarketplaceOrigin = "https://www.facebook.com"

// ParseMarketplaceSearchHTML extracts search-result cards using the default
// marketplace origin for relative links.
func ParseMarketplaceSearchHTML(page string) []models.SimpleListing {
	return ParseSearchHTML(page, defaultMarketplaceOrigin)
}

// ParseSearchHTML extracts up to MaxSearchResults cards from a search page,
// de-duplicated by link. Embedded JSON is preferred; item anchors are the
// fallback when it yields nothing.
func ParseSearchHTML(page, baseURL string) []models.SimpleListing {
	if baseURL == "" {
		baseURL = defaultMarketplaceOrigin
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return []models.SimpleListing{}
	}

	c := newCollector()
	for _, block := range scriptJSONBlocks(doc) {
		walk(block, func(node map[string]any) walkAction {
			if !looksLikeListing(node) {
				return walkDescend
			}
			c.add(cardFromNode(node, baseURL))
			if c.full() {
				return walkStop
			}
			return walkSkip
		})
		if c.full() {
			break
		}
	}
	if len(c.out) == 0 {
		cardsFromAnchors(doc, baseURL, c)
	}
	return c.out
}

type collector struct {
	seen map[string]struct{}
	out  []models.SimpleListing
}

func newCollector() *collector {
	return &collector{seen: map[string]struct{}{}, out: []models.SimpleListing{}}
}

func (c *collector) full() bool {
	return len(c.out) >= MaxSearchResults
}

func (c *collector) add(card models.SimpleListing) {
	if card.Link == "" || c.full() {
		return
	}
	if _, dup := c.seen[card.Link]; dup {
		return
	}
	c.seen[card.Link] = struct{}{}
	c.out = append(c.out, card)
}

func cardFromNode(node map[string]any, baseURL string) models.SimpleListing {
	id := listingID(node)
	link := firstString(node, []string{"listing_url"}, []string{"url"}, []string{"story", "url"})
	return models.SimpleListing{
		ID:       id,
		Title:    listingTitle(node),
		Price:    formatPrice(node),
		Location: resolveLocation(node),
		Image:    primaryPhoto(node),
		Link:     absoluteItemLink(baseURL, link, id),
	}
}

// absoluteItemLink resolves a relative item path, or builds one from id.
func absoluteItemLink(baseURL, href, id string) string {
	base := strings.TrimRight(baseURL, "/")
	if href != "" {
		if u, err := url.Parse(href); err == nil {
			if u.IsAbs() {
				return href
			}
			if strings.HasPrefix(u.Path, "/") {
				return base + u.Path
			}
		}
	}
	if id != "" {
		return base + "/marketplace/item/" + id + "/"
	}
	return ""
}

func cardsFromAnchors(doc *goquery.Document, baseURL string, c *collector) {
	doc.Find(`a[href*="/marketplace/item/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		id, err := ListingIDFromURL(href)
		if err != nil {
			return true
		}
		card := models.SimpleListing{
			ID:   id,
			Link: absoluteItemLink(baseURL, "", id),
		}
		card.Image, _ = a.Find("img").First().Attr("src")
		for _, line := range strings.Split(visibleText(a), "\n") {
			switch {
			case card.Price == "" && domPriceRe.MatchString(line):
				card.Price = strings.ReplaceAll(domPriceRe.FindString(line), " ", "")
			case card.Title == "" && !domPriceRe.MatchString(line):
				card.Title = line
			case card.Location == "" && !domPriceRe.MatchString(line):
				card.Location = line
			}
		}
		c.add(card)
		return !c.full()
	})
}

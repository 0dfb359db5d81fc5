package extract

import (
	"regexp"
	"strings"

	"github.com/tanner-pham/Baller-sub000/internal/apperr"
)

var (
	authWallMarkers = []string{
		`id="login_form"`,
		`id='login_form'`,
		`/login/?next=`,
		`/login.php`,
	}
	authWallTextRe = regexp.MustCompile(`(?i)\b(?:you must )?log ?in to continue\b`)
	listingIDRe    = regexp.MustCompile(`/item/(\d+)`)
)

// IsAuthWall reports whether html is a login wall rather than content.
// Mentions of "account" alone do not count.
func IsAuthWall(html string) bool {
	lower := strings.ToLower(html)
	for _, m := range authWallMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return authWallTextRe.MatchString(html)
}

// ListingIDFromURL returns the numeric id in a /marketplace/item/<id> URL.
func ListingIDFromURL(rawURL string) (string, error) {
	m := listingIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", apperr.Validationf("listing url %q has no item id", rawURL)
	}
	return m[1], nil
}

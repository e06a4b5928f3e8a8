package scrape

import "strings"

// NoWebsite is the placeholder recorded for a place without a website.
const NoWebsite = "xxx"

// DefaultBlocklist holds substrings of websites that are never scraped:
// chains, social profiles, link aggregators, public bodies and spam TLDs.
var DefaultBlocklist = []string{
	NoWebsite,
	"lloydspharmacy",
	"instagram",
	"facebook",
	"nhs",
	"youtube",
	"twitter",
	"linktr",
	".pw",
	".top",
}

// IsBlocked reports whether website contains any blocklist entry.
func IsBlocked(website string, blocklist []string) bool {
	w := strings.ToLower(website)
	for _, b := range blocklist {
		if b != "" && strings.Contains(w, strings.ToLower(b)) {
			return true
		}
	}
	return false
}

package scrape

import (
	"bytes"
	"net/http"
	"strings"
)

// BlockType names the kind of anti-bot wall a page sits behind.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockChallenge  BlockType = "challenge"
)

// challengeMarkers appear in interstitial pages served instead of content.
var challengeMarkers = [][]byte{
	[]byte("checking your browser"),
	[]byte("cf-browser-verification"),
	[]byte("cf-challenge"),
}

// DetectBlock reports whether resp is an anti-bot wall rather than the
// site's own page. Contact forms often embed a captcha widget, so a captcha
// on its own does not count.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}
	if denied(resp.StatusCode) && behindCloudflare(resp.Header) {
		return true, BlockCloudflare
	}
	lower := bytes.ToLower(body)
	for _, m := range challengeMarkers {
		if bytes.Contains(lower, m) {
			return true, BlockChallenge
		}
	}
	return false, BlockNone
}

func denied(status int) bool {
	return status == http.StatusForbidden || status == http.StatusServiceUnavailable
}

func behindCloudflare(h http.Header) bool {
	return h.Get("Cf-Ray") != "" ||
		h.Get("Cf-Cache-Status") != "" ||
		strings.EqualFold(h.Get("Server"), "cloudflare")
}

// Package scrape fetches business websites and extracts contact details.
package scrape

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// DefaultMaxDepth bounds contact-page recursion below the start page.
	DefaultMaxDepth = 2
	// DefaultMaxContactPages is how many contact pages are sampled per page.
	DefaultMaxContactPages = 3

	mobilePrefix = "07"
)

var (
	emailRe  = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}(?:\.[A-Za-z]{1,}){0,5}\b`)
	phoneRe  = regexp.MustCompile(`(?:\+?44|0)(?:\s?\d){10}`)
	hexLocal = regexp.MustCompile(`^[0-9a-fA-F]+$`)

	phoneSeparators = strings.NewReplacer("(", "", ")", "", "-", "")
)

// Contacts holds the contact details found on a site. Each slice is
// sorted and free of duplicates.
type Contacts struct {
	Emails  []string `json:"emails"`
	Phones  []string `json:"phones"`
	Mobiles []string `json:"mobiles"`
}

// Empty reports whether nothing was found.
func (c Contacts) Empty() bool {
	return len(c.Emails) == 0 && len(c.Phones) == 0
}

// Option configures a ContactExtractor.
type Option func(*ContactExtractor)

// WithUserAgent sets the User-Agent sent with every page request.
func WithUserAgent(ua string) Option {
	return func(e *ContactExtractor) { e.userAgent = ua }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *ContactExtractor) { e.timeout = d }
}

// WithMaxDepth sets how many levels of contact pages are followed.
func WithMaxDepth(n int) Option {
	return func(e *ContactExtractor) {
		if n >= 0 {
			e.maxDepth = n
		}
	}
}

// WithMaxContactPages sets how many contact links are followed per page.
func WithMaxContactPages(n int) Option {
	return func(e *ContactExtractor) {
		if n >= 0 {
			e.maxContactPages = n
		}
	}
}

// ContactExtractor scrapes emails and UK phone numbers from a website,
// following its contact pages when the landing page has none.
type ContactExtractor struct {
	fetcher         *PageFetcher
	userAgent       string
	timeout         time.Duration
	maxDepth        int
	maxContactPages int
}

// NewContactExtractor creates a ContactExtractor.
func NewContactExtractor(opts ...Option) *ContactExtractor {
	e := &ContactExtractor{
		maxDepth:        DefaultMaxDepth,
		maxContactPages: DefaultMaxContactPages,
	}
	for _, o := range opts {
		o(e)
	}
	e.fetcher = NewPageFetcher(e.userAgent, e.timeout)
	return e
}

// Extract scrapes website. Fetch failures yield empty Contacts; nothing is
// retried.
func (e *ContactExtractor) Extract(ctx context.Context, website string) Contacts {
	visited := map[string]bool{website: true}
	emails, phones := e.extract(ctx, website, 0, visited)

	out := Contacts{Emails: sortedKeys(emails), Phones: sortedKeys(phones)}
	for _, p := range out.Phones {
		if strings.HasPrefix(p, mobilePrefix) {
			out.Mobiles = append(out.Mobiles, p)
		}
	}
	return out
}

func (e *ContactExtractor) extract(ctx context.Context, pageURL string, depth int, visited map[string]bool) (emails, phones map[string]bool) {
	emails, phones = map[string]bool{}, map[string]bool{}

	page, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		zap.L().Debug("contact scrape failed", zap.String("url", pageURL), zap.Error(err))
		return emails, phones
	}

	found := ParsePage(pageURL, page.Body)
	for _, m := range found.Emails {
		emails[m] = true
	}
	for _, p := range found.Phones {
		phones[p] = true
	}

	if len(emails) > 0 || len(phones) > 0 || depth >= e.maxDepth {
		return emails, phones
	}

	followed := 0
	for _, link := range found.ContactLinks {
		if followed >= e.maxContactPages {
			break
		}
		if visited[link] {
			continue
		}
		visited[link] = true
		followed++

		subEmails, subPhones := e.extract(ctx, link, depth+1, visited)
		for m := range subEmails {
			emails[m] = true
		}
		for p := range subPhones {
			phones[p] = true
		}
	}
	return emails, phones
}

// PageContacts is what a single page yields before recursion.
type PageContacts struct {
	Emails       []string
	Phones       []string
	ContactLinks []string
}

// ParsePage extracts normalised emails, phone numbers and contact-page
// links from an HTML document fetched from pageURL.
func ParsePage(pageURL string, body []byte) PageContacts {
	var (
		rawEmails []string
		rawPhones []string
		links     []string
	)

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return PageContacts{}
	}

	onContactPage := strings.Contains(strings.ToLower(pageURL), "contact")
	origin := siteOrigin(pageURL)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style || n.DataAtom == atom.Noscript {
				return
			}
			if n.DataAtom == atom.A {
				href := strings.TrimSpace(attr(n, "href"))
				lower := strings.ToLower(href)
				switch {
				case strings.HasPrefix(lower, "mailto:"):
					rawEmails = append(rawEmails, href[len("mailto:"):])
				case strings.HasPrefix(lower, "tel:"):
					rawPhones = append(rawPhones, phoneSeparators.Replace(href[len("tel:"):]))
				case !onContactPage && strings.Contains(lower, "contact"):
					if link := resolveLink(origin, href); link != "" {
						links = append(links, link)
					}
				}
			}
		case html.TextNode:
			rawEmails = append(rawEmails, emailRe.FindAllString(n.Data, -1)...)
			rawPhones = append(rawPhones, phoneRe.FindAllString(phoneSeparators.Replace(n.Data), -1)...)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return PageContacts{
		Emails:       normaliseEmails(rawEmails),
		Phones:       normalisePhones(rawPhones),
		ContactLinks: dedupe(links),
	}
}

// normaliseEmails drops hashed-looking and encoded addresses, lowercases,
// strips spaces and any query suffix.
func normaliseEmails(raw []string) []string {
	var out []string
	for _, e := range raw {
		at := strings.Index(e, "@")
		if at <= 0 {
			continue
		}
		if hexLocal.MatchString(e[:at]) || strings.ContainsAny(e, `%\`) {
			continue
		}
		e = strings.ToLower(strings.ReplaceAll(e, " ", ""))
		if i := strings.Index(e, "?"); i >= 0 {
			e = e[:i]
		}
		if e != "" {
			out = append(out, e)
		}
	}
	return dedupe(out)
}

// NormalisePhone converts a raw UK number to its 11-digit local form.
// It reports false for numbers of the wrong length or with an
// international "00" prefix.
func NormalisePhone(raw string) (string, bool) {
	p := strings.ReplaceAll(raw, " ", "")
	p = strings.Replace(p, "+44", "0", 1)
	if len(p) != 11 || strings.HasPrefix(p, "00") {
		return "", false
	}
	return p, true
}

// IsMobile reports whether a normalised UK number is a mobile.
func IsMobile(phone string) bool {
	return strings.HasPrefix(phone, mobilePrefix)
}

func normalisePhones(raw []string) []string {
	var out []string
	for _, r := range raw {
		if p, ok := NormalisePhone(r); ok {
			out = append(out, p)
		}
	}
	return dedupe(out)
}

func siteOrigin(pageURL string) *url.URL {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
}

// resolveLink makes href absolute against the site origin. Only http(s)
// links are returned.
func resolveLink(origin *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !ref.IsAbs() {
		if origin == nil {
			return ""
		}
		ref = origin.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	ref.Fragment = ""
	return ref.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

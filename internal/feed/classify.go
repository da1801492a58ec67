package feed

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Domains known to keep most content behind a paywall.
var paywallDomains = map[string]struct{}{
	"dn.se":                 {},
	"svd.se":                {},
	"ft.com":                {},
	"nytimes.com":           {},
	"theguardian.com":       {},
	"kvalitetsmagasinet.se": {},
}

// Substrings in title/summary text that hint at subscriber-only content.
var paywallHints = []string{
	"premium", "subscriber", "paywall", "betalvägg", "prenumeration",
}

// ArticleID derives the stable article identity from its canonical URL.
// Same URL, same id, forever; this is the sole dedup key everywhere
// (ingestion, ledger lookups, sheet cleanup).
func ArticleID(rawURL string) string {
	sum := sha1.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// ResolveDate picks the entry's publish date: published first, then updated,
// falling back to the current UTC date. The result is always a plain
// YYYY-MM-DD calendar date.
func ResolveDate(published, updated *time.Time, now time.Time) string {
	if published != nil {
		return published.UTC().Format("2006-01-02")
	}
	if updated != nil {
		return updated.UTC().Format("2006-01-02")
	}
	return now.UTC().Format("2006-01-02")
}

// IsPaywalled classifies an entry as paywalled when either its host is on the
// domain denylist or its title/summary text contains a hint substring. This
// is a heuristic; both false positives and negatives are acceptable.
func IsPaywalled(rawURL, title, snippet string) bool {
	if u, err := url.Parse(rawURL); err == nil {
		host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
		if _, found := paywallDomains[host]; found {
			return true
		}
	}
	text := strings.ToLower(title + " " + snippet)
	for _, hint := range paywallHints {
		if strings.Contains(text, hint) {
			return true
		}
	}
	return false
}

// MatchesKeywords reports whether an entry passes a category's keyword
// filter. An empty keyword list passes everything; otherwise at least one
// keyword must appear as a substring of the lowercased title+summary.
func MatchesKeywords(keywords, title, snippet string) bool {
	keywords = strings.TrimSpace(keywords)
	if keywords == "" {
		return true
	}
	text := strings.ToLower(title + " " + snippet)
	hasKeyword := false
	for _, kw := range strings.Split(keywords, ",") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		hasKeyword = true
		if strings.Contains(text, kw) {
			return true
		}
	}
	return !hasKeyword
}

// stripHTML flattens feed-provided HTML snippets to plain text so hint and
// keyword matching see words, not markup.
func stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}

package feed

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	sourceSplitRe = regexp.MustCompile(`[,;\s]+`)
	bareHostRe    = regexp.MustCompile(`^[\w-]+(\.[\w-]+)+(/\S*)?$`)
)

// NormalizeSources parses a free-text configuration cell holding one or more
// feed URLs into an ordered, deduplicated list of absolute HTTP(S) URLs.
// Tokens that look like a bare host ("example.com/feed") get an https scheme
// prepended. Malformed tokens are dropped silently; an empty result means the
// row is skipped, not an error.
func NormalizeSources(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var urls []string
	for _, tok := range sourceSplitRe.Split(raw, -1) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if !strings.Contains(tok, "://") && bareHostRe.MatchString(tok) {
			tok = "https://" + tok
		}
		u, err := url.Parse(tok)
		if err != nil || u.Host == "" {
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		urls = append(urls, tok)
	}
	return urls
}

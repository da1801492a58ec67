package feed

import (
	"context"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// maxFeedBytes caps how much of a feed body is read, to avoid huge downloads.
const maxFeedBytes = 5 << 20

// Fetcher downloads and parses one feed URL into entries. Fetch failures are
// per-feed: the pipeline logs them and moves on.
type Fetcher struct {
	parser *gofeed.Parser
	client *http.Client
}

func NewFetcher() *Fetcher {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Fetcher{
		parser: gofeed.NewParser(),
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
	}
}

// Fetch retrieves and parses the feed at url, returning its entries in feed
// order. Titles are HTML-entity-decoded; snippets are flattened to plain
// text for downstream hint and keyword matching.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "ainyheter/1.0")

	if err := checkDestination(req.URL.Hostname()); err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("unexpected response status %d", resp.StatusCode)
	}

	parsed, err := f.parser.Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entries = append(entries, Entry{
			Title:     strings.TrimSpace(html.UnescapeString(item.Title)),
			Link:      strings.TrimSpace(item.Link),
			Snippet:   stripHTML(item.Description),
			Published: item.PublishedParsed,
			Updated:   item.UpdatedParsed,
		})
	}
	return entries, nil
}

// checkDestination blocks feeds that resolve to private or reserved
// addresses. Loopback stays allowed so local test servers work.
func checkDestination(host string) error {
	if host == "" {
		return nil
	}
	var addrs []net.IP
	if ip := net.ParseIP(host); ip != nil {
		addrs = append(addrs, ip)
	} else if resolved, err := net.LookupIP(host); err == nil {
		addrs = resolved
	}
	for _, ip := range addrs {
		if ip.IsLoopback() {
			continue
		}
		if ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return fmt.Errorf("destination resolves to private/reserved address")
		}
	}
	return nil
}

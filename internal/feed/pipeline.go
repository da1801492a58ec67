package feed

import (
	"context"
	"fmt"
	"log"
	"time"
)

// CategorySource yields the configured categories with their raw feed cells.
type CategorySource interface {
	Categories(ctx context.Context) ([]Category, error)
}

// FeedFetcher retrieves and parses a single feed URL.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]Entry, error)
}

// Summarizer produces a short summary for an article. The pipeline treats
// every failure as an empty summary; it never blocks ingestion.
type Summarizer interface {
	Summarize(ctx context.Context, title, url string) (string, error)
}

// Options tune per-run pipeline behavior.
type Options struct {
	// MaxEntriesPerFeed caps how many entries of one feed are considered.
	MaxEntriesPerFeed int
	// Delay is a politeness pause between processed entries, to stay within
	// the summarizer provider's throughput limits.
	Delay time.Duration
}

// DefaultOptions mirror the production defaults of the original deployment.
func DefaultOptions() Options {
	return Options{MaxEntriesPerFeed: 10, Delay: 400 * time.Millisecond}
}

// Pipeline orchestrates one ingestion run: categories, feeds, entries,
// dedup, classification, summarization, persistence to both stores. All
// collaborators are injected; the pipeline owns no globals.
type Pipeline struct {
	categories CategorySource
	fetcher    FeedFetcher
	summarizer Summarizer
	store      RelationalStore
	sheet      TabularStore
	logger     *log.Logger
	opts       Options
	now        func() time.Time
}

func NewPipeline(categories CategorySource, fetcher FeedFetcher, summarizer Summarizer, store RelationalStore, sheet TabularStore, logger *log.Logger, opts Options) *Pipeline {
	if opts.MaxEntriesPerFeed <= 0 {
		opts.MaxEntriesPerFeed = DefaultOptions().MaxEntriesPerFeed
	}
	return &Pipeline{
		categories: categories,
		fetcher:    fetcher,
		summarizer: summarizer,
		store:      store,
		sheet:      sheet,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
	}
}

// Run executes one ingestion pass and returns the number of newly added
// articles. Only a missing category configuration is fatal; every per-feed
// and per-entry failure is logged and skipped.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	cats, err := p.categories.Categories(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading category configuration: %w", err)
	}
	if len(cats) == 0 {
		p.logger.Printf("Category configuration is empty, nothing to do")
		return 0, nil
	}

	ledger := NewLedger(ctx, p.store, p.sheet, p.logger)

	added := 0
	var sheetRows []Article
	for _, cat := range cats {
		name := cat.Name
		if name == "" {
			name = "Okänd"
		}
		feeds := NormalizeSources(cat.Sources)
		if len(feeds) == 0 {
			continue
		}
		p.logger.Printf("%s: %d feed(s)", name, len(feeds))

		for _, feedURL := range feeds {
			entries, err := p.fetcher.Fetch(ctx, feedURL)
			if err != nil {
				p.logger.Printf("Error fetching %s: %v", feedURL, err)
				continue
			}
			p.logger.Printf("  %s: %d entries", feedURL, len(entries))
			if len(entries) > p.opts.MaxEntriesPerFeed {
				entries = entries[:p.opts.MaxEntriesPerFeed]
			}

			for _, entry := range entries {
				if n, rows := p.processEntry(ctx, ledger, cat, name, entry); n > 0 {
					added += n
					sheetRows = append(sheetRows, rows...)
					if p.opts.Delay > 0 {
						time.Sleep(p.opts.Delay)
					}
				}
			}
		}
	}

	if len(sheetRows) > 0 {
		if err := p.sheet.AppendArticles(ctx, sheetRows); err != nil {
			p.logger.Printf("Error appending %d rows to sheet: %v", len(sheetRows), err)
		}
	}

	p.logger.Printf("Run finished: %d new article(s)", added)
	return added, nil
}

// processEntry handles one feed entry. It returns 1 and any rows destined
// for the tabular store when the entry produced a new article, 0 otherwise.
func (p *Pipeline) processEntry(ctx context.Context, ledger *Ledger, cat Category, catName string, entry Entry) (int, []Article) {
	if entry.Link == "" || entry.Title == "" {
		return 0, nil
	}
	if !MatchesKeywords(cat.Keywords, entry.Title, entry.Snippet) {
		return 0, nil
	}

	id := ArticleID(entry.Link)
	if ledger.SeenThisRun(id) {
		return 0, nil
	}

	// Each backend is checked on its own: the stores can drift apart after a
	// partial failure, and a record missing from one side gets backfilled
	// without touching the other.
	knownStore := ledger.KnownToStore(ctx, entry.Link)
	knownSheet := ledger.KnownToSheet(id)
	if knownStore && knownSheet {
		ledger.MarkSeen(id)
		return 0, nil
	}

	now := p.now()
	article := Article{
		ID:            id,
		Title:         entry.Title,
		URL:           entry.Link,
		PublishedDate: ResolveDate(entry.Published, entry.Updated, now),
		Category:      catName,
		Paywall:       IsPaywalled(entry.Link, entry.Title, entry.Snippet),
		ImportDate:    now.UTC().Format("2006-01-02"),
	}

	summary, err := p.summarizer.Summarize(ctx, article.Title, article.URL)
	if err != nil {
		p.logger.Printf("Summarization failed for %q: %v", truncate(article.Title, 60), err)
		summary = ""
	}
	article.Summary = summary

	if !knownStore {
		if err := p.store.InsertArticle(ctx, article); err != nil {
			// One backend failing never stops the other from proceeding.
			p.logger.Printf("Error inserting %s: %v", article.URL, err)
		}
	}

	var rows []Article
	if !knownSheet {
		rows = append(rows, article)
	}

	ledger.MarkSeen(id)
	p.logger.Printf("    + %s", truncate(article.Title, 60))
	return 1, rows
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package sheets

import (
	"context"
	"sort"
	"strings"

	"ainyheter/internal/feed"
)

// Categories reads the configuration worksheet into category rows. Rows with
// an empty source cell are kept; the pipeline skips them after normalizing.
func (c *Client) Categories(ctx context.Context) ([]feed.Category, error) {
	rows, err := c.readRows(ctx, SettingsSheet+"!A2:C")
	if err != nil {
		return nil, err
	}
	cats := make([]feed.Category, 0, len(rows))
	for _, row := range rows {
		cat := feed.Category{
			Name:     strings.TrimSpace(cell(row, 0)),
			Sources:  cell(row, 1),
			Keywords: cell(row, 2),
		}
		if cat.Name == "" && strings.TrimSpace(cat.Sources) == "" {
			continue
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

// ArticleIDs scans the id column into the known-id set used by the ledger.
func (c *Client) ArticleIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := c.readRows(ctx, ArticlesSheet+"!A2:A")
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if id := strings.TrimSpace(cell(row, 0)); id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

// AppendArticles writes article rows in the canonical 8-column order.
func (c *Client) AppendArticles(ctx context.Context, articles []feed.Article) error {
	if len(articles) == 0 {
		return nil
	}
	rows := make([][]interface{}, 0, len(articles))
	for _, a := range articles {
		rows = append(rows, articleRow(a))
	}
	return c.appendRows(ctx, ArticlesSheet, rows)
}

// AllArticles reads the full article worksheet, newest rows last (append
// order). Used by the archive fallback route.
func (c *Client) AllArticles(ctx context.Context) ([]feed.Article, error) {
	rows, err := c.readRows(ctx, ArticlesSheet+"!A2:H")
	if err != nil {
		return nil, err
	}
	articles := make([]feed.Article, 0, len(rows))
	for _, row := range rows {
		a := parseArticleRow(row)
		if a.ID == "" {
			continue
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// CleanupDuplicates repairs drift in the article worksheet: rows are scanned
// in sheet order, the first occurrence of each id wins, and every later row
// with the same id is removed. Returns the number of deleted rows.
func (c *Client) CleanupDuplicates(ctx context.Context) (int, error) {
	rows, err := c.readRows(ctx, ArticlesSheet+"!A2:A")
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{})
	var duplicates []int64
	for i, row := range rows {
		id := strings.TrimSpace(cell(row, 0))
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			// Data rows start below the header, hence the +1 offset.
			duplicates = append(duplicates, int64(i+1))
			continue
		}
		seen[id] = struct{}{}
	}
	if len(duplicates) == 0 {
		return 0, nil
	}

	sheetID, err := c.sheetID(ctx, ArticlesSheet)
	if err != nil {
		return 0, err
	}

	// Delete bottom-up so the remaining indexes stay valid.
	sort.Slice(duplicates, func(i, j int) bool { return duplicates[i] > duplicates[j] })
	if err := c.deleteRows(ctx, sheetID, duplicates); err != nil {
		return 0, err
	}
	c.logger.Printf("Cleanup removed %d duplicate row(s)", len(duplicates))
	return len(duplicates), nil
}

func articleRow(a feed.Article) []interface{} {
	paywall := "FALSE"
	if a.Paywall {
		paywall = "TRUE"
	}
	return []interface{}{
		a.ID, a.Title, a.URL, a.PublishedDate,
		a.Summary, a.Category, paywall, a.ImportDate,
	}
}

func parseArticleRow(row []interface{}) feed.Article {
	return feed.Article{
		ID:            strings.TrimSpace(cell(row, 0)),
		Title:         cell(row, 1),
		URL:           cell(row, 2),
		PublishedDate: cell(row, 3),
		Summary:       cell(row, 4),
		Category:      cell(row, 5),
		Paywall:       strings.EqualFold(strings.TrimSpace(cell(row, 6)), "TRUE"),
		ImportDate:    cell(row, 7),
	}
}

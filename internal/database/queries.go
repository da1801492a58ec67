package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"ainyheter/internal/feed"
)

// Error definitions
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

const articleColumns = "id, title, url, published_date, summary, category, paywall, import_date"

// ArchiveQuery describes an archive page request with optional filters.
type ArchiveQuery struct {
	Category string
	Search   string
	Limit    uint64
	Offset   uint64
}

// InsertArticle stores an article if its id and URL are not yet present.
// Concurrent runs may race on the same article; the conflict is ignored
// rather than surfaced, which makes the write idempotent.
func (db *DB) InsertArticle(ctx context.Context, a feed.Article) error {
	if a.ID == "" || a.URL == "" {
		return ErrInvalidInput
	}
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO articles
		 (id, title, url, published_date, summary, category, paywall, import_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.URL, a.PublishedDate, a.Summary, a.Category,
		boolToInt(a.Paywall), a.ImportDate,
	)
	if err != nil {
		return fmt.Errorf("inserting article %s: %w", a.URL, err)
	}
	return nil
}

// Exists reports whether an article with this URL is already stored.
func (db *DB) Exists(ctx context.Context, url string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx,
		"SELECT 1 FROM articles WHERE url = ?", url,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Recent returns the most recently imported articles, newest first.
func (db *DB) Recent(ctx context.Context, limit int) ([]feed.Article, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles
		 ORDER BY import_date DESC, created_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// RecentWithin returns articles imported in the last `days` days, newest
// first, capped at limit. This is the digest window query.
func (db *DB) RecentWithin(ctx context.Context, days, limit int) ([]feed.Article, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles
		 WHERE import_date >= DATE('now', ?)
		 ORDER BY import_date DESC, created_at DESC
		 LIMIT ?`,
		fmt.Sprintf("-%d days", days), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// Archive pages through stored articles with optional category and free-text
// filters, newest import first.
func (db *DB) Archive(ctx context.Context, q ArchiveQuery) ([]feed.Article, error) {
	builder := sq.Select(articleColumns).
		From("articles").
		OrderBy("import_date DESC", "created_at DESC")

	if q.Category != "" {
		builder = builder.Where(sq.Eq{"LOWER(category)": strings.ToLower(q.Category)})
	}
	if q.Search != "" {
		pattern := "%" + strings.ToLower(q.Search) + "%"
		builder = builder.Where(sq.Or{
			sq.Like{"LOWER(title)": pattern},
			sq.Like{"LOWER(summary)": pattern},
		})
	}
	if q.Limit > 0 {
		builder = builder.Limit(q.Limit)
	}
	if q.Offset > 0 {
		builder = builder.Offset(q.Offset)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building archive query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// Categories returns the distinct category names present in the store.
func (db *DB) Categories(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT DISTINCT category FROM articles WHERE category != '' ORDER BY category")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// CountArticles returns the number of stored articles.
func (db *DB) CountArticles(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&n)
	return n, err
}

func scanArticles(rows *sql.Rows) ([]feed.Article, error) {
	var articles []feed.Article
	for rows.Next() {
		var (
			a       feed.Article
			paywall int
		)
		err := rows.Scan(
			&a.ID, &a.Title, &a.URL, &a.PublishedDate,
			&a.Summary, &a.Category, &paywall, &a.ImportDate,
		)
		if err != nil {
			return nil, err
		}
		a.Paywall = paywall != 0
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

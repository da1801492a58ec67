package feed

import (
	"context"
	"log"
)

// RelationalStore is the durable article store. Inserts must be
// insert-if-absent: concurrent runs may both attempt the same row.
type RelationalStore interface {
	Exists(ctx context.Context, url string) (bool, error)
	InsertArticle(ctx context.Context, a Article) error
}

// TabularStore is the shared spreadsheet store holding the same records.
type TabularStore interface {
	ArticleIDs(ctx context.Context) (map[string]struct{}, error)
	AppendArticles(ctx context.Context, articles []Article) error
}

// Ledger tracks which article identities are already known. The two backends
// may be out of sync with each other, so each is consulted on its own before
// it is written; an in-run set prevents double-insertion when a feed lists
// the same article twice in one run.
type Ledger struct {
	store    RelationalStore
	sheetIDs map[string]struct{}
	seen     map[string]struct{}
	logger   *log.Logger
}

// NewLedger snapshots the tabular store's known ids at run start. A failed
// id scan degrades to an empty set: the sheet append is idempotent enough to
// survive the occasional duplicate, and the run must not die on a read error.
func NewLedger(ctx context.Context, store RelationalStore, sheet TabularStore, logger *log.Logger) *Ledger {
	ids, err := sheet.ArticleIDs(ctx)
	if err != nil {
		logger.Printf("Could not read existing sheet ids: %v", err)
		ids = make(map[string]struct{})
	}
	return &Ledger{
		store:    store,
		sheetIDs: ids,
		seen:     make(map[string]struct{}),
		logger:   logger,
	}
}

// SeenThisRun reports whether the id was already written during this run.
func (l *Ledger) SeenThisRun(id string) bool {
	_, ok := l.seen[id]
	return ok
}

// MarkSeen records an id as handled for the remainder of the run.
func (l *Ledger) MarkSeen(id string) {
	l.seen[id] = struct{}{}
}

// KnownToStore checks the relational backend by URL uniqueness. A query
// error is logged and treated as unknown; the insert path is idempotent.
func (l *Ledger) KnownToStore(ctx context.Context, url string) bool {
	known, err := l.store.Exists(ctx, url)
	if err != nil {
		l.logger.Printf("Ledger lookup failed for %s: %v", url, err)
		return false
	}
	return known
}

// KnownToSheet checks the tabular backend against the run-start snapshot.
func (l *Ledger) KnownToSheet(id string) bool {
	_, ok := l.sheetIDs[id]
	return ok
}

// Package server is the thin HTTP route layer: request/response mapping
// over the pipeline, the stores and the mailer. It calls them, never the
// reverse.
package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"ainyheter/internal/database"
	"ainyheter/internal/digest"
	"ainyheter/internal/feed"
	"ainyheter/internal/jobs"
)

// ArticleReader is the read side of the relational store.
type ArticleReader interface {
	Recent(ctx context.Context, limit int) ([]feed.Article, error)
	RecentWithin(ctx context.Context, days, limit int) ([]feed.Article, error)
	Archive(ctx context.Context, q database.ArchiveQuery) ([]feed.Article, error)
}

// SheetGateway covers the tabular-store operations the routes need.
type SheetGateway interface {
	Categories(ctx context.Context) ([]feed.Category, error)
	AllArticles(ctx context.Context) ([]feed.Article, error)
	Subscribers(ctx context.Context) ([]digest.Subscriber, error)
	UpsertSubscriber(ctx context.Context, sub digest.Subscriber) error
	SetSubscriberStatus(ctx context.Context, email, token, status string) error
	SetSubscriberCategories(ctx context.Context, email, token, categories string) error
	DeleteSubscriber(ctx context.Context, email string) (int, error)
}

// Ingester runs one ingestion pass.
type Ingester interface {
	Run(ctx context.Context) (int, error)
}

// Mailer sends the subscription and digest emails.
type Mailer interface {
	SendConfirmation(email, token string) error
	SendGoodbye(email string) error
	SendDigest(subscribers []digest.Subscriber, articles []feed.Article, opts digest.SendOptions) (int, error)
}

type Config struct {
	AdminToken       string
	BaseURL          string
	DigestCap        int
	DigestWindowDays int
}

type Server struct {
	articles ArticleReader
	sheet    SheetGateway
	ingester Ingester
	mailer   Mailer
	runner   *jobs.Runner
	logger   *log.Logger
	config   Config
}

func NewServer(articles ArticleReader, sheet SheetGateway, ingester Ingester, mailer Mailer, runner *jobs.Runner, logger *log.Logger, config Config) *Server {
	if config.DigestCap <= 0 {
		config.DigestCap = digest.DefaultCap
	}
	if config.DigestWindowDays <= 0 {
		config.DigestWindowDays = 7
	}
	return &Server{
		articles: articles,
		sheet:    sheet,
		ingester: ingester,
		mailer:   mailer,
		runner:   runner,
		logger:   logger,
		config:   config,
	}
}

// Routes assembles the handler tree with CORS on /api/* and token auth on
// the admin endpoints.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/settings", s.handleSettings)
	mux.HandleFunc("GET /api/news", s.handleNews)
	mux.HandleFunc("GET /api/archive", s.handleArchive)
	mux.HandleFunc("GET /api/archive-sheet", s.handleArchiveSheet)
	mux.HandleFunc("GET /api/feed.rss", s.handleFeedRSS)
	mux.HandleFunc("POST /api/subscribe", s.handleSubscribe)
	mux.HandleFunc("GET /api/confirm", s.handleConfirm)
	mux.HandleFunc("GET /api/unsubscribe", s.handleUnsubscribe)
	mux.HandleFunc("POST /api/update-cats", s.handleUpdateCategories)

	mux.Handle("GET /api/subscribers", s.adminOnly(s.handleSubscribers))
	mux.Handle("POST /api/delete-subscriber", s.adminOnly(s.handleDeleteSubscriber))
	mux.Handle("POST /admin/run-fetch", s.adminOnly(s.handleRunFetch))
	mux.Handle("POST /admin/send-digest", s.adminOnly(s.handleSendDigest))

	return s.cors(mux)
}

func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.logger.Printf("Listening on %s", addr)
	return srv.ListenAndServe()
}

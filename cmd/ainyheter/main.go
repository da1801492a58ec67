package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ainyheter/internal/config"
	"ainyheter/internal/database"
	"ainyheter/internal/digest"
	"ainyheter/internal/feed"
	"ainyheter/internal/jobs"
	"ainyheter/internal/server"
	"ainyheter/internal/sheets"
	"ainyheter/internal/summary"
)

// Version will be set during build
var Version = "dev"

var (
	flagPort   int
	flagDBPath string

	flagDigestDryRun bool
	flagDigestForce  bool
	flagDigestTo     string
	flagDigestWindow int
)

// app bundles everything the subcommands need.
type app struct {
	cfg      config.Config
	logger   *log.Logger
	db       *database.DB
	sheet    *sheets.Client
	pipeline *feed.Pipeline
	mailer   *digest.Mailer
}

// buildApp wires the whole dependency graph. Category configuration is the
// one thing nothing works without, so a missing spreadsheet id is fatal.
func buildApp(ctx context.Context) (*app, error) {
	logger := log.New(os.Stdout, "ainyheter: ", log.LstdFlags|log.Lshortfile)

	cfg := config.Load()
	if flagPort > 0 {
		cfg.Port = flagPort
	}
	if flagDBPath != "" {
		cfg.DBPath = flagDBPath
	}

	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id missing: set SPREADSHEET_ID or spreadsheetId in the config file")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := database.NewDB(cfg.DBPath, database.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	sheet, err := sheets.NewClient(ctx, cfg.SpreadsheetID, cfg.CredentialsPath, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing sheets client: %w", err)
	}
	if err := sheet.EnsureWorksheets(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring worksheets: %w", err)
	}

	summarizer := summary.NewClient(cfg.Summarizer.Endpoint, cfg.Summarizer.Model, cfg.Summarizer.APIKey)
	pipeline := feed.NewPipeline(sheet, feed.NewFetcher(), summarizer, db, sheet, logger, feed.Options{
		MaxEntriesPerFeed: cfg.Ingest.MaxEntriesPerFeed,
		Delay:             cfg.Ingest.Delay(),
	})

	mailer, err := digest.NewMailer(cfg.Mail.APIKey, cfg.Mail.APISecret, cfg.Mail.Sender, cfg.Mail.SenderName, cfg.BaseURL, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing mailer: %w", err)
	}

	logger.Printf("Starting ainyheter v%s", Version)
	logger.Printf("Database: %s", cfg.DBPath)
	logger.Printf("Spreadsheet: %s", cfg.SpreadsheetID)

	return &app{cfg: cfg, logger: logger, db: db, sheet: sheet, pipeline: pipeline, mailer: mailer}, nil
}

var rootCmd = &cobra.Command{
	Use:     "ainyheter",
	Short:   "News aggregation backend: RSS ingestion, summaries, digests",
	Version: Version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background job runner",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.db.Close()

		runner := jobs.NewRunner(a.logger, 16)
		runner.Start()
		defer runner.Stop()

		srv := server.NewServer(a.db, a.sheet, a.pipeline, a.mailer, runner, a.logger, server.Config{
			AdminToken:       a.cfg.AdminToken,
			BaseURL:          a.cfg.BaseURL,
			DigestCap:        a.cfg.Digest.Cap,
			DigestWindowDays: a.cfg.Digest.WindowDays,
		})
		return srv.Start(a.cfg.GetAddress())
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one ingestion pass and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.db.Close()

		added, err := a.pipeline.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Added %d new article(s)\n", added)
		return nil
	},
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Send the digest to active subscribers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.db.Close()

		window := a.cfg.Digest.WindowDays
		if flagDigestWindow > 0 {
			window = flagDigestWindow
		}
		articles, err := a.db.RecentWithin(ctx, window, 100)
		if err != nil {
			return fmt.Errorf("reading articles: %w", err)
		}
		subs, err := a.sheet.Subscribers(ctx)
		if err != nil {
			return fmt.Errorf("reading subscribers: %w", err)
		}

		sent, err := a.mailer.SendDigest(subs, articles, digest.SendOptions{
			Cap:           a.cfg.Digest.Cap,
			DryRun:        flagDigestDryRun,
			Force:         flagDigestForce,
			TestRecipient: flagDigestTo,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Sent %d digest email(s)\n", sent)
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove duplicate article rows from the spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.db.Close()

		removed, err := a.sheet.CleanupDuplicates(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d duplicate row(s)\n", removed)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "Port for the HTTP API (default: 8080 or AINYHETER_PORT)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to the database file (default: data/ainyheter.db or AINYHETER_DB_PATH)")

	digestCmd.Flags().BoolVar(&flagDigestDryRun, "dry-run", false, "Render and count, send nothing")
	digestCmd.Flags().BoolVar(&flagDigestForce, "force", false, "Send even to subscribers with no matching articles")
	digestCmd.Flags().StringVar(&flagDigestTo, "to", "", "Send a single test email to this address")
	digestCmd.Flags().IntVar(&flagDigestWindow, "window", 0, "Days of articles to include (default from config)")

	rootCmd.AddCommand(serveCmd, fetchCmd, digestCmd, cleanupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

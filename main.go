package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"leadscout/config"
	"leadscout/dedupe"
	"leadscout/logging"
	"leadscout/scheduler"
	"leadscout/scoring"
	"leadscout/scraper"
	"leadscout/services"
	"leadscout/storage"
	"leadscout/workers"
)

var (
	scrapeNow  = flag.Bool("scrape", false, "Run scrape once and exit")
	scrapeSite = flag.String("site", "", "With -scrape, limit to one site id")
	dedupeNow  = flag.Bool("dedupe", false, "Run dedupe pass once and exit")
	rescoreNow = flag.Bool("rescore", false, "Recompute all scores once and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("daemon.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting leadscout...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for id, site := range cfg.Sites {
		log.Printf("  - %s (%s)", site.Name, id)
	}

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	leadService := services.NewLeadService(store)
	scorer := scoring.NewScorer(cfg.Scoring.Weights)
	orchestrator := scraper.NewOrchestrator(cfg, store, leadService)

	// One-shot commands
	switch {
	case *scrapeNow:
		if *scrapeSite != "" {
			log.Printf("Running scrape for %s...", *scrapeSite)
			if err := orchestrator.RunSite(ctx, *scrapeSite); err != nil {
				log.Fatalf("Scrape failed: %v", err)
			}
		} else {
			log.Println("Running scrape...")
			if err := orchestrator.RunAll(ctx); err != nil {
				log.Fatalf("Scrape failed: %v", err)
			}
		}
		log.Println("Scrape complete!")
		return

	case *dedupeNow:
		report, err := dedupe.ScanAndMerge(ctx, store)
		if err != nil {
			log.Fatalf("Dedupe failed: %v", err)
		}
		log.Printf("Dedupe complete: %d duplicates removed", report.Removed)
		return

	case *rescoreNow:
		updated, err := scorer.RescoreAll(ctx, store)
		if err != nil {
			log.Fatalf("Rescore failed: %v", err)
		}
		log.Printf("Rescore complete: %d scores changed", updated)
		return
	}

	// Daemon mode
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dedupeWorker := workers.NewDedupeWorker(store)
	go dedupeWorker.Run(ctx, 0) // fired by the dedupe cron, no ticker
	log.Println("Dedupe worker started")

	rescoreWorker := workers.NewRescoreWorker(scorer, store)
	go rescoreWorker.Run(ctx, cfg.Scheduler.RescoreInterval)
	log.Println("Rescore worker started")

	sched := scheduler.New(&cfg.Scheduler, orchestrator)
	sched.SetDedupeWorker(dedupeWorker)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	cancel()
	log.Println("Goodbye!")
}

// openStore picks the backend: Postgres when DATABASE_URL is set, SQLite
// otherwise.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.DatabaseURL != "" {
		log.Printf("Connecting to Postgres: %s", maskConnectionString(cfg.DatabaseURL))
		return storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	}
	log.Printf("SQLite database: %s", cfg.DBPath)
	return storage.NewSQLiteStore(cfg.DBPath)
}

// maskConnectionString masks the password in a connection string for logging.
func maskConnectionString(connStr string) string {
	schemeEnd := strings.Index(connStr, "://")
	if schemeEnd < 0 {
		return connStr
	}
	rest := connStr[schemeEnd+3:]

	atIdx := strings.Index(rest, "@")
	if atIdx < 0 {
		return connStr
	}
	colonIdx := strings.Index(rest[:atIdx], ":")
	if colonIdx < 0 {
		return connStr
	}
	return connStr[:schemeEnd+3] + rest[:colonIdx+1] + "****" + rest[atIdx:]
}

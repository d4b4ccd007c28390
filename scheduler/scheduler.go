package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"leadscout/config"
	"leadscout/scraper"
)

// Triggerable lets the scheduler fire a background worker on its cron
// schedule without knowing what the worker does.
type Triggerable interface {
	Trigger()
}

// Scheduler owns the daemon's timing: scrape runs on a cron expression or a
// fixed interval, plus the weekly dedupe cron.
type Scheduler struct {
	cfg          *config.SchedulerConfig
	orchestrator *scraper.Orchestrator
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}

	dedupeWorker Triggerable
}

func New(cfg *config.SchedulerConfig, orchestrator *scraper.Orchestrator) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

// SetDedupeWorker registers the worker fired by the dedupe cron entry.
// The rescore worker runs on its own interval and needs no cron.
func (s *Scheduler) SetDedupeWorker(w Triggerable) {
	s.dedupeWorker = w
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.ScrapeCron != "" {
		log.Printf("scheduler: scrape cron %q", s.cfg.ScrapeCron)
		_, err := s.cron.AddFunc(s.cfg.ScrapeCron, func() {
			if err := s.orchestrator.RunAll(ctx); err != nil {
				log.Printf("scheduler: scheduled run error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid scrape cron expression: %w", err)
		}
	} else if s.cfg.ScrapeInterval > 0 {
		log.Printf("scheduler: scrape interval %s", s.cfg.ScrapeInterval)
		s.ticker = time.NewTicker(s.cfg.ScrapeInterval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					if err := s.orchestrator.RunAll(ctx); err != nil {
						log.Printf("scheduler: scheduled run error: %v", err)
					}
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("scheduler: no scrape schedule configured")
	}

	if s.cfg.DedupeCron != "" && s.dedupeWorker != nil {
		log.Printf("scheduler: dedupe cron %q", s.cfg.DedupeCron)
		if _, err := s.cron.AddFunc(s.cfg.DedupeCron, s.dedupeWorker.Trigger); err != nil {
			return fmt.Errorf("invalid dedupe cron expression: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

package workers

import (
	"context"
	"log"
	"time"

	"leadscout/scoring"
	"leadscout/storage"
)

// RescoreWorker periodically recomputes every lead's distress score so weight
// changes and aging days-on-market values propagate without a scrape.
type RescoreWorker struct {
	scorer    *scoring.Scorer
	store     storage.Store
	triggerCh chan struct{}
}

func NewRescoreWorker(scorer *scoring.Scorer, store storage.Store) *RescoreWorker {
	return &RescoreWorker{
		scorer:    scorer,
		store:     store,
		triggerCh: make(chan struct{}, 1),
	}
}

// Trigger causes the worker to rescore immediately.
func (w *RescoreWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *RescoreWorker) Run(ctx context.Context, interval time.Duration) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("rescore worker stopping")
			return
		case <-tick:
			w.runPass(ctx)
		case <-w.triggerCh:
			log.Println("rescore worker triggered")
			w.runPass(ctx)
		}
	}
}

func (w *RescoreWorker) runPass(ctx context.Context) {
	if _, err := w.scorer.RescoreAll(ctx, w.store); err != nil {
		log.Printf("rescore worker: pass failed: %v", err)
	}
}

package workers

import (
	"context"
	"log"
	"time"

	"leadscout/dedupe"
	"leadscout/storage"
)

// DedupeWorker runs the weekly merge pass. The scheduler's cron entry fires
// Trigger; the interval ticker is a backstop for deployments without cron.
type DedupeWorker struct {
	store     storage.Store
	triggerCh chan struct{}
}

func NewDedupeWorker(store storage.Store) *DedupeWorker {
	return &DedupeWorker{
		store:     store,
		triggerCh: make(chan struct{}, 1),
	}
}

// Trigger causes the worker to run a pass immediately.
func (w *DedupeWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the worker loop. A zero interval disables the ticker; the
// worker then only responds to Trigger.
func (w *DedupeWorker) Run(ctx context.Context, interval time.Duration) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("dedupe worker stopping")
			return
		case <-tick:
			w.runPass(ctx)
		case <-w.triggerCh:
			log.Println("dedupe worker triggered")
			w.runPass(ctx)
		}
	}
}

func (w *DedupeWorker) runPass(ctx context.Context) {
	report, err := dedupe.ScanAndMerge(ctx, w.store)
	if err != nil {
		log.Printf("dedupe worker: pass failed: %v", err)
		return
	}
	if report.Removed > 0 {
		log.Printf("dedupe worker: removed %d duplicates", report.Removed)
	}
}

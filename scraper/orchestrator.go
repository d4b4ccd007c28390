package scraper

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"leadscout/config"
	"leadscout/fetch"
	"leadscout/models"
	"leadscout/proxy"
	"leadscout/services"
	"leadscout/storage"
)

// Orchestrator drives scrape runs across every configured site. One proxy
// pool is shared by all HTTP handlers; each site gets its own fetch client so
// per-site rate limits hold. Region and record failures are isolated: they
// are logged against the run and the run keeps going.
type Orchestrator struct {
	cfg      *config.Config
	store    storage.Store
	leads    *services.LeadService
	handlers map[string]Handler
}

func NewOrchestrator(cfg *config.Config, store storage.Store, leads *services.LeadService) *Orchestrator {
	pool := proxy.NewPool(&cfg.Proxy)

	handlers := make(map[string]Handler)
	for id, siteCfg := range cfg.Sites {
		fetchCfg := cfg.Fetch
		if siteCfg.RateLimitMS > 0 {
			fetchCfg.DelayMS = siteCfg.RateLimitMS
		}
		handlers[id] = NewHandler(cfg, siteCfg, fetch.NewClient(&fetchCfg, pool))
	}

	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		leads:    leads,
		handlers: handlers,
	}
}

// RunAll scrapes every configured site in stable order. Site failures are
// logged and do not stop the remaining sites.
func (o *Orchestrator) RunAll(ctx context.Context) error {
	ids := make([]string, 0, len(o.cfg.Sites))
	for id := range o.cfg.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := o.RunSite(ctx, id); err != nil {
			log.Printf("orchestrator: site %s failed: %v", id, err)
		}
	}
	return nil
}

func (o *Orchestrator) RunSite(ctx context.Context, siteID string) error {
	siteCfg, ok := o.cfg.Sites[siteID]
	if !ok {
		return fmt.Errorf("unknown site: %s", siteID)
	}
	handler := o.handlers[siteID]

	run := &models.ScrapeRun{
		RunUID:    uuid.NewString(),
		SiteID:    siteID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	runID, err := o.store.CreateRun(ctx, run)
	if err != nil {
		return err
	}
	run.ID = runID

	o.log(ctx, run, models.LogLevelInfo, fmt.Sprintf("starting scrape for %s (run %s)", siteCfg.Name, run.RunUID))

	regions := siteCfg.Regions
	if len(regions) == 0 {
		regions = []string{""}
	}

	for _, region := range regions {
		if ctx.Err() != nil {
			break
		}

		remaining := 0
		if siteCfg.MaxListings > 0 {
			remaining = siteCfg.MaxListings - run.LeadsFound
			if remaining <= 0 {
				break
			}
		}

		raws, err := handler.Scrape(ctx, region, remaining)
		if err != nil {
			run.ErrorsCount++
			o.log(ctx, run, models.LogLevelError, fmt.Sprintf("region %q failed: %v", region, err))
			continue
		}
		run.LeadsFound += len(raws)

		stats, err := o.leads.SaveRaw(ctx, raws)
		if err != nil {
			run.ErrorsCount++
			o.log(ctx, run, models.LogLevelError, fmt.Sprintf("saving region %q failed: %v", region, err))
			continue
		}
		run.LeadsSaved += stats.Saved
		run.LeadsUpdated += stats.Updated
		run.ErrorsCount += stats.Errors

		o.log(ctx, run, models.LogLevelInfo, fmt.Sprintf("region %q: %d found, %d new, %d updated, %d errors",
			region, len(raws), stats.Saved, stats.Updated, stats.Errors))
	}

	now := time.Now()
	run.FinishedAt = &now
	run.Status = models.RunStatusCompleted
	if run.LeadsFound == 0 && run.ErrorsCount > 0 {
		run.Status = models.RunStatusFailed
	}
	if err := o.store.UpdateRun(ctx, run); err != nil {
		log.Printf("orchestrator: failed to finalize run %d: %v", run.ID, err)
	}

	o.log(ctx, run, models.LogLevelInfo, fmt.Sprintf("scrape finished: %d found, %d new, %d updated, %d errors",
		run.LeadsFound, run.LeadsSaved, run.LeadsUpdated, run.ErrorsCount))
	return nil
}

func (o *Orchestrator) log(ctx context.Context, run *models.ScrapeRun, level models.LogLevel, message string) {
	log.Printf("[%s] %s", run.SiteID, message)
	if err := o.store.Log(ctx, &run.ID, level, message, run.SiteID); err != nil {
		log.Printf("orchestrator: failed to persist log: %v", err)
	}
}

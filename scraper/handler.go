package scraper

import (
	"context"

	"leadscout/config"
	"leadscout/fetch"
	"leadscout/models"
)

// Handler is one scraping strategy for one site. Scrape is best-effort: it
// returns whatever it could extract for the region, and only fails outright
// when the site is unreachable or a precondition (login) fails.
type Handler interface {
	ID() string
	Scrape(ctx context.Context, region string, limit int) ([]models.RawLead, error)
}

func NewHandler(cfg *config.Config, siteCfg *config.SiteConfig, client *fetch.Client) Handler {
	switch siteCfg.Handler {
	case "marketplace":
		return NewMarketplaceHandler(siteCfg, &cfg.Marketplace, cfg.Scoring.Keywords)
	case "records":
		return NewRecordsHandler(siteCfg, client)
	default:
		return NewListingsHandler(siteCfg, client, cfg.Scoring.Keywords)
	}
}

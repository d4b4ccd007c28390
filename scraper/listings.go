package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"leadscout/config"
	"leadscout/fetch"
	"leadscout/models"
)

// Hard cap on search pagination; a site that keeps returning cards past this
// is serving us junk.
const maxSearchPages = 50

// ListingsHandler scrapes FSBO-style listing sites over plain HTTP: a
// paginated search per region, then one detail fetch per card. Extraction is
// best-effort per field; a dead detail page still yields the card-level lead.
type ListingsHandler struct {
	cfg      *config.SiteConfig
	client   *fetch.Client
	keywords []string
}

func NewListingsHandler(cfg *config.SiteConfig, client *fetch.Client, keywords []string) *ListingsHandler {
	return &ListingsHandler{cfg: cfg, client: client, keywords: keywords}
}

func (h *ListingsHandler) ID() string {
	return h.cfg.ID
}

func (h *ListingsHandler) Scrape(ctx context.Context, region string, limit int) ([]models.RawLead, error) {
	var leads []models.RawLead

	for page := 1; page <= maxSearchPages; page++ {
		params := url.Values{
			"zip":  {region},
			"page": {strconv.Itoa(page)},
		}
		result, err := h.client.Fetch(ctx, h.cfg.BaseURL+h.cfg.SearchPath, params)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("search page for %s: %w", region, err)
			}
			log.Printf("%s: search page %d failed, stopping pagination: %v", h.cfg.ID, page, err)
			break
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.Body))
		if err != nil {
			return leads, fmt.Errorf("parsing search page %d: %w", page, err)
		}

		cards := h.parseSearchPage(doc)
		if len(cards) == 0 {
			break
		}

		for _, card := range cards {
			if limit > 0 && len(leads) >= limit {
				return leads, nil
			}

			if card.SourceURL != "" {
				if err := h.scrapeDetail(ctx, &card); err != nil {
					log.Printf("%s: detail fetch for %s failed, keeping card data: %v", h.cfg.ID, card.SourceURL, err)
				}
			}

			card.DistressKeywords = MatchKeywords(card.Description, h.keywords)
			leads = append(leads, card)
		}
	}

	return leads, nil
}

// parseSearchPage extracts one partial RawLead per result card.
func (h *ListingsHandler) parseSearchPage(doc *goquery.Document) []models.RawLead {
	var cards []models.RawLead

	doc.Find(".listing-card, article.property-card, .result-item").Each(func(_ int, s *goquery.Selection) {
		raw := models.RawLead{
			Source: models.SourceListings,
			Status: "active",
		}

		raw.Address = firstText(s, ".address", ".listing-address", "h2 a", "h3 a")
		raw.City = firstText(s, ".city", ".locality")
		raw.State = firstText(s, ".state", ".region")
		raw.Zip = firstText(s, ".zip", ".postal-code")
		raw.Price = parsePrice(firstText(s, ".price", ".listing-price", ".asking-price"))
		raw.Bedrooms = parseIntField(firstText(s, ".beds", ".bedrooms"))
		raw.Bathrooms = parseFloatField(firstText(s, ".baths", ".bathrooms"))
		raw.SquareFeet = parseIntField(firstText(s, ".sqft", ".square-feet"))
		raw.PropertyType = normalizePropertyType(firstText(s, ".property-type", ".type"))

		if href := firstAttr(s, "href", "a.listing-link", "h2 a", "h3 a", "a"); href != "" {
			raw.SourceURL = h.absoluteURL(href)
		}

		if raw.Address == "" && raw.SourceURL == "" {
			return
		}
		cards = append(cards, raw)
	})

	return cards
}

func (h *ListingsHandler) scrapeDetail(ctx context.Context, raw *models.RawLead) error {
	result, err := h.client.Fetch(ctx, raw.SourceURL, nil)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.Body))
	if err != nil {
		return err
	}

	h.parseDetailPage(doc, raw)
	return nil
}

// parseDetailPage fills in what the card did not have. Every field is
// independent: a missing selector leaves the field alone.
func (h *ListingsHandler) parseDetailPage(doc *goquery.Document, raw *models.RawLead) {
	root := doc.Selection

	if desc := firstText(root, ".description", ".listing-description", "#description", ".remarks"); desc != "" {
		raw.Description = desc
	}
	if raw.Address == "" {
		raw.Address = firstText(root, ".address", "h1.listing-address", "h1")
	}
	if raw.City == "" {
		raw.City = firstText(root, ".city", ".locality")
	}
	if raw.State == "" {
		raw.State = firstText(root, ".state", ".region")
	}
	if raw.Zip == "" {
		raw.Zip = firstText(root, ".zip", ".postal-code")
	}
	if raw.Price == nil {
		raw.Price = parsePrice(firstText(root, ".price", ".asking-price"))
	}
	if raw.Bedrooms == nil {
		raw.Bedrooms = parseIntField(firstText(root, ".beds", ".bedrooms"))
	}
	if raw.Bathrooms == nil {
		raw.Bathrooms = parseFloatField(firstText(root, ".baths", ".bathrooms"))
	}
	if raw.SquareFeet == nil {
		raw.SquareFeet = parseIntField(firstText(root, ".sqft", ".square-feet"))
	}
	raw.LotSize = parseFloatField(firstText(root, ".lot-size", ".lot"))
	raw.YearBuilt = parseIntField(firstText(root, ".year-built", ".built"))
	raw.DaysOnMarket = parseIntField(firstText(root, ".days-on-market", ".dom", ".listed-days"))

	if raw.PropertyType == "" || raw.PropertyType == "unknown" {
		if pt := normalizePropertyType(firstText(root, ".property-type", ".type")); pt != "unknown" {
			raw.PropertyType = pt
		}
	}

	if dateText := firstText(root, ".listing-date", ".listed-on", "time"); dateText != "" {
		if t, ok := parseListingDate(dateText); ok {
			raw.ListingDate = t
		}
	}

	// Price reduction: an explicit old-price element, or reduction language
	// in the description.
	if oldPrice := parsePrice(firstText(root, ".original-price", ".old-price", "del")); oldPrice != nil {
		raw.PriceReduced = true
		if raw.Price != nil && *oldPrice > *raw.Price {
			diff := *oldPrice - *raw.Price
			raw.PriceReductionAmount = &diff
		}
	} else if containsAny(raw.Description, "price reduced", "reduced price", "price drop", "price cut") {
		raw.PriceReduced = true
	}

	// FSBO pages usually carry the seller's own contact details.
	raw.OwnerName = firstText(root, ".seller-name", ".contact-name", ".owner-name")
	raw.OwnerPhone = firstText(root, ".seller-phone", ".contact-phone", "a[href^='tel:']")
	raw.OwnerEmail = strings.TrimPrefix(firstAttr(root, "href", "a[href^='mailto:']"), "mailto:")
}

func (h *ListingsHandler) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(h.cfg.BaseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

var listingDateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"01/02/2006",
	"2006-01-02",
}

func parseListingDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(text, "Listed on"), "Listed"))
	text = strings.TrimSpace(text)
	for _, layout := range listingDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

package scraper

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"leadscout/config"
	"leadscout/models"
)

const maxScrollRounds = 15

// MarketplaceHandler scrapes the authenticated marketplace with a real
// browser. The marketplace renders everything client-side and gates listings
// behind login, so plain HTTP is useless here. Sessions persist across runs
// via the browser profile dir; login only happens when the session expired.
type MarketplaceHandler struct {
	cfg      *config.SiteConfig
	creds    *config.MarketplaceConfig
	keywords []string

	mu          sync.Mutex
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	activePage  playwright.Page
	initialized bool
}

func NewMarketplaceHandler(cfg *config.SiteConfig, creds *config.MarketplaceConfig, keywords []string) *MarketplaceHandler {
	return &MarketplaceHandler{cfg: cfg, creds: creds, keywords: keywords}
}

func (h *MarketplaceHandler) ID() string {
	return h.cfg.ID
}

func (h *MarketplaceHandler) Scrape(ctx context.Context, region string, limit int) ([]models.RawLead, error) {
	if err := h.ensureBrowser(); err != nil {
		return nil, err
	}
	defer h.Close()

	if err := h.login(); err != nil {
		return nil, fmt.Errorf("marketplace login: %w", err)
	}

	links, err := h.collectItemLinks(ctx, region, limit)
	if err != nil {
		return nil, err
	}
	log.Printf("%s: %d items found for %s", h.cfg.ID, len(links), region)

	var leads []models.RawLead
	for _, link := range links {
		if ctx.Err() != nil {
			return leads, ctx.Err()
		}

		raw, err := h.scrapeItem(link)
		if err != nil {
			log.Printf("%s: item %s failed, skipping: %v", h.cfg.ID, link, err)
			continue
		}
		leads = append(leads, raw)
		h.humanDelay(2000, 5000)
	}

	return leads, nil
}

func (h *MarketplaceHandler) ensureBrowser() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}

	var err error
	h.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("starting playwright: %w", err)
	}

	cwd, _ := os.Getwd()
	userDataDir := filepath.Join(cwd, "browser_data")
	h.context, err = h.pw.Chromium.LaunchPersistentContext(userDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		h.pw.Stop()
		return fmt.Errorf("launching browser: %w", err)
	}

	h.initialized = true
	return nil
}

func (h *MarketplaceHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.activePage != nil {
		h.activePage.Close()
		h.activePage = nil
	}
	if h.context != nil {
		h.context.Close()
		h.context = nil
	}
	if h.pw != nil {
		h.pw.Stop()
		h.pw = nil
	}
	h.initialized = false
}

// login navigates to the site and authenticates unless the persisted session
// is still valid. Any failure here aborts the whole run: scraping logged-out
// yields garbage.
func (h *MarketplaceHandler) login() error {
	page, err := h.context.NewPage()
	if err != nil {
		return err
	}
	h.activePage = page

	if _, err := page.Goto(h.cfg.BaseURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return err
	}
	h.humanDelay(2000, 4000)
	h.dismissPopups()

	if h.loggedIn() {
		log.Printf("%s: session still valid, skipping login", h.cfg.ID)
		return nil
	}

	emailInput := page.Locator("input[name='email'], input#email").First()
	passInput := page.Locator("input[name='pass'], input[type='password']").First()
	if visible, _ := emailInput.IsVisible(); !visible {
		return fmt.Errorf("login form not found")
	}

	if err := emailInput.Fill(h.creds.Email); err != nil {
		return err
	}
	h.humanDelay(400, 900)
	if err := passInput.Fill(h.creds.Password); err != nil {
		return err
	}
	h.humanDelay(400, 900)

	loginBtn := page.Locator("button[name='login'], button[type='submit']").First()
	if err := loginBtn.Click(); err != nil {
		return err
	}
	h.humanDelay(4000, 7000)

	if !h.loggedIn() {
		return fmt.Errorf("credentials rejected")
	}
	return nil
}

func (h *MarketplaceHandler) loggedIn() bool {
	for _, sel := range []string{"[aria-label='Your profile']", "a[href*='logout']", ".user-menu"} {
		if visible, _ := h.activePage.Locator(sel).First().IsVisible(); visible {
			return true
		}
	}
	return false
}

// collectItemLinks scrolls the region's search results, harvesting item URLs
// until no new ones appear or the limit is reached.
func (h *MarketplaceHandler) collectItemLinks(ctx context.Context, region string, limit int) ([]string, error) {
	searchURL := fmt.Sprintf("%s%s?%s", h.cfg.BaseURL, h.cfg.SearchPath,
		url.Values{"query": {region}, "category": {"propertyforsale"}}.Encode())

	if _, err := h.activePage.Goto(searchURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return nil, err
	}
	h.humanDelay(3000, 5000)
	h.dismissPopups()

	seen := make(map[string]bool)
	var links []string

	for round := 0; round < maxScrollRounds; round++ {
		if ctx.Err() != nil {
			return links, ctx.Err()
		}

		hrefs, err := h.activePage.Locator("a[href*='/item/'], a[href*='/listing/']").All()
		if err != nil {
			return links, err
		}

		added := 0
		for _, loc := range hrefs {
			href, err := loc.GetAttribute("href")
			if err != nil || href == "" {
				continue
			}
			abs := h.absoluteURL(href)
			if seen[abs] {
				continue
			}
			seen[abs] = true
			links = append(links, abs)
			added++
			if limit > 0 && len(links) >= limit {
				return links, nil
			}
		}
		if added == 0 && round > 0 {
			break
		}

		h.activePage.Evaluate(`window.scrollBy(0, window.innerHeight * 2)`)
		h.humanDelay(1500, 3000)
		h.simulateHumanBehavior()
	}

	return links, nil
}

func (h *MarketplaceHandler) scrapeItem(itemURL string) (models.RawLead, error) {
	raw := models.RawLead{
		Source:    models.SourceMarketplace,
		SourceURL: itemURL,
		Status:    "active",
	}

	page := h.activePage
	if _, err := page.Goto(itemURL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(45000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return raw, err
	}
	h.humanDelay(2000, 4000)
	h.dismissPopups()

	raw.Address = h.textOf("[data-testid='item-address']", ".item-address", "h1")
	raw.Price = parsePrice(h.textOf("[data-testid='item-price']", ".item-price", "span.price"))
	raw.Description = h.textOf("[data-testid='item-description']", ".item-description", ".description")
	raw.OwnerName = h.textOf("[data-testid='seller-name']", ".seller-name")

	if raw.Address == "" {
		return raw, fmt.Errorf("no address on item page")
	}

	// Marketplace items rarely have structured fields; mine the free text.
	mineDescription(raw.Description, &raw)
	raw.DistressKeywords = MatchKeywords(raw.Description, h.keywords)

	return raw, nil
}

func (h *MarketplaceHandler) textOf(selectors ...string) string {
	for _, sel := range selectors {
		loc := h.activePage.Locator(sel).First()
		if visible, _ := loc.IsVisible(); !visible {
			continue
		}
		if text, err := loc.TextContent(); err == nil {
			if text = strings.TrimSpace(text); text != "" {
				return text
			}
		}
	}
	return ""
}

func (h *MarketplaceHandler) dismissPopups() {
	for _, sel := range []string{
		"[aria-label='Close']",
		"button:has-text('Not now')",
		"button:has-text('Decline optional cookies')",
	} {
		btn := h.activePage.Locator(sel).First()
		if visible, _ := btn.IsVisible(); visible {
			btn.Click()
			h.humanDelay(300, 700)
		}
	}
}

func (h *MarketplaceHandler) simulateHumanBehavior() {
	page := h.activePage
	page.Mouse().Move(float64(300+rand.Intn(400)), float64(200+rand.Intn(300)))
	page.WaitForTimeout(float64(200 + rand.Intn(300)))
	page.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, 100+rand.Intn(300)))
}

func (h *MarketplaceHandler) humanDelay(minMs, maxMs int) {
	time.Sleep(time.Duration(minMs+rand.Intn(maxMs-minMs)) * time.Millisecond)
}

func (h *MarketplaceHandler) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return strings.TrimSuffix(h.cfg.BaseURL, "/") + href
}

var (
	bedsRe = regexp.MustCompile(`(?i)(\d+)\s*(?:bd|bed|bedroom)`)
	bathRe = regexp.MustCompile(`(?i)(\d+(?:\.\d)?)\s*(?:ba|bath|bathroom)`)
	sqftRe = regexp.MustCompile(`(?i)([\d,]{3,})\s*(?:sq\.?\s?ft|sqft|square feet)`)
)

// mineDescription pulls beds/baths/sqft out of free-form listing text, only
// filling fields that are still empty.
func mineDescription(text string, raw *models.RawLead) {
	if raw.Bedrooms == nil {
		if m := bedsRe.FindStringSubmatch(text); m != nil {
			raw.Bedrooms = parseIntField(m[1])
		}
	}
	if raw.Bathrooms == nil {
		if m := bathRe.FindStringSubmatch(text); m != nil {
			raw.Bathrooms = parseFloatField(m[1])
		}
	}
	if raw.SquareFeet == nil {
		if m := sqftRe.FindStringSubmatch(text); m != nil {
			raw.SquareFeet = parseIntField(m[1])
		}
	}
}

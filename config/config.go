package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL string
	DBPath      string
	LogLevel    string
	Marketplace MarketplaceConfig
	Proxy       ProxyConfig
	Fetch       FetchConfig
	Scheduler   SchedulerConfig
	Scoring     ScoringConfig
	Sites       map[string]*SiteConfig
}

// MarketplaceConfig holds login credentials for the authenticated
// marketplace source. Required only when a marketplace site is configured.
type MarketplaceConfig struct {
	Email    string
	Password string
}

type ProxyConfig struct {
	List              []string
	File              string
	WebshareAPIKey    string
	ProxyScrapeAPIKey string
	ProbeURL          string
	RefreshInterval   time.Duration
	MaxFailures       int
	MinPool           int
}

type FetchConfig struct {
	MaxRetries            int
	RetryDelayMin         time.Duration
	RetryDelayMax         time.Duration
	CooldownMin           time.Duration
	CooldownMax           time.Duration
	PacingEvery           int
	PacingDelayMin        time.Duration
	PacingDelayMax        time.Duration
	MaxRequestsPerSession int
	SessionCooldown       time.Duration
	Timeout               time.Duration
	DelayMS               int
}

type SchedulerConfig struct {
	ScrapeCron      string
	ScrapeInterval  time.Duration
	DedupeCron      string
	RescoreInterval time.Duration
}

type ScoringConfig struct {
	Weights  map[string]int `yaml:"weights"`
	Keywords []string       `yaml:"keywords"`
}

type SiteConfig struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Handler     string         `yaml:"handler"`
	BaseURL     string         `yaml:"base_url"`
	SearchPath  string         `yaml:"search_path"`
	RateLimitMS int            `yaml:"rate_limit_ms"`
	MaxListings int            `yaml:"max_listings"`
	Regions     []string       `yaml:"regions"`
	Sources     []RecordSource `yaml:"sources"`
}

// RecordSource describes one public-records feed: either an HTML page with a
// table or a downloadable CSV, plus the columns to pull and the distress flag
// the feed implies.
type RecordSource struct {
	URL          string `yaml:"url"`
	Format       string `yaml:"format"` // html_table or csv
	AddressCol   string `yaml:"address_col"`
	OwnerCol     string `yaml:"owner_col"`
	DistressType string `yaml:"distress_type"`
	MaxRows      int    `yaml:"max_rows"`
}

// DefaultWeights is the per-signal weight table; each entry is overridable
// via config/scoring.yaml.
var DefaultWeights = map[string]int{
	"foreclosure":     100,
	"probate":         90,
	"tax_delinquent":  80,
	"code_violations": 60,
	"vacant":          40,
	"days_on_market":  30,
	"absentee_owner":  30,
	"price_reduced":   20,
}

// DefaultKeywords flag distressed listings from description text.
var DefaultKeywords = []string{
	"foreclosure",
	"bank owned",
	"reo",
	"short sale",
	"as-is",
	"fixer",
	"needs work",
	"handyman",
	"distressed",
	"estate sale",
	"probate",
	"must sell",
	"motivated",
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBPath:      getEnv("DB_PATH", "leads.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Marketplace: MarketplaceConfig{
			Email:    os.Getenv("MARKETPLACE_EMAIL"),
			Password: os.Getenv("MARKETPLACE_PASSWORD"),
		},
		Proxy: ProxyConfig{
			File:              getEnv("PROXY_FILE", "proxies.txt"),
			WebshareAPIKey:    os.Getenv("WEBSHARE_API_KEY"),
			ProxyScrapeAPIKey: os.Getenv("PROXYSCRAPE_API_KEY"),
			ProbeURL:          getEnv("PROXY_PROBE_URL", "http://httpbin.org/ip"),
			RefreshInterval:   getEnvDuration("PROXY_REFRESH_INTERVAL", time.Hour),
			MaxFailures:       getEnvInt("PROXY_MAX_FAILURES", 3),
			MinPool:           getEnvInt("PROXY_MIN_POOL", 5),
		},
		Fetch: FetchConfig{
			MaxRetries:            getEnvInt("FETCH_MAX_RETRIES", 3),
			RetryDelayMin:         2 * time.Second,
			RetryDelayMax:         5 * time.Second,
			CooldownMin:           5 * time.Second,
			CooldownMax:           10 * time.Second,
			PacingEvery:           getEnvInt("FETCH_PACING_EVERY", 50),
			PacingDelayMin:        5 * time.Second,
			PacingDelayMax:        10 * time.Second,
			MaxRequestsPerSession: getEnvInt("MAX_REQUESTS_PER_SESSION", 500),
			SessionCooldown:       getEnvDuration("SESSION_COOLDOWN", 5*time.Minute),
			Timeout:               getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
			DelayMS:               getEnvInt("SCRAPE_DELAY_MS", 500),
		},
		Scheduler: SchedulerConfig{
			ScrapeCron:      os.Getenv("SCRAPE_CRON"),
			ScrapeInterval:  getEnvDuration("SCRAPE_INTERVAL", 0),
			DedupeCron:      getEnv("DEDUPE_CRON", "0 2 * * 0"),
			RescoreInterval: getEnvDuration("RESCORE_INTERVAL", 24*time.Hour),
		},
		Scoring: ScoringConfig{
			Weights:  copyWeights(DefaultWeights),
			Keywords: append([]string(nil), DefaultKeywords...),
		},
		Sites: make(map[string]*SiteConfig),
	}

	if list := os.Getenv("PROXY_LIST"); list != "" {
		for _, p := range strings.Split(list, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Proxy.List = append(cfg.Proxy.List, p)
			}
		}
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}
	if err := cfg.loadScoringOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	configDir := "config/sites"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(configDir, entry.Name()))
		if err != nil {
			return err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return fmt.Errorf("site config %s: %w", entry.Name(), err)
		}
		if site.ID == "" {
			return fmt.Errorf("site config %s: missing id", entry.Name())
		}

		c.Sites[site.ID] = &site
	}

	return nil
}

func (c *Config) loadScoringOverrides() error {
	data, err := os.ReadFile("config/scoring.yaml")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var override ScoringConfig
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("scoring config: %w", err)
	}

	for signal, weight := range override.Weights {
		c.Scoring.Weights[signal] = weight
	}
	if len(override.Keywords) > 0 {
		c.Scoring.Keywords = override.Keywords
	}
	return nil
}

// validate fails fast on missing credentials so no run starts half-configured.
func (c *Config) validate() error {
	for id, site := range c.Sites {
		switch site.Handler {
		case "listings", "records", "":
		case "marketplace":
			if c.Marketplace.Email == "" || c.Marketplace.Password == "" {
				return fmt.Errorf("site %s requires MARKETPLACE_EMAIL and MARKETPLACE_PASSWORD", id)
			}
		default:
			return fmt.Errorf("site %s: unknown handler %q", id, site.Handler)
		}
		if site.Handler == "records" && len(site.Sources) == 0 {
			return fmt.Errorf("site %s: records handler needs at least one source", id)
		}
	}
	return nil
}

func copyWeights(w map[string]int) map[string]int {
	out := make(map[string]int, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

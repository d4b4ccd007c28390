package proxy

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"leadscout/config"
)

var ErrNoProxies = errors.New("no proxies available")

// Pool manages the rotating outbound proxy set. Proxies come from three
// places: a static list, a proxies file, and provider APIs. Static entries
// are admitted as-is; provider-loaded entries must pass a liveness probe
// first. A proxy that fails MaxFailures times is blacklisted until the whole
// pool is exhausted, at which point the blacklist is cleared and everything
// is retried so callers are never starved.
// At most this many unknown provider proxies are probed per refresh, so one
// huge provider response cannot turn a refresh into a minutes-long probe run.
const maxProbesPerRefresh = 20

type Pool struct {
	cfg    *config.ProxyConfig
	client *http.Client // direct client for provider APIs

	// load and probe default to the provider chain and the live probe;
	// swappable so tests can stand in for the network.
	load  func() []string
	probe func(proxy string) bool

	refreshMu sync.Mutex // serializes refreshes, held without mu

	mu          sync.Mutex
	proxies     []string
	failures    map[string]int
	blacklisted map[string]bool
	lastRefresh time.Time
}

func NewPool(cfg *config.ProxyConfig) *Pool {
	p := &Pool{
		cfg:         cfg,
		client:      &http.Client{Timeout: 15 * time.Second},
		failures:    make(map[string]int),
		blacklisted: make(map[string]bool),
		lastRefresh: time.Now(),
	}
	p.load = p.providerProxies
	p.probe = p.probeProxy

	for _, proxy := range cfg.List {
		p.proxies = append(p.proxies, proxy)
	}
	p.loadFile()

	return p
}

// Get returns a random working proxy, refreshing from providers when the
// pool is empty, stale, or below the low-water mark. Returns ErrNoProxies
// only when nothing can be loaded at all.
func (p *Pool) Get() (string, error) {
	p.mu.Lock()
	p.evictFailed()
	stale := time.Since(p.lastRefresh) > p.cfg.RefreshInterval
	low := len(p.active()) < p.cfg.MinPool
	p.mu.Unlock()

	if stale || low {
		p.refresh()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return "", ErrNoProxies
	}

	active := p.active()
	if len(active) == 0 {
		// Everything is blacklisted; clear and retry the full pool rather
		// than starving the caller.
		log.Println("proxy: all proxies blacklisted, clearing blacklist")
		p.blacklisted = make(map[string]bool)
		p.failures = make(map[string]int)
		active = p.active()
	}

	return active[rand.Intn(len(active))], nil
}

// ReportFailure increments the proxy's failure count. Crossing the threshold
// removes it from rotation on the next Get.
func (p *Pool) ReportFailure(proxy string) {
	if proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[proxy]++
	log.Printf("proxy: failure reported for %s (%d/%d)", proxy, p.failures[proxy], p.cfg.MaxFailures)
}

// ReportSuccess clears the proxy's failure count and un-blacklists it.
func (p *Pool) ReportSuccess(proxy string) {
	if proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failures, proxy)
	if p.blacklisted[proxy] {
		delete(p.blacklisted, proxy)
		log.Printf("proxy: %s removed from blacklist", proxy)
	}
}

// Size reports the number of proxies currently in rotation.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active())
}

// active returns proxies not currently blacklisted. Caller holds the lock.
func (p *Pool) active() []string {
	var out []string
	for _, proxy := range p.proxies {
		if !p.blacklisted[proxy] {
			out = append(out, proxy)
		}
	}
	return out
}

// evictFailed blacklists proxies over the failure threshold. Caller holds
// the lock.
func (p *Pool) evictFailed() {
	for proxy, count := range p.failures {
		if count >= p.cfg.MaxFailures && !p.blacklisted[proxy] {
			p.blacklisted[proxy] = true
			log.Printf("proxy: blacklisted %s after %d failures", proxy, count)
		}
	}
}

// refresh loads proxies from the configured providers, probing each before
// admission. Provider or probe failures are logged and skipped, never raised.
// Provider calls and probes run without the pool lock so Get and the report
// methods stay responsive during a slow refresh; a refresh already in flight
// on another goroutine is not waited for.
func (p *Pool) refresh() {
	if !p.refreshMu.TryLock() {
		return
	}
	defer p.refreshMu.Unlock()

	p.mu.Lock()
	p.lastRefresh = time.Now()
	known := make(map[string]bool, len(p.proxies))
	for _, proxy := range p.proxies {
		known[proxy] = true
	}
	p.mu.Unlock()

	loaded := p.load()
	if len(loaded) == 0 {
		return
	}

	var admitted []string
	probed := 0
	for _, proxy := range loaded {
		if known[proxy] {
			continue
		}
		if probed >= maxProbesPerRefresh {
			break
		}
		probed++
		if !p.probe(proxy) {
			log.Printf("proxy: skipping dead proxy %s", proxy)
			continue
		}
		known[proxy] = true
		admitted = append(admitted, proxy)
	}

	p.mu.Lock()
	p.proxies = append(p.proxies, admitted...)
	p.mu.Unlock()
	log.Printf("proxy: refresh admitted %d of %d provider proxies", len(admitted), len(loaded))
}

func (p *Pool) providerProxies() []string {
	var loaded []string
	if p.cfg.WebshareAPIKey != "" {
		loaded = append(loaded, p.loadWebshare()...)
	}
	if p.cfg.ProxyScrapeAPIKey != "" {
		loaded = append(loaded, p.loadProxyScrape()...)
	}
	return loaded
}

// probeProxy makes a test request through the proxy to confirm it is alive.
func (p *Pool) probeProxy(proxy string) bool {
	proxyURL, err := url.Parse(proxy)
	if err != nil {
		return false
	}
	client := &http.Client{
		Timeout:   10 * time.Second,
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
	}
	resp, err := client.Get(p.cfg.ProbeURL)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *Pool) loadFile() {
	if p.cfg.File == "" {
		return
	}
	f, err := os.Open(p.cfg.File)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			p.proxies = append(p.proxies, line)
		}
	}
}

func (p *Pool) loadWebshare() []string {
	req, err := http.NewRequest("GET", "https://proxy.webshare.io/api/proxy/list/", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Authorization", "Token "+p.cfg.WebshareAPIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		log.Printf("proxy: webshare load failed: %v", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("proxy: webshare returned %d", resp.StatusCode)
		return nil
	}

	var result struct {
		Results []struct {
			Username     string `json:"username"`
			Password     string `json:"password"`
			ProxyAddress string `json:"proxy_address"`
			Ports        struct {
				HTTP int `json:"http"`
			} `json:"ports"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("proxy: webshare decode failed: %v", err)
		return nil
	}

	var proxies []string
	for _, r := range result.Results {
		proxies = append(proxies, fmt.Sprintf("http://%s:%s@%s:%d", r.Username, r.Password, r.ProxyAddress, r.Ports.HTTP))
	}
	return proxies
}

func (p *Pool) loadProxyScrape() []string {
	endpoint := "https://api.proxyscrape.com/v2/?request=getproxies&protocol=http&timeout=10000&format=json&authorization=" + url.QueryEscape(p.cfg.ProxyScrapeAPIKey)

	resp, err := p.client.Get(endpoint)
	if err != nil {
		log.Printf("proxy: proxyscrape load failed: %v", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("proxy: proxyscrape returned %d", resp.StatusCode)
		return nil
	}

	var result struct {
		Proxies []struct {
			IP   string `json:"ip"`
			Port string `json:"port"`
		} `json:"proxies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("proxy: proxyscrape decode failed: %v", err)
		return nil
	}

	var proxies []string
	for _, r := range result.Proxies {
		proxies = append(proxies, fmt.Sprintf("http://%s:%s", r.IP, r.Port))
	}
	return proxies
}

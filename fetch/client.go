package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"leadscout/config"
	"leadscout/proxy"
)

// ErrExhausted means every retry failed. Callers treat it as "skip this
// item", never "abort the run".
var ErrExhausted = errors.New("retries exhausted")

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-US,en;q=0.5",
	"en-GB,en;q=0.8,en-US;q=0.6",
}

type Result struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Client issues rate-limited, retried HTTP requests with randomized headers
// and anti-detection pacing. A 403/429 triggers a longer cooldown and a proxy
// failure report. A running counter adds an extra delay every PacingEvery
// requests and a full session cooldown once MaxRequestsPerSession is reached,
// capping sustained load on any one target regardless of caller behavior.
type Client struct {
	cfg     *config.FetchConfig
	pool    *proxy.Pool
	limiter *rate.Limiter

	requestCount int
}

// NewClient builds a client; pool may be nil for direct connections.
func NewClient(cfg *config.FetchConfig, pool *proxy.Pool) *Client {
	limit := rate.Inf
	if cfg.DelayMS > 0 {
		limit = rate.Every(time.Duration(cfg.DelayMS) * time.Millisecond)
	}
	return &Client{
		cfg:     cfg,
		pool:    pool,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Fetch GETs the URL with the given query params. It retries up to
// MaxRetries times and returns ErrExhausted when all attempts fail.
func (c *Client) Fetch(ctx context.Context, rawURL string, params url.Values) (*Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	target := rawURL
	if len(params) > 0 {
		target = rawURL + "?" + params.Encode()
	}

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		result, retryAfter, err := c.attempt(ctx, target)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		log.Printf("fetch: attempt %d/%d for %s failed: %v", attempt, c.cfg.MaxRetries, rawURL, err)

		// No sleep after the last attempt; a cooldown with no retry behind
		// it would only stall the caller.
		if attempt < c.cfg.MaxRetries {
			delay := retryAfter
			if delay == 0 {
				delay = randDuration(c.cfg.RetryDelayMin, c.cfg.RetryDelayMax)
			}
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("%s: %w", rawURL, ErrExhausted)
}

// attempt performs one request. retryAfter is nonzero when the response was
// an anti-bot rejection that warrants a longer cooldown before the next try.
func (c *Client) attempt(ctx context.Context, target string) (*Result, time.Duration, error) {
	var proxyStr string
	if c.pool != nil {
		if p, err := c.pool.Get(); err == nil {
			proxyStr = p
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", acceptLanguages[rand.Intn(len(acceptLanguages))])
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("DNT", "1")

	resp, err := c.httpClient(proxyStr).Do(req)
	if err != nil {
		c.reportFailure(proxyStr)
		return nil, 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			c.reportFailure(proxyStr)
			return nil, 0, err
		}
		c.reportSuccess(proxyStr)
		return &Result{StatusCode: resp.StatusCode, Body: body, Header: resp.Header}, 0, nil

	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		c.reportFailure(proxyStr)
		cooldown := randDuration(c.cfg.CooldownMin, c.cfg.CooldownMax)
		return nil, cooldown, fmt.Errorf("blocked with status %d", resp.StatusCode)

	default:
		c.reportFailure(proxyStr)
		return nil, 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

// pace enforces the request-count thresholds: an extra randomized delay every
// PacingEvery requests and a full session cooldown with counter reset at
// MaxRequestsPerSession. The cooldown is a deliberate bounded stall.
func (c *Client) pace(ctx context.Context) error {
	c.requestCount++

	if c.cfg.MaxRequestsPerSession > 0 && c.requestCount >= c.cfg.MaxRequestsPerSession {
		log.Printf("fetch: reached %d requests, cooling down for %s", c.requestCount, c.cfg.SessionCooldown)
		c.requestCount = 0
		return sleep(ctx, c.cfg.SessionCooldown)
	}

	if c.cfg.PacingEvery > 0 && c.requestCount%c.cfg.PacingEvery == 0 {
		delay := randDuration(c.cfg.PacingDelayMin, c.cfg.PacingDelayMax)
		log.Printf("fetch: pacing delay of %s after %d requests", delay, c.requestCount)
		return sleep(ctx, delay)
	}

	return nil
}

func (c *Client) httpClient(proxyStr string) *http.Client {
	transport := &http.Transport{}
	if proxyStr != "" {
		if proxyURL, err := url.Parse(proxyStr); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &http.Client{
		Timeout:   c.cfg.Timeout,
		Transport: transport,
	}
}

func (c *Client) reportSuccess(proxyStr string) {
	if c.pool != nil && proxyStr != "" {
		c.pool.ReportSuccess(proxyStr)
	}
}

func (c *Client) reportFailure(proxyStr string) {
	if c.pool != nil && proxyStr != "" {
		c.pool.ReportFailure(proxyStr)
	}
}

func randDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"leadscout/config"
)

func fastConfig() *config.FetchConfig {
	return &config.FetchConfig{
		MaxRetries:            3,
		RetryDelayMin:         time.Millisecond,
		RetryDelayMax:         2 * time.Millisecond,
		CooldownMin:           time.Millisecond,
		CooldownMax:           2 * time.Millisecond,
		PacingEvery:           0,
		MaxRequestsPerSession: 0,
		Timeout:               5 * time.Second,
		DelayMS:               0,
	}
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent header")
		}
		if r.Header.Get("Accept-Language") == "" {
			t.Error("missing Accept-Language header")
		}
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	client := NewClient(fastConfig(), nil)
	result, err := client.Fetch(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Body) != "hello" {
		t.Fatalf("unexpected body %q", result.Body)
	}
}

func TestFetchExhaustsRetriesOn429(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(fastConfig(), nil)
	_, err := client.Fetch(context.Background(), srv.URL, nil)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}

func TestFetchRecoversMidRetry(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewClient(fastConfig(), nil)
	result, err := client.Fetch(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result.Body) != "ok" {
		t.Fatalf("unexpected body %q", result.Body)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestFetchNoCooldownAfterFinalAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.MaxRetries = 1
	cfg.CooldownMin = 2 * time.Second
	cfg.CooldownMax = 3 * time.Second

	client := NewClient(cfg, nil)
	start := time.Now()
	_, err := client.Fetch(context.Background(), srv.URL, nil)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("final blocked attempt slept %s before giving up", elapsed)
	}
}

func TestFetchQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("zip"); got != "90210" {
			t.Errorf("expected zip=90210, got %q", got)
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewClient(fastConfig(), nil)
	params := url.Values{"zip": {"90210"}}
	if _, err := client.Fetch(context.Background(), srv.URL, params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFetchCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(fastConfig(), nil)
	if _, err := client.Fetch(ctx, srv.URL, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

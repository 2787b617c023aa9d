package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	// SiteURL is the root of the ingredient site being crawled.
	SiteURL string
	// APIKey authenticates against the external render service. A run cannot
	// start without it.
	APIKey string
	// APIBaseURL overrides the render service endpoint, mainly for tests.
	APIBaseURL string

	// PageDelay paces brand-index page fetches, BrandDelay paces per-brand
	// product scans, ProductDelay paces product scrapes. Product scraping is
	// the most expensive upstream call, so it gets the largest delay.
	PageDelay    time.Duration
	BrandDelay   time.Duration
	ProductDelay time.Duration
	// PausePoll is how often a paused run re-checks its flags.
	PausePoll time.Duration

	// FetchTimeout bounds one render-service call.
	FetchTimeout time.Duration
	// SettleDelay is the hint passed upstream so client-side rendering can
	// finish before capture.
	SettleDelay time.Duration

	// ProductLimitPerPage caps how many products are scraped per index page,
	// split evenly across the page's brands. Zero means no cap.
	ProductLimitPerPage int
	// AutoPaginate stops at the first empty index page instead of honouring
	// an explicit end offset.
	AutoPaginate bool
	// MaxAutoPages bounds the auto-paginate mode.
	MaxAutoPages int

	// LocalFallback enables a direct HTTP fetcher behind the render service.
	LocalFallback bool
	UserAgent     string

	// SeenCacheSize bounds the cross-brand product URL dedup cache.
	SeenCacheSize int

	OutputDir   string
	MetricsAddr string
	ListenAddr  string
	Verbose     bool
}

// DefaultConfig returns conservative defaults for the source site.
func DefaultConfig() *Config {
	return &Config{
		SiteURL:       "https://incidecoder.com",
		PageDelay:     300 * time.Millisecond,
		BrandDelay:    500 * time.Millisecond,
		ProductDelay:  1 * time.Second,
		PausePoll:     200 * time.Millisecond,
		FetchTimeout:  60 * time.Second,
		SettleDelay:   3 * time.Second,
		MaxAutoPages:  200,
		UserAgent:     "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		SeenCacheSize: 8192,
		OutputDir:     "output",
		ListenAddr:    ":8080",
	}
}

// Validate ensures all configuration values are coherent. It does not check
// the API key: a missing credential is a run-start error, not a config shape
// error, so embedders can build a Config before the secret is available.
func (c *Config) Validate() error {
	if c.SiteURL == "" {
		return fmt.Errorf("site URL cannot be empty")
	}
	parsed, err := url.Parse(c.SiteURL)
	if err != nil {
		return fmt.Errorf("invalid site URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("site URL must include a host")
	}
	if c.PageDelay < 0 || c.BrandDelay < 0 || c.ProductDelay < 0 {
		return fmt.Errorf("delays cannot be negative")
	}
	if c.PausePoll <= 0 {
		return fmt.Errorf("pause poll interval must be positive")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle delay cannot be negative")
	}
	if c.ProductLimitPerPage < 0 {
		return fmt.Errorf("product limit cannot be negative")
	}
	if c.MaxAutoPages <= 0 {
		return fmt.Errorf("max auto pages must be positive")
	}
	if c.SeenCacheSize <= 0 {
		return fmt.Errorf("seen cache size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	return nil
}

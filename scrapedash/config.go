package scrapedash

import (
	"time"

	"github.com/hazyhaar/scrapedash/internal/fetch"
)

// Config configures the Service.
type Config struct {
	// Fetch configures the HTTP fetcher.
	Fetch fetch.Config
	// ScrapeTimeout bounds one whole scrape run (fetch + extract + store).
	// Default: the fetch timeout plus 20s, so the run deadline can never
	// undercut a configured slow fetch.
	ScrapeTimeout time.Duration
}

func defaultConfig() *Config {
	return &Config{}
}

func (c *Config) defaults() {
	if c.ScrapeTimeout <= 0 {
		ft := c.Fetch.Timeout
		if ft <= 0 {
			ft = 10 * time.Second
		}
		c.ScrapeTimeout = ft + 20*time.Second
	}
}

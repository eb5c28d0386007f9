package adapter

import (
	"github.com/flipscan/internal/config"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/types"
)

// BuildRegistry wires one scraper per enabled platform and returns the
// browser agent, when one is configured. Browser-backed platforms share a
// session pool capped at ScraperConfig.MaxSessions; each scrape checks its
// own session out of the pool. Platforms whose prerequisites are missing
// (no agent endpoint, no API key) are skipped with a warning rather than
// failing startup.
func BuildRegistry(cfg *config.Config, logger *logging.Logger) (*Registry, Extractor) {
	registry := NewRegistry()
	var agent Extractor

	pool := NewBrowserPool(BrowserConfig{
		ChromePath: cfg.Scraper.ChromePath,
		NavTimeout: cfg.Scraper.NavTimeout,
	}, cfg.Scraper.MaxSessions)

	for _, name := range cfg.Platforms.Enabled {
		platformCfg := cfg.Platforms.Platforms[name]

		switch name {
		case "craigslist":
			registry.Register(NewStructuredScraper(
				types.PlatformCraigslist, platformCfg.BaseURL,
				CraigslistSelectors(), BuildCraigslistURL,
				pool, cfg.Scraper.RequestsPerSec, logger,
			))
		case "offerup":
			registry.Register(NewStructuredScraper(
				types.PlatformOfferUp, platformCfg.BaseURL,
				OfferUpSelectors(), BuildOfferUpURL,
				pool, cfg.Scraper.RequestsPerSec, logger,
			))
		case "facebook":
			if platformCfg.AgentBaseURL == "" {
				logger.Warn("Facebook enabled without an agent endpoint, platform skipped")
				continue
			}
			client := NewAgentClient(platformCfg.AgentBaseURL, platformCfg.APIKey, cfg.Scraper.NavTimeout, logger)
			agent = client
			registry.Register(NewAgentScraper(
				types.PlatformFacebook, platformCfg.BaseURL, client, cfg.Scraper.RequestsPerSec, logger,
			))
		case "mercari":
			if platformCfg.APIKey == "" {
				logger.Warn("Mercari enabled without an API key, platform skipped")
				continue
			}
			registry.Register(NewMercariScraper(
				platformCfg.BaseURL, platformCfg.APIKey, cfg.Scraper.NavTimeout, logger,
			))
		default:
			logger.WithField("platform", name).Warn("Unknown platform in configuration")
		}
	}

	return registry, agent
}

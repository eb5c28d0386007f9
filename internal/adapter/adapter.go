// Package adapter provides per-marketplace extraction logic. Two strategies
// are implemented: structured DOM-selector extraction with a fallback chain
// (StructuredScraper) and natural-language-instruction-driven browser-agent
// extraction (AgentScraper). Mercari uses its search API directly
// (MercariScraper).
package adapter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/flipscan/internal/types"
	"golang.org/x/time/rate"
)

// Scraper is the contract every marketplace adapter implements. Scrape
// returns a tagged result per extracted item; adapter-level failures
// (navigation, timeout, transport) are returned as the error and fail the
// whole job, per-item extraction problems surface as skipped results.
type Scraper interface {
	Platform() types.Platform
	Scrape(ctx context.Context, query types.ScrapeQuery) ([]types.ItemResult, error)
}

// Registry dispatches scrapers by platform
type Registry struct {
	mu       sync.RWMutex
	scrapers map[types.Platform]Scraper
}

// NewRegistry creates an empty scraper registry
func NewRegistry() *Registry {
	return &Registry{scrapers: make(map[types.Platform]Scraper)}
}

// Register adds a scraper for its platform
func (r *Registry) Register(scraper Scraper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrapers[scraper.Platform()] = scraper
}

// Get returns the scraper for a platform
func (r *Registry) Get(platform types.Platform) (Scraper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	scraper, ok := r.scrapers[platform]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %s", platform)
	}
	return scraper, nil
}

// Platforms returns the registered platforms
func (r *Registry) Platforms() []types.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	platforms := make([]types.Platform, 0, len(r.scrapers))
	for platform := range r.scrapers {
		platforms = append(platforms, platform)
	}
	return platforms
}

// DefaultMaxItems bounds extraction cost when the query does not set a cap
const DefaultMaxItems = 50

// maxItems resolves the per-scrape item cap
func maxItems(query types.ScrapeQuery) int {
	if query.MaxItems > 0 {
		return query.MaxItems
	}
	return DefaultMaxItems
}

// ParsePrice strips all non-numeric/non-dot characters and parses the rest
// as a float. Unparseable text yields 0; items priced <= 0 are dropped
// downstream.
func ParsePrice(raw string) float64 {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return 0
	}

	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return price
}

// politeLimiter rate-limits page interactions against one marketplace
func politeLimiter(requestsPerSec float64) *rate.Limiter {
	if requestsPerSec <= 0 {
		requestsPerSec = 0.5
	}
	return rate.NewLimiter(rate.Limit(requestsPerSec), 1)
}

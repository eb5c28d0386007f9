// Package comps produces market-value snapshots from comparable sold items.
// Comparables live in an append-only history store; computed snapshots are
// cached in Redis. A nil MarketValue with a nil error means "not enough
// usable comps" and the estimator falls back to heuristics.
package comps

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flipscan/internal/adapter"
	"github.com/flipscan/internal/config"
	"github.com/flipscan/internal/estimate"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/retry"
	"github.com/flipscan/internal/types"
)

// HistoryStore is the append-only comparable-sales store
type HistoryStore interface {
	Insert(ctx context.Context, comparables []models.Comparable) error
	Recent(ctx context.Context, productKey string, since time.Time) ([]models.Comparable, error)
}

// SoldFetcher pulls completed sales from a marketplace for fresh comps
type SoldFetcher interface {
	FetchSold(ctx context.Context, keywords string, limit int) ([]adapter.SoldItem, error)
}

// ValueCache caches computed market-value snapshots
type ValueCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Service computes recency-weighted market values from comparable sales
type Service struct {
	config  config.CompsConfig
	history HistoryStore
	fetcher SoldFetcher // nil disables live refresh
	cache   ValueCache  // nil disables caching
	logger  *logging.Logger
	now     func() time.Time
}

// NewService creates a comparable-sales service
func NewService(cfg config.CompsConfig, history HistoryStore, fetcher SoldFetcher, cache ValueCache, logger *logging.Logger) *Service {
	return &Service{
		config:  cfg,
		history: history,
		fetcher: fetcher,
		cache:   cache,
		logger:  logger.WithField("component", "comps"),
		now:     time.Now,
	}
}

// GetMarketValue returns the comparable-sales snapshot for a product, or nil
// when too few usable comps exist. Store and fetch failures degrade to nil
// rather than failing the caller: a listing without a market value still gets
// a heuristic estimate.
func (s *Service) GetMarketValue(ctx context.Context, productName string) *types.MarketValue {
	key := ProductKey(productName)
	if key == "" {
		return nil
	}

	if cached := s.cachedValue(ctx, key); cached != nil {
		return cached
	}

	since := s.now().Add(-s.config.LookbackWindow)
	comparables, err := s.history.Recent(ctx, key, since)
	if err != nil {
		s.logger.WithError(err).WithField("productKey", key).Warn("Comparable lookup failed")
		return nil
	}

	if len(comparables) < s.config.MinSamples && s.fetcher != nil {
		comparables = s.refreshFromMarket(ctx, key, productName, comparables)
	}

	value := s.Compute(comparables)
	if value == nil {
		return nil
	}

	s.cacheValue(ctx, key, value)
	return value
}

// RecordSold appends sold records to the history store
func (s *Service) RecordSold(ctx context.Context, comparables []models.Comparable) error {
	for i := range comparables {
		if comparables[i].ID == "" {
			comparables[i].ID = uuid.New().String()
		}
		if comparables[i].RecordedAt.IsZero() {
			comparables[i].RecordedAt = s.now().UTC()
		}
	}
	return s.history.Insert(ctx, comparables)
}

// refreshFromMarket fetches completed sales, records them, and merges them
// with the already-known comparables. Fetch failures keep whatever we had.
func (s *Service) refreshFromMarket(ctx context.Context, key, productName string, existing []models.Comparable) []models.Comparable {
	var sold []adapter.SoldItem
	err := retry.Do(ctx, func(ctx context.Context, attempt int) error {
		var fetchErr error
		sold, fetchErr = s.fetcher.FetchSold(ctx, productName, 0)
		return fetchErr
	})
	if err != nil {
		s.logger.WithError(err).WithField("productKey", key).Warn("Sold-item refresh failed, using stored comps only")
		return existing
	}

	known := make(map[string]bool, len(existing))
	for _, c := range existing {
		known[c.SourceURL] = true
	}

	var fresh []models.Comparable
	for _, item := range sold {
		if item.URL != "" && known[item.URL] {
			continue
		}
		fresh = append(fresh, models.Comparable{
			ID:          uuid.New().String(),
			ProductName: key,
			Platform:    types.PlatformMercari,
			SoldPrice:   item.Price,
			Condition:   estimate.NormalizeCondition(item.Condition),
			SourceURL:   item.URL,
			SoldAt:      item.SoldAt,
			RecordedAt:  s.now().UTC(),
		})
	}

	if len(fresh) > 0 {
		if err := s.history.Insert(ctx, fresh); err != nil {
			s.logger.WithError(err).Warn("Recording fresh comps failed, using them in-memory only")
		}
	}

	return append(existing, fresh...)
}

// Compute derives a market value from raw comparables: outliers beyond the
// configured multiple of the median (in either direction) are discarded, the
// survivors are averaged with recency weights, and confidence follows the
// surviving sample size.
func (s *Service) Compute(comparables []models.Comparable) *types.MarketValue {
	priced := comparables[:0:0]
	for _, c := range comparables {
		if c.SoldPrice > 0 {
			priced = append(priced, c)
		}
	}
	if len(priced) < s.config.MinSamples {
		return nil
	}

	kept := s.rejectOutliers(priced)
	if len(kept) < s.config.MinSamples {
		return nil
	}

	now := s.now()
	halfLife := s.config.RecencyHalfLife.Hours()
	var weightedSum, weightTotal float64
	refs := make([]string, 0, len(kept))
	for _, c := range kept {
		age := now.Sub(c.SoldAt).Hours()
		if age < 0 {
			age = 0
		}
		weight := math.Pow(0.5, age/halfLife)
		weightedSum += c.SoldPrice * weight
		weightTotal += weight
		refs = append(refs, c.ID)
	}

	return &types.MarketValue{
		AveragePrice: math.Round(weightedSum/weightTotal*100) / 100,
		Confidence:   s.confidence(len(kept)),
		SampleSize:   len(kept),
		CompRefs:     refs,
	}
}

// rejectOutliers drops comps priced beyond median*multiple or median/multiple
func (s *Service) rejectOutliers(comparables []models.Comparable) []models.Comparable {
	prices := make([]float64, len(comparables))
	for i, c := range comparables {
		prices[i] = c.SoldPrice
	}
	med := median(prices)
	if med <= 0 {
		return nil
	}

	upper := med * s.config.OutlierMultiple
	lower := med / s.config.OutlierMultiple

	kept := make([]models.Comparable, 0, len(comparables))
	for _, c := range comparables {
		if c.SoldPrice >= lower && c.SoldPrice <= upper {
			kept = append(kept, c)
		}
	}
	return kept
}

// confidence maps surviving sample size to a confidence tier
func (s *Service) confidence(samples int) types.Confidence {
	switch {
	case samples >= s.config.HighSamples:
		return types.ConfidenceHigh
	case samples >= s.config.MediumSamples:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

func (s *Service) cachedValue(ctx context.Context, key string) *types.MarketValue {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, cacheKey(key))
	if err != nil || raw == "" {
		return nil
	}
	var value types.MarketValue
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil
	}
	return &value
}

func (s *Service) cacheValue(ctx context.Context, key string, value *types.MarketValue) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(key), string(data), s.config.CacheTTL); err != nil {
		s.logger.WithError(err).Warn("Market-value cache write failed")
	}
}

func cacheKey(productKey string) string {
	return "comps:market:" + productKey
}

// ProductKey normalizes a product name into a stable lookup key:
// lowercased, punctuation stripped, whitespace collapsed.
func ProductKey(productName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(productName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// median returns the middle value; for even counts, the mean of the two
// middle values.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

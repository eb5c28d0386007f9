package comps

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/flipscan/internal/adapter"
	"github.com/flipscan/internal/config"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/models"
	"github.com/flipscan/internal/types"
)

func testConfig() config.CompsConfig {
	return config.CompsConfig{
		MinSamples:      3,
		MediumSamples:   5,
		HighSamples:     10,
		OutlierMultiple: 3.0,
		RecencyHalfLife: 30 * 24 * time.Hour,
		LookbackWindow:  180 * 24 * time.Hour,
		CacheTTL:        6 * time.Hour,
	}
}

type fakeHistory struct {
	comps    []models.Comparable
	inserted []models.Comparable
	err      error
}

func (f *fakeHistory) Insert(ctx context.Context, comparables []models.Comparable) error {
	f.inserted = append(f.inserted, comparables...)
	return f.err
}

func (f *fakeHistory) Recent(ctx context.Context, productKey string, since time.Time) ([]models.Comparable, error) {
	return f.comps, f.err
}

type fakeFetcher struct {
	sold  []adapter.SoldItem
	err   error
	calls int
}

func (f *fakeFetcher) FetchSold(ctx context.Context, keywords string, limit int) ([]adapter.SoldItem, error) {
	f.calls++
	return f.sold, f.err
}

type mapCache struct {
	values map[string]string
	sets   int
}

func newMapCache() *mapCache { return &mapCache{values: make(map[string]string)} }

func (c *mapCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := c.values[key]
	if !ok {
		return "", fmt.Errorf("cache miss")
	}
	return v, nil
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.sets++
	c.values[key] = fmt.Sprint(value)
	return nil
}

func newTestService(history HistoryStore, fetcher SoldFetcher, cache ValueCache) *Service {
	return NewService(testConfig(), history, fetcher, cache,
		logging.NewLogger(logging.LevelError, logging.FormatText))
}

func compsAt(now time.Time, prices ...float64) []models.Comparable {
	out := make([]models.Comparable, len(prices))
	for i, p := range prices {
		out[i] = models.Comparable{
			ID:        fmt.Sprintf("comp-%d", i),
			SoldPrice: p,
			SoldAt:    now.Add(-24 * time.Hour),
		}
	}
	return out
}

func TestComputeRejectsOutliersBothDirections(t *testing.T) {
	svc := newTestService(&fakeHistory{}, nil, nil)
	now := time.Now()

	// median 100; 500 (>300) and 20 (<33.3) must both be discarded
	value := svc.Compute(compsAt(now, 95, 100, 105, 500, 20))
	if value == nil {
		t.Fatal("expected a market value")
	}
	if value.SampleSize != 3 {
		t.Errorf("expected 3 surviving comps, got %d", value.SampleSize)
	}
	if value.AveragePrice < 95 || value.AveragePrice > 105 {
		t.Errorf("outliers leaked into the average: %v", value.AveragePrice)
	}
}

func TestComputeTooFewSamples(t *testing.T) {
	svc := newTestService(&fakeHistory{}, nil, nil)
	now := time.Now()

	if value := svc.Compute(compsAt(now, 100, 110)); value != nil {
		t.Errorf("expected nil below the minimum sample size, got %+v", value)
	}

	// Outlier rejection dropping below the minimum also yields nil
	if value := svc.Compute(compsAt(now, 100, 110, 9000)); value != nil {
		t.Errorf("expected nil after outlier rejection, got %+v", value)
	}
}

func TestComputeIgnoresUnpricedComps(t *testing.T) {
	svc := newTestService(&fakeHistory{}, nil, nil)
	now := time.Now()

	comps := append(compsAt(now, 100, 105, 110), models.Comparable{SoldPrice: 0, SoldAt: now})
	value := svc.Compute(comps)
	if value == nil {
		t.Fatal("expected a market value")
	}
	if value.SampleSize != 3 {
		t.Errorf("zero-priced comp counted: sample size %d", value.SampleSize)
	}
}

func TestComputeConfidenceTiers(t *testing.T) {
	svc := newTestService(&fakeHistory{}, nil, nil)
	now := time.Now()

	tests := []struct {
		samples  int
		expected types.Confidence
	}{
		{3, types.ConfidenceLow},
		{5, types.ConfidenceMedium},
		{9, types.ConfidenceMedium},
		{10, types.ConfidenceHigh},
	}
	for _, tt := range tests {
		prices := make([]float64, tt.samples)
		for i := range prices {
			prices[i] = 100 + float64(i)
		}
		value := svc.Compute(compsAt(now, prices...))
		if value == nil {
			t.Fatalf("expected a market value for %d samples", tt.samples)
		}
		if value.Confidence != tt.expected {
			t.Errorf("%d samples: expected %s confidence, got %s", tt.samples, tt.expected, value.Confidence)
		}
	}
}

func TestComputeWeighsRecentSalesHigher(t *testing.T) {
	svc := newTestService(&fakeHistory{}, nil, nil)
	now := time.Now()

	// Recent sales at 200, stale sales at 100. The weighted average must sit
	// closer to 200 than a plain mean (150) would.
	comps := []models.Comparable{
		{ID: "a", SoldPrice: 200, SoldAt: now.Add(-24 * time.Hour)},
		{ID: "b", SoldPrice: 200, SoldAt: now.Add(-48 * time.Hour)},
		{ID: "c", SoldPrice: 100, SoldAt: now.Add(-150 * 24 * time.Hour)},
		{ID: "d", SoldPrice: 100, SoldAt: now.Add(-160 * 24 * time.Hour)},
	}
	value := svc.Compute(comps)
	if value == nil {
		t.Fatal("expected a market value")
	}
	if value.AveragePrice <= 150 {
		t.Errorf("expected recency weighting to pull average above 150, got %v", value.AveragePrice)
	}
}

func TestGetMarketValueUsesCache(t *testing.T) {
	history := &fakeHistory{comps: compsAt(time.Now(), 100, 105, 110, 95)}
	cache := newMapCache()
	svc := newTestService(history, nil, cache)

	first := svc.GetMarketValue(context.Background(), "Nintendo Switch")
	if first == nil {
		t.Fatal("expected a market value")
	}
	if cache.sets != 1 {
		t.Fatalf("expected one cache write, got %d", cache.sets)
	}

	// Second call must come from the cache, not recompute
	history.comps = nil
	second := svc.GetMarketValue(context.Background(), "Nintendo Switch")
	if second == nil {
		t.Fatal("expected the cached market value")
	}
	if second.AveragePrice != first.AveragePrice {
		t.Errorf("cached value diverged: %v vs %v", second.AveragePrice, first.AveragePrice)
	}
	if cache.sets != 1 {
		t.Errorf("expected no second cache write, got %d", cache.sets)
	}
}

func TestGetMarketValueRefreshesWhenStoreThin(t *testing.T) {
	now := time.Now()
	history := &fakeHistory{comps: compsAt(now, 100)} // below MinSamples
	fetcher := &fakeFetcher{sold: []adapter.SoldItem{
		{ExternalID: "m1", Price: 110, SoldAt: now.Add(-48 * time.Hour), URL: "https://www.mercari.com/item/m1"},
		{ExternalID: "m2", Price: 120, SoldAt: now.Add(-72 * time.Hour), URL: "https://www.mercari.com/item/m2"},
	}}
	svc := newTestService(history, fetcher, nil)

	value := svc.GetMarketValue(context.Background(), "bose qc35")
	if value == nil {
		t.Fatal("expected a market value after live refresh")
	}
	if fetcher.calls != 1 {
		t.Errorf("expected one fetch, got %d", fetcher.calls)
	}
	if value.SampleSize != 3 {
		t.Errorf("expected stored + fresh comps merged (3), got %d", value.SampleSize)
	}
	if len(history.inserted) != 2 {
		t.Errorf("expected 2 fresh comps recorded, got %d", len(history.inserted))
	}
}

func TestGetMarketValueStoreFailureDegradesToNil(t *testing.T) {
	history := &fakeHistory{err: fmt.Errorf("clickhouse unreachable")}
	svc := newTestService(history, nil, nil)

	if value := svc.GetMarketValue(context.Background(), "anything"); value != nil {
		t.Errorf("expected nil on store failure, got %+v", value)
	}
}

func TestProductKey(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"Nintendo Switch", "nintendo switch"},
		{"  Bose QC35-II (black) ", "bose qc35 ii black"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := ProductKey(tt.in); got != tt.expected {
			t.Errorf("ProductKey(%q) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
}

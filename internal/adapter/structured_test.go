package adapter

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/types"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.LevelError, logging.FormatText)
}

type staticFetcher struct {
	html string
	err  error
	urls []string
}

func (f *staticFetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	f.urls = append(f.urls, pageURL)
	if f.err != nil {
		return "", f.err
	}
	return f.html, nil
}

// staticSource hands the same fetcher to every scrape, with no pooling.
type staticSource struct {
	fetcher PageFetcher
}

func (s *staticSource) Acquire(ctx context.Context) (PageFetcher, func(), error) {
	return s.fetcher, func() {}, nil
}

const craigslistHTML = `
<html><body>
<ol class="cl-static-search-results">
  <li class="cl-static-search-result">
    <a href="/sby/ele/d/thinkpad-t480/7741234567.html">
      <div class="title">Lenovo ThinkPad T480</div>
      <div class="details"><div class="price">$350</div><div class="location">sunnyvale</div></div>
    </a>
  </li>
  <li class="cl-static-search-result">
    <a href="https://sfbay.craigslist.org/d/broken-monitor/7749876543.html">
      <div class="title">Dell monitor (broken)</div>
      <div class="details"><div class="price">$20</div></div>
    </a>
  </li>
  <li class="cl-static-search-result">
    <a href="/sby/ele/d/no-title/7740000000.html"></a>
  </li>
</ol>
</body></html>`

func newCraigslistScraper(fetcher PageFetcher) *StructuredScraper {
	return NewStructuredScraper(
		types.PlatformCraigslist,
		"https://sfbay.craigslist.org",
		CraigslistSelectors(),
		BuildCraigslistURL,
		&staticSource{fetcher: fetcher},
		100, // no throttling in tests
		testLogger(),
	)
}

func TestStructuredScraperExtractsItems(t *testing.T) {
	scraper := newCraigslistScraper(&staticFetcher{html: craigslistHTML})

	results, err := scraper.Scrape(context.Background(), types.ScrapeQuery{Category: "electronics"})
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	first := results[0]
	if !first.OK() {
		t.Fatalf("expected first item extracted, got skip: %s", first.SkipReason)
	}
	if first.Item.Title != "Lenovo ThinkPad T480" {
		t.Errorf("unexpected title %q", first.Item.Title)
	}
	if first.Item.Price != 350 {
		t.Errorf("expected price 350, got %v", first.Item.Price)
	}
	if first.Item.URL != "https://sfbay.craigslist.org/sby/ele/d/thinkpad-t480/7741234567.html" {
		t.Errorf("relative href not resolved: %q", first.Item.URL)
	}
	if first.Item.Location != "sunnyvale" {
		t.Errorf("expected location sunnyvale, got %q", first.Item.Location)
	}

	second := results[1]
	if !second.OK() {
		t.Fatalf("expected second item extracted, got skip: %s", second.SkipReason)
	}
	if second.Item.URL != "https://sfbay.craigslist.org/d/broken-monitor/7749876543.html" {
		t.Errorf("absolute href must pass through unchanged: %q", second.Item.URL)
	}

	// The title-less item is skipped, not fatal
	third := results[2]
	if third.OK() {
		t.Error("expected item without title to be skipped")
	}
	if third.SkipReason == "" {
		t.Error("skipped item must carry a reason")
	}
}

// recordingSource tracks how many times a scraper checked a session out and
// back in, so session ownership per scrape can be asserted.
type recordingSource struct {
	fetcher  PageFetcher
	acquires int
	releases int
}

func (s *recordingSource) Acquire(ctx context.Context) (PageFetcher, func(), error) {
	s.acquires++
	return s.fetcher, func() { s.releases++ }, nil
}

func TestStructuredScraperAcquiresSessionPerScrape(t *testing.T) {
	source := &recordingSource{fetcher: &staticFetcher{html: craigslistHTML}}
	scraper := NewStructuredScraper(
		types.PlatformCraigslist,
		"https://sfbay.craigslist.org",
		CraigslistSelectors(),
		BuildCraigslistURL,
		source,
		100,
		testLogger(),
	)

	for i := 0; i < 3; i++ {
		if _, err := scraper.Scrape(context.Background(), types.ScrapeQuery{}); err != nil {
			t.Fatalf("Scrape %d failed: %v", i, err)
		}
	}

	if source.acquires != 3 {
		t.Errorf("expected one session acquired per scrape, got %d acquires", source.acquires)
	}
	if source.releases != 3 {
		t.Errorf("expected every session released after its scrape, got %d releases", source.releases)
	}
}

func TestStructuredScraperReleasesSessionOnFetchError(t *testing.T) {
	source := &recordingSource{fetcher: &staticFetcher{err: fmt.Errorf("net::ERR_CONNECTION_RESET")}}
	scraper := NewStructuredScraper(
		types.PlatformCraigslist,
		"https://sfbay.craigslist.org",
		CraigslistSelectors(),
		BuildCraigslistURL,
		source,
		100,
		testLogger(),
	)

	if _, err := scraper.Scrape(context.Background(), types.ScrapeQuery{}); err == nil {
		t.Fatal("expected fetch failure to fail the scrape")
	}
	if source.releases != 1 {
		t.Errorf("session must be released even when the fetch fails, got %d releases", source.releases)
	}
}

func TestStructuredScraperFetchErrorFailsScrape(t *testing.T) {
	scraper := newCraigslistScraper(&staticFetcher{err: fmt.Errorf("net::ERR_TIMED_OUT")})

	_, err := scraper.Scrape(context.Background(), types.ScrapeQuery{Category: "electronics"})
	if err == nil {
		t.Fatal("expected navigation failure to fail the scrape")
	}
}

func TestStructuredScraperTimeoutIsCategorized(t *testing.T) {
	scraper := newCraigslistScraper(&staticFetcher{
		err: fmt.Errorf("fetch https://sfbay.craigslist.org: %w", context.DeadlineExceeded),
	})

	_, err := scraper.Scrape(context.Background(), types.ScrapeQuery{})
	if err == nil {
		t.Fatal("expected timed-out navigation to fail the scrape")
	}

	var categorized *errors.CategorizedError
	if !stderrors.As(err, &categorized) {
		t.Fatalf("expected categorized error, got %T", err)
	}
	if categorized.Code != errors.CodeAdapterTimeout {
		t.Errorf("expected code %s, got %s", errors.CodeAdapterTimeout, categorized.Code)
	}
	if !errors.IsRetryable(err) {
		t.Error("navigation timeouts must stay retryable")
	}
}

func TestStructuredScraperRespectsItemCap(t *testing.T) {
	html := `<html><body><ol class="cl-static-search-results">`
	for i := 0; i < 20; i++ {
		html += fmt.Sprintf(
			`<li class="cl-static-search-result"><a href="/d/item/%d.html"><div class="title">Item %d</div><div class="price">$%d</div></a></li>`,
			7740000000+i, i, 10+i)
	}
	html += `</ol></body></html>`

	scraper := newCraigslistScraper(&staticFetcher{html: html})
	results, err := scraper.Scrape(context.Background(), types.ScrapeQuery{MaxItems: 5})
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}
	if countOK(results) != 5 {
		t.Errorf("expected 5 extracted items, got %d", countOK(results))
	}
}

func TestStructuredScraperGenericFallback(t *testing.T) {
	// Markup matching none of the named selectors
	html := `<html><body><ul>
	  <li><a href="/posting/991">Vintage amp</a> <span>$75</span></li>
	  <li><a href="/posting/992">Road bike</a> <span>$220</span></li>
	  <li>no link here, just text</li>
	</ul></body></html>`

	scraper := newCraigslistScraper(&staticFetcher{html: html})
	results, err := scraper.Scrape(context.Background(), types.ScrapeQuery{})
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}
	if countOK(results) != 2 {
		t.Fatalf("expected 2 items from generic fallback, got %d", countOK(results))
	}
	if results[0].Item.Title != "Vintage amp" {
		t.Errorf("unexpected title %q", results[0].Item.Title)
	}
	if results[0].Item.Price != 75 {
		t.Errorf("expected price 75, got %v", results[0].Item.Price)
	}
}

package adapter

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/types"
)

// PageFetcher abstracts the browser session for the structured strategy, so
// extraction logic can be tested against static HTML.
type PageFetcher interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

// SelectorSet holds the ordered selector fallback chains for one marketplace.
// Sites change markup; the first non-empty container match wins, and a
// generic attribute-based fallback runs when every named selector fails.
type SelectorSet struct {
	Containers []string // result-list item selectors, tried in order
	Title      []string
	Price      []string
	Link       []string
	Location   []string
	Image      []string
}

// SearchURLBuilder maps a query to the marketplace search URL
type SearchURLBuilder func(baseURL string, query types.ScrapeQuery) string

var priceTokenPattern = regexp.MustCompile(`[$€£]\s*[0-9][0-9,.]*`)

// StructuredScraper extracts listings with fixed CSS selectors over rendered
// page HTML.
type StructuredScraper struct {
	platform  types.Platform
	baseURL   string
	selectors SelectorSet
	buildURL  SearchURLBuilder
	sessions  FetcherSource
	limiter   limiter
	logger    *logging.Logger
}

type limiter interface {
	Wait(ctx context.Context) error
}

// NewStructuredScraper creates a selector-based scraper for one marketplace
func NewStructuredScraper(
	platform types.Platform,
	baseURL string,
	selectors SelectorSet,
	buildURL SearchURLBuilder,
	sessions FetcherSource,
	requestsPerSec float64,
	logger *logging.Logger,
) *StructuredScraper {
	return &StructuredScraper{
		platform:  platform,
		baseURL:   baseURL,
		selectors: selectors,
		buildURL:  buildURL,
		sessions:  sessions,
		limiter:   politeLimiter(requestsPerSec),
		logger:    logger.WithField("platform", string(platform)),
	}
}

// Platform returns the marketplace this scraper serves
func (s *StructuredScraper) Platform() types.Platform {
	return s.platform
}

// Scrape acquires its own browser session, navigates to the category-mapped
// search URL, and extracts items. Navigation and transport errors fail the
// scrape; individual items missing required fields are skipped.
func (s *StructuredScraper) Scrape(ctx context.Context, query types.ScrapeQuery) ([]types.ItemResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	fetcher, release, err := s.sessions.Acquire(ctx)
	if err != nil {
		return nil, errors.NewAdapterError(s.platform, fmt.Errorf("open browser session: %w", err))
	}
	defer release()

	searchURL := s.buildURL(s.baseURL, query)
	s.logger.WithField("url", searchURL).Info("Scraping search page")

	html, err := fetcher.FetchHTML(ctx, searchURL)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.NewAdapterTimeoutError(s.platform, "navigate search page")
		}
		return nil, errors.NewAdapterError(s.platform, fmt.Errorf("navigate search page: %w", err))
	}

	return s.ExtractItems(html, query)
}

// ExtractItems parses rendered search-page HTML into tagged item results
func (s *StructuredScraper) ExtractItems(html string, query types.ScrapeQuery) ([]types.ItemResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	limit := maxItems(query)

	containers := s.findContainers(doc)
	var results []types.ItemResult
	containers.EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if countOK(results) >= limit {
			return false
		}
		results = append(results, s.extractItem(sel, i))
		return true
	})

	return results, nil
}

// findContainers walks the container selector chain; the first selector with
// matches wins. When all named selectors fail, a generic attribute-based
// fallback looks for repeated elements that carry an item link.
func (s *StructuredScraper) findContainers(doc *goquery.Document) *goquery.Selection {
	for _, selector := range s.selectors.Containers {
		sel := doc.Find(selector)
		if sel.Length() > 0 {
			return sel
		}
	}

	s.logger.Warn("All named container selectors failed, using generic fallback")

	// Generic fallback: list items or divs that contain exactly one link and
	// some price-looking text.
	return doc.Find("li, article").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		if sel.Find("a[href]").Length() == 0 {
			return false
		}
		return strings.ContainsAny(sel.Text(), "$€£")
	})
}

// extractItem pulls one item out of a result container. Missing title or URL
// skips the item rather than failing the job.
func (s *StructuredScraper) extractItem(sel *goquery.Selection, index int) types.ItemResult {
	title := firstText(sel, s.selectors.Title)
	if title == "" {
		title = strings.TrimSpace(sel.Find("a").First().Text())
	}

	link := firstAttr(sel, s.selectors.Link, "href")
	if link == "" {
		// The container may itself be the anchor (OfferUp item tiles)
		link, _ = sel.Attr("href")
	}
	if link == "" {
		link, _ = sel.Find("a[href]").First().Attr("href")
	}

	if title == "" || link == "" {
		return types.SkippedItem(fmt.Sprintf("item %d missing title or url", index))
	}

	price := ParsePrice(firstText(sel, s.selectors.Price))
	if price == 0 {
		// Named price selectors missed; look for a currency token anywhere
		// in the container so model numbers are not mistaken for prices.
		price = ParsePrice(priceTokenPattern.FindString(sel.Text()))
	}

	item := &types.RawItem{
		Title:    title,
		URL:      s.absoluteURL(link),
		Price:    price,
		Location: firstText(sel, s.selectors.Location),
		Index:    index,
	}

	if img := firstAttr(sel, s.selectors.Image, "src"); img != "" {
		item.ImageURLs = []string{img}
	}

	return types.OkItem(item)
}

// absoluteURL resolves relative hrefs against the marketplace base URL
func (s *StructuredScraper) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// firstText walks a selector chain and returns the first non-empty text
func firstText(sel *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(sel.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstAttr walks a selector chain and returns the first non-empty attribute
func firstAttr(sel *goquery.Selection, selectors []string, attr string) string {
	for _, selector := range selectors {
		if value, ok := sel.Find(selector).First().Attr(attr); ok && value != "" {
			return value
		}
	}
	return ""
}

// countOK counts successfully extracted items in a result slice
func countOK(results []types.ItemResult) int {
	n := 0
	for _, r := range results {
		if r.OK() {
			n++
		}
	}
	return n
}

// CraigslistSelectors is the selector fallback chain for craigslist search
// results. Craigslist has shipped at least three list markups; all are tried.
func CraigslistSelectors() SelectorSet {
	return SelectorSet{
		Containers: []string{
			"ol.cl-static-search-results li.cl-static-search-result",
			"ul.rows li.result-row",
			"div.cl-search-result",
		},
		Title:    []string{".title", "a.result-title", ".cl-app-anchor .label"},
		Price:    []string{".price", ".result-price", ".priceinfo"},
		Link:     []string{"a.cl-app-anchor", "a.result-title", "a"},
		Location: []string{".location", ".result-hood", ".meta .separator"},
		Image:    []string{"img"},
	}
}

// BuildCraigslistURL maps a query to a craigslist search URL
func BuildCraigslistURL(baseURL string, query types.ScrapeQuery) string {
	section := craigslistSection(query.Category)

	params := url.Values{}
	if query.Keywords != "" {
		params.Set("query", query.Keywords)
	}
	if query.MinPrice > 0 {
		params.Set("min_price", fmt.Sprintf("%.0f", query.MinPrice))
	}
	if query.MaxPrice > 0 {
		params.Set("max_price", fmt.Sprintf("%.0f", query.MaxPrice))
	}

	searchURL := fmt.Sprintf("%s/search/%s", strings.TrimRight(baseURL, "/"), section)
	if encoded := params.Encode(); encoded != "" {
		searchURL += "?" + encoded
	}
	return searchURL
}

// craigslistSection maps canonical categories to craigslist search sections
func craigslistSection(category string) string {
	switch strings.ToLower(category) {
	case "electronics":
		return "ela"
	case "furniture":
		return "fua"
	case "appliances":
		return "ppa"
	case "tools":
		return "tla"
	case "sporting":
		return "sga"
	case "music":
		return "msa"
	case "gaming":
		return "vga"
	case "clothing":
		return "cla"
	default:
		return "sss" // all for-sale
	}
}

// OfferUpSelectors is the selector fallback chain for OfferUp search results
func OfferUpSelectors() SelectorSet {
	return SelectorSet{
		Containers: []string{
			"div[data-testid='item-feed'] a[data-testid='item-tile']",
			"main li[data-testid]",
			"div.item-tile",
		},
		Title:    []string{"[data-testid='item-title']", "h3", ".item-title"},
		Price:    []string{"[data-testid='item-price']", "span.price", ".item-price"},
		Link:     []string{"a[href*='/item/']", "a"},
		Location: []string{"[data-testid='item-location']", ".item-location"},
		Image:    []string{"img"},
	}
}

// BuildOfferUpURL maps a query to an OfferUp search URL
func BuildOfferUpURL(baseURL string, query types.ScrapeQuery) string {
	params := url.Values{}
	if query.Keywords != "" {
		params.Set("q", query.Keywords)
	} else if query.Category != "" {
		params.Set("q", query.Category)
	}
	if query.MinPrice > 0 {
		params.Set("price_min", fmt.Sprintf("%.0f", query.MinPrice))
	}
	if query.MaxPrice > 0 {
		params.Set("price_max", fmt.Sprintf("%.0f", query.MaxPrice))
	}

	return fmt.Sprintf("%s/search?%s", strings.TrimRight(baseURL, "/"), params.Encode())
}

package adapter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/types"
)

// mercariConditionIDs maps normalized conditions to Mercari's numeric codes
var mercariConditionIDs = map[string]string{
	"new":      "1",
	"like_new": "2",
	"good":     "3",
	"fair":     "4",
}

// mercariCategoryIDs maps canonical categories to Mercari category IDs
var mercariCategoryIDs = map[string]string{
	"electronics": "7",
	"gaming":      "76",
	"clothing":    "2",
	"sporting":    "9",
	"music":       "1328",
	"tools":       "1027",
	"furniture":   "1120",
}

const mercariSearchLimit = 100

// mercariItem is one item in a Mercari search response
type mercariItem struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	Price                float64 `json:"price"`
	Status               string  `json:"status"`
	ConditionDescription string  `json:"condition_description"`
	Description          string  `json:"description"`
	SellerName           string  `json:"seller_name"`
	PhotoURL             string  `json:"photo_url"`
	UpdatedAt            int64   `json:"updated"` // unix seconds
}

type mercariSearchResponse struct {
	Items []mercariItem `json:"items"`
	Meta  struct {
		Count int `json:"count"`
	} `json:"meta"`
}

// MercariScraper queries Mercari's search API directly, no browser involved
type MercariScraper struct {
	client *resty.Client
	logger *logging.Logger
}

// NewMercariScraper creates a Mercari search API adapter
func NewMercariScraper(baseURL, apiKey string, timeout time.Duration, logger *logging.Logger) *MercariScraper {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("X-Api-Key", apiKey)
	}

	return &MercariScraper{
		client: client,
		logger: logger.WithField("platform", string(types.PlatformMercari)),
	}
}

// Platform returns the marketplace this scraper serves
func (s *MercariScraper) Platform() types.Platform {
	return types.PlatformMercari
}

// Scrape searches active Mercari listings matching the query
func (s *MercariScraper) Scrape(ctx context.Context, query types.ScrapeQuery) ([]types.ItemResult, error) {
	params := s.searchParams(query)
	if query.ExcludeSold {
		params["status"] = "on_sale"
	}

	items, err := s.search(ctx, params)
	if err != nil {
		return nil, errors.NewAdapterError(types.PlatformMercari, err)
	}

	limit := maxItems(query)
	results := make([]types.ItemResult, 0, len(items))
	for i, raw := range items {
		if countOK(results) >= limit {
			break
		}
		results = append(results, s.toItemResult(raw, i))
	}
	return results, nil
}

// SoldItem is one completed Mercari sale used as a comparable
type SoldItem struct {
	ExternalID string
	Title      string
	Price      float64
	Condition  string
	SoldAt     time.Time
	URL        string
}

// FetchSold searches completed sales for a keyword, for comparable pricing
func (s *MercariScraper) FetchSold(ctx context.Context, keywords string, limit int) ([]SoldItem, error) {
	if limit <= 0 || limit > mercariSearchLimit {
		limit = mercariSearchLimit
	}
	params := map[string]string{
		"keyword": keywords,
		"limit":   strconv.Itoa(limit),
		"status":  "sold_out",
	}

	items, err := s.search(ctx, params)
	if err != nil {
		return nil, errors.NewAdapterError(types.PlatformMercari, err)
	}

	sold := make([]SoldItem, 0, len(items))
	for _, raw := range items {
		if raw.Price <= 0 {
			continue
		}
		sold = append(sold, SoldItem{
			ExternalID: raw.ID,
			Title:      raw.Name,
			Price:      raw.Price,
			Condition:  raw.ConditionDescription,
			SoldAt:     time.Unix(raw.UpdatedAt, 0).UTC(),
			URL:        mercariItemURL(raw.ID),
		})
	}
	return sold, nil
}

// search issues one search request against the Mercari API
func (s *MercariScraper) search(ctx context.Context, params map[string]string) ([]mercariItem, error) {
	var response mercariSearchResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&response).
		Get("/search")
	if err != nil {
		return nil, fmt.Errorf("mercari search request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("mercari search returned status %d", resp.StatusCode())
	}
	return response.Items, nil
}

// searchParams maps a scrape query onto Mercari search API parameters
func (s *MercariScraper) searchParams(query types.ScrapeQuery) map[string]string {
	params := map[string]string{
		"keyword": query.Keywords,
		"limit":   strconv.Itoa(mercariSearchLimit),
	}
	if params["keyword"] == "" {
		params["keyword"] = query.Category
	}
	if id, ok := mercariCategoryIDs[strings.ToLower(query.Category)]; ok {
		params["category_id"] = id
	}
	if query.MinPrice > 0 {
		params["price_min"] = strconv.FormatFloat(query.MinPrice, 'f', 0, 64)
	}
	if query.MaxPrice > 0 {
		params["price_max"] = strconv.FormatFloat(query.MaxPrice, 'f', 0, 64)
	}
	if ids := mercariConditionParam(query.Conditions); ids != "" {
		params["condition_id"] = ids
	}
	return params
}

// mercariConditionParam joins known condition codes for the API filter
func mercariConditionParam(conditions []string) string {
	var ids []string
	for _, c := range conditions {
		if id, ok := mercariConditionIDs[strings.ToLower(c)]; ok {
			ids = append(ids, id)
		}
	}
	return strings.Join(ids, ",")
}

// toItemResult converts one API item to the adapter result shape
func (s *MercariScraper) toItemResult(raw mercariItem, index int) types.ItemResult {
	if raw.ID == "" || raw.Name == "" {
		return types.SkippedItem(fmt.Sprintf("item %d missing id or name", index))
	}

	item := &types.RawItem{
		ExternalID:  raw.ID,
		Title:       raw.Name,
		Description: raw.Description,
		Price:       raw.Price,
		URL:         mercariItemURL(raw.ID),
		Condition:   raw.ConditionDescription,
		Seller:      raw.SellerName,
		Index:       index,
	}
	if raw.PhotoURL != "" {
		item.ImageURLs = []string{raw.PhotoURL}
	}
	if raw.UpdatedAt > 0 {
		t := time.Unix(raw.UpdatedAt, 0).UTC()
		item.PostedAt = &t
	}
	return types.OkItem(item)
}

func mercariItemURL(id string) string {
	return "https://www.mercari.com/item/" + id
}

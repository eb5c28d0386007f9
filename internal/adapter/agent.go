package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/flipscan/internal/errors"
	"github.com/flipscan/internal/logging"
	"github.com/flipscan/internal/types"
)

// Extractor drives a browser-agent service that understands pages without
// fixed selectors. Used for marketplaces whose markup is too obfuscated or
// volatile for selector chains.
type Extractor interface {
	// Extract navigates to pageURL and fills out with structured data
	// matching the given natural-language instruction.
	Extract(ctx context.Context, pageURL, instruction string, out interface{}) error
	// Act navigates to pageURL and performs an interaction described in
	// natural language ("send the message ...", "click save").
	Act(ctx context.Context, pageURL, action string) error
}

// agentItem is the extraction schema the agent fills per search result
type agentItem struct {
	Title    string `json:"title"`
	Price    string `json:"price"`
	URL      string `json:"url"`
	Location string `json:"location"`
	ImageURL string `json:"imageUrl"`
}

// agentDetail is the extraction schema for one listing detail page
type agentDetail struct {
	Description string `json:"description"`
	Condition   string `json:"condition"`
	Seller      string `json:"seller"`
}

const searchInstruction = "List every marketplace item visible on this search results page. " +
	"For each item capture its title, displayed price, link URL, location text, and primary image URL."

const detailInstruction = "From this marketplace listing page capture the full item description, " +
	"the stated condition, and the seller's display name."

// AgentScraper extracts listings through an Extractor instead of selectors
type AgentScraper struct {
	platform types.Platform
	baseURL  string
	agent    Extractor
	limiter  limiter
	logger   *logging.Logger
}

// NewAgentScraper creates an agent-driven scraper for one marketplace
func NewAgentScraper(platform types.Platform, baseURL string, agent Extractor, requestsPerSec float64, logger *logging.Logger) *AgentScraper {
	return &AgentScraper{
		platform: platform,
		baseURL:  baseURL,
		agent:    agent,
		limiter:  politeLimiter(requestsPerSec),
		logger:   logger.WithField("platform", string(platform)),
	}
}

// Platform returns the marketplace this scraper serves
func (s *AgentScraper) Platform() types.Platform {
	return s.platform
}

// Scrape asks the agent to read the search page and, when the query requests
// details, each listing page. Detail failures degrade the item, they do not
// fail the scrape.
func (s *AgentScraper) Scrape(ctx context.Context, query types.ScrapeQuery) ([]types.ItemResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	searchURL := s.searchURL(query)
	s.logger.WithField("url", searchURL).Info("Extracting search page via agent")

	var extracted []agentItem
	if err := s.agent.Extract(ctx, searchURL, searchInstruction, &extracted); err != nil {
		return nil, errors.NewAdapterError(s.platform, err)
	}

	limit := maxItems(query)
	results := make([]types.ItemResult, 0, len(extracted))
	for i, raw := range extracted {
		if countOK(results) >= limit {
			break
		}
		if raw.Title == "" || raw.URL == "" {
			results = append(results, types.SkippedItem(fmt.Sprintf("item %d missing title or url", i)))
			continue
		}

		item := &types.RawItem{
			Title:    raw.Title,
			Price:    ParsePrice(raw.Price),
			URL:      raw.URL,
			Location: raw.Location,
			Index:    i,
		}
		if raw.ImageURL != "" {
			item.ImageURLs = []string{raw.ImageURL}
		}

		if query.IncludeDetails {
			s.enrichFromDetailPage(ctx, item)
		}

		results = append(results, types.OkItem(item))
	}

	return results, nil
}

// enrichFromDetailPage opens the listing page and fills description,
// condition and seller. Failures are logged and the summary item kept.
func (s *AgentScraper) enrichFromDetailPage(ctx context.Context, item *types.RawItem) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	var detail agentDetail
	if err := s.agent.Extract(ctx, item.URL, detailInstruction, &detail); err != nil {
		s.logger.WithError(err).WithField("url", item.URL).Warn("Detail extraction failed, keeping summary item")
		return
	}

	item.Description = detail.Description
	item.Condition = detail.Condition
	item.Seller = detail.Seller
}

// searchURL builds the marketplace search URL for the agent to open
func (s *AgentScraper) searchURL(query types.ScrapeQuery) string {
	params := url.Values{}
	if query.Keywords != "" {
		params.Set("query", query.Keywords)
	}
	if query.MinPrice > 0 {
		params.Set("minPrice", fmt.Sprintf("%.0f", query.MinPrice))
	}
	if query.MaxPrice > 0 {
		params.Set("maxPrice", fmt.Sprintf("%.0f", query.MaxPrice))
	}

	base := strings.TrimRight(s.baseURL, "/")
	path := "/marketplace/" + url.PathEscape(strings.ToLower(query.Location))
	if query.Category != "" {
		path += "/" + url.PathEscape(query.Category)
	}
	if encoded := params.Encode(); encoded != "" {
		return base + path + "?" + encoded
	}
	return base + path
}

// AgentClient talks to an external browser-agent service over HTTP
type AgentClient struct {
	client *resty.Client
	logger *logging.Logger
}

// NewAgentClient creates a client for the browser-agent service
func NewAgentClient(baseURL, apiKey string, timeout time.Duration, logger *logging.Logger) *AgentClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}

	return &AgentClient{
		client: client,
		logger: logger.WithField("component", "agent_client"),
	}
}

type agentExtractRequest struct {
	URL         string `json:"url"`
	Instruction string `json:"instruction"`
}

type agentExtractResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

type agentActRequest struct {
	URL    string `json:"url"`
	Action string `json:"action"`
}

type agentActResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Extract implements Extractor over the agent service's /extract endpoint
func (c *AgentClient) Extract(ctx context.Context, pageURL, instruction string, out interface{}) error {
	var response agentExtractResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(agentExtractRequest{URL: pageURL, Instruction: instruction}).
		SetResult(&response).
		Post("/v1/extract")
	if err != nil {
		return fmt.Errorf("agent extract request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("agent extract returned status %d", resp.StatusCode())
	}
	if response.Error != "" {
		return fmt.Errorf("agent extract failed: %s", response.Error)
	}

	if err := json.Unmarshal(response.Data, out); err != nil {
		return fmt.Errorf("agent extract returned malformed data: %w", err)
	}
	return nil
}

// Act implements Extractor over the agent service's /act endpoint
func (c *AgentClient) Act(ctx context.Context, pageURL, action string) error {
	var response agentActResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(agentActRequest{URL: pageURL, Action: action}).
		SetResult(&response).
		Post("/v1/act")
	if err != nil {
		return fmt.Errorf("agent act request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("agent act returned status %d", resp.StatusCode())
	}
	if !response.OK {
		return fmt.Errorf("agent act failed: %s", response.Error)
	}
	return nil
}

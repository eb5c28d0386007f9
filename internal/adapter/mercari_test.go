package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/flipscan/internal/types"
)

func newMercariTestServer(t *testing.T, items []mercariItem) (*httptest.Server, *url.Values) {
	t.Helper()
	var captured url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		captured = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mercariSearchResponse{Items: items})
	}))
	t.Cleanup(server.Close)
	return server, &captured
}

func TestMercariScraperParamMapping(t *testing.T) {
	server, params := newMercariTestServer(t, nil)
	scraper := NewMercariScraper(server.URL, "test-key", 5*time.Second, testLogger())

	_, err := scraper.Scrape(context.Background(), types.ScrapeQuery{
		Keywords:    "nintendo switch",
		Category:    "gaming",
		MinPrice:    50,
		MaxPrice:    250,
		Conditions:  []string{"new", "like_new"},
		ExcludeSold: true,
	})
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}

	expected := map[string]string{
		"keyword":      "nintendo switch",
		"limit":        "100",
		"category_id":  "76",
		"price_min":    "50",
		"price_max":    "250",
		"condition_id": "1,2",
		"status":       "on_sale",
	}
	for key, want := range expected {
		if got := params.Get(key); got != want {
			t.Errorf("param %s = %q, expected %q", key, got, want)
		}
	}
}

func TestMercariScraperTransformsItems(t *testing.T) {
	posted := time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC)
	server, _ := newMercariTestServer(t, []mercariItem{
		{
			ID:                   "m98765",
			Name:                 "Bose QC35 II",
			Price:                120,
			ConditionDescription: "Like new, barely used",
			SellerName:           "audiofan",
			PhotoURL:             "https://static.mercari.com/m98765.jpg",
			UpdatedAt:            posted.Unix(),
		},
		{Name: "item without id", Price: 50},
	})
	scraper := NewMercariScraper(server.URL, "", 5*time.Second, testLogger())

	results, err := scraper.Scrape(context.Background(), types.ScrapeQuery{Keywords: "bose qc35"})
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	item := results[0].Item
	if item == nil {
		t.Fatalf("expected first item extracted, got skip: %s", results[0].SkipReason)
	}
	if item.ExternalID != "m98765" {
		t.Errorf("expected external id m98765, got %q", item.ExternalID)
	}
	if item.URL != "https://www.mercari.com/item/m98765" {
		t.Errorf("unexpected item URL %q", item.URL)
	}
	if item.Condition != "Like new, barely used" {
		t.Errorf("raw condition text must pass through, got %q", item.Condition)
	}
	if item.PostedAt == nil || !item.PostedAt.Equal(posted) {
		t.Errorf("expected postedAt %v, got %v", posted, item.PostedAt)
	}
	if len(item.ImageURLs) != 1 {
		t.Errorf("expected 1 image URL, got %d", len(item.ImageURLs))
	}

	if results[1].OK() {
		t.Error("expected id-less item to be skipped")
	}
}

func TestMercariFetchSold(t *testing.T) {
	server, params := newMercariTestServer(t, []mercariItem{
		{ID: "m1", Name: "iPad Air", Price: 300, UpdatedAt: time.Now().Unix()},
		{ID: "m2", Name: "iPad Air broken", Price: 0}, // unpriced sales are useless as comps
	})
	scraper := NewMercariScraper(server.URL, "", 5*time.Second, testLogger())

	sold, err := scraper.FetchSold(context.Background(), "ipad air", 50)
	if err != nil {
		t.Fatalf("FetchSold failed: %v", err)
	}

	if got := params.Get("status"); got != "sold_out" {
		t.Errorf("expected status=sold_out, got %q", got)
	}
	if got := params.Get("limit"); got != "50" {
		t.Errorf("expected limit=50, got %q", got)
	}
	if len(sold) != 1 {
		t.Fatalf("expected 1 sold comp, got %d", len(sold))
	}
	if sold[0].Price != 300 {
		t.Errorf("expected price 300, got %v", sold[0].Price)
	}
}

func TestMercariScraperServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)
	scraper := NewMercariScraper(server.URL, "", 2*time.Second, testLogger())

	_, err := scraper.Scrape(context.Background(), types.ScrapeQuery{Keywords: "anything"})
	if err == nil {
		t.Fatal("expected API error to fail the scrape")
	}
}

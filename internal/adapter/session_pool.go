package adapter

import (
	"context"
)

// FetcherSource hands out a page fetcher for the duration of one scrape.
// The release func must be called when the scrape finishes.
type FetcherSource interface {
	Acquire(ctx context.Context) (PageFetcher, func(), error)
}

// BrowserPool launches one fresh browser session per scrape, with at most
// maxSessions sessions alive at once. Every job therefore owns its session
// outright; two jobs never interleave navigation against the same tab.
type BrowserPool struct {
	cfg   BrowserConfig
	slots chan struct{}
}

// NewBrowserPool creates a session pool capped at maxSessions
func NewBrowserPool(cfg BrowserConfig, maxSessions int) *BrowserPool {
	if maxSessions < 1 {
		maxSessions = 1
	}
	return &BrowserPool{
		cfg:   cfg,
		slots: make(chan struct{}, maxSessions),
	}
}

// Acquire blocks until a session slot frees up, then launches a browser.
// The release func closes the session and returns the slot.
func (p *BrowserPool) Acquire(ctx context.Context) (PageFetcher, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	session, err := NewBrowserSession(p.cfg)
	if err != nil {
		<-p.slots
		return nil, nil, err
	}

	release := func() {
		session.Close()
		<-p.slots
	}
	return session, release, nil
}

package adapter

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserSession owns one headless browser instance. Sessions are heavyweight
// and stateful: one session per running job, operations within a session run
// sequentially.
type BrowserSession struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancelCtx   context.CancelFunc
	navTimeout  time.Duration
}

// BrowserConfig configures session creation
type BrowserConfig struct {
	ChromePath string        // optional explicit binary; auto-detected when empty
	NavTimeout time.Duration // per navigation/extraction step
	UserAgent  string
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// NewBrowserSession launches a headless browser
func NewBrowserSession(cfg BrowserConfig) (*BrowserSession, error) {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(userAgent),
	)

	chromeBin := cfg.ChromePath
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Suppress chromedp log noise
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	navTimeout := cfg.NavTimeout
	if navTimeout == 0 {
		navTimeout = 45 * time.Second
	}

	return &BrowserSession{
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		browserCtx:  browserCtx,
		cancelCtx:   cancelCtx,
		navTimeout:  navTimeout,
	}, nil
}

// Close tears down the browser
func (s *BrowserSession) Close() {
	if s.cancelCtx != nil {
		s.cancelCtx()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
}

// FetchHTML navigates to a URL, waits for the page to settle, scrolls to
// trigger lazy loading, and returns the rendered document HTML. Each call is
// bounded by the session's nav timeout; a timeout or navigation error is an
// adapter-level failure.
func (s *BrowserSession) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	runCtx, cancel := context.WithTimeout(s.browserCtx, s.navTimeout)
	defer cancel()

	// Honor caller cancellation as well as the step timeout
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(3*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil),
		chromedp.Sleep(1*time.Second),
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(1*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	return html, nil
}

// findChromeBinary locates an installed Chrome/Chromium binary
func findChromeBinary() string {
	candidates := []string{
		"google-chrome", "google-chrome-stable", "chromium", "chromium-browser",
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

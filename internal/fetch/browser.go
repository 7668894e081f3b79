package fetch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// MinContentLength is the minimum extracted text length to consider HTTP fetch successful.
// If content is shorter, the page is likely rendered client-side.
const MinContentLength = 500

// ShouldUseBrowser returns true if the extracted text is too short,
// indicating the page is likely a JavaScript-rendered SPA.
func ShouldUseBrowser(extractedText string) bool {
	return len(strings.TrimSpace(extractedText)) < MinContentLength
}

// Renderer returns the rendered HTML of a page.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// ChromeRenderer renders pages with a headless Chrome via chromedp.
// Requires Chrome/Chromium to be installed on the system.
type ChromeRenderer struct {
	Timeout     time.Duration
	SettleDelay time.Duration
	WaitFor     string
}

// NewChromeRenderer returns a renderer with a 30s timeout and a 3s settle delay.
func NewChromeRenderer() *ChromeRenderer {
	return &ChromeRenderer{Timeout: 30 * time.Second, SettleDelay: 3 * time.Second, WaitFor: "body"}
}

// Render navigates to url, waits for the page to settle, dismisses common
// cookie banners, and returns the document HTML.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	log.Printf("[browser] rendering %s", url)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, r.Timeout)
	defer cancel()

	waitFor := r.WaitFor
	if waitFor == "" {
		waitFor = "body"
	}

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(waitFor),
		chromedp.Sleep(r.SettleDelay),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Not every page has a banner.
			_ = chromedp.Click(`button[id*="accept"], button[class*="accept"]`, chromedp.NodeVisible, chromedp.AtLeast(0)).Do(ctx)
			return nil
		}),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	log.Printf("[browser] rendered %s: %d bytes", url, len(html))
	return html, nil
}

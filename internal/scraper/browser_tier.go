// File: internal/scraper/browser_tier.go
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/auspex/internal/browser"
	"github.com/xkilldash9x/auspex/internal/browser/stealth"
)

const (
	navRetryDelay         = 1500 * time.Millisecond
	networkIdleCap        = 15 * time.Second
	waitSelectorTimeoutMs = 10_000
)

// humanScrollScript steps down the page in height/6 increments (min 300px)
// at randomized intervals, then jumps back to the top.
const humanScrollScript = `async () => {
	const total = document.body.scrollHeight;
	const step = Math.max(Math.floor(total / 6), 300);
	let pos = 0;
	while (pos < total) {
		pos += step;
		window.scrollTo(0, pos);
		await new Promise(r => setTimeout(r, 120 + Math.random() * 130));
	}
	window.scrollTo(0, 0);
}`

// scrapeBrowser is the last tier: a full stealth browser session.
func (s *Scraper) scrapeBrowser(ctx context.Context, req Request) (*Result, error) {
	b, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("browser acquire failed: %w", err)
	}
	defer s.pool.Release(b)

	session, err := browser.NewSession(b, browser.ContextOptions{
		Persona:     stealth.DefaultPersona,
		Proxy:       s.cfg.Proxy,
		CaptureJSON: req.CaptureJSON,
	}, s.logger)
	if err != nil {
		return nil, fmt.Errorf("browser context failed: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Debug("Session close failed", zap.Error(err))
		}
	}()

	page := session.Page
	if err := s.navigate(page, req); err != nil {
		return nil, err
	}

	s.settle(page, req)

	if _, err := page.Evaluate(humanScrollScript); err != nil {
		s.logger.Debug("Human scroll failed", zap.Error(err))
	}

	rawHTML, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to capture page content: %w", err)
	}
	title, err := page.Title()
	if err != nil {
		title = ""
	}

	result, err := s.buildResult(req, TierBrowser, http.StatusOK, page.URL(), rawHTML, title)
	if err != nil {
		return nil, err
	}
	result.Captured = session.CapturedJSON()
	return result, nil
}

// navigate loads the page with one retry after a short pause.
func (s *Scraper) navigate(page playwright.Page, req Request) error {
	gotoOpts := playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(req.Timeout.Milliseconds())),
	}
	if _, err := page.Goto(req.URL, gotoOpts); err != nil {
		s.logger.Debug("Navigation failed, retrying once", zap.String("url", req.URL), zap.Error(err))
		time.Sleep(navRetryDelay)
		if _, err := page.Goto(req.URL, gotoOpts); err != nil {
			return fmt.Errorf("navigation failed: %w", err)
		}
	}
	return nil
}

// settle waits for the network to go quiet and for any requested selector.
// Both waits are best-effort.
func (s *Scraper) settle(page playwright.Page, req Request) {
	idle := networkIdleCap
	if half := req.Timeout / 2; half < idle {
		idle = half
	}
	if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(idle.Milliseconds())),
	}); err != nil {
		s.logger.Debug("Network idle wait elapsed", zap.Error(err))
	}

	if req.WaitSelector != "" {
		if err := page.Locator(req.WaitSelector).WaitFor(playwright.LocatorWaitForOptions{
			Timeout: playwright.Float(waitSelectorTimeoutMs),
		}); err != nil {
			s.logger.Debug("Selector wait elapsed",
				zap.String("selector", req.WaitSelector), zap.Error(err))
		}
	}
}

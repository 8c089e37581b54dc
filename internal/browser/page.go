// File: internal/browser/page.go
package browser

import (
	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/auspex/internal/snapshot"
)

// domContentLoadedTimeoutMs bounds post-action load waits.
const domContentLoadedTimeoutMs = 5_000

// PageAdapter narrows a playwright page to the surface the snapshot builder
// needs.
type PageAdapter struct {
	page playwright.Page
}

var _ snapshot.LivePage = (*PageAdapter)(nil)

// AdaptPage wraps a playwright page for snapshotting.
func AdaptPage(page playwright.Page) *PageAdapter {
	return &PageAdapter{page: page}
}

func (a *PageAdapter) URL() string { return a.page.URL() }

func (a *PageAdapter) Title() (string, error) { return a.page.Title() }

func (a *PageAdapter) Evaluate(expression string) (any, error) {
	return a.page.Evaluate(expression)
}

func (a *PageAdapter) WaitForDOMContentLoaded() error {
	return a.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(domContentLoadedTimeoutMs),
	})
}

func (a *PageAdapter) AriaSnapshot() (string, error) {
	return a.page.Locator("body").AriaSnapshot()
}

// Screenshot captures a JPEG of the viewport at the given quality.
func (a *PageAdapter) Screenshot(quality int) ([]byte, error) {
	return a.page.Screenshot(playwright.PageScreenshotOptions{
		Type:    playwright.ScreenshotTypeJpeg,
		Quality: playwright.Int(quality),
	})
}

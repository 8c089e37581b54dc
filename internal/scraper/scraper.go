// File: internal/scraper/scraper.go

// Package scraper fetches page content through a tiered cascade: plain
// HTTP, anti-bot HTTP, then a headless browser. All tiers share the URL
// safety layer and the content extraction pipeline.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/auspex/internal/browser"
	"github.com/xkilldash9x/auspex/internal/config"
	"github.com/xkilldash9x/auspex/internal/extract"
	"github.com/xkilldash9x/auspex/internal/urlguard"
)

// Tier names one fetch strategy in the cascade.
type Tier string

const (
	TierHTTP    Tier = "http"
	TierStealth Tier = "stealth"
	TierBrowser Tier = "browser"
)

const (
	// minMarkdownChars is the content floor below which a tier's result is
	// considered insufficient unless SSR data was found.
	minMarkdownChars = 200
	// DefaultConcurrency bounds ScrapeMany when neither the caller nor
	// ScraperConfig.MaxConcurrency gives a positive value.
	DefaultConcurrency = 3
)

// Request describes one scrape.
type Request struct {
	URL string

	// ForceTier dispatches only the named tier and returns its raw outcome.
	// Empty means cascade.
	ForceTier Tier

	// MainOnly restricts extraction to the detected main content region.
	MainOnly bool

	// WaitSelector, when set, makes the browser tier wait for the selector
	// before capture.
	WaitSelector string

	// CaptureJSON records intercepted JSON API responses on the browser tier.
	CaptureJSON bool

	// Timeout overrides the configured per-scrape timeout.
	Timeout time.Duration
}

// Result is the outcome of one scrape. A zero StatusCode with a non-empty
// Error means every tier failed.
type Result struct {
	URL        string                     `json:"url"`
	FinalURL   string                     `json:"final_url"`
	Tier       Tier                       `json:"tier"`
	StatusCode int                        `json:"status_code"`
	Title      string                     `json:"title"`
	Desc       string                     `json:"description"`
	HTML       string                     `json:"html"`
	Text       string                     `json:"text"`
	Markdown   string                     `json:"markdown"`
	Links      []string                   `json:"links"`
	SSR        *extract.SSRData           `json:"ssr,omitempty"`
	Captured   []browser.CapturedResponse `json:"captured_json,omitempty"`
	Error      string                     `json:"error,omitempty"`
}

// URLValidator gates every scrape target. *urlguard.Validator satisfies it;
// tests inject fakes.
type URLValidator interface {
	Validate(ctx context.Context, raw string, opts urlguard.Options) (string, error)
}

// Scraper runs the cascade. A nil pool disables the browser tier.
type Scraper struct {
	cfg    config.ScraperConfig
	guard  URLValidator
	pool   *browser.Pool
	logger *zap.Logger
}

// New builds a scraper. guard must not be nil.
func New(cfg config.ScraperConfig, guard URLValidator, pool *browser.Pool, logger *zap.Logger) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Scraper{cfg: cfg, guard: guard, pool: pool, logger: logger.Named("scraper")}
}

// Scrape runs one request through the cascade (or a forced tier). The
// returned Result is non-nil whenever err is nil.
func (s *Scraper) Scrape(ctx context.Context, req Request) (*Result, error) {
	target, err := s.guard.Validate(ctx, req.URL, urlguard.Options{})
	if err != nil {
		return nil, err
	}
	req.URL = target
	if req.Timeout <= 0 {
		req.Timeout = s.cfg.Timeout
	}

	if req.ForceTier != "" {
		return s.dispatch(ctx, req, req.ForceTier)
	}

	var causes []string
	for _, tier := range []Tier{TierHTTP, TierStealth, TierBrowser} {
		res, err := s.dispatch(ctx, req, tier)
		if err != nil {
			causes = append(causes, fmt.Sprintf("tier %s: %s", tier, err.Error()))
			s.logger.Debug("Tier failed, advancing",
				zap.String("tier", string(tier)), zap.String("url", req.URL), zap.Error(err))
			continue
		}
		if tier != TierBrowser && insufficient(res) {
			causes = append(causes, fmt.Sprintf(
				"tier %s: insufficient content (%d markdown chars, no ssr data)", tier, len(res.Markdown)))
			s.logger.Debug("Tier content insufficient, advancing",
				zap.String("tier", string(tier)), zap.String("url", req.URL), zap.Int("markdown_chars", len(res.Markdown)))
			continue
		}
		return res, nil
	}

	return &Result{
		URL:   req.URL,
		Error: "all tiers failed:\n" + strings.Join(causes, "\n"),
	}, nil
}

func (s *Scraper) dispatch(ctx context.Context, req Request, tier Tier) (*Result, error) {
	switch tier {
	case TierHTTP:
		return s.scrapePlain(ctx, req)
	case TierStealth:
		return s.scrapeStealth(ctx, req)
	case TierBrowser:
		if s.pool == nil {
			return nil, errors.New("browser tier unavailable: no pool configured")
		}
		return s.scrapeBrowser(ctx, req)
	default:
		return nil, fmt.Errorf("unknown tier %q", tier)
	}
}

func insufficient(r *Result) bool {
	return len(r.Markdown) < minMarkdownChars && r.SSR == nil
}

// ScrapeMany scrapes urls with bounded concurrency. Results align with the
// input order; a failed URL yields a Result carrying its error and never
// aborts the batch.
func (s *Scraper) ScrapeMany(ctx context.Context, urls []string, concurrency int) []*Result {
	if concurrency <= 0 {
		concurrency = s.cfg.MaxConcurrency
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	sem := semaphore.NewWeighted(int64(concurrency))
	results := make([]*Result, len(urls))
	for i, u := range urls {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = &Result{URL: u, Error: "scrape cancelled: " + err.Error()}
			continue
		}
		go func(i int, u string) {
			defer sem.Release(1)
			res, err := s.Scrape(ctx, Request{URL: u})
			if err != nil {
				res = &Result{URL: u, Error: err.Error()}
			}
			results[i] = res
		}(i, u)
	}
	// Draining the full weight waits for every in-flight scrape.
	if err := sem.Acquire(context.Background(), int64(concurrency)); err == nil {
		sem.Release(int64(concurrency))
	}

	for i, u := range urls {
		if results[i] == nil {
			results[i] = &Result{URL: u, Error: "scrape not executed"}
		}
	}
	return results
}

// File: internal/agent/agent.go

// Package agent drives LLM-guided web tasks through a tiered loop: a cheap
// static HTTP attempt first, then an iterative browser session when the
// page needs interaction.
package agent

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/auspex/internal/browser"
	"github.com/xkilldash9x/auspex/internal/browser/stealth"
	"github.com/xkilldash9x/auspex/internal/config"
	"github.com/xkilldash9x/auspex/internal/extract"
	"github.com/xkilldash9x/auspex/internal/llm"
	"github.com/xkilldash9x/auspex/internal/urlguard"
)

// staticFetchMaxBytes caps the body read on the first-tier fetch.
const staticFetchMaxBytes = 2 << 20

// SchemaOption constrains the shape of a run's done result. Description is
// shown to the model; Validate gates acceptance of the returned data.
type SchemaOption struct {
	Description string
	Validate    func([]byte) error
}

// RunOptions parameterize one run. URL and Prompt are required; zero-value
// overrides fall back to the agent configuration.
type RunOptions struct {
	URL    string
	Prompt string

	MaxIterations int
	Timeout       time.Duration
	ActionDelay   time.Duration
	// Vision overrides the configured vision flag when non-nil.
	Vision *bool

	Schema        *SchemaOption
	Observer      *Observer
	MemorySampler MemorySampler
}

// urlValidator is the slice of the URL guard the agent needs. Tests inject
// fakes.
type urlValidator interface {
	Validate(ctx context.Context, raw string, opts urlguard.Options) (string, error)
}

// Agent executes tasks against its LLM client and browser pool. It is safe
// for concurrent use; concurrent runs share only the pool.
type Agent struct {
	cfg        config.AgentConfig
	decider    Decider
	pool       *browser.Pool
	guard      urlValidator
	httpClient *http.Client
	logger     *zap.Logger
}

// New validates cfg and builds an agent. A nil pool is allowed; runs that
// cannot resolve on the static path then fail instead of escalating.
func New(cfg config.AgentConfig, decider Decider, pool *browser.Pool, logger *zap.Logger) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if decider == nil {
		return nil, errors.New("agent: llm client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		cfg:        cfg,
		decider:    decider,
		pool:       pool,
		guard:      urlguard.New(logger),
		httpClient: staticHTTPClient(cfg),
		logger:     logger.Named("agent"),
	}, nil
}

func staticHTTPClient(cfg config.AgentConfig) *http.Client {
	client := &http.Client{Timeout: cfg.NavigationTimeout}
	if cfg.Proxy != nil && cfg.Proxy.Server != "" {
		if u, err := url.Parse(cfg.Proxy.Server); err == nil {
			if cfg.Proxy.Username != "" {
				u.User = url.UserPassword(cfg.Proxy.Username, cfg.Proxy.Password)
			}
			client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
		}
	}
	return client
}

// Run executes one task. Option and URL validation errors return a Go
// error; everything after that returns a Result, with run failures carried
// in Result.Error.
func (a *Agent) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	obs := opts.Observer
	logger := a.logger.With(zap.String("run_id", uuid.NewString()))

	p, err := a.paramsFor(opts)
	if err != nil {
		obs.failure(err)
		return nil, err
	}

	guardOpts := urlguard.Options{Allow: a.cfg.AllowedDomains, Block: a.cfg.BlockedDomains}
	target, err := a.guard.Validate(ctx, opts.URL, guardOpts)
	if err != nil {
		obs.failure(err)
		return nil, err
	}

	state := &runState{start: time.Now()}
	rlog := openRunLog(a.cfg.RunLogDir, state.start, logger)
	defer rlog.close()
	rlog.header(state.start, target, opts.Prompt)

	obs.tier(TierHTTP)
	rlog.tier(TierHTTP)
	if html, ok := a.fetchStatic(ctx, target); ok && extract.HasEnoughContent(html) {
		if r, resolved := runStatic(ctx, a.decider, p, html, target, state, rlog, obs, logger); resolved {
			return a.finalize(r, rlog, obs, target, opts.Prompt), nil
		}
	}

	if a.pool == nil {
		r := finish(state, StatusError, TierHTTP, nil, "task requires a browser but no pool is configured")
		return a.finalize(r, rlog, obs, target, opts.Prompt), nil
	}

	obs.tier(TierPlaywright)
	rlog.tier(TierPlaywright)

	b, err := a.pool.Acquire(ctx)
	if err != nil {
		r := finish(state, StatusError, TierPlaywright, nil, "browser acquire failed: "+err.Error())
		return a.finalize(r, rlog, obs, target, opts.Prompt), nil
	}
	defer a.pool.Release(b)

	session, err := browser.NewSession(b, browser.ContextOptions{
		Persona:      stealth.DefaultPersona,
		Proxy:        a.cfg.Proxy,
		Cookies:      a.cfg.Cookies,
		ExtraHeaders: a.cfg.ExtraHeaders,
	}, logger)
	if err != nil {
		r := finish(state, StatusError, TierPlaywright, nil, "browser context failed: "+err.Error())
		return a.finalize(r, rlog, obs, target, opts.Prompt), nil
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Debug("Session close failed", zap.Error(err))
		}
	}()

	if _, err := session.Page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(a.cfg.NavigationTimeout.Milliseconds())),
	}); err != nil {
		r := finish(state, StatusError, TierPlaywright, nil, "navigation failed: "+err.Error())
		return a.finalize(r, rlog, obs, target, opts.Prompt), nil
	}

	deps := loopDeps{
		page:    browser.AdaptPage(session.Page),
		exec:    browser.NewExecutor(session.Page, a.guard, guardOpts, logger),
		decider: a.decider,
		sampler: opts.MemorySampler,
		log:     rlog,
		obs:     obs,
		logger:  logger,
	}
	r := runInteractive(ctx, deps, p, state)
	return a.finalize(r, rlog, obs, target, opts.Prompt), nil
}

func (a *Agent) paramsFor(opts RunOptions) (loopParams, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return loopParams{}, errors.New("agent: url is required")
	}
	if strings.TrimSpace(opts.Prompt) == "" {
		return loopParams{}, errors.New("agent: prompt is required")
	}

	p := loopParams{
		prompt:               opts.Prompt,
		maxIterations:        a.cfg.MaxIterations,
		timeout:              a.cfg.Timeout,
		actionDelay:          a.cfg.ActionDelay,
		maxTotalTokens:       a.cfg.MaxTotalTokens,
		screenshotQuality:    a.cfg.ScreenshotQuality,
		blockedTextThreshold: a.cfg.BlockedTextThreshold,
	}
	if opts.MaxIterations > 0 {
		p.maxIterations = opts.MaxIterations
	}
	if opts.Timeout > 0 {
		p.timeout = opts.Timeout
	}
	if opts.ActionDelay > 0 {
		p.actionDelay = opts.ActionDelay
	}
	if opts.Schema != nil {
		p.schemaDesc = opts.Schema.Description
		p.schemaValidate = opts.Schema.Validate
	}

	vision := a.cfg.Vision
	if opts.Vision != nil {
		vision = *opts.Vision
	}
	if vision {
		if llm.SupportsVision(a.decider.Model()) {
			p.visionAvailable = true
		} else {
			llm.WarnIfNoVision(a.decider.Model(), a.logger)
		}
	}
	return p, nil
}

// fetchStatic is the cheap first-tier fetch. Any failure simply routes the
// run to the browser path.
func (a *Agent) fetchStatic(ctx context.Context, target string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", stealth.DefaultPersona.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range a.cfg.ExtraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Debug("Static fetch failed", zap.Error(err))
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		a.logger.Debug("Static fetch rejected", zap.Int("status", resp.StatusCode))
		return "", false
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "text/plain") {
		a.logger.Debug("Static fetch returned non-document content", zap.String("content_type", contentType))
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, staticFetchMaxBytes))
	if err != nil {
		a.logger.Debug("Static body read failed", zap.Error(err))
		return "", false
	}
	return string(body), true
}

func (a *Agent) finalize(r *Result, rlog *runLog, obs *Observer, target, prompt string) *Result {
	r.Report = FormatReport(r, target, prompt)
	rlog.finish(r)
	if r.Error != "" {
		obs.failure(errors.New(r.Error))
	}
	obs.done(r)
	return r
}

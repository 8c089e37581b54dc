// File: internal/browser/context.go
package browser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/auspex/internal/browser/stealth"
	"github.com/xkilldash9x/auspex/internal/config"
)

const (
	viewportWidth  = 1920
	viewportHeight = 1080

	// maxCapturedBodyBytes bounds each recorded JSON API response.
	maxCapturedBodyBytes = 500_000
)

// CapturedResponse is one intercepted JSON API payload.
type CapturedResponse struct {
	URL    string `json:"url"`
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// ContextOptions configure one per-run browser context.
type ContextOptions struct {
	Persona      stealth.Persona
	Proxy        *config.ProxyConfig
	Cookies      []config.Cookie
	ExtraHeaders map[string]string

	// CaptureJSON records intercepted application/json responses into the
	// returned session.
	CaptureJSON bool
}

// Session bundles a context and its page for one run.
type Session struct {
	Context playwright.BrowserContext
	Page    playwright.Page

	captured []CapturedResponse
	logger   *zap.Logger
}

// NewSession builds a stealth context and a page on it. The caller owns the
// session and must Close it.
func NewSession(b playwright.Browser, opts ContextOptions, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	persona := opts.Persona
	if persona.UserAgent == "" {
		persona = stealth.DefaultPersona
	}

	ctxOpts := playwright.BrowserNewContextOptions{
		Viewport:   &playwright.Size{Width: viewportWidth, Height: viewportHeight},
		UserAgent:  playwright.String(persona.UserAgent),
		Locale:     playwright.String(persona.Locale),
		TimezoneId: playwright.String(persona.Timezone),
	}
	if len(opts.ExtraHeaders) > 0 {
		ctxOpts.ExtraHttpHeaders = opts.ExtraHeaders
	}
	if opts.Proxy != nil && opts.Proxy.Server != "" {
		ctxOpts.Proxy = &playwright.Proxy{
			Server:   opts.Proxy.Server,
			Username: playwright.String(opts.Proxy.Username),
			Password: playwright.String(opts.Proxy.Password),
		}
	}

	bctx, err := b.NewContext(ctxOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	s := &Session{Context: bctx, logger: logger.Named("session")}

	if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(stealth.Script())}); err != nil {
		s.closeQuietly()
		return nil, fmt.Errorf("failed to inject stealth script: %w", err)
	}

	if len(opts.Cookies) > 0 {
		if err := bctx.AddCookies(toPlaywrightCookies(opts.Cookies)); err != nil {
			s.closeQuietly()
			return nil, fmt.Errorf("failed to set cookies: %w", err)
		}
	}

	if err := bctx.Route("**/*", func(route playwright.Route) {
		req := route.Request()
		if stealth.ShouldBlock(req.URL(), req.ResourceType()) {
			_ = route.Abort()
			return
		}
		_ = route.Continue()
	}); err != nil {
		s.closeQuietly()
		return nil, fmt.Errorf("failed to install route interception: %w", err)
	}

	if opts.CaptureJSON {
		bctx.OnResponse(func(resp playwright.Response) {
			s.maybeCapture(resp)
		})
	}

	page, err := bctx.NewPage()
	if err != nil {
		s.closeQuietly()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.OnDialog(func(d playwright.Dialog) {
		_ = d.Dismiss()
	})
	s.Page = page
	return s, nil
}

func (s *Session) maybeCapture(resp playwright.Response) {
	headers := resp.Headers()
	ct := strings.ToLower(headers["content-type"])
	if !strings.Contains(ct, "application/json") {
		return
	}
	u := resp.URL()
	if looksLikeAsset(u) {
		return
	}
	if cl := headers["content-length"]; cl != "" {
		if n, err := strconv.Atoi(cl); err == nil && n > maxCapturedBodyBytes {
			return
		}
	}
	body, err := resp.Body()
	if err != nil || len(body) > maxCapturedBodyBytes {
		return
	}
	s.captured = append(s.captured, CapturedResponse{
		URL:    u,
		Status: resp.Status(),
		Body:   string(body),
	})
}

// CapturedJSON returns the API responses recorded so far.
func (s *Session) CapturedJSON() []CapturedResponse {
	return s.captured
}

// Close tears down the page and context.
func (s *Session) Close() error {
	if err := s.Context.Close(); err != nil {
		return fmt.Errorf("failed to close browser context: %w", err)
	}
	return nil
}

func (s *Session) closeQuietly() {
	if err := s.Context.Close(); err != nil {
		s.logger.Debug("Error closing context during setup failure", zap.Error(err))
	}
}

func looksLikeAsset(u string) bool {
	lower := strings.ToLower(u)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range []string{".js", ".css", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".woff", ".woff2", ".ttf", ".map"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func toPlaywrightCookies(cookies []config.Cookie) []playwright.OptionalCookie {
	out := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		pc := playwright.OptionalCookie{
			Name:  c.Name,
			Value: c.Value,
		}
		if c.Domain != "" {
			pc.Domain = playwright.String(c.Domain)
		}
		if c.Path != "" {
			pc.Path = playwright.String(c.Path)
		}
		out = append(out, pc)
	}
	return out
}

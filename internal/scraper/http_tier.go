// File: internal/scraper/http_tier.go
package scraper

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/xkilldash9x/auspex/internal/browser/stealth"
	"github.com/xkilldash9x/auspex/internal/extract"
)

const (
	maxBodyBytes = 8 << 20
	// stealthRetries is the retry limit for the stealth tier GET.
	stealthRetries      = 2
	stealthRetryBackoff = 1500 * time.Millisecond
)

// scrapePlain is the first tier: a single browser-profile GET.
func (s *Scraper) scrapePlain(ctx context.Context, req Request) (*Result, error) {
	return s.scrapeHTTP(ctx, req, TierHTTP, 0)
}

// scrapeStealth is the second tier: full header set and a small retry loop.
func (s *Scraper) scrapeStealth(ctx context.Context, req Request) (*Result, error) {
	return s.scrapeHTTP(ctx, req, TierStealth, stealthRetries)
}

func (s *Scraper) scrapeHTTP(ctx context.Context, req Request, tier Tier, retries uint64) (*Result, error) {
	client := s.httpClient(req.Timeout)

	fetch := func() (*Result, error) {
		return s.fetchOnce(ctx, client, req, tier)
	}
	if retries == 0 {
		return fetch()
	}

	var result *Result
	operation := func() error {
		res, err := fetch()
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(stealthRetryBackoff), retries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Scraper) fetchOnce(ctx context.Context, client *http.Client, req Request, tier Tier) (*Result, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, err
	}
	s.setHeaders(httpReq, tier)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &transportError{err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return nil, fmt.Errorf("anti-bot response (status %d)", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "text/plain") {
		return nil, fmt.Errorf("unsupported content type %q", contentType)
	}

	body, err := decompress(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode body: %w", err)
	}
	rawHTML := string(body)

	if !extract.HasEnoughContent(rawHTML) {
		return nil, fmt.Errorf("challenge or empty page detected")
	}

	finalURL := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return s.buildResult(req, tier, resp.StatusCode, finalURL, rawHTML, "")
}

// buildResult runs extraction and SSR detection over the captured HTML.
func (s *Scraper) buildResult(req Request, tier Tier, status int, finalURL, rawHTML, title string) (*Result, error) {
	content, err := extract.Extract(rawHTML, req.MainOnly, finalURL)
	if err != nil {
		return nil, fmt.Errorf("content extraction failed: %w", err)
	}
	if title == "" {
		title = content.Title
	}
	return &Result{
		URL:        req.URL,
		FinalURL:   finalURL,
		Tier:       tier,
		StatusCode: status,
		Title:      title,
		Desc:       content.Description,
		HTML:       content.HTML,
		Text:       content.Text,
		Markdown:   content.Markdown,
		Links:      content.Links,
		SSR:        extract.DetectSSR(rawHTML),
	}, nil
}

func (s *Scraper) httpClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		ForceAttemptHTTP2:   true,
	}
	if s.cfg.Proxy != nil && s.cfg.Proxy.Server != "" {
		if u, err := url.Parse(s.cfg.Proxy.Server); err == nil {
			if s.cfg.Proxy.Username != "" {
				u.User = url.UserPassword(s.cfg.Proxy.Username, s.cfg.Proxy.Password)
			}
			transport.Proxy = http.ProxyURL(u)
		} else {
			s.logger.Warn("Invalid proxy server, scraping without proxy", zap.Error(err))
		}
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		s.logger.Debug("HTTP/2 transport configuration failed", zap.Error(err))
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

func (s *Scraper) userAgent() string {
	if s.cfg.UserAgent != "" {
		return s.cfg.UserAgent
	}
	return stealth.DefaultPersona.UserAgent
}

func (s *Scraper) setHeaders(req *http.Request, tier Tier) {
	req.Header.Set("User-Agent", s.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	if tier == TierStealth {
		req.Header.Set("Sec-Fetch-Dest", "document")
		req.Header.Set("Sec-Fetch-Mode", "navigate")
		req.Header.Set("Sec-Fetch-Site", "none")
		req.Header.Set("Sec-Fetch-User", "?1")
		req.Header.Set("Sec-CH-UA", `"Chromium";v="126", "Google Chrome";v="126", "Not-A.Brand";v="8"`)
		req.Header.Set("Sec-CH-UA-Mobile", "?0")
		req.Header.Set("Sec-CH-UA-Platform", `"Windows"`)
		req.Header.Set("Upgrade-Insecure-Requests", "1")
		req.Header.Set("DNT", "1")
	}
}

func decompress(body io.Reader, encoding string) ([]byte, error) {
	limited := io.LimitReader(body, maxBodyBytes)
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		r, err := gzip.NewReader(limited)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "deflate":
		r := flate.NewReader(limited)
		defer r.Close()
		return io.ReadAll(r)
	case "br":
		return io.ReadAll(brotli.NewReader(limited))
	default:
		return io.ReadAll(limited)
	}
}

// transportError marks a low-level network failure as retryable.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "anti-bot") || strings.Contains(msg, "http status 5")
}

// File: internal/snapshot/live.go
package snapshot

import (
	"net/url"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// LivePage is the narrow page surface the live builder needs. The browser
// package adapts a playwright page to it; tests provide fakes.
type LivePage interface {
	URL() string
	Title() (string, error)
	// Evaluate runs a JS function expression in the page and returns its
	// decoded result.
	Evaluate(expression string) (any, error)
	// WaitForDOMContentLoaded blocks until the load state is reached or the
	// implementation's timeout elapses (5s in browser.PageAdapter).
	WaitForDOMContentLoaded() error
	// AriaSnapshot renders the accessibility tree rooted at body as YAML.
	AriaSnapshot() (string, error)
}

// pageProbeJS gathers body text, anchors, and form controls in one
// round-trip. Counts are pre-bounded in the page to keep the transfer small;
// the Go side re-applies every bound.
const pageProbeJS = `() => {
	const text = document.body ? document.body.innerText : "";
	const links = Array.from(document.querySelectorAll("a[href]"))
		.slice(0, 200)
		.map(a => ({ text: a.innerText || "", href: a.href || "" }));
	const forms = Array.from(document.querySelectorAll("form"))
		.slice(0, 5)
		.map(f => ({
			inputs: Array.from(f.querySelectorAll("input, textarea, select"))
				.slice(0, 10)
				.map(el => {
					const tag = el.tagName.toLowerCase();
					let selector = tag;
					if (el.id) { selector = "#" + el.id; }
					else if (el.name) { selector = tag + '[name="' + el.name + '"]'; }
					return {
						name: el.name || el.id || "",
						type: el.type || tag,
						placeholder: el.placeholder || "",
						selector: selector,
					};
				})
		}));
	return { text, links, forms };
}`

type probeResult struct {
	Text  string `json:"text"`
	Links []struct {
		Text string `json:"text"`
		Href string `json:"href"`
	} `json:"links"`
	Forms []Form `json:"forms"`
}

// FromPage builds a snapshot from a live page. A navigation racing the
// probe can destroy the execution context mid-evaluate; in that case the
// builder waits for domcontentloaded and retries once. A second failure
// yields a minimal snapshot so the outer loop can keep going.
func FromPage(page LivePage, withAria bool, logger *zap.Logger) *Snapshot {
	if logger == nil {
		logger = zap.NewNop()
	}

	finalURL := page.URL()
	snap := &Snapshot{URL: finalURL, Title: finalURL, Links: []Link{}, Forms: []Form{}}

	if title, err := page.Title(); err == nil && title != "" {
		snap.Title = clampString(collapseWhitespace(title), MaxTitleLen)
	}

	result, err := page.Evaluate(pageProbeJS)
	if err != nil {
		logger.Debug("Page probe failed, waiting for load and retrying once", zap.Error(err))
		_ = page.WaitForDOMContentLoaded()
		result, err = page.Evaluate(pageProbeJS)
	}
	if err != nil {
		logger.Warn("Page probe failed twice, returning minimal snapshot",
			zap.String("url", finalURL), zap.Error(err))
		return snap
	}

	probe, err := decodeProbe(result)
	if err != nil {
		logger.Warn("Page probe returned an unexpected shape", zap.Error(err))
		return snap
	}

	snap.Text = clampString(collapseWhitespace(probe.Text), MaxBodyTextLen)

	base, baseErr := url.Parse(finalURL)
	for _, l := range probe.Links {
		if len(snap.Links) >= MaxLinks {
			break
		}
		text := collapseWhitespace(l.Text)
		href := strings.TrimSpace(l.Href)
		if baseErr == nil {
			if parsed, err := url.Parse(href); err == nil {
				href = base.ResolveReference(parsed).String()
			}
		}
		if IsNoiseLink(href, text) {
			continue
		}
		snap.Links = append(snap.Links, Link{
			Text:  clampString(text, MaxLinkTextLen),
			Href:  href,
			Index: len(snap.Links),
		})
	}

	for _, f := range probe.Forms {
		if len(snap.Forms) >= MaxForms {
			break
		}
		if len(f.Inputs) > MaxFormInputs {
			f.Inputs = f.Inputs[:MaxFormInputs]
		}
		snap.Forms = append(snap.Forms, f)
	}

	if withAria {
		// Accessibility capture is best effort; failure is non-fatal.
		if aria, err := page.AriaSnapshot(); err == nil {
			snap.AriaYAML = clampString(aria, MaxAriaLen)
		} else {
			logger.Debug("Accessibility snapshot failed", zap.Error(err))
		}
	}

	return snap
}

// decodeProbe converts the loosely-typed evaluate result into the probe
// struct by round-tripping through JSON.
func decodeProbe(v any) (*probeResult, error) {
	raw, err := json.ConfigCompatibleWithStandardLibrary.Marshal(v)
	if err != nil {
		return nil, err
	}
	var probe probeResult
	if err := json.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	return &probe, nil
}

// File: internal/extract/content.go

// Package extract distills raw HTML into main content, embedded
// server-rendered state, and a content-sufficiency verdict shared by the
// scraper tiers and the static agent loop.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// readabilityCharThreshold is the minimum text length for a block to be
	// scored as a content candidate.
	readabilityCharThreshold = 50
	// readabilityMinResult rejects an extraction whose total text is shorter
	// than this, triggering the heuristic fallback.
	readabilityMinResult = 100
	// heuristicMinCandidate is the minimum text length for a main-content
	// candidate in the fallback pass.
	heuristicMinCandidate = 150
)

// noiseSelectors are stripped before any content pass.
var noiseSelectors = []string{
	"script", "style", "noscript", "iframe", "svg",
	"nav", "header", "footer", "aside",
	"[class*=sidebar]", "[id*=sidebar]",
	"[class*=advert]", "[id*=advert]", "[class*=banner]",
	"[class*=cookie]", "[id*=cookie]",
	"[class*=modal]", "[id*=modal]", "[class*=popup]",
	"[class*=social-share]", "[class*=share-button]",
	"[class*=comment]", "[id*=comments]",
	"[class*=newsletter]", "[id*=newsletter]",
}

// mainCandidates are tried in order during the heuristic fallback.
var mainCandidates = []string{
	"main", "article", "[role=main]",
	"#main-content", "#content", "#main",
	".main-content", ".content", ".post-content", ".article-content",
	".entry-content", ".page-content", ".blog-post", ".blog-content",
	".post-body", ".article-body",
}

// Content is the extractor output.
type Content struct {
	HTML        string   `json:"html"`
	Text        string   `json:"text"`
	Markdown    string   `json:"markdown"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Links       []string `json:"links"`
}

var wsRe = regexp.MustCompile(`\s+`)

func normalizeText(s string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}

// Extract pulls the main content out of rawHTML. When mainOnly is false the
// whole cleaned body is returned instead of the main-content region. Links
// are resolved against baseURL and deduplicated.
func Extract(rawHTML string, mainOnly bool, baseURL string) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	content := &Content{
		Title:       extractTitle(doc),
		Description: extractDescription(doc),
		Links:       extractLinks(doc, baseURL),
	}

	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	var region *goquery.Selection
	if mainOnly {
		region = scoreContent(doc)
		if region == nil {
			region = heuristicContent(doc)
		}
	}
	if region == nil {
		region = doc.Find("body").First()
		if region.Length() == 0 {
			region = doc.Selection
		}
	}

	stripPresentation(region)

	content.Text = normalizeText(region.Text())
	if h, err := region.Html(); err == nil {
		content.HTML = strings.TrimSpace(h)
	}
	content.Markdown = renderMarkdown(region)
	return content, nil
}

// scoreContent is the readability-style pass: score every paragraph-bearing
// block by text mass, comma density, and link density, then take the best
// block's parent region. Returns nil when nothing clears the thresholds.
func scoreContent(doc *goquery.Document) *goquery.Selection {
	type scored struct {
		sel   *goquery.Selection
		score float64
	}
	var best *scored

	doc.Find("p, pre, td, blockquote").Each(func(_ int, sel *goquery.Selection) {
		text := normalizeText(sel.Text())
		if len(text) < readabilityCharThreshold {
			return
		}
		parent := sel.Parent()
		if parent.Length() == 0 {
			return
		}
		parentText := normalizeText(parent.Text())
		linkText := 0
		parent.Find("a").Each(func(_ int, a *goquery.Selection) {
			linkText += len(normalizeText(a.Text()))
		})
		linkDensity := 0.0
		if len(parentText) > 0 {
			linkDensity = float64(linkText) / float64(len(parentText))
		}
		score := float64(len(text)) + float64(strings.Count(text, ",")*20)
		score *= 1.0 - linkDensity
		if best == nil || score > best.score {
			best = &scored{sel: parent, score: score}
		}
	})

	if best == nil {
		return nil
	}
	if len(normalizeText(best.sel.Text())) < readabilityMinResult {
		return nil
	}
	return best.sel
}

// heuristicContent walks the candidate list and returns the first region
// with enough text.
func heuristicContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range mainCandidates {
		found := doc.Find(sel).First()
		if found.Length() == 0 {
			continue
		}
		if len(normalizeText(found.Text())) > heuristicMinCandidate {
			return found
		}
	}
	return nil
}

func stripPresentation(region *goquery.Selection) {
	region.Find("*").Each(func(_ int, sel *goquery.Selection) {
		sel.RemoveAttr("style")
		sel.RemoveAttr("onclick")
		sel.RemoveAttr("class")
	})
}

func extractTitle(doc *goquery.Document) string {
	if t := normalizeText(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if t := normalizeText(og); t != "" {
			return t
		}
	}
	return normalizeText(doc.Find("h1").First().Text())
}

func extractDescription(doc *goquery.Document) string {
	for _, sel := range []string{
		`meta[name="description"]`,
		`meta[property="og:description"]`,
		`meta[name="twitter:description"]`,
	} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if d := normalizeText(v); d != "" {
				return d
			}
		}
	}
	return ""
}

func extractLinks(doc *goquery.Document, baseURL string) []string {
	base, baseErr := url.Parse(baseURL)
	seen := make(map[string]struct{})
	links := make([]string, 0, 16)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		for _, scheme := range []string{"javascript:", "mailto:", "tel:"} {
			if strings.HasPrefix(lower, scheme) {
				return
			}
		}
		if baseErr == nil {
			if parsed, err := url.Parse(href); err == nil {
				href = base.ResolveReference(parsed).String()
			}
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	})
	return links
}

// File: internal/extract/sufficiency.go
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// minContentChars is the floor below which a page never counts as real
	// content.
	minContentChars = 200
	// challengePageMaxChars is the ceiling below which anti-bot phrases mark
	// the page as a challenge interstitial.
	challengePageMaxChars = 2_000
)

// challengePhrases are matched case-insensitively against short pages.
var challengePhrases = []string{
	"just a moment",
	"checking your browser",
	"cloudflare ray id",
	"ray id:",
	"ddos-guard",
	"incapsula",
	"imperva",
	"datadome",
	"captcha",
	"verify you are human",
	"are you a robot",
	"please enable javascript",
	"javascript is required",
	"enable javascript",
	"access denied",
	"bot detected",
}

// HasEnoughContent reports whether HTML carries real page content rather
// than an empty shell or an anti-bot challenge. It strips non-content
// elements destructively on its own parse, so callers may share the raw
// string with other passes.
func HasEnoughContent(rawHTML string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return false
	}
	doc.Find("script, style, noscript, iframe, svg, img").Remove()

	body := doc.Find("body").First()
	var text string
	if body.Length() > 0 {
		text = normalizeText(body.Text())
	} else {
		text = normalizeText(doc.Text())
	}

	if len(text) < minContentChars {
		return false
	}
	if len(text) < challengePageMaxChars {
		lower := strings.ToLower(text)
		for _, phrase := range challengePhrases {
			if strings.Contains(lower, phrase) {
				return false
			}
		}
	}
	return true
}

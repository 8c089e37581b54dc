// File: internal/snapshot/noise.go
package snapshot

import (
	"net/url"
	"regexp"
	"strings"
)

// assetExtRe matches URLs pointing at static assets, with an optional query
// string.
var assetExtRe = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|svg|ico|webp|css|js|woff2?|ttf|eot)(\?.*)?$`)

// socialDomains are hosts whose links carry no navigational value for a
// task.
var socialDomains = map[string]struct{}{
	"twitter.com":   {},
	"x.com":         {},
	"facebook.com":  {},
	"instagram.com": {},
	"linkedin.com":  {},
	"youtube.com":   {},
	"tiktok.com":    {},
	"t.me":          {},
	"wa.me":         {},
	"discord.gg":    {},
	"github.com":    {},
}

// IsNoiseLink reports whether an anchor should be dropped from the
// snapshot. href must already be resolved against the page base; text is the
// anchor's visible text.
func IsNoiseLink(href, text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	trimmed := strings.TrimSpace(href)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:"} {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	if assetExtRe.MatchString(trimmed) {
		return true
	}
	if parsed, err := url.Parse(trimmed); err == nil {
		host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
		if _, hit := socialDomains[host]; hit {
			return true
		}
	}
	return false
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// collapseWhitespace folds all whitespace runs into single spaces.
func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Package stealth carries the anti-detection surface shared by the agent
// and the scraper's browser tier: an init script injected before page
// scripts run, a realistic persona, and the tracker blocklist used for
// route interception.
package stealth

import (
	_ "embed"
	"strings"
)

//go:embed init.js
var initScript string

// Script returns the JavaScript to register with AddInitScript on every
// browser context.
func Script() string {
	return initScript
}

// Persona defines the browser characteristics to present.
type Persona struct {
	UserAgent string
	Locale    string
	Timezone  string
}

// DefaultPersona is a current desktop Chrome profile.
var DefaultPersona = Persona{
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	Locale:    "en-US",
	Timezone:  "America/Los_Angeles",
}

// blockedResourceTypes are aborted wholesale during interception.
var blockedResourceTypes = map[string]struct{}{
	"font":  {},
	"media": {},
	"image": {},
}

// trackerHosts is the analytics blocklist; any script URL containing one of
// these markers is aborted.
var trackerHosts = []string{
	"google-analytics",
	"googletagmanager",
	"connect.facebook.net",
	"facebook.com/tr",
	"hotjar",
	"fullstory",
	"segment.io",
	"segment.com",
	"mixpanel",
	"amplitude",
	"sentry.io",
	"clarity.ms",
	"doubleclick",
	"adnxs",
	"criteo",
	"taboola",
	"outbrain",
}

// ShouldBlock reports whether a request should be aborted: heavy resource
// types always, scripts when they match the tracker blocklist.
func ShouldBlock(url, resourceType string) bool {
	if _, heavy := blockedResourceTypes[resourceType]; heavy {
		return true
	}
	if resourceType != "script" {
		return false
	}
	lower := strings.ToLower(url)
	for _, host := range trackerHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

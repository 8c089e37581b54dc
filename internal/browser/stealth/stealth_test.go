package stealth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScriptIsEmbedded(t *testing.T) {
	js := Script()
	assert.NotEmpty(t, js)
	assert.Contains(t, js, "webdriver")
	assert.Contains(t, js, "permissions.query")
}

func TestShouldBlockResourceTypes(t *testing.T) {
	assert.True(t, ShouldBlock("https://example.com/a.woff2", "font"))
	assert.True(t, ShouldBlock("https://example.com/video.mp4", "media"))
	assert.True(t, ShouldBlock("https://example.com/hero.jpg", "image"))
	assert.False(t, ShouldBlock("https://example.com/app.css", "stylesheet"))
	assert.False(t, ShouldBlock("https://example.com/", "document"))
}

func TestShouldBlockTrackerScripts(t *testing.T) {
	assert.True(t, ShouldBlock("https://www.google-analytics.com/analytics.js", "script"))
	assert.True(t, ShouldBlock("https://www.GoogleTagManager.com/gtm.js", "script"))
	assert.True(t, ShouldBlock("https://cdn.mixpanel.com/lib.js", "script"))
	assert.False(t, ShouldBlock("https://example.com/app.js", "script"))
	// Tracker hosts only matter for scripts.
	assert.False(t, ShouldBlock("https://www.google-analytics.com/collect", "xhr"))
}

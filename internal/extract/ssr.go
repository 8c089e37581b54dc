// File: internal/extract/ssr.go
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	json "github.com/json-iterator/go"
)

// SSRData is framework state recovered from server-rendered HTML.
type SSRData struct {
	Framework string          `json:"framework"`
	Data      json.RawMessage `json:"data"`
}

var jsonAPI = json.ConfigCompatibleWithStandardLibrary

// ssrParser attempts one framework signature. A nil return means "not this
// framework"; detection moves on to the next parser.
type ssrParser struct {
	framework string
	parse     func(doc *goquery.Document, raw string) json.RawMessage
}

// ssrParsers run in fixed order; the first hit wins.
var ssrParsers = []ssrParser{
	{"next", parseNext},
	{"angular", parseAngular},
	{"sveltekit", parseSvelteKitModern},
	{"nuxt", parseNuxt},
	{"nuxt3", parseNuxt3},
	{"gatsby", parseGatsby},
	{"remix", parseRemix},
	{"tanstack", parseTanStack},
	{"vue-ssr", parseVueSSR},
	{"sveltekit-legacy", parseSvelteKitLegacy},
	{"generic", parseGeneric},
}

// DetectSSR scans HTML for framework-embedded JSON state. It returns nil
// when no signature matches or the matched payload is not valid JSON.
func DetectSSR(rawHTML string) *SSRData {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	for _, p := range ssrParsers {
		if data := p.parse(doc, rawHTML); data != nil {
			return &SSRData{Framework: p.framework, Data: data}
		}
	}
	return nil
}

func validJSON(s string) json.RawMessage {
	s = strings.TrimSpace(s)
	if s == "" || !jsonAPI.Valid([]byte(s)) {
		return nil
	}
	return json.RawMessage(s)
}

func parseNext(doc *goquery.Document, _ string) json.RawMessage {
	return validJSON(doc.Find("script#__NEXT_DATA__").First().Text())
}

func parseAngular(doc *goquery.Document, _ string) json.RawMessage {
	return validJSON(doc.Find("script#ng-state").First().Text())
}

func parseSvelteKitModern(doc *goquery.Document, _ string) json.RawMessage {
	return validJSON(doc.Find("script[data-sveltekit-fetched]").First().Text())
}

func parseNuxt(_ *goquery.Document, raw string) json.RawMessage {
	return validJSON(scanAssignedObject(raw, "window.__NUXT__"))
}

var nuxt3Re = regexp.MustCompile(`window\.__nuxt_state__\s*=\s*'((?:[^'\\]|\\.)*)'`)

func parseNuxt3(_ *goquery.Document, raw string) json.RawMessage {
	m := nuxt3Re.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	decoded, err := url.QueryUnescape(m[1])
	if err != nil {
		return nil
	}
	return validJSON(decoded)
}

func parseGatsby(doc *goquery.Document, raw string) json.RawMessage {
	if doc.Find("#___gatsby").Length() == 0 {
		return nil
	}
	return validJSON(scanAssignedObject(raw, "window.pageData"))
}

func parseRemix(_ *goquery.Document, raw string) json.RawMessage {
	return validJSON(scanAssignedObject(raw, "window.__remixContext"))
}

func parseTanStack(_ *goquery.Document, raw string) json.RawMessage {
	return validJSON(scanAssignedObject(raw, "window.__TSR__"))
}

func parseVueSSR(doc *goquery.Document, raw string) json.RawMessage {
	if doc.Find(`[data-server-rendered="true"]`).Length() == 0 {
		return nil
	}
	return validJSON(scanAssignedObject(raw, "window.__INITIAL_STATE__"))
}

func parseSvelteKitLegacy(_ *goquery.Document, raw string) json.RawMessage {
	idx := svelteKitVarRe.FindStringIndex(raw)
	if idx == nil {
		return nil
	}
	return validJSON(scanObjectFrom(raw, idx[1]))
}

var svelteKitVarRe = regexp.MustCompile(`__sveltekit_\w+\s*=\s*`)

var genericStateRe = regexp.MustCompile(
	`window\.(__INITIAL_STATE__|__APP_STATE__|__REDUX_STATE__|__STORE_STATE__|__DATA__|__STATE__|__PROPS__)\s*=\s*`)

func parseGeneric(_ *goquery.Document, raw string) json.RawMessage {
	idx := genericStateRe.FindStringIndex(raw)
	if idx == nil {
		return nil
	}
	return validJSON(scanObjectFrom(raw, idx[1]))
}

// scanAssignedObject finds `marker = {...}` and returns the balanced object
// literal, or "" when absent or unbalanced.
func scanAssignedObject(raw, marker string) string {
	idx := strings.Index(raw, marker)
	if idx < 0 {
		return ""
	}
	rest := raw[idx+len(marker):]
	eq := strings.Index(rest, "=")
	if eq < 0 {
		return ""
	}
	return scanObjectFrom(rest, eq+1)
}

// scanObjectFrom extracts a balanced {...} object starting at or after pos,
// honoring string literals and escapes.
func scanObjectFrom(s string, pos int) string {
	i := pos
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	if i >= len(s) || s[i] != '{' {
		return ""
	}
	depth := 0
	inString := false
	var quote byte
	for j := i; j < len(s); j++ {
		c := s[j]
		if inString {
			switch c {
			case '\\':
				j++
			case quote:
				inString = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = true
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[i : j+1]
			}
		}
	}
	return ""
}

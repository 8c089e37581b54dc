// File: internal/action/action_test.go
package action

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *Action {
	t.Helper()
	a, err := Parse([]byte(raw))
	require.NoError(t, err)
	return a
}

func TestParseVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Action
	}{
		{"click", `{"type":"click","selector":"#go"}`, Action{Type: KindClick, Selector: "#go"}},
		{"type", `{"type":"type","selector":"input[name=q]","text":"solar flares"}`,
			Action{Type: KindType, Selector: "input[name=q]", Text: "solar flares"}},
		{"select", `{"type":"select","selector":"#lang","value":"pt"}`,
			Action{Type: KindSelect, Selector: "#lang", Value: "pt"}},
		{"pressKey", `{"type":"pressKey","key":"Enter"}`, Action{Type: KindPressKey, Key: "Enter"}},
		{"hover", `{"type":"hover","selector":".menu"}`, Action{Type: KindHover, Selector: ".menu"}},
		{"goto", `{"type":"goto","url":"https://example.com/page"}`,
			Action{Type: KindGoto, URL: "https://example.com/page"}},
		{"wait", `{"type":"wait","ms":250}`, Action{Type: KindWait, Ms: 250}},
		{"scroll", `{"type":"scroll","direction":"down","amount":800}`,
			Action{Type: KindScroll, Direction: "down", Amount: 800}},
		{"done", `{"type":"done","result":"42"}`, Action{Type: KindDone, Result: "42"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustParse(t, tt.raw)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"not json", `click #go`, "not a JSON object"},
		{"array", `[{"type":"click"}]`, "not a JSON object"},
		{"missing type", `{"selector":"#go"}`, `missing "type"`},
		{"numeric type", `{"type":7}`, `"type" must be a string`},
		{"unknown type", `{"type":"levitate"}`, `unknown action type "levitate"`},
		{"foreign key", `{"type":"click","selector":"#go","text":"x"}`, `unknown key "text"`},
		{"empty selector", `{"type":"click","selector":""}`, "selector must not be empty"},
		{"padded selector", `{"type":"click","selector":" #go "}`, "surrounding whitespace"},
		{"empty text", `{"type":"type","selector":"#q","text":""}`, `non-empty "text"`},
		{"empty value", `{"type":"select","selector":"#s","value":""}`, `non-empty "value"`},
		{"unlisted key", `{"type":"pressKey","key":"MetaLeft"}`, "not in the allowed key set"},
		{"blank url", `{"type":"goto","url":"  "}`, `requires a "url"`},
		{"wait zero", `{"type":"wait","ms":0}`, "wait ms must be within"},
		{"wait too long", `{"type":"wait","ms":5001}`, "wait ms must be within"},
		{"bad direction", `{"type":"scroll","direction":"sideways"}`, "scroll direction"},
		{"scroll too far", `{"type":"scroll","direction":"down","amount":5001}`, "scroll amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestParseLengthBounds(t *testing.T) {
	longSel := strings.Repeat("a", MaxSelectorLen+1)
	_, err := Parse([]byte(`{"type":"click","selector":"` + longSel + `"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selector exceeds")

	longText := strings.Repeat("b", MaxTextLen+1)
	_, err = Parse([]byte(`{"type":"type","selector":"#q","text":"` + longText + `"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text exceeds")

	longResult := strings.Repeat("c", MaxResultLen+1)
	_, err = Parse([]byte(`{"type":"done","result":"` + longResult + `"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "result exceeds")
}

func TestParseSelectorInjection(t *testing.T) {
	for _, sel := range []string{
		`a[href="javascript:alert(1)"]`,
		`<script>alert(1)</script>`,
		`img[src="data:text/html,x"]`,
		`div[onclick=steal()]`,
		`div[ onmouseover = run() ]`,
	} {
		_, err := Parse([]byte(`{"type":"click","selector":` + quoteJSON(sel) + `}`))
		assert.Error(t, err, "selector %q should be rejected", sel)
	}
}

func quoteJSON(s string) string {
	out, _ := jsonAPI.Marshal(s)
	return string(out)
}

func TestParseAllowsFunctionKeys(t *testing.T) {
	a := mustParse(t, `{"type":"pressKey","key":"F5"}`)
	assert.Equal(t, "F5", a.Key)
}

func TestAllowedKeysMatchesParser(t *testing.T) {
	keys := AllowedKeys()
	require.Len(t, keys, len(allowedKeys))
	for _, k := range keys {
		_, ok := allowedKeys[k]
		assert.True(t, ok, "key %s missing from parser set", k)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	a := mustParse(t, `{"type":"type","selector":"#q","text":"hello"}`)

	formatted := Format(a)
	again, err := Parse([]byte(formatted))
	require.NoError(t, err)
	assert.Equal(t, a, again)
}

func TestKeyNormalizesWhitespace(t *testing.T) {
	a := mustParse(t, `{ "type" : "click" , "selector" : "#go" }`)
	b := mustParse(t, `{"selector":"#go","type":"click"}`)
	assert.Equal(t, Key(a), Key(b))
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"type":"click","selector":"#go"}`, `click "#go"`},
		{`{"type":"pressKey","key":"Tab"}`, "press Tab"},
		{`{"type":"goto","url":"https://example.com"}`, "goto https://example.com"},
		{`{"type":"wait","ms":300}`, "wait 300ms"},
		{`{"type":"scroll","direction":"down"}`, "scroll down 500px"},
		{`{"type":"scroll","direction":"up","amount":900}`, "scroll up 900px"},
		{`{"type":"done","result":"abc"}`, "done (3 chars)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Describe(mustParse(t, tt.raw)))
	}
}

func TestDescribeTruncatesText(t *testing.T) {
	long := strings.Repeat("x", 80)
	a := mustParse(t, `{"type":"type","selector":"#q","text":"`+long+`"}`)
	desc := Describe(a)
	assert.Contains(t, desc, strings.Repeat("x", 60)+"...")
}

func TestParseRoleSelector(t *testing.T) {
	rs, ok := ParseRoleSelector(`role=button[name="Submit"]`)
	require.True(t, ok)
	assert.Equal(t, RoleSelector{Role: "button", Name: "Submit"}, rs)

	rs, ok = ParseRoleSelector("role=navigation")
	require.True(t, ok)
	assert.Equal(t, RoleSelector{Role: "navigation", Name: ""}, rs)

	rs, ok = ParseRoleSelector(`role=link[name="Say \"hi\""]`)
	require.True(t, ok)
	assert.Equal(t, `Say "hi"`, rs.Name)

	_, ok = ParseRoleSelector("#plain-css")
	assert.False(t, ok)
	_, ok = ParseRoleSelector(`role=button[name='single']`)
	assert.False(t, ok)
}

func TestRoleSelectorBypassesInjectionChecks(t *testing.T) {
	a := mustParse(t, `{"type":"click","selector":"role=button[name=\"data: sheet\"]"}`)
	assert.True(t, IsRoleSelector(a.Selector))
}

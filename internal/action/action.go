// File: internal/action/action.go

// Package action defines the bounded vocabulary the model is allowed to
// drive the browser with, and the strict parser that turns raw model output
// into exactly one validated variant.
package action

import (
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
)

// Kind discriminates the action variants.
type Kind string

const (
	KindClick    Kind = "click"
	KindType     Kind = "type"
	KindSelect   Kind = "select"
	KindPressKey Kind = "pressKey"
	KindHover    Kind = "hover"
	KindGoto     Kind = "goto"
	KindWait     Kind = "wait"
	KindScroll   Kind = "scroll"
	KindDone     Kind = "done"
)

// Field bounds enforced by Parse.
const (
	MaxSelectorLen = 500
	MaxTextLen     = 1000
	MaxValueLen    = 500
	MaxResultLen   = 50_000
	MaxWaitMs      = 5_000
	MaxScrollPx    = 5_000
	DefaultScroll  = 500
)

// ValidationError reports a malformed or unsafe action.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid action: %s", e.Reason)
}

func failf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Action is the tagged union of every operation the agent may perform.
// Exactly one variant is populated per message; Parse rejects everything
// else.
type Action struct {
	Type      Kind   `json:"type"`
	Selector  string `json:"selector,omitempty"`
	Text      string `json:"text,omitempty"`
	Value     string `json:"value,omitempty"`
	Key       string `json:"key,omitempty"`
	URL       string `json:"url,omitempty"`
	Ms        int    `json:"ms,omitempty"`
	Direction string `json:"direction,omitempty"`
	Amount    int    `json:"amount,omitempty"`
	Result    string `json:"result,omitempty"`
}

var jsonAPI = json.ConfigCompatibleWithStandardLibrary

// allowedKeys is the closed set of key names pressKey accepts.
var allowedKeys = func() map[string]struct{} {
	names := []string{
		"Enter", "Tab", "Escape", "Backspace", "Delete",
		"ArrowUp", "ArrowDown", "ArrowLeft", "ArrowRight",
		"Home", "End", "PageUp", "PageDown", "Space",
	}
	for i := 1; i <= 12; i++ {
		names = append(names, fmt.Sprintf("F%d", i))
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}()

// AllowedKeys returns the closed key set in a deterministic order, for
// prompt construction.
func AllowedKeys() []string {
	keys := []string{
		"Enter", "Tab", "Escape", "Backspace", "Delete",
		"ArrowUp", "ArrowDown", "ArrowLeft", "ArrowRight",
		"Home", "End", "PageUp", "PageDown", "Space",
	}
	for i := 1; i <= 12; i++ {
		keys = append(keys, fmt.Sprintf("F%d", i))
	}
	return keys
}

// fieldsByKind lists the keys each variant may carry besides "type".
var fieldsByKind = map[Kind][]string{
	KindClick:    {"selector"},
	KindType:     {"selector", "text"},
	KindSelect:   {"selector", "value"},
	KindPressKey: {"key"},
	KindHover:    {"selector"},
	KindGoto:     {"url"},
	KindWait:     {"ms"},
	KindScroll:   {"direction", "amount"},
	KindDone:     {"result"},
}

// Parse performs the exhaustive discriminated parse of raw model output.
// Unknown types, unknown keys, and out-of-bound values are all rejected.
// For goto actions the URL is NOT validated here; the safety validator runs
// with the runtime allow/block lists just before execution.
func Parse(raw []byte) (*Action, error) {
	var fields map[string]json.RawMessage
	if err := jsonAPI.Unmarshal(raw, &fields); err != nil {
		return nil, failf("not a JSON object: %v", err)
	}

	rawType, ok := fields["type"]
	if !ok {
		return nil, failf("missing \"type\" field")
	}
	var kindStr string
	if err := jsonAPI.Unmarshal(rawType, &kindStr); err != nil {
		return nil, failf("\"type\" must be a string")
	}
	kind := Kind(kindStr)

	allowed, ok := fieldsByKind[kind]
	if !ok {
		return nil, failf("unknown action type %q", kindStr)
	}
	for key := range fields {
		if key == "type" {
			continue
		}
		known := false
		for _, f := range allowed {
			if key == f {
				known = true
				break
			}
		}
		if !known {
			return nil, failf("unknown key %q for action %q", key, kindStr)
		}
	}

	var a Action
	if err := jsonAPI.Unmarshal(raw, &a); err != nil {
		return nil, failf("malformed action body: %v", err)
	}
	a.Type = kind

	if err := a.checkBounds(); err != nil {
		return nil, err
	}
	return &a, nil
}

func (a *Action) checkBounds() error {
	switch a.Type {
	case KindClick, KindHover:
		return validateSelector(a.Selector)
	case KindType:
		if err := validateSelector(a.Selector); err != nil {
			return err
		}
		if a.Text == "" {
			return failf("type action requires non-empty \"text\"")
		}
		if len(a.Text) > MaxTextLen {
			return failf("text exceeds %d characters", MaxTextLen)
		}
	case KindSelect:
		if err := validateSelector(a.Selector); err != nil {
			return err
		}
		if a.Value == "" {
			return failf("select action requires non-empty \"value\"")
		}
		if len(a.Value) > MaxValueLen {
			return failf("value exceeds %d characters", MaxValueLen)
		}
	case KindPressKey:
		if _, ok := allowedKeys[a.Key]; !ok {
			return failf("key %q is not in the allowed key set", a.Key)
		}
	case KindGoto:
		if strings.TrimSpace(a.URL) == "" {
			return failf("goto action requires a \"url\"")
		}
	case KindWait:
		if a.Ms < 1 || a.Ms > MaxWaitMs {
			return failf("wait ms must be within [1,%d], got %d", MaxWaitMs, a.Ms)
		}
	case KindScroll:
		if a.Direction != "up" && a.Direction != "down" {
			return failf("scroll direction must be \"up\" or \"down\", got %q", a.Direction)
		}
		if a.Amount != 0 && (a.Amount < 1 || a.Amount > MaxScrollPx) {
			return failf("scroll amount must be within [1,%d], got %d", MaxScrollPx, a.Amount)
		}
	case KindDone:
		if len(a.Result) > MaxResultLen {
			return failf("result exceeds %d characters", MaxResultLen)
		}
	}
	return nil
}

// Format renders the action as canonical compact JSON. Because the typed
// struct is re-marshalled with a fixed field order, quote style and
// whitespace from the original model output are normalized away, so the
// output doubles as the loop-detection key. Parse(Format(a)) yields a again.
func Format(a *Action) string {
	out, err := jsonAPI.Marshal(a)
	if err != nil {
		// Marshalling a plain struct cannot fail; keep a defined fallback.
		return fmt.Sprintf(`{"type":%q}`, a.Type)
	}
	return string(out)
}

// Key returns the canonical loop-detection key for the action.
func Key(a *Action) string { return Format(a) }

// Describe renders a short human-readable line for history and reports.
func Describe(a *Action) string {
	switch a.Type {
	case KindClick:
		return fmt.Sprintf("click %q", a.Selector)
	case KindType:
		return fmt.Sprintf("type %q into %q", truncate(a.Text, 60), a.Selector)
	case KindSelect:
		return fmt.Sprintf("select %q in %q", a.Value, a.Selector)
	case KindPressKey:
		return fmt.Sprintf("press %s", a.Key)
	case KindHover:
		return fmt.Sprintf("hover %q", a.Selector)
	case KindGoto:
		return fmt.Sprintf("goto %s", a.URL)
	case KindWait:
		return fmt.Sprintf("wait %dms", a.Ms)
	case KindScroll:
		amount := a.Amount
		if amount == 0 {
			amount = DefaultScroll
		}
		return fmt.Sprintf("scroll %s %dpx", a.Direction, amount)
	case KindDone:
		return fmt.Sprintf("done (%d chars)", len(a.Result))
	}
	return string(a.Type)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

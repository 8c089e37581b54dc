// File: internal/action/selector.go
package action

import (
	"regexp"
	"strings"
)

// roleSelectorRe matches accessibility role selectors of the form
// role=button or role=button[name="Submit"]. The name may contain escaped
// double quotes.
var roleSelectorRe = regexp.MustCompile(`^role=(\w+)(?:\[name="((?:[^"\\]|\\.)*)"\])?$`)

// onEventRe catches inline event-handler injection attempts inside CSS
// selectors.
var onEventRe = regexp.MustCompile(`(?i)on\w+\s*=`)

// RoleSelector is a parsed accessibility selector.
type RoleSelector struct {
	Role string
	Name string
}

// ParseRoleSelector returns the parsed role selector, or ok=false when the
// string is a plain CSS selector. Only the \" escape is unescaped in the
// name.
func ParseRoleSelector(s string) (RoleSelector, bool) {
	m := roleSelectorRe.FindStringSubmatch(s)
	if m == nil {
		return RoleSelector{}, false
	}
	return RoleSelector{
		Role: m[1],
		Name: strings.ReplaceAll(m[2], `\"`, `"`),
	}, true
}

// IsRoleSelector reports whether s is a role selector.
func IsRoleSelector(s string) bool {
	return roleSelectorRe.MatchString(s)
}

// validateSelector enforces the selector contract: non-empty after trimming,
// bounded length, and free of script-injection markers. Role selectors match
// a strict grammar and are trusted as-is.
func validateSelector(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return failf("selector must not be empty")
	}
	if trimmed != s {
		return failf("selector must not have surrounding whitespace")
	}
	if len(s) > MaxSelectorLen {
		return failf("selector exceeds %d characters", MaxSelectorLen)
	}
	if IsRoleSelector(s) {
		return nil
	}
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "javascript:"):
		return failf("selector contains javascript: URI")
	case strings.Contains(lower, "<script"):
		return failf("selector contains a script tag")
	case strings.Contains(lower, "data:"):
		return failf("selector contains data: URI")
	case onEventRe.MatchString(s):
		return failf("selector contains an inline event handler")
	}
	return nil
}

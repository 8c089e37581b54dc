// File: internal/snapshot/format.go
package snapshot

import (
	"fmt"
	"net/url"
	"strings"
)

// MaxDisplayURLLen bounds URLs rendered into the model-facing view. Longer
// URLs are reduced to origin+path with a "?..." marker when a query existed.
const MaxDisplayURLLen = 150

// Format renders the snapshot as the model-facing page view.
func (s *Snapshot) Format() string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Current Page\n\nURL: %s\nTitle: %s\n", displayURL(s.URL), s.Title)

	if s.Text != "" {
		b.WriteString("\n### Page Text\n\n")
		b.WriteString(s.Text)
		b.WriteString("\n")
	}

	if len(s.Links) > 0 {
		fmt.Fprintf(&b, "\n### Links (%d)\n\n", len(s.Links))
		for _, l := range s.Links {
			fmt.Fprintf(&b, "[%d] %s -> %s\n", l.Index, l.Text, displayURL(l.Href))
		}
	}

	if len(s.Forms) > 0 {
		fmt.Fprintf(&b, "\n### Forms (%d)\n\n", len(s.Forms))
		for i, f := range s.Forms {
			fmt.Fprintf(&b, "Form %d:\n", i)
			for _, in := range f.Inputs {
				fmt.Fprintf(&b, "  - %s (type=%s", in.Name, in.Type)
				if in.Placeholder != "" {
					fmt.Fprintf(&b, ", placeholder=%q", in.Placeholder)
				}
				fmt.Fprintf(&b, ") selector: %s\n", in.Selector)
			}
		}
	}

	if s.AriaYAML != "" {
		b.WriteString("\n### Accessibility Tree\n\n")
		b.WriteString(s.AriaYAML)
		b.WriteString("\n")
	}

	return b.String()
}

// displayURL shortens over-long URLs to origin+path, keeping a "?..." marker
// when a query string was dropped.
func displayURL(raw string) string {
	if len(raw) <= MaxDisplayURLLen {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return clampString(raw, MaxDisplayURLLen)
	}
	short := parsed.Scheme + "://" + parsed.Host + parsed.Path
	if parsed.RawQuery != "" {
		short += "?..."
	}
	if len(short) > MaxDisplayURLLen {
		short = clampString(short, MaxDisplayURLLen)
	}
	return short
}

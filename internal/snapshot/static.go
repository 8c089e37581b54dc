// File: internal/snapshot/static.go
package snapshot

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FromHTML builds a snapshot from raw HTML resolved against baseURL. It
// never needs a browser and is the perception layer of the static loop.
func FromHTML(rawHTML, baseURL string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	doc.Find("script, style, noscript").Remove()

	snap := &Snapshot{
		URL:   baseURL,
		Title: clampString(collapseWhitespace(doc.Find("title").First().Text()), MaxTitleLen),
		Text:  clampString(collapseWhitespace(doc.Find("body").Text()), MaxBodyTextLen),
	}
	if snap.Title == "" {
		snap.Title = baseURL
	}

	snap.Links = collectLinks(doc, base)
	snap.Forms = collectForms(doc)
	return snap, nil
}

func collectLinks(doc *goquery.Document, base *url.URL) []Link {
	links := make([]Link, 0, MaxLinks)
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		text := collapseWhitespace(sel.Text())

		abs := href
		if parsed, err := url.Parse(strings.TrimSpace(href)); err == nil {
			abs = base.ResolveReference(parsed).String()
		}
		if IsNoiseLink(abs, text) {
			return true
		}
		links = append(links, Link{
			Text:  clampString(text, MaxLinkTextLen),
			Href:  abs,
			Index: len(links),
		})
		return len(links) < MaxLinks
	})
	return links
}

func collectForms(doc *goquery.Document) []Form {
	forms := make([]Form, 0, MaxForms)
	doc.Find("form").EachWithBreak(func(_ int, formSel *goquery.Selection) bool {
		form := Form{}
		formSel.Find("input, textarea, select").EachWithBreak(func(_ int, in *goquery.Selection) bool {
			form.Inputs = append(form.Inputs, describeInput(in))
			return len(form.Inputs) < MaxFormInputs
		})
		forms = append(forms, form)
		return len(forms) < MaxForms
	})
	return forms
}

// describeInput derives the display fields and an addressable selector for
// one form control: #id when present, then tag[name="..."], then the bare
// tag.
func describeInput(in *goquery.Selection) FormInput {
	tag := goquery.NodeName(in)
	name, _ := in.Attr("name")
	id, _ := in.Attr("id")
	typ, _ := in.Attr("type")
	placeholder, _ := in.Attr("placeholder")

	if typ == "" {
		typ = tag
	}

	displayName := name
	if displayName == "" {
		displayName = id
	}

	selector := tag
	switch {
	case id != "":
		selector = "#" + id
	case name != "":
		selector = fmt.Sprintf(`%s[name=%q]`, tag, name)
	}

	return FormInput{
		Name:        displayName,
		Type:        typ,
		Placeholder: placeholder,
		Selector:    selector,
	}
}

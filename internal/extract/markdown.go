// File: internal/extract/markdown.go
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// maxMarkdownDepth caps the recursive traversal so pathological nesting
// cannot blow the stack.
const maxMarkdownDepth = 64

// renderMarkdown emits a flat markdown rendition of the region: headings,
// paragraphs, lists, links, and code. Anything else contributes its text.
func renderMarkdown(region *goquery.Selection) string {
	var b strings.Builder
	for _, node := range region.Nodes {
		renderNode(&b, node, 0)
	}
	out := strings.TrimSpace(b.String())
	// Collapse runs of blank lines left by skipped elements.
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return out
}

func renderNode(b *strings.Builder, n *html.Node, depth int) {
	if depth > maxMarkdownDepth {
		return
	}
	if n.Type == html.TextNode {
		if t := normalizeText(n.Data); t != "" {
			b.WriteString(t)
			b.WriteString(" ")
		}
		return
	}
	if n.Type != html.ElementNode && n.Type != html.DocumentNode {
		return
	}

	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		fmt.Fprintf(b, "\n\n%s %s\n\n", strings.Repeat("#", level), nodeText(n))
		return
	case "p":
		fmt.Fprintf(b, "\n\n%s\n\n", nodeText(n))
		return
	case "br":
		b.WriteString("\n")
		return
	case "a":
		text := nodeText(n)
		href := attr(n, "href")
		if text != "" && href != "" {
			fmt.Fprintf(b, "[%s](%s) ", text, href)
		} else if text != "" {
			b.WriteString(text + " ")
		}
		return
	case "ul", "ol":
		b.WriteString("\n\n")
		i := 1
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "li" {
				if n.Data == "ol" {
					fmt.Fprintf(b, "%d. %s\n", i, nodeText(c))
					i++
				} else {
					fmt.Fprintf(b, "- %s\n", nodeText(c))
				}
			}
		}
		b.WriteString("\n")
		return
	case "pre":
		fmt.Fprintf(b, "\n\n```\n%s\n```\n\n", strings.TrimSpace(rawText(n)))
		return
	case "code":
		fmt.Fprintf(b, "`%s` ", nodeText(n))
		return
	case "blockquote":
		fmt.Fprintf(b, "\n\n> %s\n\n", nodeText(n))
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c, depth+1)
	}
}

func nodeText(n *html.Node) string {
	return normalizeText(rawText(n))
}

func rawText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

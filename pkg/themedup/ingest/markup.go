package ingest

import (
	"strings"

	"golang.org/x/net/html"
)

// looksLikeMarkup is a cheap check so plain text skips the HTML parser.
func looksLikeMarkup(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0
}

// StripMarkup extracts visible text from an HTML fragment.
// Script and style bodies are dropped. Input that fails to parse is returned unchanged.
func StripMarkup(s string) string {
	if !looksLikeMarkup(s) {
		return s
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var buf strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
	}
	extractText(doc)

	return strings.TrimSpace(buf.String())
}

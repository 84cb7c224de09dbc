// Package analyzer extracts candidate URLs from fetched content.
package analyzer

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Link is a candidate URL extracted from a page.
type Link struct {
	// Absolute URL resolved against the page's base
	URL string

	// Where on the page it was found: a, link, form, script, iframe, img
	Tag string
}

// ExtractLinks parses body and returns absolute candidate URLs resolved
// against baseURL. Malformed references are skipped, never fatal, and
// duplicates within the page are collapsed. A parse failure yields an
// empty or partial set; the page still counts as fetched.
func ExtractLinks(baseURL string, body []byte) []Link {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	e := &extractor{
		base: base,
		seen: make(map[string]struct{}),
	}
	e.traverse(doc)
	return e.links
}

type extractor struct {
	base  *url.URL
	seen  map[string]struct{}
	links []Link
}

func (e *extractor) traverse(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "base":
			if href := getAttr(n, "href"); href != "" {
				if u, err := url.Parse(href); err == nil {
					e.base = e.base.ResolveReference(u)
				}
			}
		case "a", "area":
			e.add(getAttr(n, "href"), "a")
		case "link":
			e.add(getAttr(n, "href"), "link")
		case "form":
			e.add(getAttr(n, "action"), "form")
		case "script":
			e.add(getAttr(n, "src"), "script")
		case "iframe", "frame":
			e.add(getAttr(n, "src"), "iframe")
		case "img":
			e.add(getAttr(n, "src"), "img")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.traverse(c)
	}
}

// add resolves and records a reference, skipping non-navigational schemes.
func (e *extractor) add(ref, tag string) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") ||
		strings.HasPrefix(ref, "javascript:") ||
		strings.HasPrefix(ref, "mailto:") ||
		strings.HasPrefix(ref, "tel:") ||
		strings.HasPrefix(ref, "data:") {
		return
	}

	u, err := url.Parse(ref)
	if err != nil {
		return
	}
	resolved := e.base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return
	}
	resolved.Fragment = ""

	abs := resolved.String()
	if _, dup := e.seen[abs]; dup {
		return
	}
	e.seen[abs] = struct{}{}
	e.links = append(e.links, Link{URL: abs, Tag: tag})
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// Package htmlextract is the default extract.Extractor, built on goquery:
// it prefers <article> content (falling back to <body> with boilerplate
// elements stripped) for text, and resolves every anchor href against the
// final URL for links.
package htmlextract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/andrewkchan/podcrawl/internal/extract"
)

// nonContentSelectors lists elements stripped before extracting body text.
const nonContentSelectors = "script, style, nav, header, footer"

// Extractor is the default HTML extractor.
type Extractor struct{}

// New constructs an Extractor.
func New() *Extractor { return &Extractor{} }

var _ extract.Extractor = (*Extractor)(nil)

// Extract parses htmlBytes and returns its text, title, and absolute links.
func (e *Extractor) Extract(htmlBytes []byte, finalURL string) (*extract.Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBytes))
	if err != nil {
		return nil, fmt.Errorf("htmlextract: parse html: %w", err)
	}

	base, err := url.Parse(finalURL)
	if err != nil {
		return nil, fmt.Errorf("htmlextract: parse final url: %w", err)
	}

	return &extract.Result{
		Text:  extractBodyText(doc),
		Title: extractTitle(doc),
		Links: extractLinks(doc, base),
	}, nil
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}

	if ogTitle, exists := doc.Find("meta[property='og:title']").Attr("content"); exists {
		return strings.TrimSpace(ogTitle)
	}

	return ""
}

func extractBodyText(doc *goquery.Document) string {
	article := doc.Find("article").First()
	if article.Length() > 0 {
		article.Find(nonContentSelectors).Remove()
		return strings.TrimSpace(article.Text())
	}

	body := doc.Find("body").First()
	if body.Length() > 0 {
		body.Find(nonContentSelectors).Remove()
		return strings.TrimSpace(body.Text())
	}

	return ""
}

// extractLinks resolves every anchor href against base, de-duplicating by
// URL while preserving first-occurrence order. Unlike a same-site crawler,
// cross-domain links are kept: politeness and exclusion rules (not the
// extractor) decide whether a discovered link is ultimately admitted.
func extractLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists || href == "" {
			return
		}

		resolved := resolveURL(base, href)
		if resolved == "" {
			return
		}

		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})

	return links
}

// resolveURL resolves href against base, rejecting non-HTTP(S) schemes
// (javascript:, mailto:, tel:, ...) and stripping fragments.
func resolveURL(base *url.URL, href string) string {
	if isNonHTTPLink(href) {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	resolved.Fragment = ""

	return resolved.String()
}

func isNonHTTPLink(href string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(href))
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:", "#"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

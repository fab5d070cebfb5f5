// Package extract turns page markup into clean text and same-host links.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/site-ingestor/internal/crawler"
)

// contentSelectors are tried in order; the first match is the page content.
var contentSelectors = []string{
	"main",
	"article",
	"#content",
	"#main",
	".content",
	".main-content",
}

// noiseSelectors are stripped from the body when no content container matches.
const noiseSelectors = "nav, header, footer, aside, script, style, form"

// Result is the extracted view of a page.
type Result struct {
	Text  string
	Links []string
	Title string
}

// Extract parses markup fetched from currentURL and returns its main text
// plus the deduplicated links that stay on host.
func Extract(markup, currentURL, host string) (Result, error) {
	base, err := url.Parse(currentURL)
	if err != nil {
		return Result{}, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}

	return Result{
		Text:  mainText(doc),
		Links: sameHostLinks(doc, base, strings.ToLower(host)),
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}, nil
}

// Extractor adapts Extract to the crawl scheduler.
type Extractor struct{}

// Extract implements crawler.Extractor.
func (Extractor) Extract(markup, pageURL, host string) (string, []string, error) {
	res, err := Extract(markup, pageURL, host)
	if err != nil {
		return "", nil, err
	}
	return res.Text, res.Links, nil
}

func mainText(doc *goquery.Document) string {
	for _, sel := range contentSelectors {
		if match := doc.Find(sel).First(); match.Length() > 0 {
			return cleanText(match)
		}
	}

	clone := doc.Selection.Clone()
	clone.Find(noiseSelectors).Remove()
	body := clone.Find("body").First()
	if body.Length() == 0 {
		return ""
	}
	return cleanText(body)
}

// cleanText puts every text node on its own line, trims lines and drops blanks.
func cleanText(sel *goquery.Selection) string {
	var lines []string
	for _, n := range sel.Nodes {
		collectText(n, &lines)
	}
	return strings.Join(lines, "\n")
}

func collectText(n *html.Node, lines *[]string) {
	switch n.Type {
	case html.TextNode:
		for _, line := range strings.Split(n.Data, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				*lines = append(*lines, line)
			}
		}
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template":
			return
		}
	case html.CommentNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, lines)
	}
}

func sameHostLinks(doc *goquery.Document, base *url.URL, host string) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if skipHref(href) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if crawler.HostKey(abs) != host {
			return
		}
		abs.Fragment = ""
		abs.RawFragment = ""
		link := abs.String()
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}

func skipHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"mailto:", "tel:", "javascript:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

package profiler

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// markupRule maps a pattern in the raw markup to techs.
type markupRule struct {
	pattern *regexp.Regexp
	techs   []string
}

var markupRules = []markupRule{
	{regexp.MustCompile(`__NEXT_DATA__|/_next/static/|id="__next"`), []string{"next.js", "react"}},
	{regexp.MustCompile(`data-reactroot|data-reactid|react-dom(\.production)?(\.min)?\.js`), []string{"react"}},
	{regexp.MustCompile(`__NUXT__|/_nuxt/|id="__nuxt"`), []string{"nuxt.js", "vue.js"}},
	{regexp.MustCompile(`data-v-[0-9a-f]{6,8}|vue(\.runtime)?(\.global)?(\.min)?\.js|data-server-rendered="true"`), []string{"vue.js"}},
	{regexp.MustCompile(`ng-version="|ng-app|angular(\.min)?\.js`), []string{"angular"}},
	{regexp.MustCompile(`class="[^"]*svelte-[a-z0-9]{5,}|__sveltekit|data-sveltekit`), []string{"svelte"}},
	{regexp.MustCompile(`/wp-content/|/wp-includes/`), []string{"wordpress"}},
	{regexp.MustCompile(`cdn\.shopify\.com|Shopify\.theme`), []string{"shopify"}},
	{regexp.MustCompile(`static\.wixstatic\.com`), []string{"wix"}},
	{regexp.MustCompile(`static1\.squarespace\.com`), []string{"squarespace"}},
	{regexp.MustCompile(`/sites/default/files/|Drupal\.settings`), []string{"drupal"}},
	{regexp.MustCompile(`jquery[.-]?(\d[\d.]*)?(\.min)?\.js`), []string{"jquery"}},
	{regexp.MustCompile(`js\.datadome\.co|ct\.captcha-delivery\.com`), []string{"datadome"}},
	{regexp.MustCompile(`/cdn-cgi/challenge-platform/`), []string{"cloudflare bot management"}},
	{regexp.MustCompile(`_Incapsula_Resource`), []string{"imperva"}},
}

// versionSuffix trims the version off a generator name ("WordPress 6.4.2").
var versionSuffix = regexp.MustCompile(`\s+v?\d.*$`)

// MarkupDetector fingerprints a site from signatures in its HTML.
type MarkupDetector struct {
	prober Prober
}

// NewMarkupDetector builds a MarkupDetector.
func NewMarkupDetector(prober Prober) *MarkupDetector {
	return &MarkupDetector{prober: prober}
}

// Name identifies the detector in logs and metrics.
func (d *MarkupDetector) Name() string {
	return "markup"
}

// Detect probes url and matches its markup.
func (d *MarkupDetector) Detect(ctx context.Context, url string) ([]string, error) {
	resp, err := d.prober.Probe(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("markup probe: %w", err)
	}
	return matchMarkup(resp.Body)
}

func matchMarkup(body []byte) ([]string, error) {
	var techs []string
	for _, rule := range markupRules {
		if rule.pattern.Match(body) {
			techs = append(techs, rule.techs...)
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("meta[name]").Each(func(_ int, s *goquery.Selection) {
		if name, _ := s.Attr("name"); !strings.EqualFold(name, "generator") {
			return
		}
		content, _ := s.Attr("content")
		name := strings.TrimSpace(versionSuffix.ReplaceAllString(strings.TrimSpace(content), ""))
		if name != "" {
			techs = append(techs, name)
		}
	})
	if v, ok := doc.Find("[ng-version]").First().Attr("ng-version"); ok && v != "" {
		techs = append(techs, "angular")
	}
	return techs, nil
}

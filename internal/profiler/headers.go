package profiler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// headerRule maps a header whose value contains needle to techs. An empty
// needle matches on presence alone.
type headerRule struct {
	header string
	needle string
	techs  []string
}

var headerRules = []headerRule{
	{"Server", "cloudflare", []string{"cloudflare"}},
	{"Server", "nginx", []string{"nginx"}},
	{"Server", "apache", []string{"apache"}},
	{"Server", "litespeed", []string{"litespeed"}},
	{"Server", "microsoft-iis", []string{"iis"}},
	{"Server", "akamaighost", []string{"akamai"}},
	{"Server", "vercel", []string{"vercel"}},
	{"Server", "netlify", []string{"netlify"}},
	{"CF-Ray", "", []string{"cloudflare"}},
	{"CF-Mitigated", "", []string{"cloudflare bot management"}},
	{"X-Datadome", "", []string{"datadome"}},
	{"X-DataDome-CID", "", []string{"datadome"}},
	{"X-Iinfo", "", []string{"imperva"}},
	{"X-CDN", "imperva", []string{"imperva"}},
	{"X-Akamai-Transformed", "", []string{"akamai"}},
	{"Akamai-GRN", "", []string{"akamai"}},
	{"X-Powered-By", "php", []string{"php"}},
	{"X-Powered-By", "express", []string{"express"}},
	{"X-Powered-By", "next.js", []string{"next.js", "react"}},
	{"X-Powered-By", "nuxt", []string{"nuxt.js", "vue.js"}},
	{"X-Powered-By", "asp.net", []string{"asp.net"}},
	{"X-AspNet-Version", "", []string{"asp.net"}},
	{"X-Generator", "drupal", []string{"drupal"}},
	{"X-Drupal-Cache", "", []string{"drupal"}},
	{"X-Shopify-Stage", "", []string{"shopify"}},
	{"X-Wix-Request-Id", "", []string{"wix"}},
	{"X-Vercel-Id", "", []string{"vercel"}},
	{"X-NF-Request-Id", "", []string{"netlify"}},
	{"X-Pingback", "xmlrpc.php", []string{"wordpress"}},
}

// cookieRules maps cookie name prefixes to techs.
var cookieRules = map[string][]string{
	"__cf_bm":         {"cloudflare bot management"},
	"cf_clearance":    {"cloudflare bot management"},
	"datadome":        {"datadome"},
	"incap_ses_":      {"imperva"},
	"visid_incap_":    {"imperva"},
	"ak_bmsc":         {"akamai"},
	"bm_sz":           {"akamai"},
	"_abck":           {"akamai"},
	"phpsessid":       {"php"},
	"laravel_session": {"laravel"},
	"wordpress_":      {"wordpress"},
	"wp-settings-":    {"wordpress"},
}

// HeaderDetector fingerprints a site from its response headers and cookies.
type HeaderDetector struct {
	prober Prober
}

// NewHeaderDetector builds a HeaderDetector.
func NewHeaderDetector(prober Prober) *HeaderDetector {
	return &HeaderDetector{prober: prober}
}

// Name identifies the detector in logs and metrics.
func (d *HeaderDetector) Name() string {
	return "header"
}

// Detect probes url and matches its headers. Error statuses are still
// inspected since bot walls answer with 403 or 429.
func (d *HeaderDetector) Detect(ctx context.Context, url string) ([]string, error) {
	resp, err := d.prober.Probe(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("header probe: %w", err)
	}
	return matchHeaders(resp.Headers), nil
}

func matchHeaders(headers http.Header) []string {
	var techs []string
	for _, rule := range headerRules {
		values := headers.Values(rule.header)
		if len(values) == 0 {
			continue
		}
		if rule.needle == "" {
			techs = append(techs, rule.techs...)
			continue
		}
		for _, v := range values {
			if strings.Contains(strings.ToLower(v), rule.needle) {
				techs = append(techs, rule.techs...)
				break
			}
		}
	}
	for _, cookie := range headers.Values("Set-Cookie") {
		name, _, _ := strings.Cut(cookie, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		for prefix, t := range cookieRules {
			if strings.HasPrefix(name, prefix) {
				techs = append(techs, t...)
			}
		}
	}
	return techs
}

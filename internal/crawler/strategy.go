package crawler

import "strings"

// Technologies that block plain HTTP clients and need a real browser.
var botProtection = map[string]struct{}{
	"datadome":                  {},
	"cloudflare bot management": {},
	"akamai":                    {},
	"imperva":                   {},
}

// Client-side frameworks whose pages are mostly rendered by script.
var jsFrameworks = map[string]struct{}{
	"react":   {},
	"vue.js":  {},
	"angular": {},
	"svelte":  {},
	"next.js": {},
	"nuxt.js": {},
}

// TechReport is the technology fingerprint of a site.
type TechReport struct {
	Technologies []string `json:"technologies"`
}

// ChooseStrategy maps a technology set to a fetch strategy. Bot protection
// wins over frameworks; anything else is fetched statically.
func ChooseStrategy(techs []string) Strategy {
	if intersects(techs, botProtection) {
		return StrategyDynamic
	}
	if intersects(techs, jsFrameworks) {
		return StrategyDynamic
	}
	return StrategyStatic
}

// ChooseStrategyFromReport is ChooseStrategy over a report. A missing report
// selects the dynamic fetcher.
func ChooseStrategyFromReport(report *TechReport) Strategy {
	if report == nil {
		return StrategyDynamic
	}
	return ChooseStrategy(report.Technologies)
}

func intersects(techs []string, set map[string]struct{}) bool {
	for _, t := range techs {
		if _, ok := set[strings.ToLower(strings.TrimSpace(t))]; ok {
			return true
		}
	}
	return false
}

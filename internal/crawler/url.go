package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// NormalizeURL standardizes a URL to avoid duplicates.
// It lowercases the scheme and host, removes default ports, sorts query
// parameters and drops the fragment. An empty path becomes "/".
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = HostKey(u)
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}

	return u.String(), nil
}

// HostKey returns the lowercased authority of u without a default port.
func HostKey(u *url.URL) string {
	host := strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" || u.Scheme == "HTTP":
		host = strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" || u.Scheme == "HTTPS":
		host = strings.TrimSuffix(host, ":443")
	}
	return host
}

// ParseSeed validates a seed URL and returns it parsed along with its host scope.
func ParseSeed(rawURL string) (*url.URL, string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidSeed, rawURL)
	}
	return u, HostKey(u), nil
}

// TitleFromURL derives a page title from the URL path: the root path is
// "home", otherwise the last path segment, or "index" when that is empty.
func TitleFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "index"
	}
	if u.Path == "" || u.Path == "/" {
		return "home"
	}
	trimmed := strings.Trim(u.Path, "/")
	if trimmed == "" {
		return "index"
	}
	return path.Base(trimmed)
}

// SiteRoot returns scheme://host for a parsed seed.
func SiteRoot(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + u.Host
}

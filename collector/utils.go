package collector

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/xerrors"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	multiSpaces  = regexp.MustCompile(`[\s\p{Zs}]{2,}`)
	nonLetters   = regexp.MustCompile(`[^a-z]+`)
)

// AbsoluteURL resolves href against pageURL, drops the fragment and rejects
// anything that is not http or https.
func AbsoluteURL(pageURL string, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", xerrors.New("url has no target outside the page")
	}
	baseURL, err := url.ParseRequestURI(pageURL)
	if err != nil {
		return "", xerrors.Errorf("page url could not be parsed: %w", err)
	}
	absURL, err := baseURL.Parse(href)
	if err != nil {
		return "", xerrors.Errorf("base url could not be parsed with href: %w", err)
	}
	absURL.Fragment = ""
	absURL.RawFragment = ""
	if absURL.Scheme != "http" && absURL.Scheme != "https" {
		return "", xerrors.Errorf("unknown scheme %q", absURL.Scheme)
	}
	if absURL.Path == "" {
		absURL.Path = "/"
	}
	return absURL.String(), nil
}

// RequestPath returns the path and query of rawURL as robots rules see it.
func RequestPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "/"
	}
	return u.RequestURI()
}

// TrimAndSanitize strips markup from s and collapses runs of whitespace.
func TrimAndSanitize(s string) string {
	s = strictPolicy.Sanitize(s)
	s = strings.TrimSpace(s)
	return multiSpaces.ReplaceAllString(s, " ")
}

// NormalizeText lower-cases s and reduces it to single-space separated runs
// of ASCII letters.
func NormalizeText(s string) string {
	s = nonLetters.ReplaceAllString(strings.ToLower(s), " ")
	return strings.TrimSpace(s)
}

// internal/utils/urls.go
package utils

import (
	"net/url"
	"strings"
)

// CanonicalProductURL derives the storage key for a product URL.
//
// It strips the URL scheme, query string and fragment, leaving only the
// hostname and path, so URLs differing in HTTPS vs HTTP or query arguments do
// not resolve to different keys. A trailing slash and a leading "www." are
// stripped as well. Inputs without a scheme prefix ("store.com/item") are
// treated as already host-and-path and pass through unchanged.
func CanonicalProductURL(productURL string) string {
	host, path := splitHostPath(productURL)

	path = strings.TrimSuffix(path, "/")

	cleaned := host + path
	cleaned = strings.TrimPrefix(cleaned, "www.")
	return cleaned
}

func splitHostPath(productURL string) (string, string) {
	parsed, err := url.Parse(productURL)
	if err != nil {
		// Not parseable as a URL; degrade to manual trimming so
		// canonicalization stays total.
		return "", trimQueryFragment(productURL)
	}

	if parsed.Hostname() != "" {
		return strings.ToLower(parsed.Hostname()), parsed.EscapedPath()
	}

	// URL does not include a scheme prefix ("//"), so the parser reports no
	// hostname and the whole input lands in the path component.
	return "", parsed.EscapedPath()
}

func trimQueryFragment(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

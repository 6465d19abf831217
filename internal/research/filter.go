package research

import (
	"net/url"
	"strings"
)

// extractDomainFromURL extracts the domain from a URL
func extractDomainFromURL(urlStr string) string {
	if urlStr == "" {
		return ""
	}

	// Prepend scheme if missing
	if !strings.Contains(urlStr, "://") {
		urlStr = "https://" + urlStr
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}

	return strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
}

// normalizeURL reduces a URL to host+path without scheme, fragment or trailing slash.
func normalizeURL(urlStr string) string {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return ""
	}
	if !strings.Contains(urlStr, "://") {
		urlStr = "https://" + urlStr
	}
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return strings.ToLower(urlStr)
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	path := strings.TrimSuffix(parsed.EscapedPath(), "/")
	key := host + path
	if parsed.RawQuery != "" {
		key += "?" + parsed.RawQuery
	}
	return key
}

// matchesDomain reports whether urlStr is on one of domains or a subdomain of it.
func matchesDomain(urlStr string, domains []string) bool {
	host := extractDomainFromURL(urlStr)
	if host == "" {
		return false
	}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(d, "www."))
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// FilterDomains drops results hosted on any excluded domain.
func FilterDomains(results []Result, excluded []string) []Result {
	if len(excluded) == 0 {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		if !matchesDomain(r.URL, excluded) {
			out = append(out, r)
		}
	}
	return out
}

// Package urlutil provides canonical URL handling shared by every component
// that touches a URL: normalization, domain extraction, and the non-text
// extension heuristic used to keep binary assets out of the frontier.
package urlutil

import (
	"net/url"
	"path"
	"sort"
	"strings"
)

// MaxURLLength is the longest URL the frontier will ever admit.
const MaxURLLength = 2000

// trackingParams lists query parameters stripped during normalization.
// These are advertising and analytics trackers that do not affect page identity.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"gclsrc":       {},
	"dclid":        {},
	"msclkid":      {},
}

// defaultPorts maps schemes to their default port strings.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Normalize applies deterministic transformations to a raw URL so that
// equivalent URLs produce identical strings: lowercases scheme and host,
// removes default ports, resolves path dot-segments, strips the trailing
// slash (except for the root path), strips the fragment, drops tracking
// query parameters, and sorts the remaining ones.
//
// Bare hostnames without a scheme are rejected — the caller must supply
// one. Unlike some reference implementations, Normalize never upgrades
// http to https: the spec calls only for lowercasing, not a forced
// scheme change, so http and https remain distinct identities.
//
// Returns ("", false) on malformed input or input over MaxURLLength;
// Normalize never panics and never returns an error value, per the
// "fails silently" contract every URL utility in this package follows.
func Normalize(rawURL string) (string, bool) {
	if rawURL == "" || len(rawURL) > MaxURLLength {
		return "", false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = normalizeHost(parsed)
	parsed.Fragment = ""
	parsed.RawQuery = buildCleanQuery(parsed.Query())
	parsed.Path = normalizePath(parsed.Path)

	normalized := parsed.String()
	if len(normalized) > MaxURLLength {
		return "", false
	}

	return normalized, true
}

// ExtractDomain returns the lowercased, port-stripped host portion of a URL.
// IDN handling is pass-through, per spec. Returns ("", false) on malformed input.
func ExtractDomain(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "", false
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", false
	}

	return host, true
}

// nonTextExtensions is the fixed set of extensions (without the leading dot)
// treated as binary assets that never belong in a text-crawling frontier.
var nonTextExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "bmp": {}, "svg": {}, "webp": {}, "ico": {},
	"mp4": {}, "avi": {}, "mov": {}, "webm": {},
	"mp3": {}, "wav": {}, "flac": {},
	"pdf": {},
	"doc": {}, "docx": {}, "xls": {}, "xlsx": {}, "ppt": {}, "pptx": {},
	"zip": {}, "tar": {}, "gz": {}, "7z": {}, "rar": {},
	"exe": {}, "dmg": {}, "iso": {},
}

// IsLikelyNonText reports whether the URL's last path segment extension
// (query and fragment stripped) matches a known non-text asset type.
// Malformed URLs are treated as text (false), never raise.
func IsLikelyNonText(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	base := path.Base(parsed.Path)
	ext := path.Ext(base)
	if ext == "" {
		return false
	}

	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	_, isNonText := nonTextExtensions[ext]

	return isNonText
}

// normalizeHost lowercases the hostname and removes the port if it matches
// the scheme's default.
func normalizeHost(u *url.URL) string {
	hostname := strings.ToLower(u.Hostname())
	port := u.Port()

	if port == "" {
		return hostname
	}

	if defaultPort, ok := defaultPorts[u.Scheme]; ok && port == defaultPort {
		return hostname
	}

	return hostname + ":" + port
}

// buildCleanQuery strips tracking parameters, sorts the remaining keys
// alphabetically, and returns the encoded query string.
func buildCleanQuery(values url.Values) string {
	keys := make([]string, 0, len(values))

	for key := range values {
		if _, isTracking := trackingParams[key]; !isTracking {
			keys = append(keys, key)
		}
	}

	if len(keys) == 0 {
		return ""
	}

	sort.Strings(keys)

	var b strings.Builder

	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}

		vals := values[key]
		for j, val := range vals {
			if j > 0 {
				b.WriteByte('&')
			}

			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}

	return b.String()
}

// normalizePath resolves dot-segments and removes trailing slashes while
// preserving the root "/".
func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}

	cleaned := path.Clean(p)

	return strings.TrimRight(cleaned, "/")
}

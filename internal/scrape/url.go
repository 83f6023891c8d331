package scrape

import (
	"encoding/base64"
	"net/url"
	"strings"
)

// CanonicalURL resolves redirect/tracking wrapper URLs to their true
// destination. Wrappers carry the target base64-encoded in a `u` query
// parameter; when the decoded value is an absolute URL it is substituted,
// otherwise the input comes back unchanged. Malformed encodings fall back
// silently — canonicalization is never fatal. Applying it to an already
// canonical URL is a no-op.
func CanonicalURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	encoded := parsed.Query().Get("u")
	if encoded == "" {
		return raw
	}
	decoded, ok := decodeBase64(encoded)
	if !ok {
		return raw
	}
	if target := string(decoded); strings.HasPrefix(target, "http") {
		return target
	}
	return raw
}

// decodeBase64 accepts both alphabets, padded or not; trackers are not
// consistent about either.
func decodeBase64(s string) ([]byte, bool) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, true
		}
	}
	return nil, false
}

// DedupeURLs collapses duplicates keeping the first occurrence, preserving
// order. Inputs are expected to be canonicalized already so that the same
// destination reached through different wrappers collapses too.
func DedupeURLs(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

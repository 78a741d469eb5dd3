package capture

import (
	"net"
	"net/url"
	"strings"
)

// KeyUnknown is the document key used when no usable URL accompanies a
// payload. Unattributable captures still land somewhere queryable instead
// of being dropped.
const KeyUnknown = "unknown"

// DeriveDocKey reduces a raw page URL to the registrable-domain document
// key all captures from that site share, e.g. "https://www.espn.com/nfl"
// becomes "espn.com". Unparseable input maps to KeyUnknown rather than
// failing; IP literals and single-label hosts are kept verbatim.
func DeriveDocKey(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return KeyUnknown
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return KeyUnknown
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return KeyUnknown
	}
	if ip := net.ParseIP(host); ip != nil {
		return host
	}
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// Package endpoint validates inference-engine base URLs before they are
// allowed into the configuration store.
package endpoint

import (
	"net/url"
	"regexp"
	"strings"
)

// urlPattern is the grammar gate: http(s) scheme, a host (name, IPv4 or
// bracketed IPv6), an optional port and an optional path/query/fragment.
var urlPattern = regexp.MustCompile(
	`^(?i:https?)://` +
		`(?:[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?)*|\[[0-9A-Fa-f:.]+\])` +
		`(?::[0-9]{1,5})?` +
		`(?:[/?#][^\s]*)?$`,
)

// IsValid reports whether candidate is an admissible HTTP(S) base URL.
// It never panics; unparsable input yields false.
func IsValid(candidate string) bool {
	if strings.TrimSpace(candidate) == "" {
		return false
	}
	if !urlPattern.MatchString(candidate) {
		return false
	}

	u, err := url.ParseRequestURI(candidate)
	if err != nil {
		return false
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return false
	}
	return u.Hostname() != ""
}

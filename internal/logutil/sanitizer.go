// Package logutil provides logging setup and sanitization of request data
// before it reaches the logs.
package logutil

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

const redacted = "<redacted>"

// sensitiveParams are query parameters whose values never reach the logs.
var sensitiveParams = map[string]bool{
	"api_key":      true,
	"api-key":      true,
	"mailto":       true,
	"email":        true,
	"access_token": true,
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	ipv4Pattern  = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

// RedactQuery masks sensitive parameters in a raw query string and scrubs
// e-mail and IP addresses embedded in the remaining values, such as filter
// expressions. Keys are emitted in sorted order so log lines are stable.
//
// Example:
//
//	filter=raw_author_name.search:a@b.org&api_key=secret
//	=> api_key=<redacted>&filter=raw_author_name.search:<redacted>
//
// An unparsable query string is replaced wholesale.
func RedactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return redacted
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range values[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			if sensitiveParams[strings.ToLower(k)] {
				b.WriteString(redacted)
				continue
			}
			b.WriteString(SanitizeValue(v))
		}
	}
	return b.String()
}

// SanitizeValue replaces e-mail and IPv4 addresses in a single value.
func SanitizeValue(v string) string {
	v = emailPattern.ReplaceAllString(v, redacted)
	return ipv4Pattern.ReplaceAllString(v, redacted)
}

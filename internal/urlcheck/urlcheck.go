// Package urlcheck decides whether a string is an absolute http(s) URL that is
// safe to hand to the relay as a callback or to fetch as an attachment.
package urlcheck

import (
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsValidHTTPURL reports whether raw is an http or https URL with an explicit
// scheme, a host and no embedded credentials.
func IsValidHTTPURL(raw string) bool {
	if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
		return false
	}
	if err := validate.Var(raw, "http_url"); err != nil {
		return false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.User != nil {
		return false
	}
	return u.Hostname() != ""
}

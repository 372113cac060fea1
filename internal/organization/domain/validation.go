package domain

import (
	"net/url"
	"regexp"
)

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,50}$`)

// IsValidSlug reports whether s is a well-formed organization slug:
// 3 to 50 characters from [A-Za-z0-9_]. Total over all inputs.
func IsValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// IsValidLogoURL reports whether u is an acceptable logo location.
// Requires an https scheme and a host; any path is accepted, so CDN
// URLs without a file extension pass. Total over all inputs.
func IsValidLogoURL(u string) bool {
	if u == "" {
		return false
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	return parsed.Scheme == "https" && parsed.Host != ""
}

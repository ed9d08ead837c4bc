package identity

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var itemIDRegex = regexp.MustCompile(`/marketplace/item/(\d+)`)

// CanonicalListingURL strips tracking query strings and fragments so the same
// item always stores the same URL. Unparseable input is returned trimmed.
func CanonicalListingURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = "https"
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	u.RawPath = ""

	return u.String()
}

// ListingIDFromURL extracts the numeric item id from a marketplace item URL.
func ListingIDFromURL(raw string) string {
	m := itemIDRegex.FindStringSubmatch(raw)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// ValidateSearchURL checks that a monitor URL is an absolute http(s) URL.
func ValidateSearchURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url: scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url: missing host")
	}
	return nil
}

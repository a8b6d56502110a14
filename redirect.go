package totpgate

import (
	"net/url"
	"strings"
)

// AllowedHosts is the default RedirectPolicy: application-relative targets
// are accepted when AllowRelative is set, absolute targets only for an
// http/https URL whose host appears in Hosts.
//
// AllowedHosts instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AllowedHosts struct {
	// Hosts lists acceptable host[:port] values for absolute URLs.
	Hosts []string

	// AllowRelative accepts rooted, same-application paths ("/consent").
	// Protocol-relative targets ("//evil.example") are never relative.
	AllowRelative bool
}

// Allowed reports whether rawURL is an acceptable redirect target.
func (p AllowedHosts) Allowed(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	if strings.ContainsAny(rawURL, "\r\n") {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	if u.Scheme == "" && u.Host == "" {
		return p.AllowRelative && strings.HasPrefix(u.Path, "/")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" {
		return false
	}
	for _, host := range p.Hosts {
		if strings.EqualFold(host, u.Host) {
			return true
		}
	}
	return false
}

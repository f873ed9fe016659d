// Package security checks model endpoints before the engines send requests to them.
package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// EndpointPolicy relaxes the endpoint checks for self-hosted, OpenAI compatible servers.
type EndpointPolicy struct {
	// AllowHTTP permits plain HTTP. HTTPS is always allowed.
	AllowHTTP bool
	// AllowLocal permits loopback, private and link-local addresses and local host names.
	AllowLocal bool
}

var ErrEndpointNotAllowed = errors.New("endpoint not allowed")

// ValidateEndpoint rejects endpoint URLs with an unsupported scheme, no host, or a
// local target the policy does not allow. IP literals are checked without DNS lookups.
func ValidateEndpoint(rawURL string, policy EndpointPolicy) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(err, "invalid endpoint %q", rawURL)
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !policy.AllowHTTP {
			return errors.Wrap(ErrEndpointNotAllowed, "plain http")
		}
	default:
		return errors.Wrapf(ErrEndpointNotAllowed, "scheme %q", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return errors.Errorf("endpoint %q has no host", rawURL)
	}

	if !policy.AllowLocal && isLocalName(host) {
		return errors.Wrapf(ErrEndpointNotAllowed, "local host %q", host)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	if addr.Zone() != "" && !policy.AllowLocal {
		return errors.Wrapf(ErrEndpointNotAllowed, "zoned address %q", host)
	}
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsMulticast() {
		return errors.Wrapf(ErrEndpointNotAllowed, "address %q", host)
	}
	if !policy.AllowLocal && isLocalAddr(addr) {
		return errors.Wrapf(ErrEndpointNotAllowed, "local address %q", host)
	}
	return nil
}

func isLocalName(host string) bool {
	return host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local")
}

func isLocalAddr(addr netip.Addr) bool {
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()
}

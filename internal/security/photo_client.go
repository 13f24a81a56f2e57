// Package security provides the security services of the console.
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// PhotoClientService builds the HTTP client used to proxy driver photos.
// Photo URLs originate from backend records; a compromised or misconfigured
// backend must not be able to steer the console into internal networks.
type PhotoClientService interface {
	// NewSafeClient returns an HTTP client that refuses private, loopback,
	// link-local and metadata addresses, including after DNS resolution,
	// so DNS rebinding cannot bypass the check.
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL statically checks a photo URL before any request is made.
	ValidateURL(rawURL string) error
}

// allowedSchemes lists the URL schemes accepted for photo fetches.
var allowedSchemes = []string{"http", "https"}

// blockedNetworks lists the address ranges refused for photo fetches.
// Parsed once at package init.
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// private ranges (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// loopback (RFC 1122)
		"127.0.0.0/8",
		// link-local (RFC 3927), includes cloud metadata 169.254.169.254
		"169.254.0.0/16",
		// current network
		"0.0.0.0/8",
		// IPv6 loopback
		"::1/128",
		// IPv6 link-local
		"fe80::/10",
		// IPv6 unique local
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// photoClient implements PhotoClientService.
type photoClient struct{}

// NewPhotoClient creates a PhotoClientService.
func NewPhotoClient() *photoClient {
	return &photoClient{}
}

// NewSafeClient returns the hardened HTTP client. safeurl validates the
// resolved IP at the dialer level, which also covers DNS rebinding.
func (p *photoClient) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443, 8000).
		Build()

	wrappedClient := safeurl.Client(config)
	return wrappedClient.Client
}

// ValidateURL statically checks scheme, host and literal IPs before a photo
// fetch. DNS-resolved addresses are re-checked by the safe client's dialer.
func (p *photoClient) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	ip := net.ParseIP(host)
	if ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

// isAllowedScheme reports whether the scheme is on the allow list.
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP reports whether the IP falls in a refused range.
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

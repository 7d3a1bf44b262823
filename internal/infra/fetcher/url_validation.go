package fetcher

import (
	"fmt"
	"net"
	"net/url"

	"pagewatch/internal/fault"
)

// validateURL validates a URL for security before making an HTTP request.
// This function prevents Server-Side Request Forgery (SSRF) attacks by:
//   - Checking URL scheme (only http/https allowed)
//   - Resolving DNS to check for private IP addresses
//   - Blocking access to loopback, private, and link-local addresses
//
// Blocked IP ranges (when denyPrivateIPs is true):
//   - 127.0.0.0/8 (loopback)
//   - 10.0.0.0/8 (private)
//   - 172.16.0.0/12 (private)
//   - 192.168.0.0/16 (private)
//   - 169.254.0.0/16 (link-local)
//   - ::1 (IPv6 loopback)
//   - fc00::/7 (IPv6 private)
//   - fe80::/10 (IPv6 link-local)
func validateURL(urlStr string, denyPrivateIPs bool) error {
	u, err := url.Parse(urlStr)
	if err != nil {
		return fault.Validation(fmt.Sprintf("invalid URL: %v", err))
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fault.Validation(fmt.Sprintf("scheme %q not allowed (only http/https)", u.Scheme))
	}

	hostname := u.Hostname()
	if hostname == "" {
		return fault.Validation("invalid URL: empty hostname")
	}

	if !denyPrivateIPs {
		return nil
	}

	// DNS resolution catches URLs whose hostname points at the internal
	// network even when the URL itself looks harmless.
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return fault.Validation(fmt.Sprintf("DNS lookup failed for %s: %v", hostname, err))
	}

	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fault.Validation(fmt.Sprintf("hostname %q resolves to private IP %s", hostname, ip.String()))
		}
	}

	return nil
}

// isPrivateIP checks if an IP address is in a private or loopback range.
// Supports both IPv4 and IPv6 addresses.
//
// Blocked IP ranges:
//   - Loopback: 127.0.0.0/8 (IPv4), ::1 (IPv6)
//   - Private: 10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16 (IPv4), fc00::/7 (IPv6)
//   - Link-local: 169.254.0.0/16 (IPv4), fe80::/10 (IPv6)
//
// Reference:
//   - https://tools.ietf.org/html/rfc1918 (Private IPv4)
//   - https://tools.ietf.org/html/rfc4193 (Private IPv6)
//   - https://tools.ietf.org/html/rfc3927 (Link-local IPv4)
//   - https://tools.ietf.org/html/rfc4291 (Link-local IPv6)
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() {
		return true
	}
	if ip.IsPrivate() {
		return true
	}
	if ip.IsLinkLocalUnicast() {
		return true
	}
	return false
}

package v1

import (
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// proxyHeaders are checked after X-Forwarded-For, in order.
var proxyHeaders = []string{
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Client-IP",
}

// clientIP returns the first public address reported by a reverse proxy,
// falling back to the peer address as seen by the server.
func clientIP(c *fiber.Ctx) string {
	if addr, ok := firstPublic(strings.Split(c.Get("X-Forwarded-For"), ",")); ok {
		return addr
	}
	for _, header := range proxyHeaders {
		if addr, ok := firstPublic([]string{c.Get(header)}); ok {
			return addr
		}
	}
	if forwarded := c.Get("Forwarded"); forwarded != "" {
		if addr, ok := firstPublic(forwardedFor(forwarded)); ok {
			return addr
		}
	}

	if addr, ok := parseIP(c.Context().RemoteAddr().String()); ok {
		return addr.String()
	}
	return c.IP()
}

// firstPublic prefers the first public IPv4 address, then the first public IPv6.
func firstPublic(values []string) (string, bool) {
	var v6 string
	for _, raw := range values {
		addr, ok := parseIP(raw)
		if !ok || !isPublic(addr) {
			continue
		}
		if addr.Is4() {
			return addr.String(), true
		}
		if v6 == "" {
			v6 = addr.String()
		}
	}
	return v6, v6 != ""
}

// parseIP accepts bare addresses, quoted values, host:port, [v6]:port and
// zoned IPv6. IPv4-mapped IPv6 addresses are unmapped.
func parseIP(raw string) (netip.Addr, bool) {
	s := strings.Trim(strings.TrimSpace(raw), `"`)
	if s == "" {
		return netip.Addr{}, false
	}

	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr().Unmap().WithZone(""), true
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")

	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap().WithZone(""), true
}

func isPublic(addr netip.Addr) bool {
	return addr.IsValid() &&
		!addr.IsPrivate() &&
		!addr.IsLoopback() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsUnspecified()
}

// forwardedFor extracts the for= values of an RFC 7239 Forwarded header.
func forwardedFor(header string) []string {
	var out []string
	for _, entry := range strings.Split(header, ",") {
		for _, part := range strings.Split(entry, ";") {
			part = strings.TrimSpace(part)
			if len(part) > 4 && strings.EqualFold(part[:4], "for=") {
				out = append(out, part[4:])
			}
		}
	}
	return out
}

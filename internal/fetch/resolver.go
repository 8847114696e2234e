package fetch

import (
	"context"
	"net"
	"net/netip"
	"strings"
)

// Resolver maps a host name to its addresses. It is swapped out in tests.
type Resolver func(ctx context.Context, host string) ([]netip.Addr, error)

// DefaultResolver returns IP literals as-is and asks the system resolver for
// everything else.
func DefaultResolver(ctx context.Context, host string) ([]netip.Addr, error) {
	host = strings.TrimSuffix(strings.Trim(host, "[]"), ".")

	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.Addr{addr}, nil
	}

	return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
}

// StaticResolver answers every lookup with the same address.
func StaticResolver(addr string) Resolver {
	parsed := netip.MustParseAddr(addr)

	return func(context.Context, string) ([]netip.Addr, error) {
		return []netip.Addr{parsed}, nil
	}
}

var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("64:ff9b:1::/48"),
}

// IsBlockedAddr reports whether addr is loopback, private, link-local,
// unspecified, multicast or otherwise not publicly routable.
func IsBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.IsValid() {
		return true
	}

	if addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified() {
		return true
	}

	for _, prefix := range blockedPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}

	return false
}

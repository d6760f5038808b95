package security

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"security-gateway/middleware/security/domain"
)

// ClientIP returns the address of the caller. With trustXFF the first hop of
// X-Forwarded-For wins (only enable it behind a proxy that overwrites the
// header). IPv4-mapped IPv6 addresses are reported as IPv4.
func ClientIP(r *http.Request, trustXFF bool) string {
	if trustXFF {
		if ip := firstIP(r.Header.Get("X-Forwarded-For")); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap().String()
	}
	if host != "" {
		return host
	}
	return domain.UnknownIdentity
}

func firstIP(list string) string {
	first, _, _ := strings.Cut(list, ",")
	addr, err := netip.ParseAddr(strings.TrimSpace(first))
	if err != nil {
		return ""
	}
	return addr.Unmap().String()
}

type clientIPKey struct{}

func withClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFrom returns the IP resolved by an outer Shield middleware.
func ClientIPFrom(ctx context.Context) (string, bool) {
	ip, ok := ctx.Value(clientIPKey{}).(string)
	return ip, ok && ip != ""
}

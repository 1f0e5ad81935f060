package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"strings"
)

// Allowlist is a set of client prefixes. An empty list allows everyone.
type Allowlist []netip.Prefix

// ParseAllowlist reads a comma-separated list of IPs and CIDRs.
func ParseAllowlist(s string) (Allowlist, error) {
	var list Allowlist
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			p, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, fmt.Errorf("allowlist entry %q: %w", part, err)
			}
			list = append(list, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, fmt.Errorf("allowlist entry %q: %w", part, err)
		}
		list = append(list, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return list, nil
}

// Allows reports whether ip falls inside the list.
func (a Allowlist) Allows(ip string) bool {
	if len(a) == 0 {
		return true
	}
	return contains(a, ip)
}

func contains(prefixes []netip.Prefix, ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// RequireAllowed answers 403 to clients outside the list.
func (a Allowlist) RequireAllowed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Allows(ClientIP(r)) {
			WriteError(w, http.StatusForbidden, "access_blocked", "Your IP is not allowed to use the admin API")
			return
		}
		next.ServeHTTP(w, r)
	})
}

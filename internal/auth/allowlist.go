package auth

import "net"

// Allowlist restricts access to a fixed set of client IPs.
//
// An empty allowlist permits everyone (the feature is opt-in). Loopback
// addresses are always permitted so the operator can never lock themselves
// out of their own machine. The set is fixed at construction; no mutation,
// no locking needed.
type Allowlist struct {
	ips map[string]struct{}
}

// NewAllowlist builds an allowlist from the given IPs. Invalid entries are
// rejected at config-validation time, so they are simply skipped here.
func NewAllowlist(ips []string) *Allowlist {
	set := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		if parsed := net.ParseIP(ip); parsed != nil {
			set[parsed.String()] = struct{}{}
		}
	}
	return &Allowlist{ips: set}
}

// Allows reports whether the client IP may access the server.
func (a *Allowlist) Allows(ip string) bool {
	if len(a.ips) == 0 {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	if parsed.IsLoopback() {
		return true
	}
	_, ok := a.ips[parsed.String()]
	return ok
}

// File: internal/urlguard/validator.go

// Package urlguard enforces the outbound URL policy: protocol and host
// checks, private address ranges, allow/block domain lists, and DNS
// rebinding protection. Every outbound request (navigation or raw HTTP)
// passes through a Validator before any connection is attempted.
package urlguard

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// ValidationError describes why a URL was rejected. It always carries a
// human-readable cause; a partially validated URL is never returned.
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("url validation failed for %q: %s", e.URL, e.Reason)
}

// LookupIPer resolves a hostname to its addresses. net.DefaultResolver
// satisfies it; tests inject fakes.
type LookupIPer interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// Options carries the runtime allow/block lists applied after the static
// policy checks.
type Options struct {
	Allow []string
	Block []string
}

// Validator applies the URL safety policy. The zero value is usable; a nil
// Resolver falls back to net.DefaultResolver.
type Validator struct {
	Resolver LookupIPer
	Logger   *zap.Logger
}

// New returns a Validator using the system resolver.
func New(logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{Resolver: net.DefaultResolver, Logger: logger.Named("urlguard")}
}

// privateNets are the IPv4/IPv6 ranges that must never be dialed.
var privateNets = mustParseCIDRs(
	"127.0.0.0/8",
	"10.0.0.0/8",
	"192.168.0.0/16",
	"172.16.0.0/12",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"fc00::/7",
	"fe80::/10",
	"::1/128",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("urlguard: bad builtin CIDR %q: %v", c, err))
		}
		nets = append(nets, n)
	}
	return nets
}

// isPrivateIP reports whether ip falls inside any forbidden range. An
// IPv4-mapped IPv6 address is checked against the IPv4 ranges too, so
// ::ffff:127.0.0.1 is caught.
func isPrivateIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// matchesDomain reports whether host equals entry or is a subdomain of it.
func matchesDomain(host, entry string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	entry = strings.ToLower(strings.TrimSuffix(entry, "."))
	return host == entry || strings.HasSuffix(host, "."+entry)
}

// Validate applies the full policy in order and returns the canonical string
// form of the URL. Any failure short-circuits with a *ValidationError. DNS
// resolution failures are fatal: the validator fails closed.
func (v *Validator) Validate(ctx context.Context, raw string, opts Options) (string, error) {
	fail := func(reason string) (string, error) {
		return "", &ValidationError{URL: raw, Reason: reason}
	}

	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fail(fmt.Sprintf("unparseable URL: %v", err))
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fail(fmt.Sprintf("protocol %q is not allowed, only http and https", parsed.Scheme))
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fail("missing hostname")
	}
	if host == "localhost" || host == "::1" {
		return fail("loopback hostname is not allowed")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fail(fmt.Sprintf("IP address %s is in a private range", ip))
		}
	}

	if len(opts.Allow) > 0 {
		allowed := false
		for _, entry := range opts.Allow {
			if matchesDomain(host, entry) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fail(fmt.Sprintf("host %q is not in the allowed domain list", host))
		}
	}

	for _, entry := range opts.Block {
		if matchesDomain(host, entry) {
			return fail(fmt.Sprintf("host %q is blocked", host))
		}
	}

	// Rebinding protection: resolve now and reject any private answer. Skip
	// the lookup when the host is already an IP literal, it was checked above.
	if net.ParseIP(host) == nil {
		resolver := v.Resolver
		if resolver == nil {
			resolver = net.DefaultResolver
		}
		ips, err := resolver.LookupIP(ctx, "ip", host)
		if err != nil {
			return fail(fmt.Sprintf("DNS resolution failed: %v", err))
		}
		if len(ips) == 0 {
			return fail("DNS resolution returned no addresses")
		}
		for _, ip := range ips {
			if isPrivateIP(ip) {
				if v.Logger != nil {
					v.Logger.Warn("Rejected URL resolving to private address",
						zap.String("host", host), zap.String("ip", ip.String()))
				}
				return fail(fmt.Sprintf("host %q resolves to private address %s", host, ip))
			}
		}
	}

	return parsed.String(), nil
}

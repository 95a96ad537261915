package portsweep

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
)

// Target expansion errors
var (
	ErrNotCIDR           = errors.New("not a CIDR expression")
	ErrNotIPv4Range      = errors.New("not an IPv4 range expression")
	ErrReversedIPRange   = errors.New("range end address precedes start")
	ErrResolutionFailed  = errors.New("hostname resolution failed")
	ErrUnsupportedFamily = errors.New("only IPv4 expansion is supported")
)

// TargetExpander turns a target expression into the list of hosts to scan.
// Strategies are tried in order: CIDR expansion, IPv4 range expansion,
// hostname resolution, and finally the unresolved literal itself. Each
// strategy failure is non-fatal; the next strategy is attempted.
type TargetExpander struct {
	logger   *zap.Logger
	resolver *ResolverCache
}

// NewTargetExpander creates a TargetExpander. The resolver cache may be nil,
// in which case every hostname resolution goes to the system resolver.
func NewTargetExpander(logger *zap.Logger, resolver *ResolverCache) *TargetExpander {
	return &TargetExpander{
		logger:   logger.With(zap.String("component", "targets")),
		resolver: resolver,
	}
}

// Expand resolves a target expression into an ordered, deduplicated host
// list. An empty result means no valid targets and the run must abort.
func (e *TargetExpander) Expand(expr string) []string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil
	}

	if strings.Contains(expr, "/") {
		hosts, err := expandCIDR(expr)
		if err == nil {
			return dedupeHosts(hosts)
		}
		e.logger.Debug("CIDR expansion failed, trying next strategy",
			zap.String("target", expr), zap.Error(err))
	}

	if strings.Contains(expr, "-") {
		hosts, err := expandIPv4Range(expr)
		if err == nil {
			return dedupeHosts(hosts)
		}
		e.logger.Debug("Range expansion failed, trying next strategy",
			zap.String("target", expr), zap.Error(err))
	}

	ip, err := e.resolveHost(expr)
	if err != nil {
		// The literal is kept so the scan itself surfaces the failure.
		e.logger.Warn("Target resolution failed, keeping literal",
			zap.String("target", expr), zap.Error(err))
		return []string{expr}
	}
	return []string{ip}
}

// resolveHost resolves a hostname to a single IPv4 address, consulting the
// resolver cache when one is configured.
func (e *TargetExpander) resolveHost(host string) (string, error) {
	if net.ParseIP(host) != nil {
		return host, nil
	}

	if e.resolver != nil {
		if ip := e.resolver.Get(host); ip != "" {
			return ip, nil
		}
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrResolutionFailed, err)
	}
	for _, ip := range ips {
		if ip.To4() != nil {
			resolved := ip.String()
			if e.resolver != nil {
				e.resolver.Set(host, resolved)
			}
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: no IPv4 address for %s", ErrResolutionFailed, host)
}

// expandCIDR expands an IPv4 CIDR block into its usable host addresses,
// excluding the network and broadcast addresses. A /31 yields both addresses
// and a /32 yields the single host, so single-host networks never fall
// through to hostname resolution.
func expandCIDR(expr string) ([]string, error) {
	ip, ipNet, err := net.ParseCIDR(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCIDR, err)
	}
	if ip.To4() == nil {
		return nil, ErrUnsupportedFamily
	}

	ones, bits := ipNet.Mask.Size()
	base := ipToUint32(ipNet.IP.To4())

	switch {
	case ones == bits:
		return []string{ip.To4().String()}, nil
	case ones == bits-1:
		return []string{uint32ToIP(base).String(), uint32ToIP(base + 1).String()}, nil
	}

	broadcast := base | ^maskToUint32(ipNet.Mask)
	hosts := make([]string, 0, broadcast-base-1)
	for addr := base + 1; addr < broadcast; addr++ {
		hosts = append(hosts, uint32ToIP(addr).String())
	}
	return hosts, nil
}

// expandIPv4Range expands a "start-end" IPv4 range, inclusive of both
// bounds. Both sides must be IPv4 and start must not exceed end.
func expandIPv4Range(expr string) ([]string, error) {
	parts := strings.SplitN(expr, "-", 2)
	if len(parts) != 2 {
		return nil, ErrNotIPv4Range
	}

	start := net.ParseIP(strings.TrimSpace(parts[0]))
	end := net.ParseIP(strings.TrimSpace(parts[1]))
	if start == nil || end == nil {
		return nil, ErrNotIPv4Range
	}

	start4, end4 := start.To4(), end.To4()
	if start4 == nil || end4 == nil {
		return nil, ErrUnsupportedFamily
	}

	startInt, endInt := ipToUint32(start4), ipToUint32(end4)
	if startInt > endInt {
		return nil, ErrReversedIPRange
	}

	hosts := make([]string, 0, endInt-startInt+1)
	for addr := startInt; ; addr++ {
		hosts = append(hosts, uint32ToIP(addr).String())
		if addr == endInt {
			break
		}
	}
	return hosts, nil
}

// dedupeHosts removes duplicates while preserving first-seen order.
func dedupeHosts(hosts []string) []string {
	seen := make(map[string]struct{}, len(hosts))
	out := hosts[:0]
	for _, h := range hosts {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}

func ipToUint32(ip net.IP) uint32 {
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

func uint32ToIP(addr uint32) net.IP {
	return net.IPv4(byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
}

func maskToUint32(mask net.IPMask) uint32 {
	return uint32(mask[0])<<24 | uint32(mask[1])<<16 | uint32(mask[2])<<8 | uint32(mask[3])
}

// Package netutil expands scan target specifications and port lists.
//
// A target specification is one of: an IP literal, a CIDR block, an IPv4
// range ("10.0.0.5-10.0.0.9" or the last-octet form "10.0.0.5-9") or a
// hostname. Hostnames are passed through unresolved.
package netutil

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"
)

// DefaultMaxAddresses caps a single expansion.
const DefaultMaxAddresses = 1 << 16

var (
	// ErrInvalidTarget is returned for a malformed specification.
	ErrInvalidTarget = errors.New("invalid target specification")

	// ErrTooLarge is returned when an expansion exceeds the address cap.
	ErrTooLarge = errors.New("target expansion too large")
)

// Expand turns one specification into individual addresses.
// A limit <= 0 means DefaultMaxAddresses.
func Expand(spec string, limit int) ([]string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultMaxAddresses
	}

	switch {
	case strings.Contains(spec, "/"):
		return expandCIDR(spec, limit)
	case strings.Contains(spec, "-") && looksLikeRange(spec):
		return expandRange(spec, limit)
	}

	if addr, err := netip.ParseAddr(spec); err == nil {
		return []string{addr.Unmap().String()}, nil
	}
	if !validHostname(spec) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, spec)
	}
	return []string{strings.ToLower(spec)}, nil
}

// ExpandAll expands every specification, dropping duplicates and addresses
// that are never useful scan targets. Failures are collected per spec.
func ExpandAll(specs []string, limit int) ([]string, []error) {
	var (
		out  []string
		errs []error
		seen = make(map[string]struct{})
	)
	for _, spec := range specs {
		addrs, err := Expand(spec, limit)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, a := range FilterNonScannable(addrs) {
			if _, ok := seen[a]; ok {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	return out, errs
}

// FilterNonScannable removes multicast, unspecified and link-local
// addresses. Hostnames are kept.
func FilterNonScannable(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	for _, s := range addrs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if ip, err := netip.ParseAddr(s); err == nil {
			if ip.IsMulticast() || ip.IsUnspecified() ||
				ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

func expandCIDR(spec string, limit int) ([]string, error) {
	prefix, err := netip.ParsePrefix(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTarget, spec, err)
	}
	prefix = prefix.Masked()

	hostBits := prefix.Addr().BitLen() - prefix.Bits()
	if hostBits >= 31 || 1<<hostBits > limit+2 {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, spec)
	}

	// Skip network and broadcast addresses for IPv4 prefixes /1 to /30.
	skipEdges := prefix.Addr().Is4() && prefix.Bits() > 0 && prefix.Bits() < 31

	var out []string
	first := prefix.Addr()
	for ip := first; ip.IsValid() && prefix.Contains(ip); ip = ip.Next() {
		if skipEdges && (ip == first || !prefix.Contains(ip.Next())) {
			continue
		}
		out = append(out, ip.String())
	}
	if len(out) > limit {
		return nil, fmt.Errorf("%w: %s", ErrTooLarge, spec)
	}
	return out, nil
}

func looksLikeRange(spec string) bool {
	start, _, ok := strings.Cut(spec, "-")
	_, err := netip.ParseAddr(strings.TrimSpace(start))
	return ok && err == nil
}

func expandRange(spec string, limit int) ([]string, error) {
	startStr, endStr, _ := strings.Cut(spec, "-")
	start, err := netip.ParseAddr(strings.TrimSpace(startStr))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, spec)
	}
	endStr = strings.TrimSpace(endStr)

	var end netip.Addr
	if octet, convErr := strconv.Atoi(endStr); convErr == nil && start.Is4() {
		if octet < 0 || octet > 255 {
			return nil, fmt.Errorf("%w: %q: octet out of range", ErrInvalidTarget, spec)
		}
		b := start.As4()
		b[3] = byte(octet)
		end = netip.AddrFrom4(b)
	} else {
		end, err = netip.ParseAddr(endStr)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, spec)
		}
	}

	if start.Is4() != end.Is4() {
		return nil, fmt.Errorf("%w: %q: mixed address families", ErrInvalidTarget, spec)
	}
	if start.Compare(end) > 0 {
		return nil, fmt.Errorf("%w: %q: start after end", ErrInvalidTarget, spec)
	}

	var out []string
	for ip := start; ip.IsValid() && ip.Compare(end) <= 0; ip = ip.Next() {
		if len(out) == limit {
			return nil, fmt.Errorf("%w: %s", ErrTooLarge, spec)
		}
		out = append(out, ip.String())
	}
	return out, nil
}

func validHostname(s string) bool {
	s = strings.TrimSuffix(s, ".")
	if s == "" || len(s) > 253 {
		return false
	}
	for _, label := range strings.Split(s, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, c := range label {
			switch {
			case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			default:
				return false
			}
		}
	}
	return true
}

// ParsePortString parses "80,443,1000-1002" into a sorted, unique list.
func ParsePortString(portStr string) ([]int, error) {
	if strings.TrimSpace(portStr) == "" {
		return []int{}, nil
	}

	seen := make(map[int]struct{})
	var ports []int
	add := func(p int) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			ports = append(ports, p)
		}
	}

	for part := range strings.SplitSeq(portStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange || strings.TrimSpace(lo) == "" {
			p, err := parsePort(part)
			if err != nil {
				return nil, err
			}
			add(p)
			continue
		}
		start, err := parsePort(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid start port in range %q: %w", part, err)
		}
		end, err := parsePort(hi)
		if err != nil {
			return nil, fmt.Errorf("invalid end port in range %q: %w", part, err)
		}
		if start > end {
			return nil, fmt.Errorf("start port %d greater than end port %d in %q", start, end, part)
		}
		for p := start; p <= end; p++ {
			add(p)
		}
	}
	sort.Ints(ports)
	return ports, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", p)
	}
	return p, nil
}

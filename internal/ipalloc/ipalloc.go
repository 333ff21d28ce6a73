// Package ipalloc hands out static private addresses for bulk-created VMs.
package ipalloc

import (
	"errors"
	"fmt"
	"net/netip"
)

// ErrExhausted is returned when no usable address is left in the /24.
var ErrExhausted = errors.New("no free addresses left in subnet")

// Next returns the first usable address at or after base+index in base's
// /24. Addresses in used and those ending in .0, .1 or .255 are skipped.
func Next(base string, index int, used []string) (string, error) {
	addr, err := parse(base)
	if err != nil {
		return "", err
	}
	if index < 0 {
		return "", fmt.Errorf("negative index %d", index)
	}
	taken := make(map[string]bool, len(used))
	for _, u := range used {
		taken[u] = true
	}
	return next(addr, index, taken)
}

// Assign returns count distinct addresses starting at base.
func Assign(base string, count int, used []string) ([]string, error) {
	addr, err := parse(base)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(used)+count)
	for _, u := range used {
		taken[u] = true
	}
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		ip, err := next(addr, i, taken)
		if err != nil {
			return nil, fmt.Errorf("assigning address %d of %d: %w", i+1, count, err)
		}
		taken[ip] = true
		out = append(out, ip)
	}
	return out, nil
}

func parse(base string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(base)
	if err != nil || !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("invalid base address %q", base)
	}
	return addr, nil
}

func next(base netip.Addr, index int, taken map[string]bool) (string, error) {
	b := base.As4()
	for last := int(b[3]) + index; last <= 254; last++ {
		if last <= 1 {
			continue
		}
		b[3] = byte(last)
		ip := netip.AddrFrom4(b).String()
		if !taken[ip] {
			return ip, nil
		}
	}
	return "", ErrExhausted
}

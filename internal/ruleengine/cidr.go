// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ruleengine

import "net/netip"

// ParseCIDR builds a CIDR operand from a "1.2.3.0/24" or
// "2001:db8::/32" style string.
func ParseCIDR(s string) (CIDR, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return CIDR{}, err
	}
	var c CIDR
	c.Bits = p.Bits()
	if p.Addr().Is4() {
		a4 := p.Addr().As4()
		copy(c.IP[:4], a4[:])
	} else {
		c.V6 = true
		a16 := p.Addr().As16()
		copy(c.IP[:], a16[:])
	}
	return c, nil
}

// MustCIDR is ParseCIDR but panics on error; intended for tests and
// static rule construction, not for parsing untrusted input.
func MustCIDR(s string) CIDR {
	c, err := ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return c
}

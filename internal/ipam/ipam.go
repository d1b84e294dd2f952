// Package ipam holds the network value types shared by the whole data
// model: IP addresses, CIDR ranges and MAC addresses. All types are
// comparable values with a canonical string form so they can be stored
// and indexed as text columns.
package ipam

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// ParseError reports a rejected network literal.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid network value %q: %s", e.Input, e.Reason)
}

func parseError(input, reason string) *ParseError {
	return &ParseError{Input: input, Reason: reason}
}

// Addr is an IPv4 or IPv6 address.
type Addr struct {
	ip netip.Addr
}

// ParseAddr parses an IPv4 or IPv6 address literal.
func ParseAddr(s string) (Addr, error) {
	ip, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return Addr{}, parseError(s, "not an IP address")
	}
	return Addr{ip: ip.Unmap()}, nil
}

func (a Addr) IsValid() bool { return a.ip.IsValid() }

// Family returns 4 or 6, or 0 for the zero Addr.
func (a Addr) Family() int {
	switch {
	case !a.ip.IsValid():
		return 0
	case a.ip.Is4():
		return 4
	default:
		return 6
	}
}

func (a Addr) String() string {
	if !a.ip.IsValid() {
		return ""
	}
	return a.ip.String()
}

// Compare orders addresses numerically, IPv4 before IPv6.
func (a Addr) Compare(b Addr) int { return a.ip.Compare(b.ip) }

// ReverseName returns the in-addr.arpa / ip6.arpa name of the address.
func (a Addr) ReverseName() string {
	if !a.ip.IsValid() {
		return ""
	}
	if a.ip.Is4() {
		b := a.ip.As4()
		return fmt.Sprintf("%d.%d.%d.%d.in-addr.arpa", b[3], b[2], b[1], b[0])
	}
	b := a.ip.As16()
	var sb strings.Builder
	for i := 15; i >= 0; i-- {
		fmt.Fprintf(&sb, "%x.%x.", b[i]&0xf, b[i]>>4)
	}
	sb.WriteString("ip6.arpa")
	return sb.String()
}

// Cidr is an address range in prefix notation with host bits zeroed.
type Cidr struct {
	prefix netip.Prefix
}

// ParseCidr parses a range in prefix notation. Non-zero host bits are
// rejected; use ParseCidrNormalize to accept and mask them instead.
func ParseCidr(s string) (Cidr, error) {
	p, err := netip.ParsePrefix(strings.TrimSpace(s))
	if err != nil {
		return Cidr{}, parseError(s, "not a CIDR range")
	}
	if p.Addr() != p.Masked().Addr() {
		return Cidr{}, parseError(s, "host bits set")
	}
	return Cidr{prefix: p.Masked()}, nil
}

// ParseCidrNormalize parses a range and zeroes any host bits.
func ParseCidrNormalize(s string) (Cidr, error) {
	p, err := netip.ParsePrefix(strings.TrimSpace(s))
	if err != nil {
		return Cidr{}, parseError(s, "not a CIDR range")
	}
	return Cidr{prefix: p.Masked()}, nil
}

func (c Cidr) IsValid() bool { return c.prefix.IsValid() }

// Family returns 4 or 6, or 0 for the zero Cidr.
func (c Cidr) Family() int {
	return Addr{ip: c.prefix.Addr()}.Family()
}

func (c Cidr) String() string {
	if !c.prefix.IsValid() {
		return ""
	}
	return c.prefix.String()
}

func (c Cidr) Bits() int   { return c.prefix.Bits() }
func (c Cidr) Addr() Addr  { return Addr{ip: c.prefix.Addr()} }

// Contains reports whether the address is inside the range.
func (c Cidr) Contains(a Addr) bool {
	return c.prefix.IsValid() && a.ip.IsValid() && c.prefix.Contains(a.ip)
}

// ContainsCidr reports whether other is fully inside c.
func (c Cidr) ContainsCidr(other Cidr) bool {
	if !c.prefix.IsValid() || !other.prefix.IsValid() {
		return false
	}
	return c.prefix.Bits() <= other.prefix.Bits() && c.prefix.Contains(other.prefix.Addr())
}

// Overlaps reports whether the two ranges share any address.
func (c Cidr) Overlaps(other Cidr) bool {
	return c.prefix.IsValid() && other.prefix.IsValid() && c.prefix.Overlaps(other.prefix)
}

// Supernets enumerates every broader range containing c, nearest first,
// down to the zero-length prefix.
func (c Cidr) Supernets() []Cidr {
	if !c.prefix.IsValid() {
		return nil
	}
	out := make([]Cidr, 0, c.prefix.Bits())
	for bits := c.prefix.Bits() - 1; bits >= 0; bits-- {
		p, err := c.prefix.Addr().Prefix(bits)
		if err != nil {
			break
		}
		out = append(out, Cidr{prefix: p})
	}
	return out
}

// Compare orders ranges by numeric address then prefix length, broader
// ranges first.
func (c Cidr) Compare(other Cidr) int {
	if v := c.prefix.Addr().Compare(other.prefix.Addr()); v != 0 {
		return v
	}
	switch {
	case c.prefix.Bits() < other.prefix.Bits():
		return -1
	case c.prefix.Bits() > other.prefix.Bits():
		return 1
	}
	return 0
}

// MacAddr is a 48-bit hardware address in lowercase colon form.
type MacAddr struct {
	s string
}

// ParseMac parses a 48-bit hardware address in any form net.ParseMAC
// accepts, canonicalised to lowercase colon notation.
func ParseMac(s string) (MacAddr, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return MacAddr{}, parseError(s, "not a MAC address")
	}
	if len(hw) != 6 {
		return MacAddr{}, parseError(s, "not a 48-bit MAC address")
	}
	return MacAddr{s: hw.String()}, nil
}

func (m MacAddr) IsValid() bool  { return m.s != "" }
func (m MacAddr) String() string { return m.s }

func (m MacAddr) Compare(other MacAddr) int { return strings.Compare(m.s, other.s) }

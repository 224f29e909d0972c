// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package frame provides bounds-checked accessors into Ethernet payloads
// (IPv4, IPv6, and the L4 ports carried inside them). Every accessor is
// total: it never reads outside [0, len(data)) and signals unavailability
// with a boolean rather than an error or a panic.
package frame

import "encoding/binary"

const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeIPv6 uint16 = 0x86DD

	ProtoICMP    uint8 = 1
	ProtoTCP     uint8 = 0x06
	ProtoUDP     uint8 = 0x11
	ProtoSCTP    uint8 = 0x84
	ProtoUDPLite uint8 = 0x88
	ProtoICMPv6  uint8 = 0x3a

	ipv6HopByHop uint8 = 0
	ipv6Routing  uint8 = 43
	ipv6DestOpts uint8 = 60
	ipv6Mobility uint8 = 135
)

// Frame is a read-only view over a single Ethernet payload and the
// etherType that was resolved for it (from the Ethernet header or a
// VLAN tag, depending on the caller).
type Frame struct {
	data      []byte
	etherType uint16
}

// New wraps data (the Ethernet payload, i.e. everything after src/dst
// MAC + etherType/VLAN) for bounds-checked inspection.
func New(data []byte, etherType uint16) Frame {
	return Frame{data: data, etherType: etherType}
}

// Len returns the payload length.
func (f Frame) Len() int { return len(f.data) }

// Bytes returns the raw payload, for callers (e.g. TEE/REDIRECT
// forwarding) that need to re-emit all or part of the frame rather
// than inspect it.
func (f Frame) Bytes() []byte { return f.data }

// EtherType returns the etherType this frame was parsed under.
func (f Frame) EtherType() uint16 { return f.etherType }

// IsIPv4 reports whether this frame can be parsed as IPv4.
func (f Frame) IsIPv4() bool {
	return f.etherType == EtherTypeIPv4 && len(f.data) >= 20
}

// IsIPv6 reports whether this frame can be parsed as IPv6.
func (f Frame) IsIPv6() bool {
	return f.etherType == EtherTypeIPv6 && len(f.data) >= 40
}

func (f Frame) ihl() int {
	return int(f.data[0]&0x0f) * 4
}

// IPv4Header returns the IHL-derived header length in bytes, or 0 if
// this isn't an IPv4 frame.
func (f Frame) IPv4Header() (int, bool) {
	if !f.IsIPv4() {
		return 0, false
	}
	return f.ihl(), true
}

// IPv4Source returns the source address of an IPv4 frame.
func (f Frame) IPv4Source() ([4]byte, bool) {
	if !f.IsIPv4() {
		return [4]byte{}, false
	}
	var ip [4]byte
	copy(ip[:], f.data[12:16])
	return ip, true
}

// IPv4Dest returns the destination address of an IPv4 frame.
func (f Frame) IPv4Dest() ([4]byte, bool) {
	if !f.IsIPv4() {
		return [4]byte{}, false
	}
	var ip [4]byte
	copy(ip[:], f.data[16:20])
	return ip, true
}

// IPv4Protocol returns the protocol byte of an IPv4 frame.
func (f Frame) IPv4Protocol() (uint8, bool) {
	if !f.IsIPv4() {
		return 0, false
	}
	return f.data[9], true
}

// IPv4DSCP returns the 6-bit DSCP value (upper 6 bits of the TOS byte).
func (f Frame) IPv4DSCP() (uint8, bool) {
	if !f.IsIPv4() {
		return 0, false
	}
	return (f.data[1] & 0xfc) >> 2, true
}

// IPv6Source returns the source address of an IPv6 frame.
func (f Frame) IPv6Source() ([16]byte, bool) {
	if !f.IsIPv6() {
		return [16]byte{}, false
	}
	var ip [16]byte
	copy(ip[:], f.data[8:24])
	return ip, true
}

// IPv6Dest returns the destination address of an IPv6 frame.
func (f Frame) IPv6Dest() ([16]byte, bool) {
	if !f.IsIPv6() {
		return [16]byte{}, false
	}
	var ip [16]byte
	copy(ip[:], f.data[24:40])
	return ip, true
}

// IPv6DSCP returns the 6-bit DSCP value derived from the traffic class.
func (f Frame) IPv6DSCP() (uint8, bool) {
	if !f.IsIPv6() {
		return 0, false
	}
	tc := ((f.data[0] << 4) | (f.data[1] >> 4)) & 0xff
	return (tc & 0xfc) >> 2, true
}

// IPv6Payload walks the IPv6 extension-header chain starting at byte
// offset 40 and returns the offset of the upper-layer payload and its
// protocol number. It terminates successfully on any protocol it does
// not recognize as a chainable extension header (including fragment 44
// and IPSec 50/51 — both terminate the walk rather than being parsed
// further). Overflow while walking the chain is reported as !ok.
func (f Frame) IPv6Payload() (pos int, proto uint8, ok bool) {
	if !f.IsIPv6() {
		return 0, 0, false
	}
	pos = 40
	proto = f.data[6]
	for proto == ipv6HopByHop || proto == ipv6Routing || proto == ipv6DestOpts || proto == ipv6Mobility {
		if pos+8 > len(f.data) {
			return 0, 0, false
		}
		next := f.data[pos]
		hdrLen := int(f.data[pos+1])
		newPos := pos + 8*hdrLen + 8
		if newPos <= pos || newPos > len(f.data) {
			return 0, 0, false
		}
		proto = next
		pos = newPos
	}
	return pos, proto, true
}

// IPProtocol returns the effective protocol number for IPv4 directly,
// or via the IPv6 extension-header walk. !ok means neither IPv4 nor a
// valid IPv6 chain was present.
func (f Frame) IPProtocol() (uint8, bool) {
	if f.IsIPv4() {
		return f.IPv4Protocol()
	}
	if f.IsIPv6() {
		_, proto, ok := f.IPv6Payload()
		return proto, ok
	}
	return 0, false
}

func isPortProtocol(proto uint8) bool {
	switch proto {
	case ProtoTCP, ProtoUDP, ProtoSCTP, ProtoUDPLite:
		return true
	default:
		return false
	}
}

// TransportHeaderOffset returns the byte offset of the L4 header,
// i.e. right after the IP header (v4) or extension-header chain (v6).
func (f Frame) TransportHeaderOffset() (int, bool) {
	if f.IsIPv4() {
		return f.ihl(), true
	}
	if f.IsIPv6() {
		pos, _, ok := f.IPv6Payload()
		return pos, ok
	}
	return 0, false
}

// SourcePort extracts the L4 source port for TCP/UDP/SCTP/UDPLite.
func (f Frame) SourcePort() (uint16, bool) {
	return f.port(0)
}

// DestPort extracts the L4 destination port for TCP/UDP/SCTP/UDPLite.
func (f Frame) DestPort() (uint16, bool) {
	return f.port(2)
}

func (f Frame) port(byteOffset int) (uint16, bool) {
	proto, ok := f.IPProtocol()
	if !ok || !isPortProtocol(proto) {
		return 0, false
	}
	hdr, ok := f.TransportHeaderOffset()
	if !ok {
		return 0, false
	}
	if hdr+byteOffset+2 > len(f.data) {
		return 0, false
	}
	return binary.BigEndian.Uint16(f.data[hdr+byteOffset : hdr+byteOffset+2]), true
}

// ICMPTypeCode returns the ICMP/ICMPv6 type and code, available iff the
// effective protocol is ICMP(v4)=1 or ICMPv6=0x3a and the header is
// present.
func (f Frame) ICMPTypeCode() (typ uint8, code uint8, ok bool) {
	proto, ok := f.IPProtocol()
	if !ok {
		return 0, 0, false
	}
	if f.IsIPv4() && proto != ProtoICMP {
		return 0, 0, false
	}
	if f.IsIPv6() && proto != ProtoICMPv6 {
		return 0, 0, false
	}
	hdr, ok := f.TransportHeaderOffset()
	if !ok || hdr+2 > len(f.data) {
		return 0, 0, false
	}
	return f.data[hdr], f.data[hdr+1], true
}

// TCPFlags12 returns the low 12 bits of the TCP flags field: bits 8-11
// from the low nibble of the data-offset/reserved/flags byte, bits 0-7
// from the flags byte itself. Available only when the effective
// protocol is TCP and the frame extends 14 bytes past the transport
// header.
func (f Frame) TCPFlags12() (uint16, bool) {
	proto, ok := f.IPProtocol()
	if !ok || proto != ProtoTCP {
		return 0, false
	}
	hdr, ok := f.TransportHeaderOffset()
	if !ok || hdr+14 > len(f.data) {
		return 0, false
	}
	cf := uint16(f.data[hdr+13])
	cf |= uint16(f.data[hdr+12]&0x0f) << 8
	return cf, true
}

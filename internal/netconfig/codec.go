// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netconfig

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net/netip"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/ruleengine"
)

// Dictionary keys for the tagged-tuple wire stand-in.
const (
	keyNetworkID       byte = 0x01
	keyIssuedTo        byte = 0x02
	keyRevision        byte = 0x03
	keyTimestamp       byte = 0x04
	keyFlags           byte = 0x05
	keyName            byte = 0x06
	keyBooleans        byte = 0x07
	keyCOM             byte = 0x08
	keyActiveBridges   byte = 0x09
	keyAnchors         byte = 0x0a
	keyStaticIPs       byte = 0x0b
	keyRoutes          byte = 0x0c
	keyRules           byte = 0x0d
	keyTags            byte = 0x0e
	keyCapabilities    byte = 0x0f
)

const boolIsPrivate = 1 << 0
const boolEnableBroadcast = 1 << 1
const boolPassiveBridging = 1 << 2

// Encode serializes c into the dictionary wire stand-in.
func Encode(c *NetworkConfig) []byte {
	var buf bytes.Buffer

	putTLV(&buf, keyNetworkID, u64(uint64(c.NetworkID)))
	putTLV(&buf, keyIssuedTo, u64(uint64(c.IssuedTo)))
	putTLV(&buf, keyRevision, u64(c.Revision))
	putTLV(&buf, keyTimestamp, u64(uint64(c.Timestamp)))
	putTLV(&buf, keyFlags, u64(c.Flags))
	putTLV(&buf, keyName, []byte(c.Name))

	var booleans byte
	if c.IsPrivate {
		booleans |= boolIsPrivate
	}
	if c.EnableBroadcast {
		booleans |= boolEnableBroadcast
	}
	if c.PassiveBridging {
		booleans |= boolPassiveBridging
	}
	putTLV(&buf, keyBooleans, []byte{booleans})

	if len(c.COM) > 0 {
		putTLV(&buf, keyCOM, c.COM)
	}

	putTLV(&buf, keyActiveBridges, encodeAddresses(c.ActiveBridges))
	putTLV(&buf, keyAnchors, encodeAddresses(c.Anchors))
	putTLV(&buf, keyStaticIPs, encodeStaticIPs(c.StaticIPs))
	putTLV(&buf, keyRoutes, encodeRoutes(c.Routes))
	putTLV(&buf, keyRules, encodeRules(c.Rules))
	putTLV(&buf, keyTags, encodeTags(c.Tags))
	putTLV(&buf, keyCapabilities, encodeCapabilities(c.Capabilities))

	return buf.Bytes()
}

// Decode parses bytes produced by Encode. It returns an error rather
// than panicking on truncated/corrupt input, so a caller assembling
// this from reassembled chunks can discard the partial state and trace
// the failure instead of crashing.
func Decode(data []byte) (*NetworkConfig, error) {
	c := &NetworkConfig{}
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		key, val, err := getTLV(r)
		if err != nil {
			return nil, fmt.Errorf("netconfig: %w", err)
		}
		switch key {
		case keyNetworkID:
			c.NetworkID = addressing.NetworkID(beU64(val))
		case keyIssuedTo:
			c.IssuedTo = addressing.NewAddress(beU64(val))
		case keyRevision:
			c.Revision = beU64(val)
		case keyTimestamp:
			c.Timestamp = int64(beU64(val))
		case keyFlags:
			c.Flags = beU64(val)
		case keyName:
			c.Name = string(val)
		case keyBooleans:
			if len(val) != 1 {
				return nil, fmt.Errorf("netconfig: bad booleans length")
			}
			c.IsPrivate = val[0]&boolIsPrivate != 0
			c.EnableBroadcast = val[0]&boolEnableBroadcast != 0
			c.PassiveBridging = val[0]&boolPassiveBridging != 0
		case keyCOM:
			c.COM = append([]byte(nil), val...)
		case keyActiveBridges:
			addrs, err := decodeAddresses(val)
			if err != nil {
				return nil, err
			}
			c.ActiveBridges = addrs
		case keyAnchors:
			addrs, err := decodeAddresses(val)
			if err != nil {
				return nil, err
			}
			c.Anchors = addrs
		case keyStaticIPs:
			ips, err := decodeStaticIPs(val)
			if err != nil {
				return nil, err
			}
			c.StaticIPs = ips
		case keyRoutes:
			routes, err := decodeRoutes(val)
			if err != nil {
				return nil, err
			}
			c.Routes = routes
		case keyRules:
			rules, err := decodeRules(val)
			if err != nil {
				return nil, err
			}
			c.Rules = rules
		case keyTags:
			tags, err := decodeTags(val)
			if err != nil {
				return nil, err
			}
			c.Tags = tags
		case keyCapabilities:
			caps, err := decodeCapabilities(val)
			if err != nil {
				return nil, err
			}
			c.Capabilities = caps
		default:
			// Forward-compatible: unknown keys are ignored.
		}
	}
	c.finalize()
	return c, nil
}

func putTLV(buf *bytes.Buffer, key byte, val []byte) {
	buf.WriteByte(key)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(val)))
	buf.Write(lenBuf[:])
	buf.Write(val)
}

func getTLV(r *bytes.Reader) (byte, []byte, error) {
	key, err := r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("truncated TLV length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	val := make([]byte, n)
	if _, err := io.ReadFull(r, val); err != nil {
		return 0, nil, fmt.Errorf("truncated TLV value: %w", err)
	}
	return key, val, nil
}

func u64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func beU64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func encodeAddresses(addrs []addressing.Address) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint16(len(addrs)))
	for _, a := range addrs {
		buf.Write(u64(uint64(a)))
	}
	return buf.Bytes()
}

func decodeAddresses(data []byte) ([]addressing.Address, error) {
	r := bytes.NewReader(data)
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]addressing.Address, 0, n)
	for i := 0; i < int(n); i++ {
		var v uint64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return nil, err
		}
		out = append(out, addressing.NewAddress(v))
	}
	return out, nil
}

func encodePrefix(p netip.Prefix) []byte {
	b := make([]byte, 18)
	if p.Addr().Is4() {
		b[0] = 0
		a := p.Addr().As4()
		copy(b[2:6], a[:])
	} else {
		b[0] = 1
		a := p.Addr().As16()
		copy(b[2:18], a[:])
	}
	b[1] = byte(p.Bits())
	return b
}

func decodePrefix(b []byte) (netip.Prefix, error) {
	if len(b) != 18 {
		return netip.Prefix{}, fmt.Errorf("bad prefix length")
	}
	bits := int(b[1])
	if b[0] == 0 {
		var a [4]byte
		copy(a[:], b[2:6])
		return netip.PrefixFrom(netip.AddrFrom4(a), bits), nil
	}
	var a [16]byte
	copy(a[:], b[2:18])
	return netip.PrefixFrom(netip.AddrFrom16(a), bits), nil
}

func encodeStaticIPs(ips []StaticIP) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint16(len(ips)))
	for _, ip := range ips {
		buf.Write(encodePrefix(ip.Prefix))
	}
	return buf.Bytes()
}

func decodeStaticIPs(data []byte) ([]StaticIP, error) {
	r := bytes.NewReader(data)
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]StaticIP, 0, n)
	for i := 0; i < int(n); i++ {
		b := make([]byte, 18)
		if _, err := r.Read(b); err != nil {
			return nil, err
		}
		p, err := decodePrefix(b)
		if err != nil {
			return nil, err
		}
		out = append(out, StaticIP{Prefix: p})
	}
	return out, nil
}

func encodeRoutes(routes []Route) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint16(len(routes)))
	for _, rt := range routes {
		buf.Write(encodePrefix(rt.Target))
		if rt.Via.IsValid() {
			buf.WriteByte(1)
			a := rt.Via.As16()
			buf.Write(a[:])
		} else {
			buf.WriteByte(0)
			buf.Write(make([]byte, 16))
		}
	}
	return buf.Bytes()
}

func decodeRoutes(data []byte) ([]Route, error) {
	r := bytes.NewReader(data)
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]Route, 0, n)
	for i := 0; i < int(n); i++ {
		pb := make([]byte, 18)
		if _, err := r.Read(pb); err != nil {
			return nil, err
		}
		target, err := decodePrefix(pb)
		if err != nil {
			return nil, err
		}
		hasVia, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		via := make([]byte, 16)
		if _, err := r.Read(via); err != nil {
			return nil, err
		}
		rt := Route{Target: target}
		if hasVia == 1 {
			var a [16]byte
			copy(a[:], via)
			rt.Via = netip.AddrFrom16(a).Unmap()
		}
		out = append(out, rt)
	}
	return out, nil
}

// Rule wire layout: 1 byte type (negate in bit 7), then a fixed-size
// operand blob. This is deliberately generous rather than packed
// per-type; it's a stand-in codec, not the real wire format.
func encodeRules(rules []ruleengine.Rule) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint16(len(rules)))
	for _, rule := range rules {
		buf.WriteByte(encodeRuleTypeByte(rule))
		buf.Write(encodeOperand(rule.Operand))
	}
	return buf.Bytes()
}

func encodeRuleTypeByte(rule ruleengine.Rule) byte {
	b := byte(rule.Type)
	if rule.Negate {
		b |= 0x80
	}
	return b
}

func encodeOperand(op ruleengine.Operand) []byte {
	var buf bytes.Buffer
	buf.Write(u64(uint64(op.ZT)))
	binary.Write(&buf, binary.BigEndian, op.VLANID)
	buf.WriteByte(op.VLANPCP)
	binary.Write(&buf, binary.BigEndian, op.Ethertype)
	buf.Write(u64(uint64(op.MAC)))
	buf.Write(encodeCIDR(op.IPv4CIDR))
	buf.Write(encodeCIDR(op.IPv6CIDR))
	buf.WriteByte(op.TOS)
	buf.WriteByte(op.IPProtocol)
	buf.WriteByte(op.ICMPType)
	buf.WriteByte(op.ICMPCode)
	if op.ICMPHasCode {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	binary.Write(&buf, binary.BigEndian, op.PortLo)
	binary.Write(&buf, binary.BigEndian, op.PortHi)
	binary.Write(&buf, binary.BigEndian, op.CharMask)
	binary.Write(&buf, binary.BigEndian, op.CharExpected)
	binary.Write(&buf, binary.BigEndian, op.FrameSizeLo)
	binary.Write(&buf, binary.BigEndian, op.FrameSizeHi)
	binary.Write(&buf, binary.BigEndian, op.TagID)
	binary.Write(&buf, binary.BigEndian, op.TagValue)
	buf.Write(u64(uint64(op.ForwardAddress)))
	binary.Write(&buf, binary.BigEndian, op.ForwardLength)
	return buf.Bytes()
}

func encodeCIDR(c ruleengine.CIDR) []byte {
	b := make([]byte, 18)
	if c.V6 {
		b[0] = 1
	}
	b[1] = byte(c.Bits)
	copy(b[2:18], c.IP[:])
	return b
}

func decodeCIDR(r *bytes.Reader) (ruleengine.CIDR, error) {
	b := make([]byte, 18)
	if _, err := r.Read(b); err != nil {
		return ruleengine.CIDR{}, err
	}
	var c ruleengine.CIDR
	c.V6 = b[0] == 1
	c.Bits = int(b[1])
	copy(c.IP[:], b[2:18])
	return c, nil
}

func decodeOperand(r *bytes.Reader) (ruleengine.Operand, error) {
	var op ruleengine.Operand
	var zt, mac, fwd uint64
	if err := binary.Read(r, binary.BigEndian, &zt); err != nil {
		return op, err
	}
	op.ZT = addressing.NewAddress(zt)
	if err := binary.Read(r, binary.BigEndian, &op.VLANID); err != nil {
		return op, err
	}
	pcp, err := r.ReadByte()
	if err != nil {
		return op, err
	}
	op.VLANPCP = pcp
	if err := binary.Read(r, binary.BigEndian, &op.Ethertype); err != nil {
		return op, err
	}
	if err := binary.Read(r, binary.BigEndian, &mac); err != nil {
		return op, err
	}
	op.MAC = addressing.NewMAC(mac)
	if op.IPv4CIDR, err = decodeCIDR(r); err != nil {
		return op, err
	}
	if op.IPv6CIDR, err = decodeCIDR(r); err != nil {
		return op, err
	}
	if op.TOS, err = r.ReadByte(); err != nil {
		return op, err
	}
	if op.IPProtocol, err = r.ReadByte(); err != nil {
		return op, err
	}
	if op.ICMPType, err = r.ReadByte(); err != nil {
		return op, err
	}
	if op.ICMPCode, err = r.ReadByte(); err != nil {
		return op, err
	}
	hasCode, err := r.ReadByte()
	if err != nil {
		return op, err
	}
	op.ICMPHasCode = hasCode == 1
	if err := binary.Read(r, binary.BigEndian, &op.PortLo); err != nil {
		return op, err
	}
	if err := binary.Read(r, binary.BigEndian, &op.PortHi); err != nil {
		return op, err
	}
	if err := binary.Read(r, binary.BigEndian, &op.CharMask); err != nil {
		return op, err
	}
	if err := binary.Read(r, binary.BigEndian, &op.CharExpected); err != nil {
		return op, err
	}
	if err := binary.Read(r, binary.BigEndian, &op.FrameSizeLo); err != nil {
		return op, err
	}
	if err := binary.Read(r, binary.BigEndian, &op.FrameSizeHi); err != nil {
		return op, err
	}
	if err := binary.Read(r, binary.BigEndian, &op.TagID); err != nil {
		return op, err
	}
	if err := binary.Read(r, binary.BigEndian, &op.TagValue); err != nil {
		return op, err
	}
	if err := binary.Read(r, binary.BigEndian, &fwd); err != nil {
		return op, err
	}
	op.ForwardAddress = addressing.NewAddress(fwd)
	if err := binary.Read(r, binary.BigEndian, &op.ForwardLength); err != nil {
		return op, err
	}
	return op, nil
}

func decodeRules(data []byte) ([]ruleengine.Rule, error) {
	r := bytes.NewReader(data)
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]ruleengine.Rule, 0, n)
	for i := 0; i < int(n); i++ {
		typeByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		op, err := decodeOperand(r)
		if err != nil {
			return nil, err
		}
		out = append(out, ruleengine.Rule{
			Type:    ruleengine.RuleType(typeByte &^ 0x80),
			Negate:  typeByte&0x80 != 0,
			Operand: op,
		})
	}
	return out, nil
}

func encodeTags(tags []ruleengine.Tag) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint16(len(tags)))
	for _, tag := range tags {
		binary.Write(&buf, binary.BigEndian, tag.ID)
		binary.Write(&buf, binary.BigEndian, tag.Value)
		buf.Write(u64(uint64(tag.Issuer)))
	}
	return buf.Bytes()
}

func decodeTags(data []byte) ([]ruleengine.Tag, error) {
	r := bytes.NewReader(data)
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]ruleengine.Tag, 0, n)
	for i := 0; i < int(n); i++ {
		var tag ruleengine.Tag
		var issuer uint64
		if err := binary.Read(r, binary.BigEndian, &tag.ID); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.BigEndian, &tag.Value); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.BigEndian, &issuer); err != nil {
			return nil, err
		}
		tag.Issuer = addressing.NewAddress(issuer)
		out = append(out, tag)
	}
	return out, nil
}

func encodeCapabilities(caps []ruleengine.Capability) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint16(len(caps)))
	for _, c := range caps {
		binary.Write(&buf, binary.BigEndian, c.ID)
		buf.Write(u64(uint64(c.Issuer)))
		rulesBytes := encodeRules(c.Rules)
		binary.Write(&buf, binary.BigEndian, uint32(len(rulesBytes)))
		buf.Write(rulesBytes)
	}
	return buf.Bytes()
}

func decodeCapabilities(data []byte) ([]ruleengine.Capability, error) {
	r := bytes.NewReader(data)
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	out := make([]ruleengine.Capability, 0, n)
	for i := 0; i < int(n); i++ {
		var c ruleengine.Capability
		var issuer uint64
		var rulesLen uint32
		if err := binary.Read(r, binary.BigEndian, &c.ID); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.BigEndian, &issuer); err != nil {
			return nil, err
		}
		c.Issuer = addressing.NewAddress(issuer)
		if err := binary.Read(r, binary.BigEndian, &rulesLen); err != nil {
			return nil, err
		}
		rulesBytes := make([]byte, rulesLen)
		if _, err := r.Read(rulesBytes); err != nil {
			return nil, err
		}
		rules, err := decodeRules(rulesBytes)
		if err != nil {
			return nil, err
		}
		c.Rules = rules
		out = append(out, c)
	}
	return out, nil
}

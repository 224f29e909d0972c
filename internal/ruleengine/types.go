// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ruleengine implements the network's byte-code rule
// interpreter: a flat array of match/action records evaluated as
// match-sets, with the inbound/outbound tag asymmetry and the
// TEE/REDIRECT/SUPER_ACCEPT side effects used by overlay traffic
// filtering.
package ruleengine

import "github.com/meshlayer/overlay/internal/addressing"

// RuleType identifies both action and match records. Action types
// occupy the low range [0, matchBase); match types occupy
// [matchBase, ...). The negate flag that would occupy the wire byte's
// high bit is carried as a separate field on Rule rather than folded
// into this type, per the internal-tagged-variant design note.
type RuleType uint8

const matchBase RuleType = 16

// Action types.
const (
	ActionDrop RuleType = iota
	ActionAccept
	ActionTee
	ActionRedirect
	ActionDebugLog
)

// Match types.
const (
	MatchSourceZT RuleType = matchBase + iota
	MatchDestZT
	MatchVLANID
	MatchVLANPCP
	MatchVLANDEI
	MatchEthertype
	MatchMACSource
	MatchMACDest
	MatchIPv4Source
	MatchIPv4Dest
	MatchIPv6Source
	MatchIPv6Dest
	MatchIPTOS
	MatchIPProtocol
	MatchICMP
	MatchIPSourcePortRange
	MatchIPDestPortRange
	MatchCharacteristics
	MatchFrameSizeRange
	MatchTagsDifference
	MatchTagsBitwiseAND
	MatchTagsBitwiseOR
	MatchTagsBitwiseXOR
)

// IsAction reports whether t is in the action range.
func (t RuleType) IsAction() bool { return t < matchBase }

// IsMatch reports whether t is in the match range.
func (t RuleType) IsMatch() bool { return t >= matchBase }

// String returns a human-readable rule type name, used for tracing.
func (t RuleType) String() string {
	switch t {
	case ActionDrop:
		return "ACTION_DROP"
	case ActionAccept:
		return "ACTION_ACCEPT"
	case ActionTee:
		return "ACTION_TEE"
	case ActionRedirect:
		return "ACTION_REDIRECT"
	case ActionDebugLog:
		return "ACTION_DEBUG_LOG"
	case MatchSourceZT:
		return "MATCH_SOURCE_ZT"
	case MatchDestZT:
		return "MATCH_DEST_ZT"
	case MatchVLANID:
		return "MATCH_VLAN_ID"
	case MatchVLANPCP:
		return "MATCH_VLAN_PCP"
	case MatchVLANDEI:
		return "MATCH_VLAN_DEI"
	case MatchEthertype:
		return "MATCH_ETHERTYPE"
	case MatchMACSource:
		return "MATCH_MAC_SOURCE"
	case MatchMACDest:
		return "MATCH_MAC_DEST"
	case MatchIPv4Source:
		return "MATCH_IPV4_SOURCE"
	case MatchIPv4Dest:
		return "MATCH_IPV4_DEST"
	case MatchIPv6Source:
		return "MATCH_IPV6_SOURCE"
	case MatchIPv6Dest:
		return "MATCH_IPV6_DEST"
	case MatchIPTOS:
		return "MATCH_IP_TOS"
	case MatchIPProtocol:
		return "MATCH_IP_PROTOCOL"
	case MatchICMP:
		return "MATCH_ICMP"
	case MatchIPSourcePortRange:
		return "MATCH_IP_SOURCE_PORT_RANGE"
	case MatchIPDestPortRange:
		return "MATCH_IP_DEST_PORT_RANGE"
	case MatchCharacteristics:
		return "MATCH_CHARACTERISTICS"
	case MatchFrameSizeRange:
		return "MATCH_FRAME_SIZE_RANGE"
	case MatchTagsDifference:
		return "MATCH_TAGS_DIFFERENCE"
	case MatchTagsBitwiseAND:
		return "MATCH_TAGS_BITWISE_AND"
	case MatchTagsBitwiseOR:
		return "MATCH_TAGS_BITWISE_OR"
	case MatchTagsBitwiseXOR:
		return "MATCH_TAGS_BITWISE_XOR"
	default:
		return "???"
	}
}

// CIDR is a minimal IPv4/IPv6 prefix, avoiding a dependency on any one
// representation of net.IPNet across the package.
type CIDR struct {
	IP   [16]byte // for v4 prefixes, the first 4 bytes are significant
	Bits int
	V6   bool
}

// Operand is a sum type over every rule operand a RuleType can carry.
// Only the fields relevant to Rule.Type are meaningful for a given
// rule.
type Operand struct {
	ZT addressing.Address

	VLANID  uint16
	VLANPCP uint8 // also used for VLAN_DEI; match iff == 0

	Ethertype uint16

	MAC addressing.MAC

	IPv4CIDR CIDR
	IPv6CIDR CIDR

	TOS uint8

	IPProtocol uint8

	ICMPType    uint8
	ICMPCode    uint8
	ICMPHasCode bool

	PortLo uint16
	PortHi uint16

	CharMask     uint64
	CharExpected uint64

	FrameSizeLo uint32
	FrameSizeHi uint32

	TagID    uint32
	TagValue uint32

	// forward-target, shared by TEE and REDIRECT.
	ForwardAddress addressing.Address
	ForwardLength  uint16 // 0 means "full frame / no truncation"
}

// Rule is one entry of a flat rule program.
type Rule struct {
	Type    RuleType
	Negate  bool
	Operand Operand
}

// Tag is a signed (id, value) credential attached to a network member.
type Tag struct {
	ID     uint32
	Value  uint32
	Issuer addressing.Address
}

// Capability is a secondary, credential-gated rule program tried only
// when the base program produces no verdict.
type Capability struct {
	ID     uint32
	Rules  []Rule
	Issuer addressing.Address
}

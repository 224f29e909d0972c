// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ruleengine

import (
	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/frame"
)

// Direction is which way a frame is travelling relative to this node.
type Direction int

const (
	Outbound Direction = iota
	Inbound
)

// Verdict is the terminal (or non-terminal, for NoMatch) result of
// evaluating a rule program.
type Verdict int

const (
	NoMatch Verdict = iota
	Drop
	Accept
	SuperAccept
	Redirect
)

// String renders the verdict for logs and traces.
func (v Verdict) String() string {
	switch v {
	case Drop:
		return "drop"
	case Accept:
		return "accept"
	case SuperAccept:
		return "super-accept"
	case Redirect:
		return "redirect"
	default:
		return "no-match"
	}
}

// TraceSink receives one call per rule evaluated, used by tests
// asserting the circuit-breaker property and by cmd/overlay-tui's
// live inspector. It is a runtime, always-available substitute for a
// compile-time debug trace.
type TraceSink interface {
	TraceRule(index int, rt RuleType, negate bool, matched bool, setMatches bool, skipped bool)
}

// Context bundles everything a rule program needs to evaluate one
// frame. ZTDest is read once at the start of evaluation; the evolving
// redirect target during evaluation is tracked internally and surfaced
// via Outcome.RedirectTo rather than mutating the caller's struct.
type Context struct {
	Direction Direction

	ZTSource addressing.Address
	ZTDest   addressing.Address
	LocalID  addressing.Address // this node's own address

	MACSource addressing.MAC
	MACDest   addressing.MAC

	Frame   frame.Frame
	VLANID  uint16

	// LocalTags/RemoteTags are keyed by tag id.
	LocalTags  map[uint32]uint32
	RemoteTags map[uint32]uint32

	// UnsupportedMatchDefault is the RULES_RESULT_OF_UNSUPPORTED_MATCH
	// network flag: the verdict an unrecognized MATCH type should
	// produce, so older peers stay forward-compatible with newer rule
	// types.
	UnsupportedMatchDefault bool

	Trace TraceSink
}

// Outcome is the structured result of evaluating a rule program.
type Outcome struct {
	Verdict Verdict

	// RedirectTo is the REDIRECT target when Verdict == Redirect; for
	// every other verdict, SuperAccept included, it is ctx.ZTDest
	// unchanged.
	RedirectTo addressing.Address

	// TeeSet/TeeTarget/TeeLength describe a pending TEE side effect.
	// They are populated even when the final verdict ends up NoMatch;
	// callers only act on them after confirming the frame was
	// accepted.
	TeeSet    bool
	TeeTarget addressing.Address
	TeeLength int
}

// Evaluate interprets rules against ctx and returns the resulting
// Outcome. It never mutates ctx and never recurses; its running time
// is O(len(rules)).
func Evaluate(rules []Rule, ctx Context) Outcome {
	thisSetMatches := true
	ztDest2 := ctx.ZTDest
	out := Outcome{Verdict: NoMatch}

	for i, rule := range rules {
		if rule.Type.IsAction() {
			if thisSetMatches {
				terminal, updated := applyAction(rule, ctx, ztDest2, &out)
				ztDest2 = updated
				if ctx.Trace != nil {
					ctx.Trace.TraceRule(i, rule.Type, rule.Negate, true, thisSetMatches, false)
				}
				if terminal {
					out.RedirectTo = ztDest2
					return out
				}
			} else if ctx.Trace != nil {
				ctx.Trace.TraceRule(i, rule.Type, rule.Negate, false, thisSetMatches, false)
			}
			thisSetMatches = true
			continue
		}

		// MATCH rule.
		if !thisSetMatches {
			if ctx.Trace != nil {
				ctx.Trace.TraceRule(i, rule.Type, rule.Negate, false, thisSetMatches, true)
			}
			continue
		}

		matched := evaluateMatch(rule, ctx)
		if rule.Negate {
			matched = !matched
		}
		thisSetMatches = thisSetMatches && matched
		if ctx.Trace != nil {
			ctx.Trace.TraceRule(i, rule.Type, rule.Negate, matched, thisSetMatches, false)
		}
	}

	out.RedirectTo = ztDest2
	return out
}

// applyAction executes rule (an ACTION-range rule) against the current
// state, returning whether evaluation should terminate and the
// (possibly updated) redirect target.
func applyAction(rule Rule, ctx Context, ztDest2 addressing.Address, out *Outcome) (terminal bool, newZtDest2 addressing.Address) {
	newZtDest2 = ztDest2
	switch rule.Type {
	case ActionDrop:
		out.Verdict = Drop
		return true, newZtDest2

	case ActionAccept:
		out.Verdict = Accept
		return true, newZtDest2

	case ActionTee:
		fwd := rule.Operand.ForwardAddress
		if fwd == ctx.ZTSource || fwd == ctx.LocalID || fwd == ztDest2 {
			return false, newZtDest2 // noop
		}
		out.TeeSet = true
		out.TeeTarget = fwd
		if rule.Operand.ForwardLength > 0 {
			out.TeeLength = min(ctx.Frame.Len(), int(rule.Operand.ForwardLength))
		} else {
			out.TeeLength = ctx.Frame.Len()
		}
		return false, newZtDest2

	case ActionRedirect:
		fwd := rule.Operand.ForwardAddress
		if fwd == ctx.LocalID && ctx.Direction == Inbound {
			out.Verdict = SuperAccept
			return true, newZtDest2
		}
		if fwd == ctx.ZTSource || fwd == ctx.LocalID || fwd == ztDest2 {
			return false, newZtDest2 // noop
		}
		newZtDest2 = fwd
		out.Verdict = Redirect
		return true, newZtDest2

	case ActionDebugLog:
		return false, newZtDest2 // noop; trace-only

	default:
		return false, newZtDest2 // unrecognized action: noop
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func evaluateMatch(rule Rule, ctx Context) bool {
	op := rule.Operand
	switch rule.Type {
	case MatchSourceZT:
		return op.ZT == ctx.ZTSource
	case MatchDestZT:
		return op.ZT == ctx.ZTDest
	case MatchVLANID:
		return op.VLANID == ctx.VLANID
	case MatchVLANPCP, MatchVLANDEI:
		return op.VLANPCP == 0
	case MatchEthertype:
		return op.Ethertype == ctx.Frame.EtherType()
	case MatchMACSource:
		return op.MAC == ctx.MACSource
	case MatchMACDest:
		return op.MAC == ctx.MACDest
	case MatchIPv4Source:
		src, ok := ctx.Frame.IPv4Source()
		if !ok {
			return false
		}
		return cidrContainsV4(op.IPv4CIDR, src)
	case MatchIPv4Dest:
		dst, ok := ctx.Frame.IPv4Dest()
		if !ok {
			return false
		}
		return cidrContainsV4(op.IPv4CIDR, dst)
	case MatchIPv6Source:
		src, ok := ctx.Frame.IPv6Source()
		if !ok {
			return false
		}
		return cidrContainsV6(op.IPv6CIDR, src)
	case MatchIPv6Dest:
		dst, ok := ctx.Frame.IPv6Dest()
		if !ok {
			return false
		}
		return cidrContainsV6(op.IPv6CIDR, dst)
	case MatchIPTOS:
		var dscp uint8
		var ok bool
		if ctx.Frame.IsIPv4() {
			dscp, ok = ctx.Frame.IPv4DSCP()
		} else if ctx.Frame.IsIPv6() {
			dscp, ok = ctx.Frame.IPv6DSCP()
		}
		return ok && dscp == op.TOS
	case MatchIPProtocol:
		proto, ok := ctx.Frame.IPProtocol()
		return ok && proto == op.IPProtocol
	case MatchICMP:
		typ, code, ok := ctx.Frame.ICMPTypeCode()
		if !ok || typ != op.ICMPType {
			return false
		}
		if op.ICMPHasCode {
			return code == op.ICMPCode
		}
		return true
	case MatchIPSourcePortRange:
		port, ok := ctx.Frame.SourcePort()
		return ok && port >= op.PortLo && port <= op.PortHi
	case MatchIPDestPortRange:
		port, ok := ctx.Frame.DestPort()
		return ok && port >= op.PortLo && port <= op.PortHi
	case MatchCharacteristics:
		cf := characteristics(ctx)
		return (cf & op.CharMask) == op.CharExpected
	case MatchFrameSizeRange:
		n := uint32(ctx.Frame.Len())
		return n >= op.FrameSizeLo && n <= op.FrameSizeHi
	case MatchTagsDifference, MatchTagsBitwiseAND, MatchTagsBitwiseOR, MatchTagsBitwiseXOR:
		return evaluateTag(rule.Type, op, ctx)
	default:
		if ctx.UnsupportedMatchDefault {
			return true
		}
		return false
	}
}

// Characteristic bits assembled for MATCH_CHARACTERISTICS. The TCP
// flags occupy the low 12 bits, matching frame.Frame.TCPFlags12.
const (
	charBitInbound   uint64 = 1 << 63
	charBitMulticast uint64 = 1 << 62
	charBitBroadcast uint64 = 1 << 61
)

func characteristics(ctx Context) uint64 {
	var cf uint64
	if ctx.Direction == Inbound {
		cf |= charBitInbound
	}
	if ctx.MACDest == addressing.BroadcastMAC {
		cf |= charBitBroadcast
	}
	if ctx.MACDest.IsMulticast() {
		// The broadcast MAC asserts both bits: it is also a multicast
		// address.
		cf |= charBitMulticast
	}
	if flags, ok := ctx.Frame.TCPFlags12(); ok {
		cf |= uint64(flags)
	}
	return cf
}

func evaluateTag(rt RuleType, op Operand, ctx Context) bool {
	local, haveLocal := ctx.LocalTags[op.TagID]
	if !haveLocal {
		return false
	}
	remote, haveRemote := ctx.RemoteTags[op.TagID]
	if !haveRemote {
		// Strict on inbound (we must not assume a tag we cannot see);
		// lenient on outbound (remote may simply not have pushed
		// credentials yet).
		return ctx.Direction == Outbound
	}
	switch rt {
	case MatchTagsDifference:
		var diff int64
		if local > remote {
			diff = int64(local) - int64(remote)
		} else {
			diff = int64(remote) - int64(local)
		}
		return diff <= int64(op.TagValue)
	case MatchTagsBitwiseAND:
		return (local & remote) == op.TagValue
	case MatchTagsBitwiseOR:
		return (local | remote) == op.TagValue
	case MatchTagsBitwiseXOR:
		return (local ^ remote) == op.TagValue
	default:
		return false
	}
}

func cidrContainsV4(c CIDR, ip [4]byte) bool {
	if c.V6 || c.Bits < 0 || c.Bits > 32 {
		return false
	}
	return maskedEqual(ip[:], c.IP[:4], c.Bits)
}

func cidrContainsV6(c CIDR, ip [16]byte) bool {
	if !c.V6 || c.Bits < 0 || c.Bits > 128 {
		return false
	}
	return maskedEqual(ip[:], c.IP[:16], c.Bits)
}

func maskedEqual(a, b []byte, bits int) bool {
	fullBytes := bits / 8
	remBits := bits % 8
	if fullBytes > len(a) || fullBytes > len(b) {
		return false
	}
	for i := 0; i < fullBytes; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	if remBits == 0 {
		return true
	}
	mask := byte(0xff << (8 - remBits))
	return a[fullBytes]&mask == b[fullBytes]&mask
}

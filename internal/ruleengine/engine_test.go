// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ruleengine

import (
	"testing"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/frame"
	"github.com/stretchr/testify/require"
)

func baseCtx() Context {
	return Context{
		Direction: Outbound,
		ZTSource:  addressing.NewAddress(0x1111111111),
		ZTDest:    addressing.NewAddress(0x2222222222),
		LocalID:   addressing.NewAddress(0x9999999999),
		MACSource: addressing.NewMAC(0xaaaaaaaaaaaa),
		MACDest:   addressing.NewMAC(0xbbbbbbbbbbbb),
		Frame:     frame.New(nil, 0x0806),
	}
}

func TestDefaultTrueMatchSet(t *testing.T) {
	ctx := baseCtx()
	require.Equal(t, Accept, Evaluate([]Rule{{Type: ActionAccept}}, ctx).Verdict)
	require.Equal(t, Drop, Evaluate([]Rule{{Type: ActionDrop}}, ctx).Verdict)
	require.Equal(t, NoMatch, Evaluate(nil, ctx).Verdict)
}

func TestS1_EthertypeMismatchYieldsNoMatch(t *testing.T) {
	ctx := baseCtx() // frame carries etherType 0x0806 (ARP)
	rules := []Rule{
		{Type: MatchEthertype, Operand: Operand{Ethertype: frame.EtherTypeIPv4}},
		{Type: ActionAccept},
	}
	out := Evaluate(rules, ctx)
	require.Equal(t, NoMatch, out.Verdict)
}

func ipv4Frame(t *testing.T, ihlWords int, proto uint8, dst [4]byte, icmpType, icmpCode uint8) frame.Frame {
	t.Helper()
	hdrLen := ihlWords * 4
	data := make([]byte, hdrLen+8)
	data[0] = byte(0x40 | (ihlWords & 0x0f))
	data[9] = proto
	copy(data[16:20], dst[:])
	if proto == frame.ProtoICMP {
		data[hdrLen] = icmpType
		data[hdrLen+1] = icmpCode
	}
	return frame.New(data, frame.EtherTypeIPv4)
}

func TestS2_IPv4CIDRDropThenAccept(t *testing.T) {
	rules := []Rule{
		{Type: MatchIPv4Dest, Operand: Operand{IPv4CIDR: MustCIDR("10.0.0.0/8")}},
		{Type: ActionDrop},
		{Type: ActionAccept},
	}

	ctx := baseCtx()
	ctx.Frame = ipv4Frame(t, 5, frame.ProtoTCP, [4]byte{10, 1, 2, 3}, 0, 0)
	require.Equal(t, Drop, Evaluate(rules, ctx).Verdict)

	ctx.Frame = ipv4Frame(t, 5, frame.ProtoTCP, [4]byte{192, 168, 1, 1}, 0, 0)
	require.Equal(t, Accept, Evaluate(rules, ctx).Verdict)
}

func TestS3_RedirectToLocalNode(t *testing.T) {
	rules := []Rule{{Type: ActionRedirect, Operand: Operand{ForwardAddress: addressing.NewAddress(0x9999999999)}}}

	ctx := baseCtx()
	ctx.Direction = Inbound
	require.Equal(t, SuperAccept, Evaluate(rules, ctx).Verdict)

	ctx.Direction = Outbound
	require.Equal(t, NoMatch, Evaluate(rules, ctx).Verdict) // noop on outbound, falls through to NoMatch
}

func TestS4_TeeSideEffect(t *testing.T) {
	target := addressing.NewAddress(0x5555555555)
	rules := []Rule{
		{Type: ActionTee, Operand: Operand{ForwardAddress: target}},
		{Type: ActionAccept},
	}
	ctx := baseCtx()
	ctx.Frame = frame.New(make([]byte, 100), 0x0800)
	out := Evaluate(rules, ctx)
	require.Equal(t, Accept, out.Verdict)
	require.True(t, out.TeeSet)
	require.Equal(t, target, out.TeeTarget)
	require.Equal(t, 100, out.TeeLength)
}

func TestTeeTruncation(t *testing.T) {
	target := addressing.NewAddress(0x5555555555)
	rules := []Rule{
		{Type: ActionTee, Operand: Operand{ForwardAddress: target, ForwardLength: 10}},
		{Type: ActionAccept},
	}
	ctx := baseCtx()
	ctx.Frame = frame.New(make([]byte, 100), 0x0800)
	out := Evaluate(rules, ctx)
	require.Equal(t, 10, out.TeeLength)
}

func TestTeeNoopOnSelfTargets(t *testing.T) {
	ctx := baseCtx()
	for _, target := range []addressing.Address{ctx.ZTSource, ctx.LocalID, ctx.ZTDest} {
		rules := []Rule{
			{Type: ActionTee, Operand: Operand{ForwardAddress: target}},
			{Type: ActionAccept},
		}
		out := Evaluate(rules, ctx)
		require.False(t, out.TeeSet)
	}
}

func TestTagAsymmetry(t *testing.T) {
	ctx := baseCtx()
	ctx.LocalTags = map[uint32]uint32{1: 10}
	ctx.RemoteTags = map[uint32]uint32{} // remote never pushed tag 1

	rule := Rule{Type: MatchTagsBitwiseAND, Operand: Operand{TagID: 1, TagValue: 0}}

	ctx.Direction = Inbound
	out := Evaluate([]Rule{rule, {Type: ActionAccept}}, ctx)
	require.Equal(t, NoMatch, out.Verdict, "inbound must be strict when remote tag is absent")

	ctx.Direction = Outbound
	out = Evaluate([]Rule{rule, {Type: ActionAccept}}, ctx)
	require.Equal(t, Accept, out.Verdict, "outbound must be lenient when remote tag is absent")
}

func TestTagPredicates(t *testing.T) {
	ctx := baseCtx()
	ctx.LocalTags = map[uint32]uint32{1: 10}
	ctx.RemoteTags = map[uint32]uint32{1: 12}

	cases := []struct {
		name  string
		rt    RuleType
		value uint32
		want  bool
	}{
		{"difference-within", MatchTagsDifference, 2, true},
		{"difference-exceeded", MatchTagsDifference, 1, false},
		{"and", MatchTagsBitwiseAND, 10 & 12, true},
		{"or", MatchTagsBitwiseOR, 10 | 12, true},
		{"xor", MatchTagsBitwiseXOR, 10 ^ 12, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule := Rule{Type: tc.rt, Operand: Operand{TagID: 1, TagValue: tc.value}}
			out := Evaluate([]Rule{rule, {Type: ActionAccept}}, ctx)
			if tc.want {
				require.Equal(t, Accept, out.Verdict)
			} else {
				require.Equal(t, NoMatch, out.Verdict)
			}
		})
	}
}

// recordingTrace implements TraceSink and records every call, used to
// prove the circuit breaker never evaluates a MATCH once a match-set
// has already gone false.
type recordingTrace struct {
	skipped []int
	evald   []int
}

func (r *recordingTrace) TraceRule(index int, rt RuleType, negate, matched, setMatches, skipped bool) {
	if skipped {
		r.skipped = append(r.skipped, index)
	} else if rt.IsMatch() {
		r.evald = append(r.evald, index)
	}
}

func TestCircuitBreaker(t *testing.T) {
	ctx := baseCtx() // ARP frame: the IPv4 ethertype match below misses
	rules := []Rule{
		{Type: MatchEthertype, Operand: Operand{Ethertype: frame.EtherTypeIPv4}}, // false -> thisSetMatches=false
		{Type: MatchVLANID, Operand: Operand{VLANID: 42}},                       // must be skipped
		{Type: MatchMACSource, Operand: Operand{MAC: ctx.MACSource}},            // must be skipped
		{Type: ActionAccept},
	}
	trace := &recordingTrace{}
	ctx.Trace = trace
	out := Evaluate(rules, ctx)
	require.Equal(t, NoMatch, out.Verdict)
	require.Equal(t, []int{0}, trace.evald, "only the first MATCH should actually be evaluated")
	require.Equal(t, []int{1, 2}, trace.skipped, "subsequent MATCH rules in a failed set must be skipped")
}

func TestNegateSymmetry(t *testing.T) {
	ctx := baseCtx()
	ctx.Frame = ipv4Frame(t, 5, frame.ProtoTCP, [4]byte{192, 168, 1, 1}, 0, 0)

	predicates := []Rule{
		{Type: MatchEthertype, Operand: Operand{Ethertype: frame.EtherTypeIPv4}},
		{Type: MatchIPv4Dest, Operand: Operand{IPv4CIDR: MustCIDR("192.168.1.0/24")}},
		{Type: MatchMACSource, Operand: Operand{MAC: ctx.MACSource}},
	}
	for _, p := range predicates {
		positive := Evaluate([]Rule{p, {Type: ActionAccept}}, ctx).Verdict == Accept
		neg := p
		neg.Negate = true
		negative := Evaluate([]Rule{neg, {Type: ActionAccept}}, ctx).Verdict == Accept
		require.NotEqual(t, positive, negative, "rule %v must flip under negation", p.Type)
	}
}

func TestUnsupportedMatchUsesFlagDefault(t *testing.T) {
	ctx := baseCtx()
	rule := Rule{Type: RuleType(200)} // not a known match type

	ctx.UnsupportedMatchDefault = false
	require.Equal(t, NoMatch, Evaluate([]Rule{rule, {Type: ActionAccept}}, ctx).Verdict)

	ctx.UnsupportedMatchDefault = true
	require.Equal(t, Accept, Evaluate([]Rule{rule, {Type: ActionAccept}}, ctx).Verdict)
}

// TestICMPIHLUsesWordMultiplier pins down the header-length computation
// as IHL*4 (32-bit words), not IHL*32. An IPv4 header with a 24-byte
// IHL (6 words, i.e. options present) is built so the two
// interpretations disagree about where the ICMP header starts.
func TestICMPIHLUsesWordMultiplier(t *testing.T) {
	ctx := baseCtx()
	ctx.Frame = ipv4Frame(t, 6, frame.ProtoICMP, [4]byte{1, 2, 3, 4}, 8, 0)

	rule := Rule{Type: MatchICMP, Operand: Operand{ICMPType: 8, ICMPHasCode: false}}
	out := Evaluate([]Rule{rule, {Type: ActionAccept}}, ctx)
	require.Equal(t, Accept, out.Verdict, "ICMP header must be read from IHL*4, not IHL*32")
}

func TestFrameSizeRange(t *testing.T) {
	ctx := baseCtx()
	ctx.Frame = frame.New(make([]byte, 64), 0x0800)
	rule := Rule{Type: MatchFrameSizeRange, Operand: Operand{FrameSizeLo: 60, FrameSizeHi: 128}}
	require.Equal(t, Accept, Evaluate([]Rule{rule, {Type: ActionAccept}}, ctx).Verdict)

	rule.Operand.FrameSizeHi = 63
	require.Equal(t, NoMatch, Evaluate([]Rule{rule, {Type: ActionAccept}}, ctx).Verdict)
}

func TestCharacteristicsInboundAndBroadcast(t *testing.T) {
	ctx := baseCtx()
	ctx.Direction = Inbound
	ctx.MACDest = addressing.BroadcastMAC
	// A broadcast destination asserts the MULTICAST bit as well as the
	// BROADCAST bit, so a rule matching on either catches it.
	rule := Rule{Type: MatchCharacteristics, Operand: Operand{
		CharMask:     charBitInbound | charBitBroadcast | charBitMulticast,
		CharExpected: charBitInbound | charBitBroadcast | charBitMulticast,
	}}
	require.Equal(t, Accept, Evaluate([]Rule{rule, {Type: ActionAccept}}, ctx).Verdict)
}

func TestCharacteristicsMulticastOnly(t *testing.T) {
	ctx := baseCtx()
	ctx.MACDest = addressing.NewMAC(0x0100000000aa) // multicast, not broadcast
	require.Equal(t, charBitMulticast, characteristics(ctx)&(charBitMulticast|charBitBroadcast))
}

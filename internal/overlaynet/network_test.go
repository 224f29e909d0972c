// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package overlaynet

import (
	"testing"
	"time"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/clock"
	"github.com/meshlayer/overlay/internal/frame"
	"github.com/meshlayer/overlay/internal/netconfig"
	"github.com/meshlayer/overlay/internal/ruleengine"
	"github.com/stretchr/testify/require"
)

type fakeSwitch struct {
	sent  [][]byte
	dests []addressing.Address
}

func (f *fakeSwitch) Send(dest addressing.Address, packet []byte, encrypt bool) error {
	f.dests = append(f.dests, dest)
	f.sent = append(f.sent, packet)
	return nil
}

type fakeController struct {
	result ControllerResult
	cfg    *netconfig.NetworkConfig
	calls  int
}

func (f *fakeController) NetworkConfigRequest(requester addressing.Address, networkID addressing.NetworkID, metadata map[string]string) (ControllerResult, *netconfig.NetworkConfig) {
	f.calls++
	return f.result, f.cfg
}

type fakeTopology struct {
	upstream []addressing.Address
	known    map[addressing.Address]bool
}

func (f *fakeTopology) UpstreamAddresses() []addressing.Address { return f.upstream }
func (f *fakeTopology) PeerKnown(addr addressing.Address) bool  { return f.known[addr] }
func (f *fakeTopology) Identity(addr addressing.Address) (Identity, bool) {
	return Identity{Address: addr}, f.known[addr]
}

type fakeHostPort struct {
	calls []PortOp
}

func (f *fakeHostPort) ConfigureVirtualNetworkPort(id addressing.NetworkID, op PortOp, snap PortSnapshot) {
	f.calls = append(f.calls, op)
}

const (
	localID  = addressing.Address(0x9999999999)
	peerA    = addressing.Address(0x1111111111)
	peerB    = addressing.Address(0x2222222222)
	testNwID = addressing.NetworkID(0x8056c2e21c000001)
)

func newTestNetwork(t *testing.T) (*Network, *fakeSwitch, *clock.MockClock) {
	t.Helper()
	sw := &fakeSwitch{}
	mc := clock.NewMockClock(time.Unix(1_700_000_000, 0))
	n := New(testNwID, localID, Deps{
		Clock:  mc,
		Switch: sw,
	})
	return n, sw, mc
}

func withConfig(n *Network, rules []ruleengine.Rule, caps []ruleengine.Capability) {
	n.ApplyConfiguration(netconfig.New(netconfig.NetworkConfig{
		NetworkID:    testNwID,
		IssuedTo:     localID,
		Revision:     1,
		Rules:        rules,
		Capabilities: caps,
	}))
}

func ipv4Frame(dst [4]byte, proto uint8) frame.Frame {
	data := make([]byte, 20)
	data[0] = 0x45
	data[9] = proto
	copy(data[16:20], dst[:])
	return frame.New(data, frame.EtherTypeIPv4)
}

func TestNoConfigNeverAllowsTraffic(t *testing.T) {
	n, _, _ := newTestNetwork(t)
	ok := n.FilterOutgoing(localID, peerA, addressing.NewMAC(1), addressing.NewMAC(2), frame.New(nil, 0x0806), 0)
	require.False(t, ok)
}

func TestS1_EthertypeMismatch(t *testing.T) {
	n, _, _ := newTestNetwork(t)
	withConfig(n, []ruleengine.Rule{
		{Type: ruleengine.MatchEthertype, Operand: ruleengine.Operand{Ethertype: frame.EtherTypeIPv4}},
		{Type: ruleengine.ActionAccept},
	}, nil)

	ok := n.FilterOutgoing(localID, peerA, addressing.NewMAC(1), addressing.NewMAC(2), frame.New(nil, 0x0806), 0)
	require.False(t, ok)
}

func TestS2_IPv4CIDRDropThenAccept(t *testing.T) {
	n, _, _ := newTestNetwork(t)
	withConfig(n, []ruleengine.Rule{
		{Type: ruleengine.MatchIPv4Dest, Operand: ruleengine.Operand{IPv4CIDR: ruleengine.MustCIDR("10.0.0.0/8")}},
		{Type: ruleengine.ActionDrop},
		{Type: ruleengine.ActionAccept},
	}, nil)

	ok := n.FilterOutgoing(localID, peerA, addressing.NewMAC(1), addressing.NewMAC(2), ipv4Frame([4]byte{10, 1, 2, 3}, frame.ProtoTCP), 0)
	require.False(t, ok)

	ok = n.FilterOutgoing(localID, peerA, addressing.NewMAC(1), addressing.NewMAC(2), ipv4Frame([4]byte{192, 168, 1, 1}, frame.ProtoTCP), 0)
	require.True(t, ok)
}

func TestS3_RedirectToLocalNodeSuperAcceptsInbound(t *testing.T) {
	n, _, _ := newTestNetwork(t)
	withConfig(n, []ruleengine.Rule{
		{Type: ruleengine.ActionRedirect, Operand: ruleengine.Operand{ForwardAddress: localID}},
	}, nil)

	verdict := n.FilterIncoming(peerA, localID, addressing.NewMAC(1), addressing.NewMAC(2), frame.New(nil, 0x0806), 0)
	require.Equal(t, 2, verdict)

	ok := n.FilterOutgoing(localID, peerA, addressing.NewMAC(1), addressing.NewMAC(2), frame.New(nil, 0x0806), 0)
	require.False(t, ok, "outbound redirect-to-self is a noop, falling through to NoMatch")
}

func TestS4_TeeEmitsExtFrame(t *testing.T) {
	n, sw, _ := newTestNetwork(t)
	withConfig(n, []ruleengine.Rule{
		{Type: ruleengine.ActionTee, Operand: ruleengine.Operand{ForwardAddress: peerB}},
		{Type: ruleengine.ActionAccept},
	}, nil)

	ok := n.FilterOutgoing(localID, peerA, addressing.NewMAC(1), addressing.NewMAC(2), frame.New(make([]byte, 64), 0x0800), 0)
	require.True(t, ok)
	require.NotEmpty(t, sw.sent, "tee must emit an EXT_FRAME")
	require.Equal(t, sideByteOutbound, sw.sent[0][8])
	require.Equal(t, peerB, sw.dests[0], "the EXT_FRAME goes to the tee target")
}

func TestS5_InboundCapabilityFromSourceMembership(t *testing.T) {
	n, _, _ := newTestNetwork(t)
	withConfig(n, []ruleengine.Rule{}, nil) // base yields NoMatch always

	capRules := []ruleengine.Rule{
		{Type: ruleengine.MatchSourceZT, Operand: ruleengine.Operand{ZT: peerA}},
		{Type: ruleengine.ActionAccept},
	}
	src := n.members.Get(peerA)
	src.SetRemoteCredentials(nil, []ruleengine.Capability{{ID: 1, Rules: capRules}}, nil)

	verdict := n.FilterIncoming(peerA, localID, addressing.NewMAC(1), addressing.NewMAC(2), frame.New(nil, 0x0806), 0)
	require.Equal(t, 1, verdict)

	verdict = n.FilterIncoming(peerB, localID, addressing.NewMAC(1), addressing.NewMAC(2), frame.New(nil, 0x0806), 0)
	require.Equal(t, 0, verdict, "peerB never presented the capability, so base NoMatch stands as a drop")
}

func TestCapabilityDropDoesNotEscalateToGlobalDrop(t *testing.T) {
	n, _, _ := newTestNetwork(t)
	withConfig(n, nil, []ruleengine.Capability{
		{ID: 1, Rules: []ruleengine.Rule{{Type: ruleengine.ActionDrop}}},
		{ID: 2, Rules: []ruleengine.Rule{{Type: ruleengine.ActionAccept}}},
	})

	ok := n.FilterOutgoing(localID, peerA, addressing.NewMAC(1), addressing.NewMAC(2), frame.New(nil, 0x0806), 0)
	require.True(t, ok, "a DROP inside one capability must not block a later capability's ACCEPT")
}

func TestS6_ReassembleConfigChunks(t *testing.T) {
	n, _, _ := newTestNetwork(t)
	cfg := netconfig.New(netconfig.NetworkConfig{NetworkID: testNwID, IssuedTo: localID, Revision: 9})
	data := netconfig.Encode(cfg)

	n.reasm.Begin(7)
	n.HandleInboundConfigChunk(7, data[:len(data)/2], 0, uint64(len(data)))
	require.Nil(t, n.Config())
	n.HandleInboundConfigChunk(7, data[len(data)/2:], uint64(len(data)/2), uint64(len(data)))

	got := n.Config()
	require.NotNil(t, got)
	require.Equal(t, uint64(9), got.Revision)
}

func TestRequestConfigurationSendsWireRequestToController(t *testing.T) {
	n, sw, mc := newTestNetwork(t)

	n.RequestConfiguration()
	require.Len(t, sw.sent, 1)
	require.Equal(t, addressing.NewAddress(uint64(testNwID)>>24), sw.dests[0],
		"the controller address is the top 40 bits of the network id")
	require.True(t, n.reasm.Active(), "a wire request must arm chunk reassembly")

	n.RequestConfiguration() // inside the rate-limit window
	require.Len(t, sw.sent, 1)

	mc.Advance(2 * RequestConfigRateLimit)
	n.RequestConfiguration()
	require.Len(t, sw.sent, 2)
}

func TestRequestConfigurationUsesInProcessController(t *testing.T) {
	selfID := addressing.NetworkID(uint64(localID)<<24 | 0x000001)
	cfg := netconfig.New(netconfig.NetworkConfig{NetworkID: selfID, IssuedTo: localID, Revision: 3})
	ctrl := &fakeController{result: ControllerOK, cfg: cfg}
	sw := &fakeSwitch{}
	n := New(selfID, localID, Deps{Clock: clock.NewMockClock(time.Unix(0, 0)), Switch: sw, Controller: ctrl})

	n.RequestConfiguration()
	require.Equal(t, 1, ctrl.calls)
	require.Empty(t, sw.sent, "the in-process controller path must not touch the wire")
	got := n.Config()
	require.NotNil(t, got)
	require.Equal(t, uint64(3), got.Revision)
}

func TestCredentialPushOncePerInterval(t *testing.T) {
	n, sw, mc := newTestNetwork(t)
	n.ApplyConfiguration(netconfig.New(netconfig.NetworkConfig{
		NetworkID: testNwID,
		IssuedTo:  localID,
		Revision:  1,
		IsPrivate: true,
		COM:       []byte{0xde, 0xad},
		Rules:     []ruleengine.Rule{{Type: ruleengine.ActionAccept}},
	}))

	fr := frame.New(nil, 0x0806)
	for i := 0; i < 5; i++ {
		require.True(t, n.FilterOutgoing(localID, peerA, addressing.NewMAC(1), addressing.NewMAC(2), fr, 0))
	}
	require.Len(t, sw.sent, 1, "the COM goes out once per peer, not per frame")
	require.Equal(t, peerA, sw.dests[0])

	mc.Advance(MulticastAnnouncePeriod + time.Second)
	require.True(t, n.FilterOutgoing(localID, peerA, addressing.NewMAC(1), addressing.NewMAC(2), fr, 0))
	require.Len(t, sw.sent, 2, "the COM is refreshed once the interval elapses")
}

func TestAnnounceIncludesControllerTarget(t *testing.T) {
	n, sw, _ := newTestNetwork(t)
	withConfig(n, []ruleengine.Rule{{Type: ruleengine.ActionAccept}}, nil)
	n.Subscribe(addressing.MulticastGroup{MAC: addressing.NewMAC(0x0100000000aa), ADI: 7})

	controller := addressing.NewAddress(uint64(testNwID) >> 24)
	require.Contains(t, sw.dests, controller,
		"announce must reach the controller when it is neither an upstream nor a member")
}

func TestSetConfigurationTriState(t *testing.T) {
	n, _, _ := newTestNetwork(t)
	cfg := netconfig.New(netconfig.NetworkConfig{NetworkID: testNwID, IssuedTo: localID, Revision: 1})

	require.Equal(t, 2, n.SetConfiguration(cfg, false))
	require.Equal(t, 1, n.SetConfiguration(cfg, false), "identical config is a no-op")

	wrong := netconfig.New(netconfig.NetworkConfig{NetworkID: addressing.NetworkID(0xdead), IssuedTo: localID})
	require.Equal(t, 0, n.SetConfiguration(wrong, false))
}

func TestApplyConfigurationSignalsUpOnlyOnce(t *testing.T) {
	sw := &fakeSwitch{}
	hp := &fakeHostPort{}
	n := New(testNwID, localID, Deps{Clock: clock.NewMockClock(time.Unix(0, 0)), Switch: sw, HostPort: hp})

	cfg1 := netconfig.New(netconfig.NetworkConfig{NetworkID: testNwID, IssuedTo: localID, Revision: 1})
	cfg2 := netconfig.New(netconfig.NetworkConfig{NetworkID: testNwID, IssuedTo: localID, Revision: 2})
	n.ApplyConfiguration(cfg1)
	n.ApplyConfiguration(cfg2)

	require.Equal(t, []PortOp{PortUp, PortConfigUpdate}, hp.calls)
}

func TestBridgeRouteCapEvictsDominantContributor(t *testing.T) {
	n, _, _ := newTestNetwork(t)
	dominant := addressing.NewAddress(0xaaaa)
	for i := 0; i < MaxBridgeRoutes; i++ {
		n.LearnBridgeRoute(addressing.NewMAC(uint64(i)), dominant)
	}
	n.LearnBridgeRoute(addressing.NewMAC(999999), addressing.NewAddress(0xbbbb))

	require.LessOrEqual(t, len(n.bridge), MaxBridgeRoutes)
	for _, a := range n.sortedBridgeAddresses() {
		require.NotEqual(t, dominant, a, "the dominant contributor must be fully evicted")
	}
}

func TestMulticastGroupsSortedUnique(t *testing.T) {
	n, _, mc := newTestNetwork(t)
	a := addressing.MulticastGroup{MAC: addressing.NewMAC(3), ADI: 0}
	b := addressing.MulticastGroup{MAC: addressing.NewMAC(1), ADI: 0}
	n.Subscribe(a)
	n.Subscribe(b)
	n.Subscribe(a) // duplicate

	got := n.AllMulticastGroups()
	require.Len(t, got, 2)
	require.True(t, got[0].Less(got[1]))
	_ = mc
}

func TestCleanRemovesUnknownMemberships(t *testing.T) {
	topo := &fakeTopology{known: map[addressing.Address]bool{peerA: true}}
	n := New(testNwID, localID, Deps{Clock: clock.NewMockClock(time.Unix(0, 0)), Topology: topo})
	n.members.Get(peerA)
	n.members.Get(peerB)

	n.Clean()
	require.Equal(t, 1, n.members.Len())
	_, ok := n.members.Lookup(peerA)
	require.True(t, ok)
}

func TestDownSignalsPortDownUntilDestroyed(t *testing.T) {
	hp := &fakeHostPort{}
	n := New(testNwID, localID, Deps{Clock: clock.NewMockClock(time.Unix(0, 0)), HostPort: hp})
	n.Down()
	require.Equal(t, []PortOp{PortDown}, hp.calls)

	n.Destroy()
	n.Down()
	require.Equal(t, []PortOp{PortDown, PortDestroy}, hp.calls, "Down after Destroy must be a no-op")
}

func TestDestroyIsIdempotentAndStopsClean(t *testing.T) {
	hp := &fakeHostPort{}
	topo := &fakeTopology{known: map[addressing.Address]bool{}}
	n := New(testNwID, localID, Deps{Clock: clock.NewMockClock(time.Unix(0, 0)), HostPort: hp, Topology: topo})
	n.members.Get(peerA)
	n.Destroy()
	n.Destroy()
	require.Equal(t, []PortOp{PortDestroy}, hp.calls)

	n.Clean()
	require.Equal(t, 1, n.members.Len(), "Clean must be a no-op once destroyed")
}

func TestMembershipsSnapshotSortedByAddress(t *testing.T) {
	n := New(testNwID, localID, Deps{Clock: clock.NewMockClock(time.Unix(0, 0))})
	n.members.Get(peerB)
	n.members.Get(peerA).MarkCredentialNeeded()

	snap := n.Memberships()
	require.Len(t, snap, 2)
	require.Equal(t, peerA, snap[0].Address)
	require.Equal(t, peerB, snap[1].Address)
	require.True(t, snap[0].CredentialNeeded)
	require.False(t, snap[1].CredentialNeeded)
}

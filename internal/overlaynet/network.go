// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package overlaynet implements Network, the per-network state
// machine that owns membership tracking, the current controller
// config, multicast interests, bridge routes, and configuration
// reassembly, and that dispatches inbound/outbound frame filtering
// through the rule engine.
package overlaynet

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/clock"
	"github.com/meshlayer/overlay/internal/frame"
	"github.com/meshlayer/overlay/internal/membership"
	"github.com/meshlayer/overlay/internal/metrics"
	"github.com/meshlayer/overlay/internal/multicast"
	"github.com/meshlayer/overlay/internal/netconfig"
	"github.com/meshlayer/overlay/internal/persistence"
	"github.com/meshlayer/overlay/internal/reassembly"
	"github.com/meshlayer/overlay/internal/ruleengine"
)

// MaxBridgeRoutes bounds the remote bridge route table; past this the
// single address contributing the most entries is fully evicted.
const MaxBridgeRoutes = 4096

// MulticastAnnouncePeriod is the minimum interval between periodic
// (non-onlyThis) multicast announcements.
const MulticastAnnouncePeriod = 120 * time.Second

// MulticastLikeExpire is how long a learned bridged multicast group is
// trusted without a refresh; Clean evicts entries older than twice
// this.
const MulticastLikeExpire = 5 * time.Minute

// RequestConfigRateLimit bounds how often RequestConfiguration may
// actually send a request.
const RequestConfigRateLimit = time.Second

// FailureState is the sticky controller-reported failure, surfaced on
// the external status snapshot.
type FailureState int

const (
	FailureNone FailureState = iota
	FailureNotFound
	FailureAccessDenied
)

// Deps bundles every external collaborator a Network needs. Every
// field may be nil: a nil Clock falls back to time.Now, a nil Topology
// treats every peer as known with no upstreams, and a nil Switch,
// Controller, HostPort, Store, Metrics, Verdicts or Trace skips that
// side effect (tests run with only Clock and Switch set).
type Deps struct {
	Clock      clock.Clock
	Switch     Switch
	Topology   Topology
	Controller Controller
	HostPort   HostPort
	Store      persistence.Store
	Metrics    *metrics.Registry
	Verdicts   VerdictObserver

	// Trace, if set, receives a line per rule evaluated on every
	// filter call. Introspection only (cmd/overlay-tui, tests); never
	// consulted by the filter path itself.
	Trace ruleengine.TraceSink
}

func (n *Network) observeVerdict(direction string, ztSource, ztDest addressing.Address, verdict string) {
	if n.deps.Verdicts == nil {
		return
	}
	n.deps.Verdicts.ObserveVerdict(VerdictEvent{
		NetworkID: n.id,
		Direction: direction,
		ZTSource:  ztSource,
		ZTDest:    ztDest,
		Verdict:   verdict,
		At:        n.now(),
	})
}

// Network is the mutable per-networkId state machine. All exported
// methods except ID and MAC (which read fields fixed at construction)
// acquire mu; none suspend while holding it for network I/O —
// sends are handed to Switch fire-and-forget.
type Network struct {
	mu sync.Mutex

	id            addressing.NetworkID
	localIdentity addressing.Address
	mac           addressing.MAC

	config *netconfig.NetworkConfig

	members   *membership.Table
	multi     *multicast.Registry
	bridge    map[addressing.MAC]addressing.Address
	reasm     *reassembly.Reassembler

	failure    FailureState
	portError  int
	destroyed  bool
	appliedOnce bool

	lastConfigUpdate          time.Time
	lastRequestedConfiguration time.Time
	lastAnnouncedUpstream     time.Time

	deps Deps
}

// deriveMAC follows the convention of folding the low 40 bits of the
// local identity into the low bits of the network id to produce a
// locally-administered MAC; the exact bit layout is not
// security-relevant, only uniqueness within the host is.
func deriveMAC(local addressing.Address, id addressing.NetworkID) addressing.MAC {
	v := (uint64(id) & 0xffffffffff) ^ (uint64(local) << 8)
	v |= 0x02 << 40 // locally administered, unicast
	return addressing.NewMAC(v)
}

// New constructs a Network, attempting to load and apply a cached
// config from persistence. On a cache hit the config is applied with
// saveToDisk=false; on a miss a one-byte placeholder is written to
// persist "this network is joined" intent.
func New(id addressing.NetworkID, localIdentity addressing.Address, deps Deps) *Network {
	n := &Network{
		id:            id,
		localIdentity: localIdentity,
		mac:           deriveMAC(localIdentity, id),
		members:       membership.NewTable(),
		multi:         multicast.NewRegistry(),
		bridge:        make(map[addressing.MAC]addressing.Address),
		reasm:         reassembly.New(),
		deps:          deps,
	}

	if deps.Store != nil {
		if data, ok, err := deps.Store.Get(persistence.Key(id)); err == nil && ok && len(data) > 1 {
			if cfg, err := netconfig.Decode(data); err == nil {
				n.applyConfigurationLocked(cfg)
			}
		} else if !ok {
			deps.Store.Put(persistence.Key(id), []byte("\n"))
		}
	}
	return n
}

// ID returns the network id this state machine owns.
func (n *Network) ID() addressing.NetworkID { return n.id }

// MAC returns the locally derived MAC for this network's port.
func (n *Network) MAC() addressing.MAC { return n.mac }

func (n *Network) now() time.Time {
	if n.deps.Clock != nil {
		return n.deps.Clock.Now()
	}
	return time.Now()
}

// isAllowed reports whether traffic may flow at all: a network with no
// config never accepts traffic regardless of rule outcome.
func (n *Network) isAllowed() bool { return n.config != nil }

// FilterOutgoing evaluates a frame leaving the host toward ztDest.
// It returns true iff the frame should be sent.
func (n *Network) FilterOutgoing(ztSource, ztDest addressing.Address, macSrc, macDst addressing.MAC, fr frame.Frame, vlanID uint16) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.isAllowed() {
		return false
	}

	destMember, _ := n.members.Lookup(ztDest)

	ctx := ruleengine.Context{
		Direction:               ruleengine.Outbound,
		ZTSource:                ztSource,
		ZTDest:                  ztDest,
		LocalID:                 n.localIdentity,
		MACSource:               macSrc,
		MACDest:                 macDst,
		Frame:                   fr,
		VLANID:                  vlanID,
		LocalTags:               n.config.LocalTagValues,
		RemoteTags:              destMember.RemoteTags(),
		UnsupportedMatchDefault: n.config.UnsupportedMatchDefault(),
		Trace:                   n.deps.Trace,
	}

	out := ruleengine.Evaluate(n.config.Rules, ctx)
	if out.Verdict == ruleengine.NoMatch {
		out = n.tryCapabilities(n.config.Capabilities, ctx)
	}

	accepted := n.finishOutgoing(out, ztSource, ztDest, macSrc, macDst, fr)
	label := verdictLabel(out.Verdict, accepted)
	n.deps.Metrics.ObserveOutbound(label)
	n.observeVerdict("outbound", ztSource, ztDest, label)
	return accepted
}

// verdictLabel renders a ruleengine verdict plus the caller-visible
// accept/drop outcome as a metrics label.
func verdictLabel(v ruleengine.Verdict, accepted bool) string {
	switch {
	case !accepted:
		return "drop"
	case v == ruleengine.SuperAccept:
		return "super_accept"
	case v == ruleengine.Redirect:
		return "redirect"
	default:
		return "accept"
	}
}

// tryCapabilities iterates capability rule programs in order; a DROP
// inside one is a local stop for that capability only, never a global
// drop. The first Accept/SuperAccept/Redirect wins.
func (n *Network) tryCapabilities(caps []ruleengine.Capability, ctx ruleengine.Context) ruleengine.Outcome {
	for _, c := range caps {
		out := ruleengine.Evaluate(c.Rules, ctx)
		switch out.Verdict {
		case ruleengine.Accept, ruleengine.SuperAccept, ruleengine.Redirect:
			return out
		default:
			continue
		}
	}
	return ruleengine.Outcome{Verdict: ruleengine.NoMatch}
}

func (n *Network) finishOutgoing(out ruleengine.Outcome, ztSource, ztDest addressing.Address, macSrc, macDst addressing.MAC, fr frame.Frame) bool {
	if out.Verdict != ruleengine.Accept && out.Verdict != ruleengine.SuperAccept && out.Verdict != ruleengine.Redirect {
		return false
	}

	if out.TeeSet {
		n.pushCredentials(out.TeeTarget)
		n.send(out.TeeTarget, encodeExtFrame(n.id, sideByteOutbound, macDst, macSrc, fr.EtherType(), fr.Bytes()[:out.TeeLength]))
		n.deps.Metrics.ObserveTee("outbound")
	}

	if out.Verdict == ruleengine.Redirect && out.RedirectTo != ztDest && !out.RedirectTo.IsZero() {
		n.pushCredentials(out.RedirectTo)
		n.send(out.RedirectTo, encodeExtFrame(n.id, sideByteOutbound, macDst, macSrc, fr.EtherType(), fr.Bytes()))
		n.deps.Metrics.ObserveRedirect("outbound")
		return false
	}

	if !ztDest.IsZero() {
		n.pushCredentials(ztDest)
	}
	return true
}

// FilterIncoming evaluates a frame arriving from ztSource addressed to
// ztDest (the local assumed destination). It returns 0 (drop), 1
// (accept), or 2 (super-accept).
func (n *Network) FilterIncoming(ztSource, ztDest addressing.Address, macSrc, macDst addressing.MAC, fr frame.Frame, vlanID uint16) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.isAllowed() {
		return 0
	}

	destMember, _ := n.members.Lookup(ztDest)
	sourceMember := n.members.Get(ztSource)

	ctx := ruleengine.Context{
		Direction:               ruleengine.Inbound,
		ZTSource:                ztSource,
		ZTDest:                  ztDest,
		LocalID:                 n.localIdentity,
		MACSource:               macSrc,
		MACDest:                 macDst,
		Frame:                   fr,
		VLANID:                  vlanID,
		LocalTags:               n.config.LocalTagValues,
		RemoteTags:              destMember.RemoteTags(),
		UnsupportedMatchDefault: n.config.UnsupportedMatchDefault(),
		Trace:                   n.deps.Trace,
	}

	out := ruleengine.Evaluate(n.config.Rules, ctx)
	if out.Verdict == ruleengine.NoMatch {
		out = n.tryCapabilities(sourceMember.RemoteCapabilities(), ctx)
	}

	verdict := n.finishIncoming(out, ztDest, macSrc, macDst, fr)
	if verdict != 0 {
		n.pushCredentials(ztSource)
	}
	label := inboundVerdictLabel(verdict)
	n.deps.Metrics.ObserveInbound(label)
	n.observeVerdict("inbound", ztSource, ztDest, label)
	return verdict
}

func inboundVerdictLabel(verdict int) string {
	switch verdict {
	case 2:
		return "super_accept"
	case 1:
		return "accept"
	default:
		return "drop"
	}
}

func (n *Network) finishIncoming(out ruleengine.Outcome, ztDest addressing.Address, macSrc, macDst addressing.MAC, fr frame.Frame) int {
	switch out.Verdict {
	case ruleengine.Drop, ruleengine.NoMatch:
		return 0
	}

	if out.TeeSet {
		n.send(out.TeeTarget, encodeExtFrame(n.id, sideByteInbound, macDst, macSrc, fr.EtherType(), fr.Bytes()[:out.TeeLength]))
		n.deps.Metrics.ObserveTee("inbound")
	}

	if out.Verdict == ruleengine.Redirect && out.RedirectTo != ztDest && !out.RedirectTo.IsZero() {
		n.send(out.RedirectTo, encodeExtFrame(n.id, sideByteInbound, macDst, macSrc, fr.EtherType(), fr.Bytes()))
		n.deps.Metrics.ObserveRedirect("inbound")
		return 0
	}

	if out.Verdict == ruleengine.SuperAccept {
		return 2
	}
	return 1
}

func (n *Network) send(dest addressing.Address, packet []byte) {
	if n.deps.Switch != nil {
		n.deps.Switch.Send(dest, packet, true)
	}
}

// pushCredentials sends our COM to addr the first time a frame is
// filtered for that peer, and again once per MulticastAnnouncePeriod;
// calls in between are no-ops.
func (n *Network) pushCredentials(addr addressing.Address) {
	if addr.IsZero() {
		return
	}
	m := n.members.Get(addr)
	now := n.now()
	if last := m.LastCredentialsSent(); !last.IsZero() && now.Sub(last) < MulticastAnnouncePeriod {
		return
	}
	if n.config != nil && n.config.IsPrivate && len(n.config.COM) > 0 {
		n.send(addr, encodeNetworkCredentials(n.config.COM))
	}
	m.MarkCredentialsSent(now)
}

// RequestConfiguration asks for a fresh config, rate-limited to once
// per RequestConfigRateLimit. When the controller address equals the
// local identity, the in-process Controller collaborator is invoked
// directly instead of sending a wire request.
func (n *Network) RequestConfiguration() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requestConfigurationLocked()
}

func (n *Network) requestConfigurationLocked() {
	now := n.now()
	if !n.lastRequestedConfiguration.IsZero() && now.Sub(n.lastRequestedConfiguration) < RequestConfigRateLimit {
		return
	}
	n.lastRequestedConfiguration = now
	n.reasm = reassembly.New()

	metadata := map[string]string{"protover": "11", "nodever": "overlay-sim"}

	// The controller's address is embedded in the network id itself:
	// the top 40 bits.
	controllerAddr := addressing.NewAddress(uint64(n.id) >> 24)

	if controllerAddr == n.localIdentity && n.deps.Controller != nil {
		result, cfg := n.deps.Controller.NetworkConfigRequest(n.localIdentity, n.id, metadata)
		switch result {
		case ControllerOK:
			n.setConfigurationLocked(cfg, true)
		case ControllerNotFound:
			n.failure = FailureNotFound
		case ControllerAccessDenied:
			n.failure = FailureAccessDenied
		}
		return
	}

	var rev, ts uint64
	hasConfig := n.config != nil
	if hasConfig {
		rev, ts = n.config.Revision, uint64(n.config.Timestamp)
	}
	packetID := reassembly.NewPacketID()
	n.reasm.Begin(packetID)
	n.send(controllerAddr, encodeNetworkConfigRequest(n.id, []byte(fmt.Sprintf("%v", metadata)), rev, ts, hasConfig))
}

// HandleInboundConfigChunk feeds one chunk of a chunked config reply.
// Once every byte of totalSize has arrived, the dictionary is decoded
// and, on success, applied via SetConfiguration.
func (n *Network) HandleInboundConfigChunk(inRePacketID uint64, data []byte, offset, totalSize uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	full, ok := n.reasm.Feed(inRePacketID, data, offset, totalSize)
	if !ok {
		if n.reasm.LastFeedReset() {
			n.deps.Metrics.ObserveReassemblyReset()
		}
		return
	}
	cfg, err := netconfig.Decode(full)
	if err != nil {
		n.deps.Metrics.ObserveReassemblyReset()
		return
	}
	n.setConfigurationLocked(cfg, true)
}

// SetConfiguration is the tri-state config-apply entry point: 0
// rejected (mismatched networkId/issuedTo), 1 identical to current (a
// no-op), 2 applied (and persisted when saveToDisk is set).
func (n *Network) SetConfiguration(cfg *netconfig.NetworkConfig, saveToDisk bool) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.setConfigurationLocked(cfg, saveToDisk)
}

func (n *Network) setConfigurationLocked(cfg *netconfig.NetworkConfig, saveToDisk bool) int {
	if cfg == nil || cfg.NetworkID != n.id || cfg.IssuedTo != n.localIdentity {
		n.deps.Metrics.ObserveConfigApply(false)
		return 0
	}
	if n.config.Equal(cfg) {
		return 1
	}

	n.applyConfigurationLocked(cfg)
	n.deps.Metrics.ObserveConfigApply(true)

	if saveToDisk && n.deps.Store != nil {
		n.deps.Store.Put(persistence.Key(n.id), netconfig.Encode(cfg))
	}
	return 2
}

// ApplyConfiguration replaces the current config after the
// networkId/issuedTo sanity check, clearing failure state and invoking
// the host-port callback. UP is signaled only on the very first apply;
// later applies send CONFIG_UPDATE.
func (n *Network) ApplyConfiguration(cfg *netconfig.NetworkConfig) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if cfg == nil || cfg.NetworkID != n.id || cfg.IssuedTo != n.localIdentity {
		return false
	}
	n.applyConfigurationLocked(cfg)
	return true
}

func (n *Network) applyConfigurationLocked(cfg *netconfig.NetworkConfig) {
	n.config = cfg
	n.lastConfigUpdate = n.now()
	n.failure = FailureNone
	n.portError = 0

	// A new config may carry a new COM; flag every known member for a
	// credential re-push on the next announce.
	n.members.Range(func(_ addressing.Address, m *membership.Membership) {
		m.MarkCredentialNeeded()
	})

	op := PortConfigUpdate
	if !n.appliedOnce {
		op = PortUp
		n.appliedOnce = true
	}

	if n.deps.HostPort != nil {
		n.deps.HostPort.ConfigureVirtualNetworkPort(n.id, op, n.snapshotLocked())
	}
}

func (n *Network) snapshotLocked() PortSnapshot {
	snap := PortSnapshot{
		NetworkID: n.id,
		MAC:       n.mac,
		PortError: n.portError,
	}
	if n.config != nil {
		snap.Name = n.config.Name
		snap.Private = n.config.IsPrivate
		snap.Broadcast = n.config.EnableBroadcast
		snap.Revision = n.config.Revision
		for _, s := range n.config.StaticIPs {
			snap.AssignedIPs = append(snap.AssignedIPs, s.Prefix)
		}
		snap.Routes = append(snap.Routes, n.config.Routes...)
	}
	snap.NotFound = n.failure == FailureNotFound
	snap.AccessDenied = n.failure == FailureAccessDenied
	return snap
}

// Subscribe joins a multicast group locally and fires an immediate
// single-group announcement.
func (n *Network) Subscribe(g addressing.MulticastGroup) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.multi.Subscribe(g)
	n.announceMulticastGroupsLocked(&g)
}

// Unsubscribe leaves a multicast group locally.
func (n *Network) Unsubscribe(g addressing.MulticastGroup) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.multi.Unsubscribe(g)
}

// LearnBridgedMulticastGroup records that a bridge is carrying traffic
// for g, refreshing its expiry.
func (n *Network) LearnBridgedMulticastGroup(g addressing.MulticastGroup) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.multi.AddBridgedGroup(g, n.now().Add(MulticastLikeExpire))
}

// LearnBridgeRoute records that mac is reachable via addr, capping the
// route table at MaxBridgeRoutes by evicting every entry belonging to
// whichever single address currently contributes the most entries.
func (n *Network) LearnBridgeRoute(mac addressing.MAC, addr addressing.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bridge[mac] = addr
	for len(n.bridge) > MaxBridgeRoutes {
		n.deps.Metrics.ObserveBridgeRouteEviction()
		counts := make(map[addressing.Address]int)
		for _, a := range n.bridge {
			counts[a]++
		}
		var worst addressing.Address
		var worstCount int
		for a, c := range counts {
			if c > worstCount {
				worst, worstCount = a, c
			}
		}
		for mm, a := range n.bridge {
			if a == worst {
				delete(n.bridge, mm)
			}
		}
	}
}

// AllMulticastGroups returns the sorted-unique union of locally
// subscribed groups, live bridged groups, and the broadcast group iff
// enabled by the current config.
func (n *Network) AllMulticastGroups() []addressing.MulticastGroup {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.multi.AllGroups(n.now(), n.config != nil && n.config.EnableBroadcast)
}

// AnnounceMulticastGroups pushes the current group set to upstream
// peers, the controller, and known members. When onlyThis is non-nil
// only that single group is announced (fired immediately on join,
// bypassing the periodic rate limit).
func (n *Network) AnnounceMulticastGroups(onlyThis *addressing.MulticastGroup) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.announceMulticastGroupsLocked(onlyThis)
}

func (n *Network) announceMulticastGroupsLocked(onlyThis *addressing.MulticastGroup) {
	now := n.now()
	if onlyThis == nil {
		if !n.lastAnnouncedUpstream.IsZero() && now.Sub(n.lastAnnouncedUpstream) < MulticastAnnouncePeriod {
			return
		}
		n.lastAnnouncedUpstream = now
	}

	groups := []addressing.MulticastGroup{}
	if onlyThis != nil {
		groups = append(groups, *onlyThis)
	} else {
		groups = n.multi.AllGroups(now, n.config != nil && n.config.EnableBroadcast)
	}

	var upstreams []addressing.Address
	if n.deps.Topology != nil {
		upstreams = n.deps.Topology.UpstreamAddresses()
	}

	sendCredentials := n.config != nil && n.config.IsPrivate && len(n.config.COM) > 0
	for _, up := range upstreams {
		if sendCredentials {
			n.send(up, encodeNetworkCredentials(n.config.COM))
		}
		n.announceTo(up, groups)
	}

	// The controller learns our interests too, unless it is already an
	// upstream or a tracked member.
	controllerAddr := addressing.NewAddress(uint64(n.id) >> 24)
	isUpstream := false
	for _, up := range upstreams {
		if up == controllerAddr {
			isUpstream = true
			break
		}
	}
	if _, isMember := n.members.Lookup(controllerAddr); !isUpstream && !isMember {
		n.announceTo(controllerAddr, groups)
	}

	n.members.Range(func(addr addressing.Address, m *membership.Membership) {
		if onlyThis != nil || m.CredentialNeeded() || now.Sub(m.LastCredentialsSent()) >= MulticastAnnouncePeriod {
			if sendCredentials {
				n.send(addr, encodeNetworkCredentials(n.config.COM))
			}
			n.announceTo(addr, groups)
			m.MarkCredentialsSent(now)
		}
	})

	if n.config != nil {
		for _, anchor := range n.config.Anchors {
			n.members.Get(anchor)
		}
	}
}

func (n *Network) announceTo(dest addressing.Address, groups []addressing.MulticastGroup) {
	for _, pkt := range encodeMulticastLike(n.id, groups) {
		n.send(dest, pkt)
	}
	n.deps.Metrics.ObserveMulticastAnnounce()
}

// Clean evicts stale bridged multicast entries and memberships whose
// peer is no longer known to the topology. A no-op once destroyed.
func (n *Network) Clean() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.destroyed {
		return
	}
	n.multi.ExpireBridgedGroups(n.now().Add(-MulticastLikeExpire))

	isKnown := func(addr addressing.Address) bool { return true }
	if n.deps.Topology != nil {
		isKnown = n.deps.Topology.PeerKnown
	}
	n.members.Clean(isKnown)
	n.deps.Metrics.SetMembershipCount(n.members.Len())
}

// Status reports the sticky failure state and any host-port error.
func (n *Network) Status() (FailureState, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.failure, n.portError
}

// SetPortError records a non-zero host-port configuration error,
// surfaced on future snapshots until cleared by a successful apply.
func (n *Network) SetPortError(code int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.portError = code
}

// Down takes the network's port down without destroying it: the
// persisted config is kept so a later process start rejoins. This is
// the normal-shutdown path; Destroy is the explicit-leave path.
func (n *Network) Down() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.destroyed {
		return
	}
	if n.deps.HostPort != nil {
		n.deps.HostPort.ConfigureVirtualNetworkPort(n.id, PortDown, n.snapshotLocked())
	}
}

// Destroy marks the network destroyed, issues OP_DESTROY to the host
// port, and deletes the persisted config.
func (n *Network) Destroy() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.destroyed {
		return
	}
	n.destroyed = true
	if n.deps.HostPort != nil {
		n.deps.HostPort.ConfigureVirtualNetworkPort(n.id, PortDestroy, n.snapshotLocked())
	}
	if n.deps.Store != nil {
		n.deps.Store.Delete(persistence.Key(n.id))
	}
}

// Config returns the currently applied config, or nil if none has
// ever been applied.
func (n *Network) Config() *netconfig.NetworkConfig {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.config
}

// MembershipSnapshot is a read-only view of one peer's cached
// credential state, for introspection only.
type MembershipSnapshot struct {
	Address          addressing.Address
	TagCount         int
	CapabilityCount  int
	HasCOM           bool
	CredentialNeeded bool
}

// Memberships returns a snapshot of every tracked peer's credential
// state. The returned slice shares no mutable state with the table.
func (n *Network) Memberships() []MembershipSnapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]MembershipSnapshot, 0, n.members.Len())
	n.members.Range(func(addr addressing.Address, m *membership.Membership) {
		out = append(out, MembershipSnapshot{
			Address:          addr,
			TagCount:         len(m.RemoteTags()),
			CapabilityCount:  len(m.RemoteCapabilities()),
			HasCOM:           len(m.COM) > 0,
			CredentialNeeded: m.CredentialNeeded(),
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// sortedBridgeAddresses is a test/debug helper returning the distinct
// bridge-route target addresses in ascending order.
func (n *Network) sortedBridgeAddresses() []addressing.Address {
	seen := map[addressing.Address]struct{}{}
	for _, a := range n.bridge {
		seen[a] = struct{}{}
	}
	out := make([]addressing.Address, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

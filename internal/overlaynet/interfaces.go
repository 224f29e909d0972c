// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package overlaynet

import (
	"net/netip"
	"time"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/netconfig"
)

// Switch is the transport-layer collaborator that actually sends
// packets onto the wire, addressed to a peer by overlay address.
// Network treats every send as fire-and-forget.
type Switch interface {
	Send(dest addressing.Address, packet []byte, encrypt bool) error
}

// Identity is an opaque stand-in for the cryptographic identity layer,
// which is out of scope here — Network only ever needs to compare
// addresses, never verify signatures.
type Identity struct {
	Address addressing.Address
}

// Topology resolves addresses to peers and identities and names which
// peers are currently acting as upstream roots.
type Topology interface {
	UpstreamAddresses() []addressing.Address
	PeerKnown(addr addressing.Address) bool
	Identity(addr addressing.Address) (Identity, bool)
}

// ControllerResult is the outcome of a local in-process controller
// lookup.
type ControllerResult int

const (
	ControllerOK ControllerResult = iota
	ControllerNotFound
	ControllerAccessDenied
	ControllerOther
)

// Controller is the in-process network controller path taken when a
// node is authoritative for its own network id.
type Controller interface {
	NetworkConfigRequest(requester addressing.Address, networkID addressing.NetworkID, metadata map[string]string) (ControllerResult, *netconfig.NetworkConfig)
}

// PortOp names a host-port lifecycle transition.
type PortOp int

const (
	PortUp PortOp = iota
	PortDown
	PortDestroy
	PortConfigUpdate
)

// PortSnapshot is the flat external view of a Network handed to the
// host whenever its port configuration changes.
type PortSnapshot struct {
	NetworkID       addressing.NetworkID
	MAC             addressing.MAC
	Name            string
	Private         bool
	Bridge          bool
	Broadcast       bool
	AssignedIPs     []netip.Prefix
	Routes          []netconfig.Route
	PortError       int
	Revision        uint64
	NotFound        bool
	AccessDenied    bool
}

// HostPort is the tap/TUN device binding callback invoked whenever a
// network's port should come up, go down, be destroyed, or be
// reconfigured.
type HostPort interface {
	ConfigureVirtualNetworkPort(networkID addressing.NetworkID, op PortOp, snap PortSnapshot)
}

// VerdictEvent is a single filter-call outcome, for introspection
// surfaces only (e.g. a live debug stream); it is never consulted by
// the filter path itself.
type VerdictEvent struct {
	NetworkID addressing.NetworkID
	Direction string
	ZTSource  addressing.Address
	ZTDest    addressing.Address
	Verdict   string
	At        time.Time
}

// VerdictObserver receives every filter-call outcome. Implementations
// must not block: Network calls this synchronously while holding its
// lock.
type VerdictObserver interface {
	ObserveVerdict(VerdictEvent)
}

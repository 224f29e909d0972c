// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package transport

import (
	"sync"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/overlaynet"
)

// StaticTopology is a minimal in-memory overlaynet.Topology: a fixed
// upstream root set plus a membership roster maintained by whatever
// peer-discovery mechanism runs above this core; this adapter only
// holds the resulting view.
type StaticTopology struct {
	mu        sync.RWMutex
	upstreams []addressing.Address
	known     map[addressing.Address]overlaynet.Identity
}

// NewStaticTopology returns a StaticTopology with the given upstream
// root addresses.
func NewStaticTopology(upstreams ...addressing.Address) *StaticTopology {
	return &StaticTopology{
		upstreams: append([]addressing.Address(nil), upstreams...),
		known:     make(map[addressing.Address]overlaynet.Identity),
	}
}

func (t *StaticTopology) UpstreamAddresses() []addressing.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]addressing.Address(nil), t.upstreams...)
}

func (t *StaticTopology) PeerKnown(addr addressing.Address) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.known[addr]
	return ok
}

func (t *StaticTopology) Identity(addr addressing.Address) (overlaynet.Identity, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.known[addr]
	return id, ok
}

// Learn registers addr as a known peer, as whatever discovery
// mechanism above this core would on first contact.
func (t *StaticTopology) Learn(addr addressing.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.known[addr] = overlaynet.Identity{Address: addr}
}

// Forget removes addr from the known-peer set, as Network.Clean
// expects once a peer drops out of the topology.
func (t *StaticTopology) Forget(addr addressing.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.known, addr)
}

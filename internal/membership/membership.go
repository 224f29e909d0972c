// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package membership tracks, per remote peer and per network, the
// credentials that peer is known to hold: its capability set, its
// tag values, and the certificate of membership it last presented.
// Network owns the Table; nothing here acquires Network's lock.
package membership

import (
	"time"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/ruleengine"
)

// Membership is the cached credential state for one remote peer on one
// network.
type Membership struct {
	// Capabilities is the set of capabilities the remote peer is known
	// to hold, as last pushed to us (used when filtering inbound
	// traffic: filtering must iterate the *sender's* chosen capability,
	// not our own).
	Capabilities []ruleengine.Capability

	// Tags is the remote peer's tag id -> value map, as last pushed to
	// us.
	Tags map[uint32]uint32

	// COM is the certificate of membership the peer last presented, if
	// any.
	COM []byte

	lastCredentialsSent time.Time
	credentialsNeeded   bool
}

// New returns an empty Membership record, the state lazily created on
// first reference to a peer.
func New() *Membership {
	return &Membership{Tags: make(map[uint32]uint32)}
}

// RemoteTags returns the cached remote tag table, safe to read without
// further synchronization (Network's lock guards mutation).
func (m *Membership) RemoteTags() map[uint32]uint32 {
	if m == nil {
		return nil
	}
	return m.Tags
}

// RemoteCapabilities returns the cached remote capability set.
func (m *Membership) RemoteCapabilities() []ruleengine.Capability {
	if m == nil {
		return nil
	}
	return m.Capabilities
}

// SetRemoteCredentials replaces the cached tag/capability/COM state,
// as would happen when a CREDENTIALS packet arrives from the peer.
func (m *Membership) SetRemoteCredentials(tags map[uint32]uint32, caps []ruleengine.Capability, com []byte) {
	m.Tags = tags
	m.Capabilities = caps
	m.COM = com
}

// MarkCredentialNeeded flags that our own credentials should be pushed
// to this peer at the next opportunity — either the next periodic
// multicast announce, or immediately if the caller chooses to flush,
// e.g. after the first frame from this peer is actually filtered.
func (m *Membership) MarkCredentialNeeded() {
	m.credentialsNeeded = true
}

// CredentialNeeded reports whether a push is pending.
func (m *Membership) CredentialNeeded() bool {
	return m.credentialsNeeded
}

// MarkCredentialsSent records that our credentials were just pushed,
// clearing the pending flag.
func (m *Membership) MarkCredentialsSent(now time.Time) {
	m.credentialsNeeded = false
	m.lastCredentialsSent = now
}

// LastCredentialsSent returns the last time we pushed credentials.
func (m *Membership) LastCredentialsSent() time.Time {
	return m.lastCredentialsSent
}

// Table is the per-network map of remote Address to Membership.
type Table struct {
	byAddress map[addressing.Address]*Membership
}

// NewTable returns an empty membership table.
func NewTable() *Table {
	return &Table{byAddress: make(map[addressing.Address]*Membership)}
}

// Get returns the Membership for addr, creating it lazily if absent.
func (t *Table) Get(addr addressing.Address) *Membership {
	m, ok := t.byAddress[addr]
	if !ok {
		m = New()
		t.byAddress[addr] = m
	}
	return m
}

// Lookup returns the Membership for addr without creating it.
func (t *Table) Lookup(addr addressing.Address) (*Membership, bool) {
	m, ok := t.byAddress[addr]
	return m, ok
}

// Delete removes addr's Membership entirely.
func (t *Table) Delete(addr addressing.Address) {
	delete(t.byAddress, addr)
}

// Len returns the number of tracked peers.
func (t *Table) Len() int { return len(t.byAddress) }

// Range calls fn for every (address, membership) pair. fn must not
// mutate the table.
func (t *Table) Range(fn func(addressing.Address, *Membership)) {
	for addr, m := range t.byAddress {
		fn(addr, m)
	}
}

// Clean evicts every Membership whose peer is no longer known to the
// topology (isKnown returns false).
func (t *Table) Clean(isKnown func(addressing.Address) bool) {
	for addr := range t.byAddress {
		if !isKnown(addr) {
			delete(t.byAddress, addr)
		}
	}
}

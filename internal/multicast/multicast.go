// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package multicast tracks which multicast groups a network member has
// joined locally and which groups bridged peers have announced on its
// behalf, and presents the sorted, de-duplicated union of both as the
// set to advertise upstream.
package multicast

import (
	"sort"
	"time"

	"github.com/meshlayer/overlay/internal/addressing"
)

// Registry holds the local subscription set plus a time-bounded cache
// of groups announced by bridged peers.
type Registry struct {
	local   map[addressing.MulticastGroup]struct{}
	bridged map[addressing.MulticastGroup]time.Time // group -> expiry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		local:   make(map[addressing.MulticastGroup]struct{}),
		bridged: make(map[addressing.MulticastGroup]time.Time),
	}
}

// Subscribe joins a group locally.
func (r *Registry) Subscribe(g addressing.MulticastGroup) {
	r.local[g] = struct{}{}
}

// Unsubscribe leaves a group locally. A no-op if not subscribed.
func (r *Registry) Unsubscribe(g addressing.MulticastGroup) {
	delete(r.local, g)
}

// IsLocallySubscribed reports whether g was joined via Subscribe.
func (r *Registry) IsLocallySubscribed(g addressing.MulticastGroup) bool {
	_, ok := r.local[g]
	return ok
}

// AddBridgedGroup records that a bridge forwarded traffic for g, valid
// until expiry. A later call for the same group refreshes its expiry
// rather than creating a duplicate entry.
func (r *Registry) AddBridgedGroup(g addressing.MulticastGroup, expiry time.Time) {
	r.bridged[g] = expiry
}

// ExpireBridgedGroups drops every bridged entry whose expiry is at or
// before now, returning the count removed.
func (r *Registry) ExpireBridgedGroups(now time.Time) int {
	removed := 0
	for g, exp := range r.bridged {
		if !exp.After(now) {
			delete(r.bridged, g)
			removed++
		}
	}
	return removed
}

// AllGroups returns the sorted, de-duplicated union of locally
// subscribed groups, live bridged groups, and the reserved broadcast
// group (when enableBroadcast is set).
func (r *Registry) AllGroups(now time.Time, enableBroadcast bool) []addressing.MulticastGroup {
	seen := make(map[addressing.MulticastGroup]struct{}, len(r.local)+len(r.bridged)+1)
	out := make([]addressing.MulticastGroup, 0, len(r.local)+len(r.bridged)+1)

	add := func(g addressing.MulticastGroup) {
		if _, ok := seen[g]; ok {
			return
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}

	if enableBroadcast {
		add(addressing.BroadcastGroup)
	}
	for g := range r.local {
		add(g)
	}
	for g, exp := range r.bridged {
		if exp.After(now) {
			add(g)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Len returns the number of locally subscribed groups (excluding
// bridged entries and the broadcast group).
func (r *Registry) Len() int { return len(r.local) }

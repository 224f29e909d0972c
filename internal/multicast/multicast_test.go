// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package multicast

import (
	"testing"
	"time"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/stretchr/testify/require"
)

func group(mac uint64, adi uint32) addressing.MulticastGroup {
	return addressing.MulticastGroup{MAC: addressing.NewMAC(mac), ADI: adi}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	r := NewRegistry()
	g := group(0x010000000001, 0)
	require.False(t, r.IsLocallySubscribed(g))
	r.Subscribe(g)
	require.True(t, r.IsLocallySubscribed(g))
	require.Equal(t, 1, r.Len())
	r.Unsubscribe(g)
	require.False(t, r.IsLocallySubscribed(g))
	require.Equal(t, 0, r.Len())
}

func TestAllGroupsSortedUnique(t *testing.T) {
	r := NewRegistry()
	a := group(0x030000000001, 0)
	b := group(0x010000000001, 0)
	c := group(0x020000000001, 5)
	r.Subscribe(a)
	r.Subscribe(b)
	r.Subscribe(c)
	r.Subscribe(b) // duplicate join is a no-op

	now := time.Unix(1000, 0)
	got := r.AllGroups(now, false)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		require.True(t, got[i-1].Less(got[i]), "groups must be sorted ascending")
	}
}

func TestBroadcastGroupIncludedOnlyWhenEnabled(t *testing.T) {
	r := NewRegistry()
	now := time.Unix(1000, 0)

	require.Empty(t, r.AllGroups(now, false))

	got := r.AllGroups(now, true)
	require.Len(t, got, 1)
	require.Equal(t, addressing.BroadcastGroup, got[0])
}

func TestBridgedGroupExpiry(t *testing.T) {
	r := NewRegistry()
	g := group(0x0a0000000001, 0)
	now := time.Unix(1000, 0)
	r.AddBridgedGroup(g, now.Add(10*time.Second))

	require.Len(t, r.AllGroups(now, false), 1)
	require.Len(t, r.AllGroups(now.Add(5*time.Second), false), 1)
	require.Empty(t, r.AllGroups(now.Add(11*time.Second), false))
}

func TestExpireBridgedGroupsRemovesStaleEntries(t *testing.T) {
	r := NewRegistry()
	now := time.Unix(1000, 0)
	live := group(0x0a0000000001, 0)
	stale := group(0x0b0000000001, 0)
	r.AddBridgedGroup(live, now.Add(time.Minute))
	r.AddBridgedGroup(stale, now.Add(-time.Second))

	removed := r.ExpireBridgedGroups(now)
	require.Equal(t, 1, removed)
	require.Len(t, r.AllGroups(now, false), 1)
}

func TestBridgedGroupRefreshDoesNotDuplicate(t *testing.T) {
	r := NewRegistry()
	g := group(0x0a0000000001, 0)
	now := time.Unix(1000, 0)
	r.AddBridgedGroup(g, now.Add(time.Second))
	r.AddBridgedGroup(g, now.Add(time.Minute)) // refresh, same group

	require.Len(t, r.AllGroups(now.Add(2*time.Second), false), 1)
}

func TestLocalAndBridgedUnion(t *testing.T) {
	r := NewRegistry()
	now := time.Unix(1000, 0)
	local := group(0x01, 0)
	bridged := group(0x02, 0)
	same := group(0x03, 0)
	r.Subscribe(local)
	r.Subscribe(same)
	r.AddBridgedGroup(bridged, now.Add(time.Minute))
	r.AddBridgedGroup(same, now.Add(time.Minute)) // overlap with local set must not duplicate

	got := r.AllGroups(now, false)
	require.Len(t, got, 3)
}

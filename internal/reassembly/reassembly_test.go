// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reassembly

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPacketIDIsNonZeroAndVaries(t *testing.T) {
	a := NewPacketID()
	b := NewPacketID()
	require.NotZero(t, a)
	require.NotEqual(t, a, b)
}

func TestFeedWrongPacketIDIgnored(t *testing.T) {
	r := New()
	r.Begin(42)
	out, ok := r.Feed(99, []byte("x"), 0, 1)
	require.False(t, ok)
	require.Nil(t, out)
}

func TestFeedInactiveIgnored(t *testing.T) {
	r := New()
	out, ok := r.Feed(1, []byte("x"), 0, 1)
	require.False(t, ok)
	require.Nil(t, out)
}

// TestS6_SplitReplyReassemblesOnce mirrors a two-chunk config reply:
// offset=0,size=100,total=200 then offset=100,size=100,total=200.
func TestS6_SplitReplyReassemblesOnce(t *testing.T) {
	r := New()
	r.Begin(7)

	first := bytes.Repeat([]byte{0xaa}, 100)
	second := bytes.Repeat([]byte{0xbb}, 100)

	out, ok := r.Feed(7, first, 0, 200)
	require.False(t, ok)
	require.Nil(t, out)

	out, ok = r.Feed(7, second, 100, 200)
	require.True(t, ok)
	require.Len(t, out, 200)
	require.Equal(t, first, out[:100])
	require.Equal(t, second, out[100:])
	require.False(t, r.Active(), "reassembler must reset after a complete delivery")
}

func TestRedeliveryOfSameChunkDoesNotDoubleCount(t *testing.T) {
	r := New()
	r.Begin(7)

	first := bytes.Repeat([]byte{0xaa}, 100)
	second := bytes.Repeat([]byte{0xbb}, 100)

	_, ok := r.Feed(7, first, 0, 200)
	require.False(t, ok)
	_, ok = r.Feed(7, first, 0, 200) // redelivered, same offset+len
	require.False(t, ok)

	out, ok := r.Feed(7, second, 100, 200)
	require.True(t, ok)
	require.Len(t, out, 200)
}

func TestOverflowResetsReassembly(t *testing.T) {
	r := New()
	r.Begin(7)

	_, ok := r.Feed(7, make([]byte, 50), 0, 100)
	require.False(t, ok)

	// overlapping chunk pushes offset+len past totalSize -> corruption reset
	_, ok = r.Feed(7, make([]byte, 60), 50, 100)
	require.False(t, ok)
	require.False(t, r.Active(), "corrupt totals must reset the reassembler entirely")
}

func TestOversizedTotalRejected(t *testing.T) {
	r := New()
	r.Begin(7)
	_, ok := r.Feed(7, make([]byte, 10), 0, DictCapacity)
	require.False(t, ok)
	require.False(t, r.Active())
}

func TestBeginDiscardsPriorChunks(t *testing.T) {
	r := New()
	r.Begin(7)
	r.Feed(7, make([]byte, 50), 0, 100)

	r.Begin(8)
	require.True(t, r.Active())
	require.Equal(t, uint64(8), r.PacketID())
	_, ok := r.Feed(7, make([]byte, 50), 0, 100)
	require.False(t, ok, "a chunk for the superseded packet id must be ignored")
}

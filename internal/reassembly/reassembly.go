// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package reassembly collects chunked configuration responses keyed by
// the packet ID they're replying to, reassembling them into a single
// buffer once every byte has arrived.
package reassembly

import "github.com/google/uuid"

// DictCapacity bounds the total size a single config dictionary may
// claim; anything larger is treated as corrupt.
const DictCapacity = 1 << 20

// NewPacketID derives a 64-bit wire packet ID from a fresh random
// UUID, folding it down to the field width the request/reply exchange
// uses to correlate chunks.
func NewPacketID() uint64 {
	id := uuid.New()
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(id[i])
	}
	return v
}

// Reassembler accumulates chunks for a single outstanding request. It
// is not safe for concurrent use; callers guard it with their own
// lock.
type Reassembler struct {
	packetID  uint64
	active    bool
	totalSize uint64
	chunks    map[uint64][]byte
	received  uint64
	lastReset bool
}

// New returns an empty, inactive Reassembler.
func New() *Reassembler {
	return &Reassembler{chunks: make(map[uint64][]byte)}
}

// Begin arms the reassembler for a new outstanding request, discarding
// any previously accumulated chunks.
func (r *Reassembler) Begin(packetID uint64) {
	r.packetID = packetID
	r.active = true
	r.totalSize = 0
	r.received = 0
	r.chunks = make(map[uint64][]byte)
}

// Active reports whether a request is currently outstanding.
func (r *Reassembler) Active() bool { return r.active }

// PacketID returns the packet ID a chunk must reply to in order to be
// accepted.
func (r *Reassembler) PacketID() uint64 { return r.packetID }

// reset clears all accumulated state without arming a new request.
func (r *Reassembler) reset() {
	r.active = false
	r.totalSize = 0
	r.received = 0
	r.chunks = make(map[uint64][]byte)
	r.lastReset = true
}

// LastFeedReset reports whether the most recent Feed call discarded
// the accumulated buffer due to overflow or corruption, as opposed to
// simply ignoring a chunk for an inactive or mismatched request.
func (r *Reassembler) LastFeedReset() bool { return r.lastReset }

// Feed offers one chunk of a reply. It returns (data, true) once every
// byte of totalSize has arrived, in which case the reassembler resets
// itself ready for the next request. A chunk while inactive or for the
// wrong packet ID is ignored; an oversized totalSize or an out-of-range
// offset+len resets the whole buffer. Delivering the same offset twice does not double-count progress;
// accumulated totals that overrun totalSize reset the whole buffer.
func (r *Reassembler) Feed(inRePacketID uint64, data []byte, offset, totalSize uint64) ([]byte, bool) {
	r.lastReset = false
	if !r.active || inRePacketID != r.packetID {
		return nil, false
	}
	if totalSize >= DictCapacity {
		r.reset()
		return nil, false
	}
	if offset+uint64(len(data)) > totalSize {
		r.reset()
		return nil, false
	}
	r.totalSize = totalSize

	if existing, ok := r.chunks[offset]; !ok || len(existing) != len(data) {
		if ok {
			r.received -= uint64(len(existing))
		}
		r.chunks[offset] = append([]byte(nil), data...)
		r.received += uint64(len(data))
	}

	if r.received > totalSize {
		r.reset()
		return nil, false
	}
	if r.received < totalSize {
		return nil, false
	}

	out := make([]byte, totalSize)
	for off, chunk := range r.chunks {
		copy(out[off:], chunk)
	}
	r.reset()
	return out, true
}

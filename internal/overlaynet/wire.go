// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package overlaynet

import (
	"bytes"
	"encoding/binary"

	"github.com/meshlayer/overlay/internal/addressing"
)

const (
	sideByteOutbound byte = 0x02
	sideByteInbound  byte = 0x06
)

// protoMaxPacket / protoMinPacket bound the MULTICAST_LIKE batching the
// same way a real transport's MTU would; the exact figures are
// arbitrary here since the wire-packet serializer itself is an
// external collaborator.
const (
	protoMaxPacket = 1400
	protoMinPacket = 256
	multicastEntrySize = 8 + 6 + 4
)

func encodeExtFrame(networkID addressing.NetworkID, sideByte byte, macDst, macSrc addressing.MAC, etherType uint16, frameData []byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint64(networkID))
	buf.WriteByte(sideByte)
	writeMAC(&buf, macDst)
	writeMAC(&buf, macSrc)
	binary.Write(&buf, binary.BigEndian, etherType)
	buf.Write(frameData)
	return buf.Bytes()
}

func writeMAC(buf *bytes.Buffer, m addressing.MAC) {
	var b [6]byte
	v := uint64(m)
	for i := 5; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	buf.Write(b[:])
}

func encodeMulticastLike(networkID addressing.NetworkID, groups []addressing.MulticastGroup) [][]byte {
	var packets [][]byte
	var buf bytes.Buffer
	flush := func() {
		if buf.Len() > 0 {
			packets = append(packets, append([]byte(nil), buf.Bytes()...))
			buf.Reset()
		}
	}
	for _, g := range groups {
		if buf.Len() > protoMaxPacket-24 {
			flush()
		}
		binary.Write(&buf, binary.BigEndian, uint64(networkID))
		writeMAC(&buf, g.MAC)
		binary.Write(&buf, binary.BigEndian, g.ADI)
	}
	if buf.Len() > protoMinPacket || len(packets) == 0 {
		flush()
	}
	return packets
}

func encodeNetworkCredentials(com []byte) []byte {
	return append(append([]byte(nil), com...), 0x00)
}

func encodeNetworkConfigRequest(networkID addressing.NetworkID, metadata []byte, currentRev, currentTS uint64, hasConfig bool) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint64(networkID))
	binary.Write(&buf, binary.BigEndian, uint16(len(metadata)))
	buf.Write(metadata)
	if hasConfig {
		binary.Write(&buf, binary.BigEndian, currentRev)
		binary.Write(&buf, binary.BigEndian, currentTS)
	} else {
		buf.Write(make([]byte, 16))
	}
	return buf.Bytes()
}

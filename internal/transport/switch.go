// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package transport provides default adapters for the external
// collaborators overlaynet.Network treats as interfaces: a raw-socket
// Switch, a netlink-backed tap HostPort, and a gRPC controller client.
package transport

import (
	"net"

	"github.com/mdlayher/packet"
	"golang.org/x/sys/unix"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/errors"
)

// RawSocketSwitch implements overlaynet.Switch by writing packets onto
// an AF_PACKET raw socket bound to the host's physical uplink
// interface. The wire-packet serializer and encryption envelope live
// above this layer; Send is handed already-framed bytes.
type RawSocketSwitch struct {
	conn *packet.Conn
	dest net.HardwareAddr
}

// NewRawSocketSwitch opens a raw socket on ifaceName and fixes the
// destination link-layer address every Send targets (the transport
// protocol that actually addresses individual peers is out of scope;
// this adapter exists so the dependency has a real call site).
func NewRawSocketSwitch(ifaceName string, dest net.HardwareAddr) (*RawSocketSwitch, error) {
	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "resolve uplink interface")
	}
	conn, err := packet.Listen(ifi, packet.Raw, unix.ETH_P_ALL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "open raw socket")
	}
	return &RawSocketSwitch{conn: conn, dest: dest}, nil
}

// Send writes packet onto the wire. dest is the overlay address the
// wire layer above resolves to a physical path; this adapter forwards
// everything via the fixed uplink next-hop. encrypt is advisory only
// at this layer; the actual transport encryption envelope lives above
// the membership/filter core.
func (s *RawSocketSwitch) Send(dest addressing.Address, frame []byte, encrypt bool) error {
	_, err := s.conn.WriteTo(frame, &packet.Addr{HardwareAddr: s.dest})
	return err
}

// Close releases the underlying socket.
func (s *RawSocketSwitch) Close() error {
	return s.conn.Close()
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package transport

import (
	"log"
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/overlaynet"
)

// NetlinkTapDevice implements overlaynet.HostPort by binding each
// network's port lifecycle to a host tap/TUN interface over netlink:
// UP and CONFIG_UPDATE bring the link up, set its MAC and reconcile its
// assigned addresses; DOWN and DESTROY set the link down. No routes are
// installed, and DESTROY does not delete the link.
// The tap device itself (its creation, its frame I/O with the kernel)
// belongs to the host integration; this adapter only reconciles the
// link's administrative state once the device already exists.
type NetlinkTapDevice struct {
	// Resolve maps a network id to the tap interface name it is bound
	// to, per networkJoin config.
	Resolve func(id addressing.NetworkID) (string, bool)
}

func (d *NetlinkTapDevice) ConfigureVirtualNetworkPort(id addressing.NetworkID, op overlaynet.PortOp, snap overlaynet.PortSnapshot) {
	name, ok := d.Resolve(id)
	if !ok {
		return
	}
	link, err := netlink.LinkByName(name)
	if err != nil {
		log.Printf("[transport] network %s: tap device %q not found: %v", id, name, err)
		return
	}

	switch op {
	case overlaynet.PortDestroy:
		if err := netlink.LinkSetDown(link); err != nil {
			log.Printf("[transport] network %s: link down: %v", id, err)
		}
		return
	case overlaynet.PortDown:
		if err := netlink.LinkSetDown(link); err != nil {
			log.Printf("[transport] network %s: link down: %v", id, err)
		}
		return
	}

	if err := netlink.LinkSetUp(link); err != nil {
		log.Printf("[transport] network %s: link up: %v", id, err)
		return
	}
	if err := netlink.LinkSetHardwareAddr(link, macBytes(snap.MAC)); err != nil {
		log.Printf("[transport] network %s: set hwaddr: %v", id, err)
	}
	reconcileAddrs(link, snap.AssignedIPs)
}

func macBytes(m addressing.MAC) []byte {
	v := uint64(m)
	return []byte{byte(v >> 40), byte(v >> 32), byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// reconcileAddrs replaces the link's address set with want, leaving
// any address already present and wanted untouched.
func reconcileAddrs(link netlink.Link, want []netip.Prefix) {
	existing, err := netlink.AddrList(link, netlink.FAMILY_ALL)
	if err != nil {
		return
	}
	wantSet := make(map[string]bool, len(want))
	for _, p := range want {
		wantSet[p.String()] = true
	}
	for _, addr := range existing {
		ones, bits := addr.Mask.Size()
		ip, ok := netip.AddrFromSlice(addr.IP)
		if !ok {
			continue
		}
		if bits == 32 {
			ip = ip.Unmap()
		}
		key := netip.PrefixFrom(ip, ones).String()
		if !wantSet[key] {
			addr := addr
			netlink.AddrDel(link, &addr)
		}
	}
	for _, p := range want {
		ipNet := &net.IPNet{IP: p.Addr().AsSlice(), Mask: net.CIDRMask(p.Bits(), p.Addr().BitLen())}
		netlink.AddrAdd(link, &netlink.Addr{IPNet: ipNet})
	}
}

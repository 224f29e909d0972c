// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command overlay-sim replays a PCAP capture through a single Network's
// outbound filter path, so a rule program can be exercised against real
// traffic before it is ever pushed by a controller.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcap"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/clock"
	"github.com/meshlayer/overlay/internal/frame"
	"github.com/meshlayer/overlay/internal/netconfig"
	"github.com/meshlayer/overlay/internal/overlaynet"
	"github.com/meshlayer/overlay/internal/ruleengine"
)

func main() {
	pcapPath := flag.String("pcap", "", "path to the PCAP file to replay")
	networkID := flag.Uint64("network", 0x8056c2e21c000001, "network id to evaluate against (hex-decimal)")
	local := flag.Uint64("local", 1, "local member address")
	peer := flag.Uint64("peer", 2, "simulated destination peer address")
	rulesDrop := flag.Bool("drop-by-default", false, "evaluate against a default-drop program instead of default-accept")
	flag.Parse()

	if *pcapPath == "" {
		log.Fatal("usage: overlay-sim -pcap <file> [-network id] [-local id] [-peer id]")
	}

	id := addressing.NetworkID(*networkID)
	localAddr := addressing.NewAddress(*local)
	peerAddr := addressing.NewAddress(*peer)

	clk := clock.NewMockClock(time.Now())
	nw := overlaynet.New(id, localAddr, overlaynet.Deps{Clock: clk})

	action := ruleengine.ActionAccept
	if *rulesDrop {
		action = ruleengine.ActionDrop
	}
	cfg := netconfig.New(netconfig.NetworkConfig{
		NetworkID:       id,
		IssuedTo:        localAddr,
		Revision:        1,
		Name:            "overlay-sim",
		IsPrivate:       false,
		EnableBroadcast: true,
		Rules:           []ruleengine.Rule{{Type: action}},
	})
	if v := nw.SetConfiguration(cfg, false); v != 2 {
		log.Fatalf("failed to apply simulated config (verdict=%d)", v)
	}

	if err := replay(*pcapPath, nw, localAddr, peerAddr); err != nil {
		log.Fatalf("replay failed: %v", err)
	}
}

func replay(path string, n *overlaynet.Network, localAddr, peerAddr addressing.Address) error {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return fmt.Errorf("open pcap: %w", err)
	}
	defer handle.Close()

	source := gopacket.NewPacketSource(handle, handle.LinkType())

	var total, accepted int
	start := time.Now()

	for packet := range source.Packets() {
		total++

		ethLayer := packet.Layer(layers.LayerTypeEthernet)
		if ethLayer == nil {
			continue
		}
		eth := ethLayer.(*layers.Ethernet)

		srcMAC := macFromBytes(eth.SrcMAC)
		dstMAC := macFromBytes(eth.DstMAC)
		fr := frame.New(eth.Payload, uint16(eth.EthernetType))

		if n.FilterOutgoing(localAddr, peerAddr, srcMAC, dstMAC, fr, 0) {
			accepted++
		}

		if total%1000 == 0 {
			fmt.Printf("\rprocessed %d packets...", total)
		}
	}

	fmt.Printf("\rprocessed %d packets in %v: %d accepted, %d dropped\n",
		total, time.Since(start), accepted, total-accepted)
	return nil
}

func macFromBytes(b []byte) addressing.MAC {
	if len(b) < 6 {
		return 0
	}
	var v uint64
	for _, octet := range b[:6] {
		v = v<<8 | uint64(octet)
	}
	return addressing.NewMAC(v)
}

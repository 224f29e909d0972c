// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command overlay-tui is an interactive membership/multicast/rule-trace
// inspector: it loads a PCAP capture, then replays it one frame at a
// time through a single Network's outbound filter path while showing
// the live effect on the membership table, multicast interests, and
// the rule engine's per-rule trace.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcap"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/clock"
	"github.com/meshlayer/overlay/internal/frame"
	"github.com/meshlayer/overlay/internal/netconfig"
	"github.com/meshlayer/overlay/internal/overlaynet"
	"github.com/meshlayer/overlay/internal/ruleengine"
)

// maxFrames bounds how many packets are loaded into memory for
// interactive replay; captures larger than this are truncated with a
// warning rather than exhausting the terminal session's memory.
const maxFrames = 20000

func main() {
	pcapPath := flag.String("pcap", "", "path to the PCAP file to step through")
	networkID := flag.Uint64("network", 0x8056c2e21c000001, "network id to evaluate against (hex-decimal)")
	local := flag.Uint64("local", 1, "local member address")
	peer := flag.Uint64("peer", 2, "simulated destination peer address")
	rulesDrop := flag.Bool("drop-by-default", false, "evaluate against a default-drop program instead of default-accept")
	flag.Parse()

	if *pcapPath == "" {
		fmt.Fprintln(os.Stderr, "usage: overlay-tui -pcap <file> [-network id] [-local id] [-peer id]")
		os.Exit(2)
	}

	id := addressing.NetworkID(*networkID)
	localAddr := addressing.NewAddress(*local)
	peerAddr := addressing.NewAddress(*peer)

	collect := &traceCollector{}
	clk := clock.NewMockClock(time.Now())
	nw := overlaynet.New(id, localAddr, overlaynet.Deps{Clock: clk, Trace: collect})

	action := ruleengine.ActionAccept
	if *rulesDrop {
		action = ruleengine.ActionDrop
	}
	cfg := netconfig.New(netconfig.NetworkConfig{
		NetworkID:       id,
		IssuedTo:        localAddr,
		Revision:        1,
		Name:            "overlay-tui",
		IsPrivate:       false,
		EnableBroadcast: true,
		Rules:           []ruleengine.Rule{{Type: action}},
	})
	if v := nw.SetConfiguration(cfg, false); v != 2 {
		log.Fatalf("failed to apply inspector config (verdict=%d)", v)
	}

	frames, err := loadFrames(*pcapPath)
	if err != nil {
		log.Fatalf("load pcap: %v", err)
	}

	m := newModel(nw, collect, frames, localAddr, peerAddr)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("overlay-tui: %v", err)
	}
}

// loadFrames decodes every Ethernet frame in a PCAP file upfront so
// replay stepping never blocks on file I/O.
func loadFrames(path string) ([]parsedFrame, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("open pcap: %w", err)
	}
	defer handle.Close()

	source := gopacket.NewPacketSource(handle, handle.LinkType())

	var out []parsedFrame
	for packet := range source.Packets() {
		ethLayer := packet.Layer(layers.LayerTypeEthernet)
		if ethLayer == nil {
			continue
		}
		eth := ethLayer.(*layers.Ethernet)

		out = append(out, parsedFrame{
			macSrc: macFromBytes(eth.SrcMAC),
			macDst: macFromBytes(eth.DstMAC),
			fr:     frame.New(eth.Payload, uint16(eth.EthernetType)),
		})
		if len(out) >= maxFrames {
			fmt.Fprintf(os.Stderr, "overlay-tui: capture truncated to first %d frames\n", maxFrames)
			break
		}
	}
	return out, nil
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

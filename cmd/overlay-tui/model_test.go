// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/clock"
	"github.com/meshlayer/overlay/internal/frame"
	"github.com/meshlayer/overlay/internal/netconfig"
	"github.com/meshlayer/overlay/internal/overlaynet"
	"github.com/meshlayer/overlay/internal/ruleengine"
)

func newTestNetwork(t *testing.T) (*overlaynet.Network, *traceCollector) {
	t.Helper()

	id := addressing.NetworkID(0x8056c2e21c000001)
	local := addressing.NewAddress(1)
	collect := &traceCollector{}
	nw := overlaynet.New(id, local, overlaynet.Deps{Clock: clock.NewMockClock(time.Now()), Trace: collect})

	cfg := netconfig.New(netconfig.NetworkConfig{
		NetworkID:       id,
		IssuedTo:        local,
		Revision:        1,
		Name:            "test",
		EnableBroadcast: true,
		Rules:           []ruleengine.Rule{{Type: ruleengine.ActionAccept}},
	})
	if v := nw.SetConfiguration(cfg, false); v != 2 {
		t.Fatalf("SetConfiguration verdict = %d, want 2", v)
	}
	return nw, collect
}

func testFrames() []parsedFrame {
	return []parsedFrame{
		{
			macSrc: addressing.NewMAC(0x0a0a0a0a0a01),
			macDst: addressing.NewMAC(0x0a0a0a0a0a02),
			fr:     frame.New([]byte{1, 2, 3, 4}, 0x0800),
		},
	}
}

func TestModelStepUpdatesDashboardAndTrace(t *testing.T) {
	nw, collect := newTestNetwork(t)
	m := newModel(nw, collect, testFrames(), addressing.NewAddress(1), addressing.NewAddress(2))

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 30))
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("4")})
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	finalModel := tm.FinalModel(t, teatest.WithFinalTimeout(time.Second*5))
	fm := finalModel.(model)

	if fm.accepted != 1 {
		t.Errorf("accepted = %d, want 1", fm.accepted)
	}
	if fm.cursor != 1 {
		t.Errorf("cursor = %d, want 1", fm.cursor)
	}

	view := fm.View()
	if !strings.Contains(view, "Trace") {
		t.Errorf("view missing Trace tab: %q", view)
	}
}

func TestModelMembershipsTabRendersAfterStep(t *testing.T) {
	nw, collect := newTestNetwork(t)
	m := newModel(nw, collect, testFrames(), addressing.NewAddress(1), addressing.NewAddress(2))

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 30))
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2")})
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	finalModel := tm.FinalModel(t, teatest.WithFinalTimeout(time.Second*5))
	fm := finalModel.(model)

	if fm.active != tabMemberships {
		t.Errorf("active = %v, want tabMemberships", fm.active)
	}
}

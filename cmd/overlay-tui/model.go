// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/frame"
	"github.com/meshlayer/overlay/internal/overlaynet"
)

// tab identifies one of the inspector's views.
type tab int

const (
	tabDashboard tab = iota
	tabMemberships
	tabMulticast
	tabTrace
	tabCount
)

func (t tab) title() string {
	switch t {
	case tabDashboard:
		return "Dashboard"
	case tabMemberships:
		return "Memberships"
	case tabMulticast:
		return "Multicast"
	case tabTrace:
		return "Trace"
	default:
		return "?"
	}
}

// parsedFrame is one pre-decoded Ethernet frame ready to replay through
// the outbound filter path.
type parsedFrame struct {
	macSrc, macDst addressing.MAC
	fr             frame.Frame
	vlanID         uint16
}

// tickMsg advances the replay by one frame when auto-play is enabled.
type tickMsg time.Time

// model is the interactive membership/multicast/rule-trace inspector.
// It owns a live *overlaynet.Network and replays pre-loaded frames
// through its outbound filter path one at a time, so the Memberships,
// Multicast, and Trace tabs always reflect the effect of the last
// frame evaluated.
type model struct {
	net     *overlaynet.Network
	collect *traceCollector

	localAddr, peerAddr addressing.Address

	frames []parsedFrame
	cursor int

	accepted, dropped int
	lastVerdict        string
	lastTrace           []string

	autoPlay bool

	active tab

	members  table.Model
	mcast    table.Model

	width, height int
}

func newModel(net *overlaynet.Network, collect *traceCollector, frames []parsedFrame, local, peer addressing.Address) model {
	memberCols := []table.Column{
		{Title: "Address", Width: 12},
		{Title: "Tags", Width: 6},
		{Title: "Caps", Width: 6},
		{Title: "COM", Width: 5},
		{Title: "Cred Needed", Width: 12},
	}
	mt := table.New(table.WithColumns(memberCols), table.WithFocused(false), table.WithHeight(12))
	mtStyles := table.DefaultStyles()
	mtStyles.Header = mtStyles.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(colorAccent).BorderBottom(true).Bold(true)
	mtStyles.Selected = mtStyles.Selected.Foreground(lipgloss.Color("230")).Background(colorAccent)
	mt.SetStyles(mtStyles)

	mcastCols := []table.Column{
		{Title: "MAC", Width: 18},
		{Title: "ADI", Width: 10},
	}
	gt := table.New(table.WithColumns(mcastCols), table.WithFocused(false), table.WithHeight(12))
	gt.SetStyles(mtStyles)

	m := model{
		net:       net,
		collect:   collect,
		localAddr: local,
		peerAddr:  peer,
		frames:    frames,
		members:   mt,
		mcast:     gt,
		active:    tabDashboard,
	}
	m, _ = m.refreshTablesModel()
	return m
}

func (m model) Init() tea.Cmd {
	return nil
}

func tick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tickMsg:
		if m.autoPlay {
			m = m.stepOnce()
			return m, tick()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.active = (m.active + 1) % tabCount
			return m, nil
		case "1":
			m.active = tabDashboard
		case "2":
			m.active = tabMemberships
		case "3":
			m.active = tabMulticast
		case "4":
			m.active = tabTrace
		case "n":
			m = m.stepOnce()
			return m, nil
		case " ":
			m.autoPlay = !m.autoPlay
			if m.autoPlay {
				return m, tick()
			}
			return m, nil
		}
	}
	return m, nil
}

// stepOnce evaluates the next queued frame through the outbound filter
// and refreshes the membership/multicast/trace snapshots.
func (m model) stepOnce() model {
	if m.cursor >= len(m.frames) {
		m.autoPlay = false
		return m
	}
	f := m.frames[m.cursor]
	m.cursor++

	accepted := m.net.FilterOutgoing(m.localAddr, m.peerAddr, f.macSrc, f.macDst, f.fr, f.vlanID)
	if accepted {
		m.accepted++
		m.lastVerdict = "accept"
	} else {
		m.dropped++
		m.lastVerdict = "drop"
	}
	m.lastTrace = m.collect.drain()

	mReloaded, _ := m.refreshTablesModel()
	return mReloaded
}

// refreshTablesModel rebuilds the memberships/multicast table rows
// from the live Network snapshots.
func (m model) refreshTablesModel() (model, tea.Cmd) {
	rows := make([]table.Row, 0)
	for _, ms := range m.net.Memberships() {
		rows = append(rows, table.Row{
			ms.Address.String(),
			strconv.Itoa(ms.TagCount),
			strconv.Itoa(ms.CapabilityCount),
			yesNo(ms.HasCOM),
			yesNo(ms.CredentialNeeded),
		})
	}
	m.members.SetRows(rows)

	groupRows := make([]table.Row, 0)
	for _, g := range m.net.AllMulticastGroups() {
		groupRows = append(groupRows, table.Row{g.MAC.String(), strconv.FormatUint(uint64(g.ADI), 10)})
	}
	m.mcast.SetRows(groupRows)

	return m, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (m model) View() string {
	var tabs []string
	for t := tab(0); t < tabCount; t++ {
		style := styleTabInactive
		if t == m.active {
			style = styleTabActive
		}
		tabs = append(tabs, style.Render(t.title()))
	}

	header := styleHeader.Render(fmt.Sprintf("overlay-tui  network=%s", m.net.ID())) + "  " +
		lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	var body string
	switch m.active {
	case tabDashboard:
		body = m.viewDashboard()
	case tabMemberships:
		body = styleCard.Render(m.members.View())
	case tabMulticast:
		body = styleCard.Render(m.mcast.View())
	case tabTrace:
		body = m.viewTrace()
	}

	footer := styleSubtitle.Render("tab: switch view   n: step one frame   space: auto-play   q: quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", footer)
}

func (m model) viewDashboard() string {
	status, portErr := m.net.Status()
	statusLabel := "ok"
	switch status {
	case overlaynet.FailureNotFound:
		statusLabel = "not_found"
	case overlaynet.FailureAccessDenied:
		statusLabel = "access_denied"
	}

	verdictStyle := styleGood
	if m.lastVerdict == "drop" {
		verdictStyle = styleBad
	}

	lines := []string{
		fmt.Sprintf("local=%s  peer=%s", m.localAddr, m.peerAddr),
		fmt.Sprintf("frames queued=%d  replayed=%d", len(m.frames), m.cursor),
		fmt.Sprintf("accepted=%d  dropped=%d", m.accepted, m.dropped),
		"last verdict: " + verdictStyle.Render(orDash(m.lastVerdict)),
		fmt.Sprintf("failure_state=%s  port_error=%d", statusLabel, portErr),
		fmt.Sprintf("memberships=%d  multicast_groups=%d", len(m.net.Memberships()), len(m.net.AllMulticastGroups())),
	}
	return styleCard.Render(strings.Join(lines, "\n"))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (m model) viewTrace() string {
	if len(m.lastTrace) == 0 {
		return styleCard.Render(styleSubtitle.Render("no frame evaluated yet (press n)"))
	}
	return styleCard.Render(strings.Join(m.lastTrace, "\n"))
}

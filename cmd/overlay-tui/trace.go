// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"fmt"
	"sync"

	"github.com/meshlayer/overlay/internal/ruleengine"
)

// traceCollector implements ruleengine.TraceSink, buffering the lines
// for the most recently evaluated frame so the TUI's trace tab can
// render them without racing the filter goroutine.
type traceCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *traceCollector) TraceRule(index int, rt ruleengine.RuleType, negate, matched, setMatches, skipped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sign := ""
	if negate {
		sign = "!"
	}
	switch {
	case skipped:
		c.lines = append(c.lines, fmt.Sprintf("#%-3d %s%-28s  skipped (circuit breaker)", index, sign, rt))
	case rt.IsAction() && matched:
		c.lines = append(c.lines, fmt.Sprintf("#%-3d %s%-28s  fired", index, sign, rt))
	case rt.IsAction():
		c.lines = append(c.lines, fmt.Sprintf("#%-3d %s%-28s  not fired (set false)", index, sign, rt))
	default:
		c.lines = append(c.lines, fmt.Sprintf("#%-3d %s%-28s  matched=%-5v setMatches=%v", index, sign, rt, matched, setMatches))
	}
}

// drain returns and clears the buffered lines for the frame just
// evaluated.
func (c *traceCollector) drain() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.lines
	c.lines = nil
	return out
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package netconfig defines the immutable, controller-issued
// per-network configuration snapshot and a minimal wire codec good
// enough to round-trip it through chunked reassembly. The real wire
// format used by a production controller is an external concern.
package netconfig

import (
	"net/netip"
	"reflect"

	"github.com/meshlayer/overlay/internal/addressing"
	"github.com/meshlayer/overlay/internal/ruleengine"
)

// Flag bits carried in NetworkConfig.Flags.
const (
	FlagRulesResultOfUnsupportedMatch uint64 = 1 << 0
)

// Route is a controller-assigned route entry.
type Route struct {
	Target netip.Prefix
	Via    netip.Addr // zero Addr means "on-link"
}

// StaticIP is an address assigned to this member within the network.
type StaticIP struct {
	Prefix netip.Prefix
}

// NetworkConfig is the immutable snapshot issued by a network
// controller. Every field is read-only after construction; updates
// happen by building and atomically swapping in a new value, never by
// mutating one in place — a partially applied config must never be
// observable.
type NetworkConfig struct {
	NetworkID addressing.NetworkID
	IssuedTo  addressing.Address
	Revision  uint64
	Timestamp int64 // unix millis

	Flags uint64

	Name            string
	IsPrivate       bool
	EnableBroadcast bool
	PassiveBridging bool

	ActiveBridges []addressing.Address
	Anchors       []addressing.Address
	StaticIPs     []StaticIP
	Routes        []Route

	COM []byte

	Rules        []ruleengine.Rule
	Capabilities []ruleengine.Capability
	Tags         []ruleengine.Tag

	// LocalTagValues indexes Tags by id for the local member's own
	// credential lookups; derived, not part of the wire payload.
	LocalTagValues map[uint32]uint32
}

// UnsupportedMatchDefault returns the RULES_RESULT_OF_UNSUPPORTED_MATCH
// flag value used by the rule engine for forward-compatibility with
// rule types this build does not recognize.
func (c *NetworkConfig) UnsupportedMatchDefault() bool {
	if c == nil {
		return false
	}
	return c.Flags&FlagRulesResultOfUnsupportedMatch != 0
}

// Equal reports whether two configs are identical in every
// controller-issued field — used by Network.SetConfiguration to decide
// whether an incoming config is a no-op repeat of the current one.
func (c *NetworkConfig) Equal(o *NetworkConfig) bool {
	if c == nil || o == nil {
		return c == o
	}
	a, b := *c, *o
	a.LocalTagValues, b.LocalTagValues = nil, nil
	return reflect.DeepEqual(a, b)
}

// finalize derives LocalTagValues from Tags; called after decode or
// construction so Network never has to do it itself.
func (c *NetworkConfig) finalize() {
	c.LocalTagValues = make(map[uint32]uint32, len(c.Tags))
	for _, tag := range c.Tags {
		c.LocalTagValues[tag.ID] = tag.Value
	}
}

// New builds a finalized NetworkConfig from the given fields. Callers
// that decode from the wire should use Decode instead, which calls
// finalize internally.
func New(cfg NetworkConfig) *NetworkConfig {
	c := cfg
	c.finalize()
	return &c
}

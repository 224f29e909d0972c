// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config provides HCL configuration handling for the overlay
// node: the controller endpoint, local identity, persistence root, and
// the debug/metrics listen addresses each joined network shares.
package config

import (
	"github.com/meshlayer/overlay/internal/errors"
)

// CurrentSchemaVersion defines the current schema version of the configuration.
const CurrentSchemaVersion = "1.0"

// Config is the top-level node configuration: where to persist joined
// networks, how to reach the controller, and which networks to join on
// startup.
type Config struct {
	// Schema version for backward compatibility.
	// @default: "1.0"
	SchemaVersion string `hcl:"schema_version,optional" json:"schema_version,omitempty"`

	// Identity is this node's 40-bit overlay address, in hex.
	Identity string `hcl:"identity" json:"identity"`

	// PersistenceRoot is the directory holding networks.d/<id>.conf.
	// @default: "/var/lib/overlay"
	PersistenceRoot string `hcl:"persistence_root,optional" json:"persistence_root,omitempty"`

	// DebugListenAddr is the read-only introspection HTTP listen
	// address, empty to disable.
	DebugListenAddr string `hcl:"debug_listen_addr,optional" json:"debug_listen_addr,omitempty"`

	// MetricsListenAddr is the Prometheus /metrics listen address,
	// empty to disable.
	MetricsListenAddr string `hcl:"metrics_listen_addr,optional" json:"metrics_listen_addr,omitempty"`

	Networks []NetworkJoin `hcl:"network,block" json:"network,omitempty"`

	Controller *ControllerConfig `hcl:"controller,block" json:"controller,omitempty"`
}

// NetworkJoin names a network to join at startup.
type NetworkJoin struct {
	ID string `hcl:"id,label" json:"id"`
	// TapDevice is the host tap/TUN interface name this network's
	// port should be bound to.
	TapDevice string `hcl:"tap_device,optional" json:"tap_device,omitempty"`
}

// ControllerConfig names how to reach the netconf controller for
// networks this node does not self-author.
type ControllerConfig struct {
	// Endpoint is a gRPC target, e.g. "controller.example.com:9993".
	Endpoint string `hcl:"endpoint,optional" json:"endpoint,omitempty"`
	// Insecure disables TLS for the controller gRPC connection.
	Insecure bool `hcl:"insecure,optional" json:"insecure,omitempty"`
}

// Default returns a Config with every optional field set to its
// documented default.
func Default() *Config {
	return &Config{
		SchemaVersion:   CurrentSchemaVersion,
		PersistenceRoot: "/var/lib/overlay",
	}
}

// Validate checks field-level invariants that HCL decoding itself
// cannot express.
func (c *Config) Validate() error {
	if c.Identity == "" {
		return errors.New(errors.KindValidation, "identity is required")
	}
	seen := make(map[string]bool, len(c.Networks))
	for _, nw := range c.Networks {
		if seen[nw.ID] {
			return errors.Errorf(errors.KindValidation, "duplicate network id: %s", nw.ID)
		}
		seen[nw.ID] = true
	}
	return nil
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/meshlayer/overlay/internal/errors"
)

// Load reads and decodes an HCL config file from path, applying
// defaults for every optional field left unset, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := hclsimple.DecodeFile(path, nil, cfg); err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "failed to decode config file")
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = CurrentSchemaVersion
	}
	if cfg.PersistenceRoot == "" {
		cfg.PersistenceRoot = "/var/lib/overlay"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

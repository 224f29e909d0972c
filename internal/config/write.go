// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/meshlayer/overlay/internal/errors"
)

// Save serializes cfg as HCL and writes it to path, overwriting
// whatever is there. Networks are re-emitted in cfg.Networks order, so
// callers that mutate the join list (e.g. after a runtime
// join/leave) get a stable, re-loadable file back.
func Save(path string, cfg *Config) error {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("schema_version", cty.StringVal(cfg.SchemaVersion))
	body.SetAttributeValue("identity", cty.StringVal(cfg.Identity))
	if cfg.PersistenceRoot != "" {
		body.SetAttributeValue("persistence_root", cty.StringVal(cfg.PersistenceRoot))
	}
	if cfg.DebugListenAddr != "" {
		body.SetAttributeValue("debug_listen_addr", cty.StringVal(cfg.DebugListenAddr))
	}
	if cfg.MetricsListenAddr != "" {
		body.SetAttributeValue("metrics_listen_addr", cty.StringVal(cfg.MetricsListenAddr))
	}

	for _, nw := range cfg.Networks {
		body.AppendNewline()
		block := body.AppendNewBlock("network", []string{nw.ID})
		if nw.TapDevice != "" {
			block.Body().SetAttributeValue("tap_device", cty.StringVal(nw.TapDevice))
		}
	}

	if cfg.Controller != nil {
		body.AppendNewline()
		block := body.AppendNewBlock("controller", nil)
		cb := block.Body()
		if cfg.Controller.Endpoint != "" {
			cb.SetAttributeValue("endpoint", cty.StringVal(cfg.Controller.Endpoint))
		}
		cb.SetAttributeValue("insecure", cty.BoolVal(cfg.Controller.Insecure))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "failed to create config directory")
	}
	if err := os.WriteFile(path, f.Bytes(), 0o644); err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "failed to write config file")
	}
	return nil
}

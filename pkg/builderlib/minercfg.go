// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"bytes"
	"fmt"

	"github.com/papampi/braiins-os/buildconfig"
	"github.com/papampi/braiins-os/internal/hwid"
)

// U-Boot environment variable names stored in the miner configuration
// partition.
const (
	minerCfgMAC      = "ethaddr"
	minerCfgHWID     = "miner_hwid"
	minerCfgPoolHost = "miner_pool_host"
	minerCfgPoolPort = "miner_pool_port"
	minerCfgPoolUser = "miner_pool_user"
	minerCfgPoolPass = "miner_pool_pass"
)

type minerCfgEntry struct {
	name      string
	attribute string
	value     func(c *buildconfig.Config) string
	// fallback for an unset attribute; nil means the attribute is
	// required
	fallback func() string
}

// minerCfgEntries defines the miner configuration record. The order is
// fixed so that repeated runs produce identical mkenvimage input.
var minerCfgEntries = []minerCfgEntry{
	{
		name:      minerCfgMAC,
		attribute: "miner.mac",
		value:     func(c *buildconfig.Config) string { return c.Miner.MAC },
	},
	{
		name:      minerCfgHWID,
		attribute: "miner.hwid",
		value:     func(c *buildconfig.Config) string { return c.Miner.HWID },
		fallback:  hwid.Generate,
	},
	{
		name:      minerCfgPoolHost,
		attribute: "miner.pool.host",
		value:     func(c *buildconfig.Config) string { return c.Miner.Pool.Host },
	},
	{
		name:      minerCfgPoolPort,
		attribute: "miner.pool.port",
		value:     func(c *buildconfig.Config) string { return c.Miner.Pool.Port },
	},
	{
		name:      minerCfgPoolUser,
		attribute: "miner.pool.user",
		value:     func(c *buildconfig.Config) string { return c.Miner.Pool.User },
	},
	{
		name:      minerCfgPoolPass,
		attribute: "miner.pool.pass",
		value:     func(c *buildconfig.Config) string { return c.Miner.Pool.Pass },
		fallback:  func() string { return "" },
	},
}

// minerCfgInput renders the miner configuration record as mkenvimage
// input. Attributes listed in excluded are skipped and attributes that
// resolve to an empty value are omitted from the record entirely.
func minerCfgInput(config *buildconfig.Config, excluded ...string) ([]byte, error) {
	skip := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		skip[name] = true
	}

	input := &bytes.Buffer{}
	for _, entry := range minerCfgEntries {
		if skip[entry.name] {
			continue
		}
		value := entry.value(config)
		if value == "" {
			if entry.fallback == nil {
				return nil, &buildconfig.ConfigError{
					Attribute: entry.attribute,
					Message:   fmt.Sprintf("missing miner configuration for '%s'", entry.name),
				}
			}
			value = entry.fallback()
		}
		if value != "" {
			fmt.Fprintf(input, "%s=%s\n", entry.name, value)
		}
	}
	return input.Bytes(), nil
}

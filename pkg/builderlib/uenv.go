// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"bytes"
	"fmt"

	"github.com/papampi/braiins-os/buildconfig"
)

const uEnvFileName = "uEnv.txt"

// uEnvContent renders the uEnv.txt override file for the U-Boot boot
// sequence. Only enabled switches are written; a fully disabled
// configuration yields an empty file.
func uEnvContent(config *buildconfig.Config) []byte {
	content := &bytes.Buffer{}
	if config.UEnv.MAC {
		fmt.Fprintf(content, "%s=%s\n", minerCfgMAC, config.Miner.MAC)
	}
	switches := []struct {
		name    string
		enabled bool
	}{
		{"factory_reset", config.UEnv.FactoryReset},
		{"sd_images", config.UEnv.SDImages},
		{"sd_boot", config.UEnv.SDBoot},
	}
	for _, item := range switches {
		if item.enabled {
			fmt.Fprintf(content, "%s=yes\n", item.name)
		}
	}
	return content.Bytes()
}

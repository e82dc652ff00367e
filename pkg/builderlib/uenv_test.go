// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/papampi/braiins-os/buildconfig"
)

func TestUEnvContentEmpty(t *testing.T) {
	assert.Empty(t, uEnvContent(testConfig()))
}

func TestUEnvContentMAC(t *testing.T) {
	config := testConfig()
	config.UEnv.MAC = true

	assert.Equal(t, "ethaddr=00:0A:35:FF:B0:1C\n", string(uEnvContent(config)))
}

func TestUEnvContentAllSwitches(t *testing.T) {
	config := testConfig()
	config.UEnv = buildconfig.UEnvConfig{
		MAC:          true,
		FactoryReset: true,
		SDImages:     true,
		SDBoot:       true,
	}

	assert.Equal(t,
		"ethaddr=00:0A:35:FF:B0:1C\n"+
			"factory_reset=yes\n"+
			"sd_images=yes\n"+
			"sd_boot=yes\n",
		string(uEnvContent(config)))
}

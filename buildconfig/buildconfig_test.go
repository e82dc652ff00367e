// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package buildconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yml")
	err := os.WriteFile(path, []byte(content), 0o644)
	assert.NoError(t, err)
	return path
}

const minimalConfig = `
miner:
  platform: zynq-dm1-g19
build:
  dir: /tmp/builds
`

func TestLoadDefaults(t *testing.T) {
	config, err := Load(writeConfig(t, minimalConfig))
	assert.NoError(t, err)
	assert.Equal(t, 1, config.Build.Jobs)
	assert.Equal(t, 1, config.Miner.Firmware)
}

func TestLoadUnknownAttribute(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+"\nunknown: value\n"))
	assert.Error(t, err)
}

func TestLoadMissingPlatform(t *testing.T) {
	_, err := Load(writeConfig(t, "build:\n  dir: /tmp/builds\n"))
	assert.Error(t, err)
	var configErr *ConfigError
	assert.ErrorAs(t, err, &configErr)
	assert.Equal(t, "miner.platform", configErr.Attribute)
}

func TestLoadMalformedPlatform(t *testing.T) {
	_, err := Load(writeConfig(t, "miner:\n  platform: zynq\nbuild:\n  dir: /tmp/builds\n"))
	assert.Error(t, err)
}

func TestLoadWithPlatformOverride(t *testing.T) {
	config, err := LoadWithPlatform(writeConfig(t, minimalConfig), "zynq-am1-s9")
	assert.NoError(t, err)
	assert.Equal(t, "zynq-am1-s9", config.Miner.Platform)
	assert.Equal(t, "am1-s9", config.Subtarget())
}

func TestPlatformSplit(t *testing.T) {
	config, err := Load(writeConfig(t, minimalConfig))
	assert.NoError(t, err)
	assert.Equal(t, "zynq", config.Target())
	assert.Equal(t, "dm1-g19", config.Subtarget())
	assert.Equal(t, "dm1", config.SubtargetFamily())
}

func TestBuildDir(t *testing.T) {
	config, err := Load(writeConfig(t, minimalConfig+"  name: release\n"))
	assert.NoError(t, err)
	assert.Equal(t, "/tmp/builds/release", config.BuildDir())
}

func TestHostnameDerivedFromMAC(t *testing.T) {
	config, err := Load(writeConfig(t, `
miner:
  platform: zynq-dm1-g19
  mac: 00:0A:35:FF:B0:1C
build:
  dir: /tmp/builds
`))
	assert.NoError(t, err)
	assert.Equal(t, "miner-ffb01c", config.Hostname())
}

func TestHostnameSuffix(t *testing.T) {
	config, err := Load(writeConfig(t, `
miner:
  platform: zynq-dm1-g19
  mac: 00:0A:35:FF:B0:1C
build:
  dir: /tmp/builds
deploy:
  ssh:
    hostname_suffix: .local
`))
	assert.NoError(t, err)
	assert.Equal(t, "miner-ffb01c.local", config.Hostname())
}

func TestHostnameConfigured(t *testing.T) {
	config, err := Load(writeConfig(t, `
miner:
  platform: zynq-dm1-g19
  mac: 00:0A:35:FF:B0:1C
build:
  dir: /tmp/builds
deploy:
  ssh:
    hostname: 10.0.0.5
`))
	assert.NoError(t, err)
	assert.Equal(t, "10.0.0.5", config.Hostname())
}

func TestTemplateResolution(t *testing.T) {
	config, err := Load(writeConfig(t, `
miner:
  platform: zynq-dm1-g19
build:
  dir: /tmp/builds
  name: release
local:
  sd: /srv/{platform}/sd
  nand_dm_v1: '{build_dir}/out/{subtarget_family}'
  feeds: /srv/{target}/{subtarget}
`))
	assert.NoError(t, err)
	assert.Equal(t, "/srv/zynq-dm1-g19/sd", config.Local["sd"])
	assert.Equal(t, "/tmp/builds/release/out/dm1", config.Local["nand_dm_v1"])
	assert.Equal(t, "/srv/zynq/dm1-g19", config.Local["feeds"])
}

func TestDeployFlags(t *testing.T) {
	config, err := Load(writeConfig(t, minimalConfig+`
deploy:
  targets: [nand]
  write_bitstream: true
  reboot: true
`))
	assert.NoError(t, err)
	assert.Equal(t, []string{"nand"}, config.Deploy.Targets)
	assert.True(t, config.Deploy.WriteBitstream)
	assert.True(t, config.Deploy.Reboot)
	assert.False(t, config.Deploy.FactoryImage)
}

// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	image := &SdImage{
		Boot:      writeArtifact(t, dir, "boot.bin", []byte("boot")),
		Uboot:     writeArtifact(t, dir, "u-boot.img", []byte("uboot")),
		Bitstream: writeArtifact(t, dir, "system.bit", []byte("bit")),
		Kernel:    filepath.Join(dir, "missing-fit.itb"),
	}

	err := image.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing kernel artifact")
}

func TestPlanValidateChecksEveryImage(t *testing.T) {
	dir := t.TempDir()
	sd := &SdImage{
		Boot:      writeArtifact(t, dir, "boot.bin", []byte("boot")),
		Uboot:     writeArtifact(t, dir, "u-boot.img", []byte("uboot")),
		Bitstream: writeArtifact(t, dir, "system.bit", []byte("bit")),
		Kernel:    writeArtifact(t, dir, "fit.itb", []byte("kernel")),
	}

	plan := &Plan{LocalSD: sd}
	assert.NoError(t, plan.Validate())

	plan.Feeds = &FeedImage{
		Key:        filepath.Join(dir, "missing-key"),
		Packages:   dir,
		Sysupgrade: sd.Kernel,
	}
	assert.Error(t, plan.Validate())
}

func TestApplyDeployPatch(t *testing.T) {
	config := testConfig()

	for _, patch := range []ConfigPatch{
		{Name: "write_miner_cfg", Value: "yes"},
		{Name: "reset_uboot_env", Value: "yes"},
		{Name: "reboot", Value: "yes"},
	} {
		assert.NoError(t, applyDeployPatch(&config.Deploy, patch))
	}
	assert.True(t, config.Deploy.WriteMinerCfg)
	assert.True(t, config.Deploy.ResetUbootEnv)
	assert.True(t, config.Deploy.Reboot)

	err := applyDeployPatch(&config.Deploy, ConfigPatch{Name: "unknown", Value: "yes"})
	assert.Error(t, err)
}

// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/papampi/braiins-os/buildconfig"
)

func testConfig() *buildconfig.Config {
	return &buildconfig.Config{
		Miner: buildconfig.MinerConfig{
			Platform: "zynq-dm1-g19",
			MAC:      "00:0A:35:FF:B0:1C",
			Firmware: 1,
		},
		Build: buildconfig.BuildConfig{
			Dir:  "/tmp/builds",
			Jobs: 1,
		},
	}
}

func TestExpandNandAlias(t *testing.T) {
	expanded, patches, err := ExpandTargets([]string{"nand"})
	assert.NoError(t, err)

	assert.True(t, expanded["nand_recovery"])
	assert.True(t, expanded["nand_config"])
	assert.Equal(t, []ConfigPatch{
		{Name: "write_miner_cfg", Value: "yes"},
		{Name: "reset_uboot_env", Value: "yes"},
		{Name: "reboot", Value: "yes"},
	}, patches)
}

func TestExpandAliasPatchesOnce(t *testing.T) {
	_, patches, err := ExpandTargets([]string{"nand", "nand_firmware1", "nand"})
	assert.NoError(t, err)
	assert.Len(t, patches, 3)
}

func TestExpandLocalSDAlias(t *testing.T) {
	expanded, patches, err := ExpandTargets([]string{"local_sd"})
	assert.NoError(t, err)
	assert.True(t, expanded["local_sd"])
	assert.True(t, expanded["local_sd_config"])
	assert.Empty(t, patches)
}

func TestExpandUnknownTarget(t *testing.T) {
	_, _, err := ExpandTargets([]string{"sd", "usb"})
	var targetErr *UnsupportedTargetError
	assert.ErrorAs(t, err, &targetErr)
	assert.Equal(t, "usb", targetErr.Target)
}

func TestExpandExclusiveSDTargets(t *testing.T) {
	_, _, err := ExpandTargets([]string{"sd", "sd_recovery"})
	var targetErr *UnsupportedTargetError
	assert.ErrorAs(t, err, &targetErr)
}

func TestResolvePlanSD(t *testing.T) {
	builder := New(testConfig())

	plan, patches, err := builder.ResolvePlan([]string{"sd"})
	assert.NoError(t, err)
	assert.Empty(t, patches)

	assert.NotNil(t, plan.RemoteSD)
	assert.Nil(t, plan.RemoteSDRecovery)
	assert.Nil(t, plan.RemoteNand)
	assert.True(t, plan.HasRemote())
	assert.False(t, plan.HasLocal())

	assert.Contains(t, plan.RemoteSD.Boot, "uboot-zynq-dm1-g19-sd")
	assert.Contains(t, plan.RemoteSD.Kernel, "lede-zynq-dm1-g19-sd-squashfs-fit.itb")
	assert.Contains(t, plan.RemoteSD.Bitstream, "platform/dm1-g19/system.bit")
}

func TestResolvePlanConfigOnly(t *testing.T) {
	builder := New(testConfig())

	plan, _, err := builder.ResolvePlan([]string{"sd_config"})
	assert.NoError(t, err)

	assert.True(t, plan.SDConfig)
	assert.Nil(t, plan.RemoteSD)
	assert.Nil(t, plan.RemoteSDRecovery)
	assert.Nil(t, plan.RemoteNandRecovery)
	assert.Nil(t, plan.RemoteNand)
	assert.True(t, plan.HasRemote())
	assert.False(t, plan.HasLocal())
}

func TestResolvePlanNandAlias(t *testing.T) {
	builder := New(testConfig())

	plan, patches, err := builder.ResolvePlan([]string{"nand"})
	assert.NoError(t, err)
	assert.Len(t, patches, 3)

	assert.NotNil(t, plan.RemoteNandRecovery)
	assert.True(t, plan.NandConfig)
	assert.Contains(t, plan.RemoteNandRecovery.Boot, "uboot-zynq-dm1-g19")
	assert.NotContains(t, plan.RemoteNandRecovery.Boot, "-sd")
	assert.Contains(t, plan.RemoteNandRecovery.Kernel, "lede-zynq-dm1-g19-recovery-squashfs-fit.itb")
	assert.Contains(t, plan.RemoteNandRecovery.Factory, "lede-zynq-dm1-g19-nand-squashfs-factory.bin")
}

func TestResolvePlanFirmwareSlots(t *testing.T) {
	builder := New(testConfig())

	plan, _, err := builder.ResolvePlan([]string{"nand_firmware1", "nand_firmware2"})
	assert.NoError(t, err)

	assert.NotNil(t, plan.RemoteNand)
	assert.True(t, plan.NandFirmware1)
	assert.True(t, plan.NandFirmware2)
	assert.Contains(t, plan.RemoteNand.Sysupgrade, "lede-zynq-dm1-g19-nand-squashfs-sysupgrade.tar")
}

func TestResolvePlanConversions(t *testing.T) {
	builder := New(testConfig())

	plan, _, err := builder.ResolvePlan([]string{"local_nand_dm_v1", "local_nand_dm_v3"})
	assert.NoError(t, err)

	assert.Len(t, plan.Conversions, 2)
	assert.NotNil(t, plan.Conversions[1])
	assert.Nil(t, plan.Conversions[2])
	assert.NotNil(t, plan.Conversions[3])
	assert.Contains(t, plan.Conversions[1].Kernel, "lede-zynq-dm1-g19-upgrade-squashfs-fit.itb")
	assert.Contains(t, plan.Conversions[1].RecoveryKernel, "lede-zynq-dm1-g19-recovery-squashfs-fit.itb")
}

func TestResolvePlanAmConversion(t *testing.T) {
	config := testConfig()
	config.Miner.Platform = "zynq-am1-s9"
	builder := New(config)

	plan, _, err := builder.ResolvePlan([]string{"local_nand_am"})
	assert.NoError(t, err)

	assert.Len(t, plan.Conversions, 1)
	assert.NotNil(t, plan.Conversions[3])
	assert.True(t, plan.HasLocal())
	assert.False(t, plan.HasRemote())
}

func TestResolvePlanFeeds(t *testing.T) {
	builder := New(testConfig())

	plan, _, err := builder.ResolvePlan([]string{"local_feeds"})
	assert.NoError(t, err)

	assert.NotNil(t, plan.Feeds)
	assert.Contains(t, plan.Feeds.Key, "lede/key-build")
	assert.Contains(t, plan.Feeds.Packages, "staging_dir/packages/zynq")
}

func TestResolvePlanDeterministic(t *testing.T) {
	builder := New(testConfig())

	first, _, err := builder.ResolvePlan([]string{"nand_config", "nand_recovery"})
	assert.NoError(t, err)
	second, _, err := builder.ResolvePlan([]string{"nand_recovery", "nand_config"})
	assert.NoError(t, err)

	assert.Equal(t, first, second)
}

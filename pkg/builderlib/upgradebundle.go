// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"archive/tar"
	"bytes"
	"fmt"
	"path/filepath"

	gzip "github.com/klauspost/pgzip"

	"github.com/papampi/braiins-os/internal/bootenv"
	"github.com/papampi/braiins-os/internal/logger"
	"github.com/papampi/braiins-os/internal/resources"
	"github.com/papampi/braiins-os/internal/tarutils"
)

// Bundle file names fixed by the on-device stage scripts.
const (
	bundleFirmwareDir     = "firmware"
	bundleUbootEnv        = "uboot_env.bin"
	bundleUbootEnvConfig  = "uboot_env.config"
	bundleMinerCfg        = "miner_cfg.bin"
	bundleMinerCfgConfig  = "miner_cfg.config"
	bundleStage1Control   = "CONTROL"
	bundleStage1Script    = "stage1.sh"
	bundleStage2Script    = "stage2.sh"
	bundleStage2          = "stage2.tgz"
	bundleUpgradeScript   = "upgrade.py"
	bundleRestoreScript   = "restore.py"
	bundleRequirements    = "requirements.txt"
	bundleSSHHelper       = "ssh.py"
	bundleHWIDHelper      = "hwid.py"
	bundleSystemDir       = "system"
	bundleScriptFileMode  = 0o755
	bundleRegularFileMode = 0o644
)

// hwVersion maps a platform to the hardware version string checked by the
// vendor boot loader.
func hwVersion(platform string) (string, error) {
	versions := map[string]string{
		"zynq-dm1-g9":  "G9",
		"zynq-dm1-g19": "G19",
		"zynq-am1-s9":  "S9",
	}
	version, ok := versions[platform]
	if !ok {
		return "", fmt.Errorf("no hardware version for platform (%s)", platform)
	}
	return version, nil
}

func (i *ConversionImage) uploadSet() []uploadEntry {
	return []uploadEntry{
		{i.Boot, "boot.bin"},
		{i.Uboot, "u-boot.img"},
		{i.Bitstream, "system.bit"},
		{i.Kernel, "fit.itb"},
	}
}

func readResource(name string) ([]byte, error) {
	content, err := resources.ResourcesFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource (%s):\n%w", name, err)
	}
	return content, nil
}

// conversionEnvInput renders the miner configuration record without the
// device-unique attributes. The MAC and HW identifier stay untouched on
// the converted device.
func (b *Builder) conversionEnvInput() ([]byte, error) {
	return minerCfgInput(b.Config, minerCfgMAC, minerCfgHWID)
}

// conversionUbootEnv generates the complete U-Boot environment blob for a
// converted device: the pool configuration merged with the default
// environment source.
func (b *Builder) conversionUbootEnv() ([]byte, error) {
	input, err := b.conversionEnvInput()
	if err != nil {
		return nil, err
	}
	base, err := readResource(resources.UpgradeUbootEnvSourceFile)
	if err != nil {
		return nil, err
	}
	input = append(input, base...)

	mkenvimage, err := b.utility("mkenvimage")
	if err != nil {
		return nil, err
	}
	return bootenv.MakeImage(mkenvimage, input, ubootEnvSize)
}

// conversionMinerCfg generates the miner configuration blob written to
// the miner_cfg partition during conversion.
func (b *Builder) conversionMinerCfg() ([]byte, error) {
	input, err := b.conversionEnvInput()
	if err != nil {
		return nil, err
	}
	mkenvimage, err := b.utility("mkenvimage")
	if err != nil {
		return nil, err
	}
	return bootenv.MakeImage(mkenvimage, input, minerCfgSize)
}

// buildStage2 composes the stage-2 tarball: the recovery image, the
// compressed bitstream and factory image, and the miner configuration
// written by the on-device stage-2 script.
func (b *Builder) buildStage2(image *ConversionImage) ([]byte, error) {
	logger.Log.Info("Creating stage2 tarball...")

	archive := &bytes.Buffer{}
	compressor := gzip.NewWriter(archive)
	tw := tar.NewWriter(compressor)

	err := tarutils.AddFile(tw, image.RecoveryKernel, "fit.itb")
	if err != nil {
		return nil, err
	}
	err = tarutils.AddCompressedFile(tw, image.Bitstream, "system.bit.gz")
	if err != nil {
		return nil, err
	}
	err = tarutils.AddCompressedFile(tw, image.Factory, "factory.bin.gz")
	if err != nil {
		return nil, err
	}

	minerCfgConfig, err := readResource(resources.UpgradeMinerCfgConfigFile)
	if err != nil {
		return nil, err
	}
	err = tarutils.AddBytes(tw, minerCfgConfig, bundleMinerCfgConfig, bundleRegularFileMode)
	if err != nil {
		return nil, err
	}

	minerCfg, err := b.conversionMinerCfg()
	if err != nil {
		return nil, err
	}
	err = tarutils.AddBytes(tw, minerCfg, bundleMinerCfg, bundleRegularFileMode)
	if err != nil {
		return nil, err
	}

	stage2Script, err := readResource(resources.UpgradeStage2ScriptFile)
	if err != nil {
		return nil, err
	}
	err = tarutils.AddBytes(tw, stage2Script, bundleStage2Script, bundleScriptFileMode)
	if err != nil {
		return nil, err
	}

	err = tw.Close()
	if err == nil {
		err = compressor.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to finish stage2 tarball:\n%w", err)
	}
	return archive.Bytes(), nil
}

// stage1Control renders the CONTROL file: the hardware version of the
// configured platform followed by the per-version template.
func (b *Builder) stage1Control(version int) ([]byte, error) {
	hwver, err := hwVersion(b.Config.Miner.Platform)
	if err != nil {
		return nil, err
	}
	template, err := readResource(fmt.Sprintf(resources.UpgradeControlFilePattern, version))
	if err != nil {
		return nil, err
	}

	control := &bytes.Buffer{}
	fmt.Fprintf(control, "FW_MINER_HWVER=%s\n\n", hwver)
	control.Write(template)
	return control.Bytes(), nil
}

// buildConversionBundle writes a complete conversion bundle for devices
// running vendor firmware of the given protocol version.
func (b *Builder) buildConversionBundle(sink *dirSink, image *ConversionImage, version int) error {
	firmwareSink, err := sink.Sub(bundleFirmwareDir)
	if err != nil {
		return err
	}

	err = copyToSink(firmwareSink, image.uploadSet(), "system.bit")
	if err != nil {
		return err
	}

	ubootEnvConfig, err := readResource(resources.UpgradeUbootEnvConfigFile)
	if err != nil {
		return err
	}
	err = firmwareSink.PutBytes(ubootEnvConfig, bundleUbootEnvConfig, false)
	if err != nil {
		return err
	}

	ubootEnv, err := b.conversionUbootEnv()
	if err != nil {
		return err
	}
	err = firmwareSink.PutBytes(ubootEnv, bundleUbootEnv, false)
	if err != nil {
		return err
	}

	stage2, err := b.buildStage2(image)
	if err != nil {
		return err
	}
	err = firmwareSink.PutBytes(stage2, bundleStage2, false)
	if err != nil {
		return err
	}

	control, err := b.stage1Control(version)
	if err != nil {
		return err
	}
	err = firmwareSink.PutBytes(control, bundleStage1Control, false)
	if err != nil {
		return err
	}

	stage1Script, err := readResource(resources.UpgradeStage1ScriptFile)
	if err != nil {
		return err
	}
	err = firmwareSink.PutBytes(stage1Script, bundleStage1Script, false)
	if err != nil {
		return err
	}

	if version >= 2 {
		sshHelper, err := readResource(resources.UpgradeSSHHelperFile)
		if err != nil {
			return err
		}
		err = sink.PutBytes(sshHelper, bundleSSHHelper, false)
		if err != nil {
			return err
		}
	}

	if version == 3 {
		err = b.copySystemTools(sink)
		if err != nil {
			return err
		}
	}

	hwidHelper, err := readResource(resources.UpgradeHWIDHelperFile)
	if err != nil {
		return err
	}
	err = sink.PutBytes(hwidHelper, bundleHWIDHelper, false)
	if err != nil {
		return err
	}

	// protocol version 3 drives the upgrade with the version 2 script
	scriptVersion := version
	if scriptVersion == 3 {
		scriptVersion = 2
	}

	restoreScript, err := readResource(resources.UpgradeRestoreScriptFile)
	if err != nil {
		return err
	}
	err = sink.PutBytes(restoreScript, bundleRestoreScript, false)
	if err != nil {
		return err
	}

	upgradeScript, err := readResource(fmt.Sprintf(resources.UpgradeScriptFilePattern, scriptVersion))
	if err != nil {
		return err
	}
	err = sink.PutBytes(upgradeScript, bundleUpgradeScript, false)
	if err != nil {
		return err
	}

	requirements, err := readResource(fmt.Sprintf(resources.UpgradeRequirementsFilePattern, scriptVersion))
	if err != nil {
		return err
	}
	return sink.PutBytes(requirements, bundleRequirements, false)
}

// copySystemTools ships the musl loader, the SFTP server and the U-Boot
// environment reader needed by the oldest vendor firmware, taken from the
// build tree.
func (b *Builder) copySystemTools(sink *dirSink) error {
	systemSink, err := sink.Sub(bundleSystemDir)
	if err != nil {
		return err
	}

	buildDir := filepath.Join(b.workingDir, "build_dir", "target-arm_cortex-a9+neon_musl-1.1.16_eabi")
	tools := []uploadEntry{
		{filepath.Join(buildDir, "toolchain", "ipkg-arm_cortex-a9_neon", "libc", "lib",
			"ld-musl-armhf.so.1"), "ld-musl-armhf.so.1"},
		{filepath.Join(buildDir, "openssh-without-pam", "openssh-7.4p1",
			"sftp-server"), "sftp-server"},
		{filepath.Join(buildDir, "u-boot-2018.03", "ipkg-arm_cortex-a9_neon", "uboot-envtools",
			"usr", "sbin", "fw_printenv"), "fw_printenv"},
	}
	return copyToSink(systemSink, tools)
}

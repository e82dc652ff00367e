// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"fmt"
	"path/filepath"
	"sort"
)

// UnsupportedTargetError reports an unknown or conflicting deployment
// target selection. It is raised before any descriptor is built.
type UnsupportedTargetError struct {
	Target  string
	Message string
}

func (e *UnsupportedTargetError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unsupported target selection: %s", e.Message)
	}
	return fmt.Sprintf("unsupported target (%s) for firmware image", e.Target)
}

// ConfigPatch is a deployment-flag assignment requested by a target alias.
// The resolver never mutates configuration itself; the caller applies the
// patches.
type ConfigPatch struct {
	Name  string
	Value string
}

// Plan is the resolved deployment plan: image descriptors per sink plus
// the configuration-only switches. A plan with empty image fields and a
// config switch set is a valid configuration-only run.
type Plan struct {
	// Remote device sink.
	RemoteSD           *SdImage
	RemoteSDRecovery   *RecoveryImage
	RemoteNandRecovery *RecoveryImage
	RemoteNand         *NandImage
	NandFirmware1      bool
	NandFirmware2      bool
	SDConfig           bool
	NandConfig         bool

	// Local mirror sink.
	LocalSD               *SdImage
	LocalSDRecovery       *RecoveryImage
	LocalNandRecovery     *RecoveryImage
	LocalSDConfig         bool
	LocalSDRecoveryConfig bool

	// Conversion bundles, keyed by protocol version.
	Conversions map[int]*ConversionImage

	// Feed export sink.
	Feeds *FeedImage
}

// HasRemote reports whether the plan touches the remote device at all.
func (p *Plan) HasRemote() bool {
	return p.RemoteSD != nil || p.RemoteSDRecovery != nil || p.RemoteNandRecovery != nil ||
		p.RemoteNand != nil || p.SDConfig || p.NandConfig
}

// HasLocal reports whether the plan writes into local mirror directories.
func (p *Plan) HasLocal() bool {
	return p.LocalSD != nil || p.LocalSDRecovery != nil || p.LocalNandRecovery != nil ||
		len(p.Conversions) > 0 || p.LocalSDConfig || p.LocalSDRecoveryConfig
}

// Validate checks every artifact referenced by the plan before any write
// begins.
func (p *Plan) Validate() error {
	var images []interface{ Validate() error }
	appendImage := func(image interface{ Validate() error }, present bool) {
		if present {
			images = append(images, image)
		}
	}
	appendImage(p.RemoteSD, p.RemoteSD != nil)
	appendImage(p.RemoteSDRecovery, p.RemoteSDRecovery != nil)
	appendImage(p.RemoteNandRecovery, p.RemoteNandRecovery != nil)
	appendImage(p.RemoteNand, p.RemoteNand != nil)
	appendImage(p.LocalSD, p.LocalSD != nil)
	appendImage(p.LocalSDRecovery, p.LocalSDRecovery != nil)
	appendImage(p.LocalNandRecovery, p.LocalNandRecovery != nil)
	appendImage(p.Feeds, p.Feeds != nil)

	versions := make([]int, 0, len(p.Conversions))
	for version := range p.Conversions {
		versions = append(versions, version)
	}
	sort.Ints(versions)
	for _, version := range versions {
		images = append(images, p.Conversions[version])
	}

	for _, image := range images {
		if err := image.Validate(); err != nil {
			return err
		}
	}
	return nil
}

const conversionVersions = 3

var supportedTargets = map[string]bool{
	"sd_config":                true,
	"sd":                       true,
	"sd_recovery":              true,
	"nand_config":              true,
	"nand_recovery":            true,
	"nand_firmware1":           true,
	"nand_firmware2":           true,
	"local_sd":                 true,
	"local_sd_config":          true,
	"local_sd_recovery":        true,
	"local_sd_recovery_config": true,
	"local_nand_recovery":      true,
	"local_feeds":              true,
	"local_nand_dm_v1":         true,
	"local_nand_dm_v2":         true,
	"local_nand_dm_v3":         true,
	"local_nand_am":            true,
}

type targetAlias struct {
	targets []string
	patches []ConfigPatch
}

var targetAliases = map[string]targetAlias{
	"nand": {
		targets: []string{"nand_recovery", "nand_config"},
		patches: []ConfigPatch{
			{Name: "write_miner_cfg", Value: "yes"},
			{Name: "reset_uboot_env", Value: "yes"},
			{Name: "reboot", Value: "yes"},
		},
	},
	"local_sd": {
		targets: []string{"local_sd", "local_sd_config"},
	},
	"local_sd_recovery": {
		targets: []string{"local_sd_recovery", "local_sd_recovery_config"},
	},
}

// ExpandTargets expands aliases into their member targets and collects the
// configuration patches the aliases carry. Unknown targets are rejected.
func ExpandTargets(targets []string) (map[string]bool, []ConfigPatch, error) {
	expanded := make(map[string]bool)
	patches := []ConfigPatch{}
	seenAliases := make(map[string]bool)

	for _, target := range targets {
		if alias, ok := targetAliases[target]; ok {
			for _, member := range alias.targets {
				expanded[member] = true
			}
			if !seenAliases[target] {
				patches = append(patches, alias.patches...)
				seenAliases[target] = true
			}
			continue
		}
		if !supportedTargets[target] {
			return nil, nil, &UnsupportedTargetError{Target: target}
		}
		expanded[target] = true
	}

	if expanded["sd"] && expanded["sd_recovery"] {
		return nil, nil, &UnsupportedTargetError{
			Message: "targets 'sd' and 'sd_recovery' are mutually exclusive",
		}
	}

	return expanded, patches, nil
}

// ResolvePlan maps the requested targets to a deployment plan. It is a
// pure function of the targets and the current configuration: the same
// inputs always produce the same plan, and configuration changes requested
// by aliases are returned as patches instead of being applied.
func (b *Builder) ResolvePlan(targets []string) (*Plan, []ConfigPatch, error) {
	expanded, patches, err := ExpandTargets(targets)
	if err != nil {
		return nil, nil, err
	}

	platform := b.Config.Miner.Platform
	genericDir := b.genericDir()
	sdUbootDir := fmt.Sprintf("uboot-%s-sd", platform)
	nandUbootDir := fmt.Sprintf("uboot-%s", platform)

	plan := &Plan{
		Conversions: make(map[int]*ConversionImage),
	}

	if expanded["sd"] || expanded["local_sd"] {
		sd := &SdImage{
			Boot:      filepath.Join(genericDir, sdUbootDir, "boot.bin"),
			Uboot:     filepath.Join(genericDir, sdUbootDir, "u-boot.img"),
			Bitstream: b.bitstreamPath(),
			Kernel:    filepath.Join(genericDir, b.imageName("sd", "fit.itb")),
		}
		if expanded["sd"] {
			plan.RemoteSD = sd
		}
		if expanded["local_sd"] {
			plan.LocalSD = sd
		}
	}

	if expanded["sd_recovery"] || expanded["local_sd_recovery"] {
		recovery := b.recoveryImage(genericDir, sdUbootDir)
		if expanded["sd_recovery"] {
			plan.RemoteSDRecovery = recovery
		}
		if expanded["local_sd_recovery"] {
			plan.LocalSDRecovery = recovery
		}
	}

	if expanded["nand_recovery"] || expanded["local_nand_recovery"] {
		recovery := b.recoveryImage(genericDir, nandUbootDir)
		if expanded["nand_recovery"] {
			plan.RemoteNandRecovery = recovery
		}
		if expanded["local_nand_recovery"] {
			plan.LocalNandRecovery = recovery
		}
	}

	if expanded["nand_firmware1"] || expanded["nand_firmware2"] {
		plan.RemoteNand = &NandImage{
			Boot:       filepath.Join(genericDir, nandUbootDir, "boot.bin"),
			Uboot:      filepath.Join(genericDir, nandUbootDir, "u-boot.img"),
			Bitstream:  b.bitstreamPath(),
			Factory:    filepath.Join(genericDir, b.imageName("nand", "factory.bin")),
			Sysupgrade: filepath.Join(genericDir, b.imageName("nand", "sysupgrade.tar")),
		}
		plan.NandFirmware1 = expanded["nand_firmware1"]
		plan.NandFirmware2 = expanded["nand_firmware2"]
	}

	for version := 1; version <= conversionVersions; version++ {
		name := fmt.Sprintf("local_nand_dm_v%d", version)
		wanted := expanded[name]
		if version == conversionVersions && expanded["local_nand_am"] {
			wanted = true
		}
		if !wanted {
			continue
		}
		plan.Conversions[version] = &ConversionImage{
			Boot:           filepath.Join(genericDir, nandUbootDir, "boot.bin"),
			Uboot:          filepath.Join(genericDir, nandUbootDir, "u-boot.img"),
			Bitstream:      b.bitstreamPath(),
			Kernel:         filepath.Join(genericDir, b.imageName("upgrade", "fit.itb")),
			RecoveryKernel: filepath.Join(genericDir, b.imageName("recovery", "fit.itb")),
			Factory:        filepath.Join(genericDir, b.imageName("nand", "factory.bin")),
		}
	}

	if expanded["local_feeds"] {
		plan.Feeds = &FeedImage{
			Key:        filepath.Join(b.workingDir, "key-build"),
			Packages:   filepath.Join(b.workingDir, "staging_dir", "packages", b.Config.Target()),
			Sysupgrade: filepath.Join(genericDir, b.imageName("nand", "sysupgrade.tar")),
		}
	}

	plan.SDConfig = expanded["sd_config"]
	plan.NandConfig = expanded["nand_config"]
	plan.LocalSDConfig = expanded["local_sd_config"]
	plan.LocalSDRecoveryConfig = expanded["local_sd_recovery_config"]

	return plan, patches, nil
}

func (b *Builder) recoveryImage(genericDir string, ubootDir string) *RecoveryImage {
	return &RecoveryImage{
		Boot:      filepath.Join(genericDir, ubootDir, "boot.bin"),
		Uboot:     filepath.Join(genericDir, ubootDir, "u-boot.img"),
		Bitstream: b.bitstreamPath(),
		Kernel:    filepath.Join(genericDir, b.imageName("recovery", "fit.itb")),
		Factory:   filepath.Join(genericDir, b.imageName("nand", "factory.bin")),
	}
}

// imageName builds an artifact file name for the configured platform, e.g.
// lede-zynq-dm1-g19-nand-squashfs-factory.bin.
func (b *Builder) imageName(class string, suffix string) string {
	return fmt.Sprintf("%s-%s-%s-squashfs-%s", imagePrefix, b.Config.Miner.Platform, class, suffix)
}

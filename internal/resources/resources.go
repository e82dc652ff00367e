// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

// Package resources embeds the static per-hardware-version files shipped
// inside conversion bundles for devices still running vendor firmware.
package resources

import (
	"embed"
)

const (
	// Stage scripts executed on the device.
	UpgradeStage1ScriptFile = "assets/upgrade/stage1.sh"
	UpgradeStage2ScriptFile = "assets/upgrade/stage2.sh"

	// Per-version stage-1 control templates; FW_MINER_HWVER is prepended
	// at bundle-build time.
	UpgradeControlFilePattern = "assets/upgrade/CONTROL_v%d"

	// Version-mapped upgrade drivers with their dependency manifests.
	UpgradeScriptFilePattern       = "assets/upgrade/upgrade_v%d.py"
	UpgradeRequirementsFilePattern = "assets/upgrade/requirements_v%d.txt"
	UpgradeRestoreScriptFile       = "assets/upgrade/restore.py"

	// Remote-transport helper shipped with protocol versions 2 and 3.
	UpgradeSSHHelperFile = "assets/upgrade/ssh.py"

	// HW identifier generator shipped with every bundle.
	UpgradeHWIDHelperFile = "assets/upgrade/hwid.py"

	// Boot-environment sources and mkenvimage layout descriptions.
	UpgradeUbootEnvSourceFile = "assets/upgrade/uboot_env.txt"
	UpgradeUbootEnvConfigFile = "assets/upgrade/uboot_env.config"
	UpgradeMinerCfgConfigFile = "assets/upgrade/miner_cfg.config"
)

//go:embed assets/upgrade
var ResourcesFS embed.FS

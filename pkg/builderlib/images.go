// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"fmt"

	"github.com/papampi/braiins-os/internal/file"
)

// Image descriptors name the build artifacts composing one deployable
// unit. Every referenced path must exist before any write begins; Validate
// is called on the whole deployment plan up front so a run never discovers
// a missing artifact halfway through flashing a device.

// SdImage composes a bootable SD card.
type SdImage struct {
	Boot      string
	Uboot     string
	Bitstream string
	Kernel    string
}

// RecoveryImage composes the recovery system for SD or NAND.
type RecoveryImage struct {
	Boot      string
	Uboot     string
	Bitstream string
	Kernel    string
	Factory   string
}

// NandImage composes the production NAND firmware.
type NandImage struct {
	Boot       string
	Uboot      string
	Bitstream  string
	Factory    string
	Sysupgrade string
}

// ConversionImage composes the firmware shipped in a vendor-firmware
// conversion bundle.
type ConversionImage struct {
	Boot           string
	Uboot          string
	Bitstream      string
	Kernel         string
	RecoveryKernel string
	Factory        string
}

// FeedImage composes a package feed export.
type FeedImage struct {
	Key        string
	Packages   string
	Sysupgrade string
}

func (i *SdImage) Validate() error {
	return checkPaths(map[string]string{
		"boot": i.Boot, "u-boot": i.Uboot, "bitstream": i.Bitstream, "kernel": i.Kernel,
	})
}

func (i *RecoveryImage) Validate() error {
	return checkPaths(map[string]string{
		"boot": i.Boot, "u-boot": i.Uboot, "bitstream": i.Bitstream,
		"kernel": i.Kernel, "factory image": i.Factory,
	})
}

func (i *NandImage) Validate() error {
	return checkPaths(map[string]string{
		"boot": i.Boot, "u-boot": i.Uboot, "bitstream": i.Bitstream,
		"factory image": i.Factory, "sysupgrade archive": i.Sysupgrade,
	})
}

func (i *ConversionImage) Validate() error {
	return checkPaths(map[string]string{
		"boot": i.Boot, "u-boot": i.Uboot, "bitstream": i.Bitstream,
		"kernel": i.Kernel, "recovery kernel": i.RecoveryKernel, "factory image": i.Factory,
	})
}

func (i *FeedImage) Validate() error {
	return checkPaths(map[string]string{
		"signing key": i.Key, "packages directory": i.Packages,
		"sysupgrade archive": i.Sysupgrade,
	})
}

func checkPaths(paths map[string]string) error {
	for name, path := range paths {
		exists, err := file.PathExists(path)
		if err != nil {
			return fmt.Errorf("failed to check %s artifact (%s):\n%w", name, path, err)
		}
		if !exists {
			return fmt.Errorf("missing %s artifact (%s)", name, path)
		}
	}
	return nil
}

// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

// Package builderlib is the provisioning engine: it resolves deployment
// targets into image descriptors and installs firmware onto devices over
// the remote transport, into local directory mirrors or into package feed
// exports. The firmware itself is produced by the external make-based
// build system; this package only consumes its artifacts.
package builderlib

import (
	"fmt"
	"path/filepath"

	"github.com/papampi/braiins-os/buildconfig"
	"github.com/papampi/braiins-os/internal/file"
)

const (
	// Subdirectory of the build directory holding the build-system tree.
	sourceDirName = "lede"

	// Artifact name prefix used by the build system.
	imagePrefix = "lede"

	// Boot-environment blob sizes, fixed by the flash partition layout.
	ubootEnvSize = 0x20000
	minerCfgSize = 0x20000

	// Offsets inside the recovery partition. These are part of the device
	// partition-table contract, not computed values: the boot environment
	// sits at the start, the factory image and the compressed bitstream at
	// fixed offsets behind the kernel.
	recoveryFactoryOffset   = 0x800000
	recoveryBitstreamOffset = 0x1400000
)

// Paths of required build-system utilities, relative to the source
// directory.
var utilityPaths = map[string]string{
	"mkenvimage": filepath.Join("build_dir", "host", "u-boot-2014.10", "tools", "mkenvimage"),
	"usign":      filepath.Join("staging_dir", "host", "bin", "usign"),
}

// Builder drives building and deployment for one configuration.
type Builder struct {
	Config *buildconfig.Config

	workingDir string
}

// New creates a builder for the given configuration.
func New(config *buildconfig.Config) *Builder {
	return &Builder{
		Config:     config,
		workingDir: filepath.Join(config.BuildDir(), sourceDirName),
	}
}

// WorkingDir returns the build-system source directory.
func (b *Builder) WorkingDir() string {
	return b.workingDir
}

// genericDir returns the build-system output directory for the platform
// target.
func (b *Builder) genericDir() string {
	return filepath.Join(b.workingDir, "bin", "targets", b.Config.Target())
}

// bitstreamPath returns the FPGA bitstream for the configured platform.
func (b *Builder) bitstreamPath() string {
	return filepath.Join(b.Config.BuildDir(), "platform", b.Config.Subtarget(), "system.bit")
}

// utility resolves a required build-system utility, failing when the tool
// has not been built yet.
func (b *Builder) utility(name string) (string, error) {
	relPath, ok := utilityPaths[name]
	if !ok {
		return "", fmt.Errorf("unknown utility (%s)", name)
	}

	path := filepath.Join(b.workingDir, relPath)
	exists, err := file.IsFile(path)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("missing utility (%s), build the firmware first", path)
	}
	return path, nil
}

// firmwareMTD returns the MTD device node of a production firmware slot.
func firmwareMTD(index int) (string, error) {
	switch index {
	case 1:
		return "/dev/mtd7", nil
	case 2:
		return "/dev/mtd8", nil
	default:
		return "", fmt.Errorf("unsupported firmware slot (%d)", index)
	}
}

// bitstreamMTDName returns the MTD partition name holding the bitstream of
// a firmware slot.
func bitstreamMTDName(index int) string {
	return fmt.Sprintf("fpga%d", index)
}

// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	gzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
)

const feedsTestIndex = `Package: firmware
Version: 2018-05-21-1
Source: package/firmware
Maintainer: dev@example.com
Filename: firmware_2018-05-21-1_arm.ipk
Description: Firmware metapackage

Package: libc
Version: 1.1.16
Filename: libc_1.1.16_arm.ipk
Description: C library
`

// feedsTestBuilder prepares a build tree with a stub usign and a package
// feed holding a firmware package.
func feedsTestBuilder(t *testing.T) (*Builder, *FeedImage, string) {
	buildDir := t.TempDir()
	config := testConfig()
	config.Build.Dir = buildDir

	binDir := filepath.Join(buildDir, "lede", "staging_dir", "host", "bin")
	assert.NoError(t, os.MkdirAll(binDir, 0o755))
	err := os.WriteFile(filepath.Join(binDir, "usign"), []byte("#!/bin/sh\nexit 0\n"), 0o755)
	assert.NoError(t, err)

	packagesDir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(packagesDir, "Packages"), []byte(feedsTestIndex), 0o644))
	assert.NoError(t, os.WriteFile(filepath.Join(packagesDir, "firmware_2018-05-21-1_arm.ipk"), []byte("ipk"), 0o644))

	sysupgrade := filepath.Join(packagesDir, "sysupgrade.tar")
	assert.NoError(t, os.WriteFile(sysupgrade, []byte("sysupgrade content"), 0o644))

	targetDir := t.TempDir()
	config.Local = map[string]string{"feeds": targetDir}

	image := &FeedImage{
		Key:        filepath.Join(buildDir, "lede", "key-build"),
		Packages:   packagesDir,
		Sysupgrade: sysupgrade,
	}
	return New(config), image, targetDir
}

func TestDeployFeeds(t *testing.T) {
	builder, image, targetDir := feedsTestBuilder(t)

	err := builder.deployFeeds(image)
	assert.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(targetDir, "Packages"))
	assert.NoError(t, err)
	assert.Contains(t, string(index), "Package: firmware\n")
	assert.NotContains(t, string(index), "Source:")
	assert.NotContains(t, string(index), "Maintainer:")
	assert.NotContains(t, string(index), "Package: libc")

	compressed, err := os.Open(filepath.Join(targetDir, "Packages.gz"))
	assert.NoError(t, err)
	defer compressed.Close()
	gr, err := gzip.NewReader(compressed)
	assert.NoError(t, err)
	decompressed, err := io.ReadAll(gr)
	assert.NoError(t, err)
	assert.Equal(t, index, decompressed)

	ipk, err := os.ReadFile(filepath.Join(targetDir, "firmware_2018-05-21-1_arm.ipk"))
	assert.NoError(t, err)
	assert.Equal(t, "ipk", string(ipk))

	tarball, err := os.ReadFile(filepath.Join(targetDir, "firmware_2018-05-21-1_arm.tar"))
	assert.NoError(t, err)
	assert.Equal(t, "sysupgrade content", string(tarball))
}

func TestDeployFeedsBaseIndex(t *testing.T) {
	builder, image, targetDir := feedsTestBuilder(t)

	base := filepath.Join(t.TempDir(), "base-index")
	baseRecord := "Package: older-firmware\nVersion: 2018-01-01-1\n"
	assert.NoError(t, os.WriteFile(base, []byte(baseRecord), 0o644))
	builder.Config.Deploy.FeedsBase = base

	err := builder.deployFeeds(image)
	assert.NoError(t, err)

	index, err := os.ReadFile(filepath.Join(targetDir, "Packages"))
	assert.NoError(t, err)
	assert.Contains(t, string(index), "Package: older-firmware\n")
	assert.Contains(t, string(index), "Package: firmware\n")
}

func TestDeployFeedsMissingFilename(t *testing.T) {
	builder, image, _ := feedsTestBuilder(t)

	err := os.WriteFile(filepath.Join(image.Packages, "Packages"),
		[]byte("Package: firmware\nVersion: 2018-05-21-1\n"), 0o644)
	assert.NoError(t, err)

	err = builder.deployFeeds(image)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no filename")
}

func TestDeployFeedsMissingFirmware(t *testing.T) {
	builder, image, _ := feedsTestBuilder(t)

	err := os.WriteFile(filepath.Join(image.Packages, "Packages"),
		[]byte("Package: libc\nVersion: 1.1.16\nFilename: libc_1.1.16_arm.ipk\n"), 0o644)
	assert.NoError(t, err)

	err = builder.deployFeeds(image)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing firmware package")
}

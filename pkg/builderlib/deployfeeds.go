// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/papampi/braiins-os/internal/file"
	"github.com/papampi/braiins-os/internal/logger"
	"github.com/papampi/braiins-os/internal/opkgfeed"
	"github.com/papampi/braiins-os/internal/shell"
)

const (
	feedsIndexName    = "Packages"
	feedsPackageAttr  = "Package"
	feedsFilenameAttr = "Filename"
	feedsFirmwarePkg  = "firmware"
)

// Index attributes stripped from the published feed.
var feedsExcludedAttrs = []string{"Source", "Maintainer"}

// deployFeeds publishes the firmware package feed: a signed index holding
// only the firmware package, the package itself and the sysupgrade
// tarball under the package file stem.
func (b *Builder) deployFeeds(image *FeedImage) error {
	targetDir, err := b.localTargetDir("feeds")
	if err != nil {
		return err
	}

	srcIndex := filepath.Join(image.Packages, feedsIndexName)
	dstIndex := filepath.Join(targetDir, feedsIndexName)

	packages, err := opkgfeed.ParseFile(srcIndex)
	if err != nil {
		return err
	}

	var firmware *opkgfeed.Package
	for _, pkg := range packages {
		if name, ok := pkg.Get(feedsPackageAttr); ok && name == feedsFirmwarePkg {
			firmware = pkg
			break
		}
	}
	if firmware == nil {
		return fmt.Errorf("missing firmware package in (%s)", srcIndex)
	}

	index := &bytes.Buffer{}
	if b.Config.Deploy.FeedsBase != "" {
		base, err := file.Read(b.Config.Deploy.FeedsBase)
		if err != nil {
			return fmt.Errorf("failed to read base feeds index (%s):\n%w", b.Config.Deploy.FeedsBase, err)
		}
		if base != "" {
			index.WriteString(base)
			index.WriteString("\n")
		}
	}
	err = opkgfeed.WriteRecord(index, firmware, feedsExcludedAttrs...)
	if err != nil {
		return err
	}
	err = file.Write(index.String(), dstIndex)
	if err != nil {
		return err
	}

	// sign the created index file
	usign, err := b.utility("usign")
	if err != nil {
		return err
	}
	_, _, err = shell.NewExecBuilder(usign, "-S", "-m", dstIndex, "-s", image.Key).
		ErrorStderrLines(1).
		ExecuteCaptureOutput()
	if err != nil {
		return fmt.Errorf("failed to sign feeds index:\n%w", err)
	}

	// compress signed index file
	sink := &dirSink{dir: targetDir}
	err = sink.Put(dstIndex, feedsIndexName+".gz", true)
	if err != nil {
		return err
	}

	firmwareIpk, ok := firmware.Get(feedsFilenameAttr)
	if !ok || firmwareIpk == "" {
		return fmt.Errorf("firmware package in (%s) has no filename", srcIndex)
	}

	logger.Log.Infof("Copying firmware package '%s'...", firmwareIpk)
	err = file.Copy(filepath.Join(image.Packages, firmwareIpk), filepath.Join(targetDir, firmwareIpk))
	if err != nil {
		return err
	}

	stem := strings.TrimSuffix(firmwareIpk, filepath.Ext(firmwareIpk))
	return file.Copy(image.Sysupgrade, filepath.Join(targetDir, stem+".tar"))
}

// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"fmt"
	"path/filepath"

	"github.com/papampi/braiins-os/buildconfig"
	"github.com/papampi/braiins-os/internal/file"
	"github.com/papampi/braiins-os/internal/logger"
)

// localTargetDir resolves the destination directory of a local target
// from the configuration and creates it when missing.
func (b *Builder) localTargetDir(name string) (string, error) {
	dir := b.Config.Local[name]
	if dir == "" {
		return "", &buildconfig.ConfigError{
			Attribute: "local." + name,
			Message:   fmt.Sprintf("missing path for local target '%s'", name),
		}
	}

	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve local target directory (%s):\n%w", dir, err)
	}
	err = file.EnsureDirExists(dir)
	if err != nil {
		return "", fmt.Errorf("failed to create local target directory (%s):\n%w", dir, err)
	}
	return dir, nil
}

// copyToSink copies the image files into the sink, compressing the ones
// listed in compressed and renaming them with a .gz suffix.
func copyToSink(sink Sink, uploads []uploadEntry, compressed ...string) error {
	compress := make(map[string]bool, len(compressed))
	for _, name := range compressed {
		compress[name] = true
	}
	for _, upload := range uploads {
		name := upload.remote
		if compress[name] {
			name += ".gz"
		}
		err := sink.Put(upload.local, name, compress[upload.remote])
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) copyLocalImage(targetName string, uploads []uploadEntry) error {
	dir, err := b.localTargetDir(targetName)
	if err != nil {
		return err
	}
	sink, err := NewDirSink(dir)
	if err != nil {
		return err
	}
	return copyToSink(sink, uploads)
}

// writeLocalUEnv creates uEnv.txt in the local target directory.
func (b *Builder) writeLocalUEnv(targetName string) error {
	dir, err := b.localTargetDir(targetName)
	if err != nil {
		return err
	}
	logger.Log.Infof("Creating '%s' in '%s'...", uEnvFileName, dir)
	return file.Write(string(uEnvContent(b.Config)), filepath.Join(dir, uEnvFileName))
}

// deployLocal writes the local parts of the plan: SD card mirrors,
// configuration files and conversion bundles.
func (b *Builder) deployLocal(plan *Plan) error {
	if plan.LocalSD != nil {
		err := b.copyLocalImage("sd", plan.LocalSD.uploadSet())
		if err != nil {
			return err
		}
	}
	if plan.LocalSDConfig {
		err := b.writeLocalUEnv("sd_config")
		if err != nil {
			return err
		}
	}
	if plan.LocalSDRecovery != nil {
		err := b.copyLocalImage("sd_recovery", plan.LocalSDRecovery.uploadSet())
		if err != nil {
			return err
		}
	}
	if plan.LocalSDRecoveryConfig {
		err := b.writeLocalUEnv("sd_recovery_config")
		if err != nil {
			return err
		}
	}
	if plan.LocalNandRecovery != nil {
		err := b.copyLocalImage("nand_recovery", plan.LocalNandRecovery.uploadSet())
		if err != nil {
			return err
		}
	}

	for version := 1; version <= conversionVersions; version++ {
		image := plan.Conversions[version]
		if image == nil {
			continue
		}
		targetName := fmt.Sprintf("nand_dm_v%d", version)
		dir, err := b.localTargetDir(targetName)
		if err != nil {
			return err
		}
		sink, err := NewDirSink(dir)
		if err != nil {
			return err
		}
		err = b.buildConversionBundle(sink, image, version)
		if err != nil {
			return err
		}
	}
	return nil
}

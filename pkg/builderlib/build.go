// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/papampi/braiins-os/internal/file"
	"github.com/papampi/braiins-os/internal/logger"
	"github.com/papampi/braiins-os/internal/shell"
)

const (
	buildKeyName    = "key-build"
	buildKeyPubName = "key-build.pub"
)

// prepareKeys installs the configured signing keypair into the source
// tree. They sign packages and the sysupgrade tarball; when no keys are
// configured the build system generates its own.
func (b *Builder) prepareKeys() error {
	keys := []struct {
		source string
		name   string
	}{
		{b.Config.Build.Key.Secret, buildKeyName},
		{b.Config.Build.Key.Public, buildKeyPubName},
	}
	for _, key := range keys {
		if key.source == "" {
			continue
		}
		err := file.Copy(key.source, filepath.Join(b.workingDir, key.name))
		if err != nil {
			return fmt.Errorf("failed to install build key (%s):\n%w", key.name, err)
		}
	}
	return nil
}

// Build runs the make-based build system for the current configuration.
// Build targets are aliases from the configuration, mapped to their real
// build-system package targets.
func (b *Builder) Build(targets []string) error {
	logger.Log.Info("Start building firmware...")

	err := b.prepareKeys()
	if err != nil {
		return err
	}

	args := []string{fmt.Sprintf("-j%d", b.Config.Build.Jobs)}
	if b.Config.Build.Verbose {
		args = append(args, "V=s")
	}
	for _, target := range targets {
		alias, ok := b.Config.Build.Aliases[target]
		if !ok {
			return fmt.Errorf("unknown build target alias (%s)", target)
		}
		args = append(args, alias+"/install")
	}

	builder := shell.NewExecBuilder("make", args...).
		WorkingDirectory(b.workingDir).
		LogLevel(logrus.DebugLevel, logrus.WarnLevel).
		ErrorStderrLines(5)

	if b.Config.Build.EnvPath != "" {
		envPath, err := filepath.Abs(b.Config.Build.EnvPath)
		if err != nil {
			return fmt.Errorf("failed to resolve build PATH entry (%s):\n%w", b.Config.Build.EnvPath, err)
		}
		builder = builder.EnvironmentVariables([]string{
			fmt.Sprintf("PATH=%s:%s", envPath, os.Getenv("PATH")),
		})
	}

	// the root fs access rights break with a stricter umask
	previous := unix.Umask(0o022)
	defer unix.Umask(previous)

	return builder.Execute()
}

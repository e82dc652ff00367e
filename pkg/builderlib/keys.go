// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"fmt"
	"path/filepath"

	"github.com/papampi/braiins-os/internal/logger"
	"github.com/papampi/braiins-os/internal/shell"
)

// GenerateKey generates a signing keypair compatible with the build
// system.
func (b *Builder) GenerateKey(secretPath string, publicPath string) error {
	logger.Log.Info("Generating key pair...")

	usign, err := b.utility("usign")
	if err != nil {
		return err
	}

	secretPath, err = filepath.Abs(secretPath)
	if err != nil {
		return fmt.Errorf("failed to resolve secret key path:\n%w", err)
	}
	publicPath, err = filepath.Abs(publicPath)
	if err != nil {
		return fmt.Errorf("failed to resolve public key path:\n%w", err)
	}

	err = shell.NewExecBuilder(usign, "-G", "-s", secretPath, "-p", publicPath).
		ErrorStderrLines(1).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to generate key pair:\n%w", err)
	}
	return nil
}

// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

// Package bootenv wraps the external mkenvimage utility, which turns a
// key=value text stream into the fixed-size binary blob U-Boot reads from
// flash.
package bootenv

import (
	"fmt"
	"strconv"

	"github.com/papampi/braiins-os/internal/shell"
	"github.com/sirupsen/logrus"
)

// MakeImage feeds the key=value input to mkenvimage and returns the
// generated blob of exactly size bytes. The -r flag selects the redundant
// environment format used by the miner partitions.
func MakeImage(mkenvimage string, input []byte, size int) ([]byte, error) {
	stdout, _, err := shell.NewExecBuilder(mkenvimage, "-r", "-p", "0", "-s", strconv.Itoa(size), "-").
		Stdin(string(input)).
		LogLevel(shell.LogDisabledLevel, logrus.DebugLevel).
		ErrorStderrLines(1).
		ExecuteCaptureOutput()
	if err != nil {
		return nil, fmt.Errorf("failed to generate boot environment image:\n%w", err)
	}

	blob := []byte(stdout)
	if len(blob) != size {
		return nil, fmt.Errorf("boot environment image has size %d, expected %d", len(blob), size)
	}
	return blob, nil
}

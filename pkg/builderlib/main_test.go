// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"os"
	"testing"

	"github.com/papampi/braiins-os/internal/logger"
)

var logMessagesHook *logger.MemoryLogHook

func TestMain(m *testing.M) {
	logger.InitStderrLog()

	logMessagesHook = logger.NewMemoryLogHook()
	logger.Log.Hooks.Add(logMessagesHook)

	retVal := m.Run()

	os.Exit(retVal)
}

// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

// Package shell runs local commands (make, mkenvimage, usign, ...) with
// consistent logging and error reporting.
package shell

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogDisabledLevel mutes one of the output streams in ExecBuilder.LogLevel.
const LogDisabledLevel = logrus.Level(255)

// Execute runs the command and returns its captured stdout and stderr.
func Execute(command string, args ...string) (stdout string, stderr string, err error) {
	return NewExecBuilder(command, args...).ExecuteCaptureOutput()
}

// ExecuteLive runs the command, streaming its output to the logger.
func ExecuteLive(squashErrors bool, command string, args ...string) error {
	stderrLevel := logrus.WarnLevel
	if squashErrors {
		stderrLevel = logrus.DebugLevel
	}
	return NewExecBuilder(command, args...).
		LogLevel(logrus.DebugLevel, stderrLevel).
		Execute()
}

// ExecuteLiveWithErr runs the command and, on failure, includes the last
// stderrLines lines of stderr in the returned error.
func ExecuteLiveWithErr(stderrLines int, command string, args ...string) error {
	return NewExecBuilder(command, args...).
		LogLevel(logrus.DebugLevel, logrus.DebugLevel).
		ErrorStderrLines(stderrLines).
		Execute()
}

func quoteArgs(command string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, arg := range append([]string{command}, args...) {
		if strings.ContainsAny(arg, " \t") {
			arg = fmt.Sprintf("%q", arg)
		}
		parts = append(parts, arg)
	}
	return strings.Join(parts, " ")
}

// FindUtility resolves a required external tool on PATH.
func FindUtility(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("missing required utility (%s):\n%w", name, err)
	}
	return path, nil
}

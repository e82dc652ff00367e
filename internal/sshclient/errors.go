// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package sshclient

import (
	"fmt"
	"strings"
)

// CommandError reports a remote command that exited with non-zero status.
type CommandError struct {
	Cmd        string
	ExitStatus int
	Stderr     string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("remote command (%s) exited with status %d", e.Cmd, e.ExitStatus)
	stderr := strings.TrimSpace(e.Stderr)
	if stderr != "" {
		msg += ":\n" + stderr
	}
	return msg
}

// AuthError reports that every non-interactive authentication strategy
// failed for the given host.
type AuthError struct {
	Host string
	User string
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication to %s@%s failed: %v", e.User, e.Host, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

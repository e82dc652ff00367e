// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package sshclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/papampi/braiins-os/internal/logger"
	"golang.org/x/crypto/ssh"
)

// Run executes a command on the device and returns its captured output.
// A non-zero exit status is reported as *CommandError.
func (c *Client) Run(args ...string) (stdout []byte, stderr []byte, err error) {
	cmd := strings.Join(args, " ")
	logger.Log.Debugf("Remotely running command (%s)", cmd)

	session, err := c.conn.NewSession()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session for (%s):\n%w", cmd, err)
	}
	defer session.Close()

	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	session.Stdout = stdoutBuf
	session.Stderr = stderrBuf

	err = session.Run(cmd)
	if err != nil {
		return stdoutBuf.Bytes(), stderrBuf.Bytes(), commandError(cmd, stderrBuf.String(), err)
	}
	return stdoutBuf.Bytes(), stderrBuf.Bytes(), nil
}

// RemoteProc is a command running on the device with its stdin open for
// writing. Closing it shuts down the write side and then checks the
// command's exit status, so the status check happens even when the caller
// aborts mid-write.
type RemoteProc struct {
	cmd     string
	session *ssh.Session
	stdin   io.WriteCloser
	stderr  *bytes.Buffer
	closed  bool
}

// Pipe starts a command on the device and returns its stdin stream.
func (c *Client) Pipe(args ...string) (*RemoteProc, error) {
	cmd := strings.Join(args, " ")
	logger.Log.Debugf("Remotely running piped command (%s)", cmd)

	session, err := c.conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open session for (%s):\n%w", cmd, err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to open stdin for (%s):\n%w", cmd, err)
	}

	stderrBuf := &bytes.Buffer{}
	session.Stderr = stderrBuf

	err = session.Start(cmd)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to start (%s):\n%w", cmd, err)
	}

	return &RemoteProc{
		cmd:     cmd,
		session: session,
		stdin:   stdin,
		stderr:  stderrBuf,
	}, nil
}

func (p *RemoteProc) Write(data []byte) (int, error) {
	return p.stdin.Write(data)
}

// Close finishes the piped command: it closes the write side, waits for the
// command and validates its exit status.
func (p *RemoteProc) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	closeErr := p.stdin.Close()
	waitErr := p.session.Wait()
	p.session.Close()

	if waitErr != nil {
		return commandError(p.cmd, p.stderr.String(), waitErr)
	}
	return closeErr
}

func commandError(cmd string, stderr string, err error) error {
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return &CommandError{
			Cmd:        cmd,
			ExitStatus: exitErr.ExitStatus(),
			Stderr:     stderr,
		}
	}
	return fmt.Errorf("remote command (%s) failed:\n%w", cmd, err)
}

// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"io"

	"github.com/papampi/braiins-os/internal/sshclient"
)

// Transport abstracts the connection to the deployed device. The
// production implementation wraps an SSH session; tests substitute an
// in-memory recorder.
type Transport interface {
	// Run executes a remote command and waits for it to finish.
	Run(args ...string) (stdout []byte, stderr []byte, err error)
	// Pipe starts a remote command and returns a writer connected to
	// its standard input. Closing the writer waits for the command.
	Pipe(args ...string) (io.WriteCloser, error)
	// Upload copies a local file to the remote path.
	Upload(localPath string, remotePath string, progress sshclient.ProgressFunc) error
	// WriteRemote creates a remote file with the given content.
	WriteRemote(content []byte, remotePath string) error
	// RemoteExists reports whether the remote path exists.
	RemoteExists(remotePath string) (bool, error)
	// RemoveRemote deletes a remote file.
	RemoveRemote(remotePath string) error
}

type sshTransport struct {
	client *sshclient.Client
}

// NewSSHTransport adapts a connected SSH client to the Transport
// interface.
func NewSSHTransport(client *sshclient.Client) Transport {
	return &sshTransport{client: client}
}

func (t *sshTransport) Run(args ...string) ([]byte, []byte, error) {
	return t.client.Run(args...)
}

func (t *sshTransport) Pipe(args ...string) (io.WriteCloser, error) {
	return t.client.Pipe(args...)
}

func (t *sshTransport) Upload(localPath string, remotePath string, progress sshclient.ProgressFunc) error {
	return t.client.Upload(localPath, remotePath, progress)
}

func (t *sshTransport) WriteRemote(content []byte, remotePath string) error {
	return t.client.WriteRemote(content, remotePath)
}

func (t *sshTransport) RemoteExists(remotePath string) (bool, error) {
	return t.client.RemoteExists(remotePath)
}

func (t *sshTransport) RemoveRemote(remotePath string) error {
	return t.client.RemoveRemote(remotePath)
}

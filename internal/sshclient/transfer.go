// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package sshclient

import (
	"fmt"
	"io"
	"os"

	"github.com/papampi/braiins-os/internal/logger"
	"github.com/pkg/sftp"
)

// ProgressFunc receives the number of bytes written so far and the total
// size (0 when unknown). Advisory only.
type ProgressFunc func(written int64, total int64)

const transferChunkSize = 32 * 1024

// SFTP returns the file-transfer session, opening it on first use.
func (c *Client) SFTP() (*sftp.Client, error) {
	if c.sftp == nil {
		session, err := sftp.NewClient(c.conn)
		if err != nil {
			return nil, fmt.Errorf("failed to open SFTP session:\n%w", err)
		}
		c.sftp = session
	}
	return c.sftp, nil
}

// Upload copies a local file to the device, reporting progress per chunk.
func (c *Client) Upload(localPath string, remotePath string, progress ProgressFunc) error {
	session, err := c.SFTP()
	if err != nil {
		return err
	}

	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file (%s):\n%w", localPath, err)
	}
	defer localFile.Close()

	info, err := localFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat local file (%s):\n%w", localPath, err)
	}

	remoteFile, err := session.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file (%s):\n%w", remotePath, err)
	}
	defer remoteFile.Close()

	err = copyWithProgress(remoteFile, localFile, info.Size(), progress)
	if err != nil {
		return fmt.Errorf("failed to upload (%s) to (%s):\n%w", localPath, remotePath, err)
	}
	return remoteFile.Close()
}

// WriteRemote stores content in a remote file.
func (c *Client) WriteRemote(content []byte, remotePath string) error {
	session, err := c.SFTP()
	if err != nil {
		return err
	}

	logger.Log.Debugf("Writing remote file (%s)", remotePath)

	remoteFile, err := session.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file (%s):\n%w", remotePath, err)
	}
	defer remoteFile.Close()

	_, err = remoteFile.Write(content)
	if err != nil {
		return fmt.Errorf("failed to write remote file (%s):\n%w", remotePath, err)
	}
	return remoteFile.Close()
}

// RemoteExists reports whether a remote path exists.
func (c *Client) RemoteExists(remotePath string) (bool, error) {
	session, err := c.SFTP()
	if err != nil {
		return false, err
	}

	_, err = session.Stat(remotePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat remote path (%s):\n%w", remotePath, err)
}

// RemoveRemote deletes a remote file.
func (c *Client) RemoveRemote(remotePath string) error {
	session, err := c.SFTP()
	if err != nil {
		return err
	}

	err = session.Remove(remotePath)
	if err != nil {
		return fmt.Errorf("failed to remove remote file (%s):\n%w", remotePath, err)
	}
	return nil
}

func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress ProgressFunc) error {
	var written int64
	buf := make([]byte, transferChunkSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			_, writeErr := dst.Write(buf[:n])
			if writeErr != nil {
				return writeErr
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

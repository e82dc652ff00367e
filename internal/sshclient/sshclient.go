// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

// Package sshclient is the remote transport used for firmware deployment.
// It runs commands on the device, streams data into running commands and
// transfers files over SFTP.
//
// Authentication tries, in order: local key identities (agent and the
// default key files), none-authentication (the recovery system has no
// password set), the configured password, and finally an interactive prompt.
package sshclient

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/papampi/braiins-os/internal/logger"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/term"
)

const defaultPort = "22"

// PasswordPrompt reads a password from the operator. Overridable in tests.
var PasswordPrompt = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password:\n%w", err)
	}
	return string(password), nil
}

// Client is a connected SSH session to one device. It is not safe for
// concurrent use; deployment runs are strictly sequential.
type Client struct {
	host string
	user string

	conn *ssh.Client
	sftp *sftp.Client
}

// Connect opens an SSH connection to host, walking the authentication
// ladder until one strategy succeeds.
func Connect(host string, user string, password string) (*Client, error) {
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, defaultPort)
	}

	hostKeyCallback := warnOnUnknownHostKey(host)

	tryConnect := func(auth []ssh.AuthMethod) (*ssh.Client, error) {
		config := &ssh.ClientConfig{
			User:            user,
			Auth:            auth,
			HostKeyCallback: hostKeyCallback,
		}
		return ssh.Dial("tcp", addr, config)
	}

	logger.Log.Debugf("Connecting to %s@%s", user, addr)

	// Key-based identities first.
	if keyAuth := localKeyAuth(); keyAuth != nil {
		conn, err := tryConnect([]ssh.AuthMethod{keyAuth})
		if err == nil {
			return newClient(host, user, conn), nil
		}
		logger.Log.Debugf("Key authentication failed: %v", err)
	}

	// The recovery system accepts none-authentication.
	conn, err := tryConnect(nil)
	if err == nil {
		return newClient(host, user, conn), nil
	}
	logger.Log.Debugf("None authentication failed: %v", err)

	// Configured password, then prompt the operator until it works.
	for {
		conn, err = tryConnect([]ssh.AuthMethod{ssh.Password(password)})
		if err == nil {
			return newClient(host, user, conn), nil
		}
		if !isAuthFailure(err) {
			return nil, fmt.Errorf("failed to connect to %s:\n%w", addr, err)
		}
		logger.Log.Warnf("Authentication to %s@%s failed", user, host)
		password, err = PasswordPrompt(fmt.Sprintf("%s@%s password: ", user, host))
		if err != nil {
			return nil, &AuthError{Host: host, User: user, Err: err}
		}
	}
}

func newClient(host string, user string, conn *ssh.Client) *Client {
	return &Client{host: host, user: user, conn: conn}
}

// Close releases the SFTP session (when open) and the SSH connection.
func (c *Client) Close() error {
	if c.sftp != nil {
		c.sftp.Close()
		c.sftp = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func isAuthFailure(err error) bool {
	return err != nil && strings.Contains(err.Error(), "unable to authenticate")
}

func localKeyAuth() ssh.AuthMethod {
	var signers []ssh.Signer

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err == nil {
			agentSigners, err := agent.NewClient(conn).Signers()
			if err == nil {
				signers = append(signers, agentSigners...)
			}
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		for _, name := range []string{"id_ed25519", "id_rsa"} {
			keyData, err := os.ReadFile(filepath.Join(home, ".ssh", name))
			if err != nil {
				continue
			}
			signer, err := ssh.ParsePrivateKey(keyData)
			if err != nil {
				continue
			}
			signers = append(signers, signer)
		}
	}

	if len(signers) == 0 {
		return nil
	}
	return ssh.PublicKeys(signers...)
}

// Devices come and go with random host keys after every flash, so unknown
// keys are logged instead of rejected.
func warnOnUnknownHostKey(host string) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		logger.Log.Debugf("Host key for %s: %s %s", host, key.Type(),
			ssh.FingerprintSHA256(key))
		return nil
	}
}

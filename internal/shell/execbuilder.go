// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package shell

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/papampi/braiins-os/internal/logger"
	"github.com/sirupsen/logrus"
)

// ExecBuilder configures and runs a single local command.
type ExecBuilder struct {
	command          string
	args             []string
	workingDirectory string
	environment      []string
	stdin            io.Reader
	stdoutLogLevel   logrus.Level
	stderrLogLevel   logrus.Level
	errorStderrLines int
}

func NewExecBuilder(command string, args ...string) ExecBuilder {
	return ExecBuilder{
		command:        command,
		args:           args,
		stdoutLogLevel: logrus.DebugLevel,
		stderrLogLevel: logrus.DebugLevel,
	}
}

// WorkingDirectory sets the directory the command runs in.
func (b ExecBuilder) WorkingDirectory(dir string) ExecBuilder {
	b.workingDirectory = dir
	return b
}

// EnvironmentVariables appends NAME=value entries to the inherited
// environment.
func (b ExecBuilder) EnvironmentVariables(env []string) ExecBuilder {
	b.environment = append(os.Environ(), env...)
	return b
}

// Stdin feeds the given string to the command's stdin.
func (b ExecBuilder) Stdin(value string) ExecBuilder {
	b.stdin = strings.NewReader(value)
	return b
}

// StdinReader feeds the given reader to the command's stdin.
func (b ExecBuilder) StdinReader(reader io.Reader) ExecBuilder {
	b.stdin = reader
	return b
}

// LogLevel sets the log levels for the command's stdout and stderr streams.
func (b ExecBuilder) LogLevel(stdoutLevel logrus.Level, stderrLevel logrus.Level) ExecBuilder {
	b.stdoutLogLevel = stdoutLevel
	b.stderrLogLevel = stderrLevel
	return b
}

// ErrorStderrLines includes the last n stderr lines in a failure error.
func (b ExecBuilder) ErrorStderrLines(lines int) ExecBuilder {
	b.errorStderrLines = lines
	return b
}

// Execute runs the command, logging output line by line.
func (b ExecBuilder) Execute() error {
	_, _, err := b.run(false)
	return err
}

// ExecuteCaptureOutput runs the command and returns captured stdout and
// stderr.
func (b ExecBuilder) ExecuteCaptureOutput() (stdout string, stderr string, err error) {
	return b.run(true)
}

func (b ExecBuilder) run(capture bool) (stdout string, stderr string, err error) {
	logger.Log.Debugf("Executing: %s", quoteArgs(b.command, b.args))

	cmd := exec.Command(b.command, b.args...)
	cmd.Dir = b.workingDirectory
	cmd.Env = b.environment
	cmd.Stdin = b.stdin

	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}

	var wait sync.WaitGroup
	if capture {
		cmd.Stdout = stdoutBuf
	} else {
		stdoutPipe, pipeErr := cmd.StdoutPipe()
		if pipeErr != nil {
			return "", "", fmt.Errorf("failed to open stdout pipe for %s:\n%w", b.command, pipeErr)
		}
		wait.Add(1)
		go func() {
			defer wait.Done()
			logStream(b.stdoutLogLevel, stdoutPipe)
		}()
	}

	stderrPipe, pipeErr := cmd.StderrPipe()
	if pipeErr != nil {
		return "", "", fmt.Errorf("failed to open stderr pipe for %s:\n%w", b.command, pipeErr)
	}
	wait.Add(1)
	go func() {
		defer wait.Done()
		tee := io.TeeReader(stderrPipe, stderrBuf)
		logStream(b.stderrLogLevel, tee)
	}()

	if startErr := cmd.Start(); startErr != nil {
		return "", "", fmt.Errorf("failed to start %s:\n%w", b.command, startErr)
	}
	wait.Wait()
	runErr := cmd.Wait()

	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runErr != nil {
		errStderr := lastLines(stderr, b.errorStderrLines)
		if errStderr != "" {
			return stdout, stderr, fmt.Errorf("%s failed:\n%s\n%w", b.command, errStderr, runErr)
		}
		return stdout, stderr, fmt.Errorf("%s failed:\n%w", b.command, runErr)
	}
	return stdout, stderr, nil
}

func logStream(level logrus.Level, reader io.Reader) {
	if level == LogDisabledLevel {
		_, _ = io.Copy(io.Discard, reader)
		return
	}
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		logger.Log.Log(level, scanner.Text())
	}
}

func lastLines(output string, count int) string {
	if count <= 0 || output == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) > count {
		lines = lines[len(lines)-count:]
	}
	return strings.Join(lines, "\n")
}

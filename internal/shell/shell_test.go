// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package shell

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecuteCaptureOutput(t *testing.T) {
	stdout, stderr, err := NewExecBuilder("sh", "-c", "echo out; echo err >&2").
		ExecuteCaptureOutput()
	assert.NoError(t, err)
	assert.Equal(t, "out\n", stdout)
	assert.Equal(t, "err\n", stderr)
}

func TestExecuteCaptureOutputStdin(t *testing.T) {
	stdout, _, err := NewExecBuilder("cat").
		Stdin("piped input").
		ExecuteCaptureOutput()
	assert.NoError(t, err)
	assert.Equal(t, "piped input", stdout)
}

func TestExecuteFailureIncludesStderr(t *testing.T) {
	err := NewExecBuilder("sh", "-c", "echo first >&2; echo second >&2; exit 3").
		ErrorStderrLines(1).
		Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "second")
	assert.NotContains(t, err.Error(), "first")
}

func TestExecuteMissingCommand(t *testing.T) {
	err := NewExecBuilder("definitely-not-a-command").Execute()
	assert.Error(t, err)
}

func TestExecuteWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	stdout, _, err := NewExecBuilder("pwd").
		WorkingDirectory(dir).
		ExecuteCaptureOutput()
	assert.NoError(t, err)
	assert.Equal(t, dir, strings.TrimSpace(stdout))
}

func TestFindUtility(t *testing.T) {
	_, err := FindUtility("sh")
	assert.NoError(t, err)

	_, err = FindUtility("definitely-not-a-utility")
	assert.Error(t, err)
}

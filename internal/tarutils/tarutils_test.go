// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package tarutils

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	gzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
)

func writeTestFile(t *testing.T, name string, content []byte) string {
	path := filepath.Join(t.TempDir(), name)
	err := os.WriteFile(path, content, 0o644)
	assert.NoError(t, err)
	return path
}

func readEntries(t *testing.T, archive []byte) map[string]*bytes.Buffer {
	entries := make(map[string]*bytes.Buffer)
	tr := tar.NewReader(bytes.NewReader(archive))
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		assert.NoError(t, err)
		content := &bytes.Buffer{}
		_, err = io.Copy(content, tr)
		assert.NoError(t, err)
		entries[header.Name] = content
	}
	return entries
}

func TestAddFile(t *testing.T) {
	content := []byte("kernel image")
	path := writeTestFile(t, "fit.itb", content)

	archive := &bytes.Buffer{}
	tw := tar.NewWriter(archive)
	err := AddFile(tw, path, "fit.itb")
	assert.NoError(t, err)
	assert.NoError(t, tw.Close())

	entries := readEntries(t, archive.Bytes())
	assert.Equal(t, content, entries["fit.itb"].Bytes())
}

func TestAddCompressedFileEntrySize(t *testing.T) {
	content := bytes.Repeat([]byte("bitstream"), 4096)
	path := writeTestFile(t, "system.bit", content)

	archive := &bytes.Buffer{}
	tw := tar.NewWriter(archive)
	err := AddCompressedFile(tw, path, "system.bit.gz")
	assert.NoError(t, err)
	assert.NoError(t, tw.Close())

	tr := tar.NewReader(bytes.NewReader(archive.Bytes()))
	header, err := tr.Next()
	assert.NoError(t, err)
	assert.Equal(t, "system.bit.gz", header.Name)

	compressed := &bytes.Buffer{}
	_, err = io.Copy(compressed, tr)
	assert.NoError(t, err)

	// the entry size is the compressed length, not the original one
	assert.Equal(t, int64(compressed.Len()), header.Size)
	assert.Less(t, header.Size, int64(len(content)))

	gr, err := gzip.NewReader(compressed)
	assert.NoError(t, err)
	decompressed, err := io.ReadAll(gr)
	assert.NoError(t, err)
	assert.Equal(t, content, decompressed)
}

func TestAddBytes(t *testing.T) {
	archive := &bytes.Buffer{}
	tw := tar.NewWriter(archive)
	err := AddBytes(tw, []byte("#!/bin/sh\n"), "stage2.sh", 0o755)
	assert.NoError(t, err)
	assert.NoError(t, tw.Close())

	tr := tar.NewReader(bytes.NewReader(archive.Bytes()))
	header, err := tr.Next()
	assert.NoError(t, err)
	assert.Equal(t, "stage2.sh", header.Name)
	assert.Equal(t, int64(0o755), header.Mode)
}

func TestOpenMember(t *testing.T) {
	kernel := []byte("kernel volume")
	root := bytes.Repeat([]byte("rootfs"), 1000)

	archive := &bytes.Buffer{}
	tw := tar.NewWriter(archive)
	assert.NoError(t, AddBytes(tw, kernel, "sysupgrade-miner-nand/kernel", 0o644))
	assert.NoError(t, AddBytes(tw, root, "sysupgrade-miner-nand/root", 0o644))
	assert.NoError(t, tw.Close())

	path := writeTestFile(t, "sysupgrade.tar", archive.Bytes())

	member, err := OpenMember(path, "sysupgrade-miner-nand/root")
	assert.NoError(t, err)
	defer member.Close()

	assert.Equal(t, int64(len(root)), member.Size)
	content, err := io.ReadAll(member.Reader)
	assert.NoError(t, err)
	assert.Equal(t, root, content)
}

func TestOpenMemberMissing(t *testing.T) {
	archive := &bytes.Buffer{}
	tw := tar.NewWriter(archive)
	assert.NoError(t, AddBytes(tw, []byte("x"), "present", 0o644))
	assert.NoError(t, tw.Close())

	path := writeTestFile(t, "archive.tar", archive.Bytes())

	_, err := OpenMember(path, "absent")
	assert.Error(t, err)
}

// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

// Package tarutils handles the tar archives used by deployment: reading
// volume images out of sysupgrade tarballs and composing the stage-2
// conversion archive.
package tarutils

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	gzip "github.com/klauspost/pgzip"
)

// Member is one entry opened inside a tar archive.
type Member struct {
	Size   int64
	Reader io.Reader

	file *os.File
}

func (m *Member) Close() error {
	return m.file.Close()
}

// OpenMember finds the named entry inside a (plain, uncompressed) tar
// archive and returns a reader positioned at its content.
func OpenMember(archivePath string, name string) (*Member, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive (%s):\n%w", archivePath, err)
	}

	tr := tar.NewReader(f)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to read archive (%s):\n%w", archivePath, err)
		}
		if header.Name == name {
			return &Member{Size: header.Size, Reader: tr, file: f}, nil
		}
	}

	f.Close()
	return nil, fmt.Errorf("archive (%s) has no member (%s)", archivePath, name)
}

// AddFile appends a regular file to the archive under the given name.
func AddFile(tw *tar.Writer, path string, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file (%s):\n%w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file (%s):\n%w", path, err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to create header for (%s):\n%w", path, err)
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write header for (%s):\n%w", name, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to add (%s) to archive:\n%w", path, err)
	}
	return nil
}

// AddCompressedFile gzips the file in memory and appends the compressed
// bytes under the given name. The entry size is the compressed length, so
// compression has to finish before the header is written.
func AddCompressedFile(tw *tar.Writer, path string, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file (%s):\n%w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file (%s):\n%w", path, err)
	}

	compressed := &bytes.Buffer{}
	gw := gzip.NewWriter(compressed)
	if _, err := io.Copy(gw, f); err != nil {
		return fmt.Errorf("failed to compress (%s):\n%w", path, err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to compress (%s):\n%w", path, err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to create header for (%s):\n%w", path, err)
	}
	header.Name = name
	header.Size = int64(compressed.Len())

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write header for (%s):\n%w", name, err)
	}
	if _, err := io.Copy(tw, compressed); err != nil {
		return fmt.Errorf("failed to add (%s) to archive:\n%w", name, err)
	}
	return nil
}

// AddBytes appends an in-memory blob to the archive.
func AddBytes(tw *tar.Writer, content []byte, name string, mode int64) error {
	header := &tar.Header{
		Name:    name,
		Size:    int64(len(content)),
		Mode:    mode,
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write header for (%s):\n%w", name, err)
	}
	if _, err := tw.Write(content); err != nil {
		return fmt.Errorf("failed to add (%s) to archive:\n%w", name, err)
	}
	return nil
}

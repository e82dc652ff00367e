// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	gzip "github.com/klauspost/pgzip"

	"github.com/papampi/braiins-os/internal/file"
	"github.com/papampi/braiins-os/internal/logger"
)

// Sink receives deployed artifacts under their destination names.
type Sink interface {
	// Put copies a local file into the sink, optionally gzip compressing
	// it on the way.
	Put(localPath string, name string, compress bool) error
	// PutBytes stores generated content into the sink.
	PutBytes(content []byte, name string, compress bool) error
}

// dirSink writes artifacts into a local directory.
type dirSink struct {
	dir string
}

// NewDirSink returns a sink writing into the given directory, creating it
// when needed.
func NewDirSink(dir string) (*dirSink, error) {
	err := file.EnsureDirExists(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create target directory (%s):\n%w", dir, err)
	}
	return &dirSink{dir: dir}, nil
}

// Sub returns a sink for a subdirectory of this sink.
func (s *dirSink) Sub(name string) (*dirSink, error) {
	return NewDirSink(filepath.Join(s.dir, name))
}

func (s *dirSink) Put(localPath string, name string, compress bool) error {
	logger.Log.Infof("Copying '%s' to '%s'...", name, s.dir)

	source, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open (%s):\n%w", localPath, err)
	}
	defer source.Close()

	return s.write(source, name, compress)
}

func (s *dirSink) PutBytes(content []byte, name string, compress bool) error {
	logger.Log.Infof("Copying '%s' to '%s'...", name, s.dir)
	return s.write(bytes.NewReader(content), name, compress)
}

func (s *dirSink) write(source io.Reader, name string, compress bool) error {
	targetPath := filepath.Join(s.dir, name)
	target, err := os.Create(targetPath)
	if err != nil {
		return fmt.Errorf("failed to create (%s):\n%w", targetPath, err)
	}

	var destination io.Writer = target
	var compressor *gzip.Writer
	if compress {
		compressor = gzip.NewWriter(target)
		destination = compressor
	}

	_, err = io.Copy(destination, source)
	if err == nil && compressor != nil {
		err = compressor.Close()
	}
	closeErr := target.Close()
	if err != nil {
		return fmt.Errorf("failed to write (%s):\n%w", targetPath, err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close (%s):\n%w", targetPath, closeErr)
	}
	return nil
}

// remoteSink uploads artifacts through the transport into a directory on
// the device.
type remoteSink struct {
	transport Transport
	dir       string
}

// NewRemoteSink returns a sink writing into the given remote directory.
// The directory must already exist on the device.
func NewRemoteSink(transport Transport, dir string) *remoteSink {
	return &remoteSink{transport: transport, dir: dir}
}

func (s *remoteSink) Put(localPath string, name string, compress bool) error {
	if compress {
		content, err := os.ReadFile(localPath)
		if err != nil {
			return fmt.Errorf("failed to read (%s):\n%w", localPath, err)
		}
		return s.PutBytes(content, name, true)
	}

	logger.Log.Infof("Uploading '%s'...", name)
	err := s.transport.Upload(localPath, path.Join(s.dir, name), nil)
	if err != nil {
		return fmt.Errorf("failed to upload (%s):\n%w", name, err)
	}
	return nil
}

func (s *remoteSink) PutBytes(content []byte, name string, compress bool) error {
	if compress {
		buffer := &bytes.Buffer{}
		compressor := gzip.NewWriter(buffer)
		_, err := compressor.Write(content)
		if err == nil {
			err = compressor.Close()
		}
		if err != nil {
			return fmt.Errorf("failed to compress (%s):\n%w", name, err)
		}
		content = buffer.Bytes()
	}

	logger.Log.Infof("Uploading '%s'...", name)
	err := s.transport.WriteRemote(content, path.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("failed to upload (%s):\n%w", name, err)
	}
	return nil
}

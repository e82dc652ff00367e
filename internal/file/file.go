// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

// Package file contains the small filesystem helpers shared by the build and
// deployment code.
package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/papampi/braiins-os/internal/logger"
)

// Read returns the whole content of the file as a string.
func Read(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file (%s):\n%w", path, err)
	}
	return string(content), nil
}

// Write stores the string content in the file, truncating any previous
// content.
func Write(content string, path string) error {
	err := os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		return fmt.Errorf("failed to write file (%s):\n%w", path, err)
	}
	return nil
}

// PathExists reports whether the path exists at all.
func PathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// IsFile reports whether the path exists and is a regular file.
func IsFile(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether the path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// EnsureDirExists creates the directory (and parents) if needed.
func EnsureDirExists(path string) error {
	err := os.MkdirAll(path, os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create directory (%s):\n%w", path, err)
	}
	return nil
}

// Copy copies a regular file, creating the destination's parent directory
// when necessary.
func Copy(src string, dst string) error {
	logger.Log.Debugf("Copying (%s) to (%s)", src, dst)

	err := EnsureDirExists(filepath.Dir(dst))
	if err != nil {
		return err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file (%s):\n%w", src, err)
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file (%s):\n%w", dst, err)
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	if err != nil {
		return fmt.Errorf("failed to copy (%s) to (%s):\n%w", src, dst, err)
	}

	return dstFile.Close()
}

// CopyWithMode copies a regular file and sets the destination's permission
// bits.
func CopyWithMode(src string, dst string, mode os.FileMode) error {
	err := Copy(src, dst)
	if err != nil {
		return err
	}

	err = os.Chmod(dst, mode)
	if err != nil {
		return fmt.Errorf("failed to set permissions on (%s):\n%w", dst, err)
	}
	return nil
}

// Size returns the byte size of a regular file.
func Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat file (%s):\n%w", path, err)
	}
	return info.Size(), nil
}

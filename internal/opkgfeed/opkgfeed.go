// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

// Package opkgfeed reads and writes the opkg Packages index format: records
// of "Name: value" attributes separated by blank lines, where continuation
// lines start with whitespace. Attribute order is significant and preserved.
package opkgfeed

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Attribute is one "Name: value" pair of a package record.
type Attribute struct {
	Name  string
	Value string
}

// Package is one record of a Packages index, in file order.
type Package struct {
	Attributes []Attribute
}

// Get returns the value of the named attribute.
func (p *Package) Get(name string) (string, bool) {
	for _, attr := range p.Attributes {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// ParseFile reads every package record from a Packages index file.
func ParseFile(path string) ([]*Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feeds index (%s):\n%w", path, err)
	}
	defer f.Close()

	packages, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feeds index (%s):\n%w", path, err)
	}
	return packages, nil
}

// Parse reads every package record from an index stream.
func Parse(r io.Reader) ([]*Package, error) {
	var packages []*Package
	var current *Package

	flush := func() {
		if current != nil && len(current.Attributes) > 0 {
			packages = append(packages, current)
		}
		current = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if line[0] == ' ' || line[0] == '\t' {
			// Continuation of the previous attribute value.
			if current == nil || len(current.Attributes) == 0 {
				return nil, fmt.Errorf("continuation line without attribute: %q", line)
			}
			// Keep the line verbatim (including its leading whitespace)
			// so a rewritten record reproduces the input byte-for-byte.
			last := &current.Attributes[len(current.Attributes)-1]
			last.Value += "\n" + strings.TrimRight(line, "\r\n")
			continue
		}

		name, value, found := strings.Cut(line, ": ")
		if !found {
			return nil, fmt.Errorf("malformed attribute line: %q", line)
		}
		if current == nil {
			current = &Package{}
		}
		current.Attributes = append(current.Attributes, Attribute{
			Name:  name,
			Value: strings.TrimRight(value, "\r"),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	return packages, nil
}

// WriteRecord writes one package record, skipping the excluded attributes.
// The output is byte-for-byte the index representation of the remaining
// attributes.
func WriteRecord(w io.Writer, pkg *Package, excluded ...string) error {
	skip := make(map[string]bool, len(excluded))
	for _, name := range excluded {
		skip[name] = true
	}

	for _, attr := range pkg.Attributes {
		if skip[attr.Name] {
			continue
		}
		// Multi-line values already carry their continuation indentation.
		if _, err := fmt.Fprintf(w, "%s: %s\n", attr.Name, attr.Value); err != nil {
			return err
		}
	}
	return nil
}

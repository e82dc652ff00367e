// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package opkgfeed

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleIndex = `Package: firmware
Version: 2018-05-21-1
Depends: libc
Source: package/firmware
Maintainer: dev@example.com
Filename: firmware_2018-05-21-1_arm.ipk
Description: Firmware metapackage
 providing the upgrade path
 for the device.

Package: libc
Version: 1.1.16
Filename: libc_1.1.16_arm.ipk
Description: C library
`

func TestParseRecords(t *testing.T) {
	packages, err := Parse(strings.NewReader(sampleIndex))
	assert.NoError(t, err)
	assert.Len(t, packages, 2)

	name, ok := packages[0].Get("Package")
	assert.True(t, ok)
	assert.Equal(t, "firmware", name)

	name, ok = packages[1].Get("Package")
	assert.True(t, ok)
	assert.Equal(t, "libc", name)

	_, ok = packages[1].Get("Maintainer")
	assert.False(t, ok)
}

func TestParseMultilineValue(t *testing.T) {
	packages, err := Parse(strings.NewReader(sampleIndex))
	assert.NoError(t, err)

	description, ok := packages[0].Get("Description")
	assert.True(t, ok)
	assert.Equal(t, "Firmware metapackage\n providing the upgrade path\n for the device.", description)
}

func TestWriteRecordRoundTrip(t *testing.T) {
	packages, err := Parse(strings.NewReader(sampleIndex))
	assert.NoError(t, err)

	output := &bytes.Buffer{}
	err = WriteRecord(output, packages[0])
	assert.NoError(t, err)

	original := strings.SplitAfter(sampleIndex, "\n\n")[0]
	original = strings.TrimSuffix(original, "\n")
	assert.Equal(t, original, output.String())
}

func TestWriteRecordExcluded(t *testing.T) {
	packages, err := Parse(strings.NewReader(sampleIndex))
	assert.NoError(t, err)

	output := &bytes.Buffer{}
	err = WriteRecord(output, packages[0], "Source", "Maintainer")
	assert.NoError(t, err)

	assert.NotContains(t, output.String(), "Source:")
	assert.NotContains(t, output.String(), "Maintainer:")
	assert.Contains(t, output.String(), "Package: firmware\n")
	assert.Contains(t, output.String(), "Filename: firmware_2018-05-21-1_arm.ipk\n")
}

func TestParseMalformedLine(t *testing.T) {
	_, err := Parse(strings.NewReader("not an attribute\n"))
	assert.Error(t, err)
}

func TestParseDanglingContinuation(t *testing.T) {
	_, err := Parse(strings.NewReader(" orphan continuation\n"))
	assert.Error(t, err)
}

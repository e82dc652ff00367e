// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package hwid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateLength(t *testing.T) {
	id := Generate()
	// 12 random bytes encode to 16 characters without padding
	assert.Len(t, id, 16)
}

func TestGenerateAlphabet(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := Generate()
		assert.NotContains(t, id, "+")
		assert.NotContains(t, id, "/")
		assert.NotContains(t, id, "=")
	}
}

func TestGenerateUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := Generate()
		assert.False(t, seen[id], "duplicate identifier %s", id)
		seen[id] = true
	}
}

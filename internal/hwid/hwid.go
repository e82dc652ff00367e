// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

// Package hwid generates unique hardware identifiers for devices that do
// not have one burned in yet.
package hwid

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

const rawLength = 12

var altChars = strings.NewReplacer("+", "a", "/", "b")

// Generate returns a new random hardware identifier. The id must stay
// shell-safe, so the +/ base64 characters are substituted.
func Generate() string {
	raw := make([]byte, rawLength)
	// crypto/rand.Read always fills the buffer and never errors
	rand.Read(raw)
	return altChars.Replace(base64.StdEncoding.EncodeToString(raw))
}

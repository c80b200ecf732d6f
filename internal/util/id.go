package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random 32-character hex identifier, optionally with a
// type prefix ("note", "fld", ...) joined by an underscore.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

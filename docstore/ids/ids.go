// Package ids generates document identifiers.
//
// Ids are opaque 32-character lowercase hex strings taken from random
// (version 4) UUIDs. They carry no ordering and are never reused.
package ids

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// Length is the number of characters in a generated id
const Length = 32

// New returns a fresh random id
func New() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Valid reports whether s has the shape of a generated id
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

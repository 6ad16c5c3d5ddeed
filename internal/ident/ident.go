// Package ident mints the 64-bit player and session identifiers.
package ident

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// New returns a random 64-bit identifier taken from the random bits of a v4 UUID.
func New() uint64 {
	u := uuid.New()
	return binary.LittleEndian.Uint64(u[:8])
}

// Source mints identifiers. It lets tests substitute deterministic ids.
type Source func() uint64

// Sequence returns a Source yielding start, start+1, ... It is not safe for
// concurrent use.
func Sequence(start uint64) Source {
	next := start
	return func() uint64 {
		id := next
		next++
		return id
	}
}

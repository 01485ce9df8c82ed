// Package clientid generates the 20-byte peer id this client presents to
// trackers and peers.
package clientid

import "crypto/rand"

// Prefix is the Azureus-style client identification prefix: '-', two
// letters, four version digits, '-'.
const Prefix = "-GT0104-"

// New returns a fresh 20-byte peer id: Prefix followed by 12 random bytes.
func New() ([20]byte, error) {
	var id [20]byte
	copy(id[:], Prefix)
	_, err := rand.Read(id[len(Prefix):])
	return id, err
}

// FixtureTestID is a fixed, deterministic 20-byte ASCII id for callers
// that need a reproducible value.
func FixtureTestID() [20]byte {
	var id [20]byte
	copy(id[:], "00112233445566778899")
	return id
}

// Package bytebuf implements a binary-safe growable byte sequence.
//
// It is the idiomatic-Go reading of the "byte buffer" component that an
// implementation in a manually-managed language needs: Go slices already
// grow geometrically and are garbage collected, so Buffer is a thin value
// type over []byte rather than a capacity/length/pointer triple with an
// explicit free.
package bytebuf

import "bytes"

// Buffer is a binary-safe growable byte sequence. The zero value is an
// empty, ready to use Buffer.
type Buffer struct {
	b []byte
}

// New returns a Buffer with at least initialCap bytes of backing capacity.
func New(initialCap int) *Buffer {
	if initialCap < 0 {
		initialCap = 0
	}
	return &Buffer{b: make([]byte, 0, initialCap)}
}

// Len returns the number of bytes currently held.
func (buf *Buffer) Len() int {
	return len(buf.b)
}

// Bytes returns the buffer's contents. The returned slice aliases the
// buffer's storage and must not be mutated by the caller.
func (buf *Buffer) Bytes() []byte {
	return buf.b
}

// AppendByte appends a single byte.
func (buf *Buffer) AppendByte(c byte) {
	buf.b = append(buf.b, c)
}

// AppendBytes appends p in full.
func (buf *Buffer) AppendBytes(p []byte) {
	buf.b = append(buf.b, p...)
}

// AppendText appends the bytes of s.
func (buf *Buffer) AppendText(s string) {
	buf.b = append(buf.b, s...)
}

// Append appends the contents of other.
func (buf *Buffer) Append(other *Buffer) {
	buf.b = append(buf.b, other.b...)
}

// Pop removes and returns the last byte. ok is false if the buffer is empty.
func (buf *Buffer) Pop() (c byte, ok bool) {
	if len(buf.b) == 0 {
		return 0, false
	}
	c = buf.b[len(buf.b)-1]
	buf.b = buf.b[:len(buf.b)-1]
	return c, true
}

// Compare performs a byte-wise lexicographic comparison against other, with
// length as the tiebreaker (a shorter equal-prefix buffer is "less").
func (buf *Buffer) Compare(other *Buffer) int {
	return bytes.Compare(buf.b, other.b)
}

// CompareText compares the buffer's bytes against s.
func (buf *Buffer) CompareText(s string) int {
	return bytes.Compare(buf.b, []byte(s))
}

// ToTextCopy returns an independent copy of the buffer's contents as a string.
func (buf *Buffer) ToTextCopy() string {
	return string(buf.b)
}

// Reset empties the buffer without releasing its backing storage.
func (buf *Buffer) Reset() {
	buf.b = buf.b[:0]
}

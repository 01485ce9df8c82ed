// Package bterr defines the error taxonomy shared by every core component:
// Partial, Syntax, OutOfMemory, Schema, Transport, Protocol.
//
// Each kind is a sentinel wrapped at the call site with
// github.com/pkg/errors, so callers can still recover the kind with
// errors.Is while the message accumulates context, matching the
// error-wrapping style of the tracker/origin servers in the retrieved
// corpus (chihaya, uber-kraken) rather than bare fmt.Errorf chains.
package bterr

import "github.com/pkg/errors"

// Sentinel kinds. Compare with errors.Is, never with ==, since every
// returned error is wrapped with call-site context.
var (
	// ErrPartial signals an incremental decode needs more input bytes.
	ErrPartial = errors.New("bencode: partial input")
	// ErrSyntax signals input that violates the bencode or protocol grammar.
	ErrSyntax = errors.New("bencode: syntax error")
	// ErrOutOfMemory signals an allocation failure.
	ErrOutOfMemory = errors.New("out of memory")
	// ErrSchema signals a required key missing or of the wrong kind.
	ErrSchema = errors.New("schema error")
	// ErrTransport signals a network connect/send/recv/DNS/TLS failure.
	ErrTransport = errors.New("transport error")
	// ErrProtocol signals an invalid peer handshake or message.
	ErrProtocol = errors.New("protocol error")
)

// Wrap annotates err with msg while preserving errors.Is(err, kind).
func Wrap(kind error, msg string) error {
	return errors.Wrap(kind, msg)
}

// Wrapf annotates err with a formatted msg while preserving errors.Is(err, kind).
func Wrapf(kind error, format string, args ...interface{}) error {
	return errors.Wrapf(kind, format, args...)
}

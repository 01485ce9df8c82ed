// Package urlenc builds tracker announce URLs with RFC 3986 percent-encoded
// query parameters.
//
// net/url.Values.Encode runs query values through url.QueryEscape, which
// maps a literal space byte to '+' instead of "%20". That's fine for text
// but wrong for the raw, arbitrary-byte infohash this package also has to
// encode — an infohash byte of 0x20 would silently become '+' and break
// every tracker's exact-match lookup. PercentEncode therefore encodes every
// non-unreserved byte as %XX itself rather than delegating to net/url;
// Builder appends the already-encoded parameters verbatim.
package urlenc

import (
	"strings"

	"github.com/kdalton/bittorrent/internal/bytebuf"
)

// isUnreserved reports whether b is in RFC 3986's unreserved set:
// ALPHA / DIGIT / "-" / "." / "_" / "~".
func isUnreserved(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '.' || b == '_' || b == '~':
		return true
	default:
		return false
	}
}

const hexDigits = "0123456789ABCDEF"

// PercentEncode returns raw encoded per RFC 3986: every byte outside the
// unreserved set becomes %XX, uppercase hex, uniformly — including bytes
// that happen to look like ASCII letters/digits are passed through
// unencoded only because they ARE in the unreserved set, never as a
// special case for "looks like text".
func PercentEncode(raw []byte) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	for _, b := range raw {
		if isUnreserved(b) {
			sb.WriteByte(b)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hexDigits[b>>4])
		sb.WriteByte(hexDigits[b&0x0f])
	}
	return sb.String()
}

// Builder constructs a URL by appending already-encoded query parameters to
// a base URL, in the order they are appended.
type Builder struct {
	buf      *bytebuf.Buffer
	hasQuery bool
}

// New copies base verbatim as the starting point for the URL.
func New(base string) *Builder {
	buf := bytebuf.New(len(base) + 64)
	buf.AppendText(base)
	return &Builder{buf: buf}
}

// AppendParam appends '?' (on the first call) or '&', then key '=' value.
// key and value are assumed already percent-encoded by the caller.
func (b *Builder) AppendParam(key, value string) *Builder {
	if !b.hasQuery {
		b.buf.AppendByte('?')
		b.hasQuery = true
	} else {
		b.buf.AppendByte('&')
	}
	b.buf.AppendText(key)
	b.buf.AppendByte('=')
	b.buf.AppendText(value)
	return b
}

// String returns the constructed URL.
func (b *Builder) String() string {
	return b.buf.ToTextCopy()
}

// Package bencode implements an incremental, binary-safe decoder and a
// byte-exact encoder for the four bencode kinds: integer, byte string,
// list, and dictionary.
//
// The decoder is driven from a single buffer per call and is not
// resumable: on Partial, the caller appends more bytes and calls Decode
// again from the start of the accumulated buffer, so a streaming source
// (an HTTP response body, a socket) can retry a prefix without the
// decoder itself tracking any read state across calls.
package bencode

import (
	"strconv"

	"github.com/kdalton/bittorrent/internal/bterr"
	"github.com/kdalton/bittorrent/internal/bytebuf"
)

// Kind identifies which of the four bencode productions a Value holds.
type Kind int

const (
	KindInteger Kind = iota
	KindString
	KindList
	KindDict
)

// DictEntry is a single (key, value) pair of a Dictionary, in the order it
// was encountered.
type DictEntry struct {
	Key   []byte
	Value *Value
}

// Value is a tagged bencode value. Only the field matching Kind is
// meaningful. EncodedLength is the number of source bytes the value
// occupied when produced by Decode; it is zero for values built
// programmatically.
type Value struct {
	Kind          Kind
	Int           int64
	Str           []byte
	List          []*Value
	Dict          []DictEntry
	EncodedLength int
}

// Integer returns a Value wrapping an integer.
func Integer(i int64) *Value { return &Value{Kind: KindInteger, Int: i} }

// ByteString returns a Value wrapping arbitrary bytes.
func ByteString(b []byte) *Value { return &Value{Kind: KindString, Str: b} }

// ByteStringFromText is a convenience constructor for a byte string built
// from a Go string.
func ByteStringFromText(s string) *Value { return ByteString([]byte(s)) }

// List returns a Value wrapping an ordered sequence of values.
func List(vs ...*Value) *Value { return &Value{Kind: KindList, List: vs} }

// Dict returns a Value wrapping entries in the order given. The caller is
// responsible for ascending key order if the result will be re-decoded.
func Dict(entries ...DictEntry) *Value { return &Value{Kind: KindDict, Dict: entries} }

// Lookup returns the value associated with key in a Dictionary, and
// whether it was found. It is a no-op (returns false) on non-dictionaries.
func (v *Value) Lookup(key string) (*Value, bool) {
	if v == nil || v.Kind != KindDict {
		return nil, false
	}
	k := []byte(key)
	for _, e := range v.Dict {
		if string(e.Key) == string(k) {
			return e.Value, true
		}
	}
	return nil, false
}

// Text returns the value's byte string contents as a string. Valid only
// when Kind == KindString.
func (v *Value) Text() string {
	return string(v.Str)
}

// decoder walks data with a single cursor. It is never reused across calls.
type decoder struct {
	data []byte
	pos  int
}

// Decode parses a single bencode value starting at the beginning of data.
// On success it returns the value and the number of bytes consumed. On
// failure it returns an error wrapping bterr.ErrPartial (more input
// needed) or bterr.ErrSyntax (input is malformed).
func Decode(data []byte) (*Value, int, error) {
	d := &decoder{data: data}
	v, err := d.decodeValue()
	if err != nil {
		return nil, 0, err
	}
	return v, d.pos, nil
}

func (d *decoder) eof() bool {
	return d.pos >= len(d.data)
}

func (d *decoder) decodeValue() (*Value, error) {
	if d.eof() {
		return nil, bterr.Wrap(bterr.ErrPartial, "no bytes remaining")
	}
	switch c := d.data[d.pos]; {
	case c == 'i':
		return d.decodeInt()
	case c == 'l':
		return d.decodeList()
	case c == 'd':
		return d.decodeDict()
	case c >= '0' && c <= '9':
		return d.decodeString()
	default:
		return nil, bterr.Wrapf(bterr.ErrSyntax, "unexpected byte %q at offset %d", c, d.pos)
	}
}

// decodeInt parses 'i' <ascii-decimal with optional leading '-'> 'e'.
func (d *decoder) decodeInt() (*Value, error) {
	start := d.pos
	d.pos++ // consume 'i'
	digitsStart := d.pos
	for {
		if d.eof() {
			return nil, bterr.Wrap(bterr.ErrPartial, "unterminated integer")
		}
		if d.data[d.pos] == 'e' {
			break
		}
		d.pos++
	}
	raw := d.data[digitsStart:d.pos]
	d.pos++ // consume 'e'

	if len(raw) == 0 {
		return nil, bterr.Wrap(bterr.ErrSyntax, "empty integer")
	}
	neg := raw[0] == '-'
	digits := raw
	if neg {
		digits = raw[1:]
	}
	if len(digits) == 0 {
		return nil, bterr.Wrap(bterr.ErrSyntax, "integer has no digits")
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return nil, bterr.Wrapf(bterr.ErrSyntax, "non-decimal byte %q in integer", c)
		}
	}
	if digits[0] == '0' && len(digits) > 1 {
		return nil, bterr.Wrap(bterr.ErrSyntax, "integer has a leading zero")
	}
	if neg && digits[0] == '0' {
		// covers exactly "-0"; digits == "0" here since longer forms were
		// already rejected by the leading-zero check above.
		return nil, bterr.Wrap(bterr.ErrSyntax, "integer is negative zero")
	}

	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return nil, bterr.Wrapf(bterr.ErrSyntax, "integer does not fit in 64 bits: %s", raw)
	}
	return &Value{Kind: KindInteger, Int: n, EncodedLength: d.pos - start}, nil
}

// decodeString parses <ascii-decimal length> ':' <length bytes>.
func (d *decoder) decodeString() (*Value, error) {
	start := d.pos
	lenStart := d.pos
	for {
		if d.eof() {
			return nil, bterr.Wrap(bterr.ErrPartial, "unterminated string length")
		}
		if d.data[d.pos] == ':' {
			break
		}
		if d.data[d.pos] < '0' || d.data[d.pos] > '9' {
			return nil, bterr.Wrapf(bterr.ErrSyntax, "non-decimal byte %q in string length", d.data[d.pos])
		}
		d.pos++
	}
	lenDigits := d.data[lenStart:d.pos]
	d.pos++ // consume ':'

	if len(lenDigits) > 1 && lenDigits[0] == '0' {
		return nil, bterr.Wrapf(bterr.ErrSyntax, "string length has a leading zero: %s", lenDigits)
	}

	n, err := strconv.ParseUint(string(lenDigits), 10, 63)
	if err != nil {
		return nil, bterr.Wrapf(bterr.ErrSyntax, "invalid string length: %s", lenDigits)
	}
	// Compare against the remaining bytes before converting to int: n can be
	// up to 2^63-1, and d.pos+int(n) would overflow and wrap negative,
	// defeating the bounds check below and panicking on the slice
	// expression instead of reporting Partial.
	if n > uint64(len(d.data)-d.pos) {
		return nil, bterr.Wrap(bterr.ErrPartial, "string body not fully available")
	}
	length := int(n)
	body := d.data[d.pos : d.pos+length]
	d.pos += length
	return &Value{Kind: KindString, Str: body, EncodedLength: d.pos - start}, nil
}

// decodeList parses 'l' <value>* 'e'.
func (d *decoder) decodeList() (*Value, error) {
	start := d.pos
	d.pos++ // consume 'l'
	var items []*Value
	for {
		if d.eof() {
			return nil, bterr.Wrap(bterr.ErrPartial, "unterminated list")
		}
		if d.data[d.pos] == 'e' {
			d.pos++
			return &Value{Kind: KindList, List: items, EncodedLength: d.pos - start}, nil
		}
		v, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
}

// decodeDict parses 'd' (<ByteString key> <value>)* 'e', enforcing
// ascending, unique keys as it goes.
func (d *decoder) decodeDict() (*Value, error) {
	start := d.pos
	d.pos++ // consume 'd'
	var entries []DictEntry
	for {
		if d.eof() {
			return nil, bterr.Wrap(bterr.ErrPartial, "unterminated dictionary")
		}
		if d.data[d.pos] == 'e' {
			d.pos++
			return &Value{Kind: KindDict, Dict: entries, EncodedLength: d.pos - start}, nil
		}
		if d.data[d.pos] < '0' || d.data[d.pos] > '9' {
			return nil, bterr.Wrap(bterr.ErrSyntax, "dictionary key is not a byte string")
		}
		keyVal, err := d.decodeString()
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			cmp := compareBytes(keyVal.Str, entries[len(entries)-1].Key)
			switch {
			case cmp == 0:
				return nil, bterr.Wrapf(bterr.ErrSyntax, "duplicate dictionary key %q", keyVal.Str)
			case cmp < 0:
				return nil, bterr.Wrapf(bterr.ErrSyntax, "dictionary key %q out of ascending order", keyVal.Str)
			}
		}
		val, err := d.decodeValue()
		if err != nil {
			return nil, err
		}
		entries = append(entries, DictEntry{Key: keyVal.Str, Value: val})
	}
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Encode serialises v into out and returns the number of bytes written.
// Encode(Decode(b)) == b for any well-formed b: dictionaries are emitted in
// their stored order (decode already enforced ascending keys), integers in
// minimal decimal form, strings as raw length-prefixed bytes.
func Encode(v *Value, out *bytebuf.Buffer) int {
	before := out.Len()
	encodeInto(v, out)
	return out.Len() - before
}

// EncodeBytes is a convenience wrapper returning a freshly allocated slice.
func EncodeBytes(v *Value) []byte {
	out := bytebuf.New(64)
	Encode(v, out)
	return append([]byte(nil), out.Bytes()...)
}

func encodeInto(v *Value, out *bytebuf.Buffer) {
	switch v.Kind {
	case KindInteger:
		out.AppendByte('i')
		out.AppendText(strconv.FormatInt(v.Int, 10))
		out.AppendByte('e')
	case KindString:
		out.AppendText(strconv.Itoa(len(v.Str)))
		out.AppendByte(':')
		out.AppendBytes(v.Str)
	case KindList:
		out.AppendByte('l')
		for _, item := range v.List {
			encodeInto(item, out)
		}
		out.AppendByte('e')
	case KindDict:
		out.AppendByte('d')
		for _, e := range v.Dict {
			out.AppendText(strconv.Itoa(len(e.Key)))
			out.AppendByte(':')
			out.AppendBytes(e.Key)
			encodeInto(e.Value, out)
		}
		out.AppendByte('e')
	}
}

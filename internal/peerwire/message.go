package peerwire

import (
	"encoding/binary"
	"io"

	"github.com/kdalton/bittorrent/internal/bterr"
)

// MessageID identifies a peer wire message.
type MessageID uint8

const (
	MsgChoke MessageID = iota
	MsgUnchoke
	MsgInterested
	MsgNotInterested
	MsgHave
	MsgBitfield
	MsgRequest
	MsgPiece
	MsgCancel
)

// Message is a length-prefixed peer message: its id and payload. A
// zero-length frame on the wire is a keep-alive and is never surfaced as a
// Message (ReadMessage retries past it).
type Message struct {
	ID      MessageID
	Payload []byte
}

// ReadMessage reads and parses one Message from r, silently retrying past
// keep-alive frames (a zero-length frame carries no id or payload).
func ReadMessage(r io.Reader) (*Message, error) {
	var lenBuf [4]byte
	for {
		if err := ReadExactly(r, lenBuf[:]); err != nil {
			return nil, bterr.Wrapf(bterr.ErrTransport, "reading message length: %s", err)
		}
		msgLen := binary.BigEndian.Uint32(lenBuf[:])
		if msgLen == 0 {
			continue // keep-alive
		}
		body := make([]byte, msgLen)
		if err := ReadExactly(r, body); err != nil {
			return nil, bterr.Wrapf(bterr.ErrTransport, "reading message body: %s", err)
		}
		return &Message{ID: MessageID(body[0]), Payload: body[1:]}, nil
	}
}

// Marshal serialises the message as a length-prefixed frame ready to send.
func (m *Message) Marshal() []byte {
	payLen := uint32(len(m.Payload) + 1)
	out := make([]byte, 4+payLen)
	binary.BigEndian.PutUint32(out, payLen)
	out[4] = byte(m.ID)
	copy(out[5:], m.Payload)
	return out
}

// Interested returns a serialised "interested" message.
func Interested() []byte {
	return (&Message{ID: MsgInterested}).Marshal()
}

// Request returns a serialised block request for (index, begin, length).
func Request(index, begin, length int) []byte {
	payload := make([]byte, 12)
	binary.BigEndian.PutUint32(payload[0:], uint32(index))
	binary.BigEndian.PutUint32(payload[4:], uint32(begin))
	binary.BigEndian.PutUint32(payload[8:], uint32(length))
	return (&Message{ID: MsgRequest, Payload: payload}).Marshal()
}

// ParsePiece extracts (index, begin, block) from a "piece" message payload.
func ParsePiece(payload []byte) (index, begin int, block []byte, err error) {
	if len(payload) < 8 {
		return 0, 0, nil, bterr.Wrap(bterr.ErrProtocol, "piece message payload too short")
	}
	index = int(binary.BigEndian.Uint32(payload[0:4]))
	begin = int(binary.BigEndian.Uint32(payload[4:8]))
	return index, begin, payload[8:], nil
}

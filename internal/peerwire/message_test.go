package peerwire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestMarshalAndReadMessage(t *testing.T) {
	wire := Request(1, 16384, 16384)
	msg, err := ReadMessage(bytes.NewReader(wire))
	require.NoError(t, err)
	require.Equal(t, MsgRequest, msg.ID)
	require.Len(t, msg.Payload, 12)
}

func TestReadMessageSkipsKeepAlives(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0}) // keep-alive
	buf.Write(Interested())
	msg, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, MsgInterested, msg.ID)
}

func TestParsePiece(t *testing.T) {
	payload := make([]byte, 8+4)
	payload[3] = 2          // index = 2
	payload[7] = 0          // begin = 0
	copy(payload[8:], "data")
	index, begin, block, err := ParsePiece(payload)
	require.NoError(t, err)
	require.Equal(t, 2, index)
	require.Equal(t, 0, begin)
	require.Equal(t, "data", string(block))
}

func TestParsePieceRejectsShortPayload(t *testing.T) {
	_, _, _, err := ParsePiece([]byte{1, 2, 3})
	require.Error(t, err)
}

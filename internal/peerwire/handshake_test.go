package peerwire

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// S8 — handshake against a mock peer that echoes any 68-byte handshake
// back verbatim.
func TestHandshakeEchoPeer(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		buf := make([]byte, HandshakeSize)
		if _, err := io.ReadFull(server, buf); err != nil {
			return
		}
		server.Write(buf)
	}()

	var ih, pid [20]byte
	copy(ih[:], "aaaaaaaaaaaaaaaaaaaa")
	copy(pid[:], "00112233445566778899")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	remote, err := Do(ctx, client, Handshake{InfoHash: ih, PeerID: pid})
	require.NoError(t, err)
	require.Equal(t, ih, remote.InfoHash)
	require.Equal(t, pid, remote.PeerID)
}

func TestUnmarshalRejectsBadProtocol(t *testing.T) {
	buf := make([]byte, HandshakeSize)
	buf[0] = 19
	copy(buf[1:], "Not BitTorrent prot")
	_, err := Unmarshal(buf)
	require.Error(t, err)
}

func TestUnmarshalRejectsWrongSize(t *testing.T) {
	_, err := Unmarshal(make([]byte, 10))
	require.Error(t, err)
}

func TestTCPConnectFromAddressRejectsMalformed(t *testing.T) {
	ctx := context.Background()
	for _, addr := range []string{"", "noport", ":80", "1.2.3.4:", "1.2.3.4:99999", "1.2.3.4:0"} {
		_, err := TCPConnectFromAddress(ctx, addr)
		require.Errorf(t, err, "address %q should be rejected", addr)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	var ih, pid [20]byte
	copy(ih[:], "11111111111111111111")
	copy(pid[:], "22222222222222222222")
	h := Handshake{InfoHash: ih, PeerID: pid}
	parsed, err := Unmarshal(h.Marshal())
	require.NoError(t, err)
	require.Equal(t, h, parsed)
}

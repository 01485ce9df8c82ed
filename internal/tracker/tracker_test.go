package tracker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kdalton/bittorrent/internal/bterr"
	"github.com/kdalton/bittorrent/internal/metainfo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// S7 — compact peer parsing.
func TestParseCompactPeers(t *testing.T) {
	raw := []byte{0x0A, 0x00, 0x00, 0x01, 0x1A, 0xE1}
	peers, err := parseCompactPeers(raw)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	require.Equal(t, "10.0.0.1", peers[0].IP)
	require.EqualValues(t, 6881, peers[0].Port)
	require.Equal(t, "10.0.0.1:6881", peers[0].String())
}

func TestParseCompactPeersRejectsBadLength(t *testing.T) {
	_, err := parseCompactPeers([]byte{0x01, 0x02, 0x03})
	require.Error(t, err)
	require.True(t, errors.Is(err, bterr.ErrSchema))
}

func TestQuerySuccess(t *testing.T) {
	body := "d8:intervali1800e5:peers6:" + string([]byte{10, 0, 0, 1, 0x1A, 0xE1}) + "e"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1", r.URL.Query().Get("compact"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	mi := &metainfo.MetaInfo{Announce: srv.URL, TotalSize: 100}
	c := NewClient()
	resp, err := c.Query(context.Background(), mi, [20]byte{}, 6881)
	require.NoError(t, err)
	require.EqualValues(t, 1800, resp.Interval)
	require.Len(t, resp.Peers, 1)
	require.Equal(t, "10.0.0.1:6881", resp.Peers[0].String())
}

func TestQueryFailureReason(t *testing.T) {
	body := "d14:failure reason12:torrent gonee"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	mi := &metainfo.MetaInfo{Announce: srv.URL, TotalSize: 100}
	c := NewClient()
	_, err := c.Query(context.Background(), mi, [20]byte{}, 6881)
	require.Error(t, err)
	require.True(t, errors.Is(err, bterr.ErrSchema))
}

func TestBuildAnnounceURLEncodesBinaryInfoHash(t *testing.T) {
	mi := &metainfo.MetaInfo{
		Announce:  "http://tracker.example/announce",
		TotalSize: 42,
	}
	mi.InfoHash[0] = 0x00
	mi.InfoHash[1] = 0x20
	peerID := [20]byte{}
	copy(peerID[:], "00112233445566778899")

	got := buildAnnounceURL(mi, peerID, 6881)
	require.Contains(t, got, "info_hash=%00%20")
	require.Contains(t, got, "peer_id=00112233445566778899")
	require.Contains(t, got, "left=42")
	require.Contains(t, got, "compact=1")
}

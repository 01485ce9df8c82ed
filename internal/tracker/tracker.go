// Package tracker issues the HTTP GET tracker announce request, feeds the
// response incrementally to the bencode decoder, and extracts the compact
// peer list.
//
// HTTP trackers only: no UDP tracker fallback, and a single announce URL
// rather than an announce-list.
package tracker

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/kdalton/bittorrent/internal/bencode"
	"github.com/kdalton/bittorrent/internal/bterr"
	"github.com/kdalton/bittorrent/internal/metainfo"
	"github.com/kdalton/bittorrent/internal/urlenc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Peer is a compact-format peer entry: an IPv4 address and port.
type Peer struct {
	IP   string
	Port uint16
}

// String returns the peer as a dialable "ip:port" address.
func (p Peer) String() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(int(p.Port)))
}

// Response is the parsed tracker announce response.
type Response struct {
	Interval int64
	Peers    []Peer
}

const (
	readChunkSize  = 4096
	defaultTimeout = 30 * time.Second
)

// Client issues tracker announce requests.
type Client struct {
	HTTPClient *http.Client
	Log        *logrus.Entry
}

// NewClient returns a Client with a default timeout.
func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		Log:        logrus.WithField("component", "tracker"),
	}
}

// Query announces to mi.Announce with the given peer id and listening
// port, and returns the parsed response.
func (c *Client) Query(ctx context.Context, mi *metainfo.MetaInfo, peerID [20]byte, port uint16) (*Response, error) {
	announceURL := buildAnnounceURL(mi, peerID, port)
	c.log().WithField("url", announceURL).Debug("querying tracker")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, announceURL, nil)
	if err != nil {
		return nil, bterr.Wrap(bterr.ErrTransport, err.Error())
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, bterr.Wrapf(bterr.ErrTransport, "tracker GET failed: %s", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, bterr.Wrapf(bterr.ErrTransport, "tracker returned status %s", resp.Status)
	}

	value, err := decodeIncrementally(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseResponse(value)
}

func (c *Client) log() *logrus.Entry {
	if c.Log != nil {
		return c.Log
	}
	return logrus.WithField("component", "tracker")
}

// decodeIncrementally grows a buffer as the response body arrives and
// attempts a decode after every read: Partial means "read more", any other
// decode error aborts the transfer.
func decodeIncrementally(body io.Reader) (*bencode.Value, error) {
	buf := make([]byte, 0, readChunkSize)
	chunk := make([]byte, readChunkSize)

	for {
		n, readErr := body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			value, _, decErr := bencode.Decode(buf)
			if decErr == nil {
				return value, nil
			}
			if !errors.Is(decErr, bterr.ErrPartial) {
				return nil, bterr.Wrapf(bterr.ErrSyntax, "tracker response: %s", decErr)
			}
		}
		if readErr == io.EOF {
			return nil, bterr.Wrap(bterr.ErrTransport, "tracker response ended before a complete value was decoded")
		}
		if readErr != nil {
			return nil, bterr.Wrapf(bterr.ErrTransport, "reading tracker response: %s", readErr)
		}
	}
}

func buildAnnounceURL(mi *metainfo.MetaInfo, peerID [20]byte, port uint16) string {
	b := urlenc.New(mi.Announce)
	b.AppendParam("info_hash", urlenc.PercentEncode(mi.InfoHash[:]))
	b.AppendParam("peer_id", urlenc.PercentEncode(peerID[:]))
	b.AppendParam("port", strconv.Itoa(int(port)))
	b.AppendParam("uploaded", "0")
	b.AppendParam("downloaded", "0")
	b.AppendParam("compact", "1")
	b.AppendParam("left", strconv.FormatInt(mi.TotalSize, 10))
	return b.String()
}

func parseResponse(v *bencode.Value) (*Response, error) {
	if v == nil || v.Kind != bencode.KindDict {
		return nil, bterr.Wrap(bterr.ErrSchema, "tracker response is not a dictionary")
	}

	if reason, ok := v.Lookup("failure reason"); ok {
		if reason.Kind != bencode.KindString {
			return nil, bterr.Wrap(bterr.ErrSchema, "tracker failure reason is not a string")
		}
		return nil, bterr.Wrapf(bterr.ErrSchema, "tracker failure: %s", reason.Text())
	}

	intervalVal, ok := v.Lookup("interval")
	if !ok || intervalVal.Kind != bencode.KindInteger {
		return nil, bterr.Wrap(bterr.ErrSchema, "tracker response missing \"interval\"")
	}

	peersVal, ok := v.Lookup("peers")
	if !ok || peersVal.Kind != bencode.KindString {
		return nil, bterr.Wrap(bterr.ErrSchema, "tracker response missing \"peers\"")
	}

	peers, err := parseCompactPeers(peersVal.Str)
	if err != nil {
		return nil, err
	}

	return &Response{
		Interval: intervalVal.Int,
		Peers:    peers,
	}, nil
}

// parseCompactPeers decodes a compact peer list: 6-byte groups of 4 IPv4
// octets followed by a big-endian port, order preserved.
func parseCompactPeers(raw []byte) ([]Peer, error) {
	const entrySize = 6
	if len(raw)%entrySize != 0 {
		return nil, bterr.Wrapf(bterr.ErrSchema, "compact peer list length %d is not a multiple of %d", len(raw), entrySize)
	}
	peers := make([]Peer, len(raw)/entrySize)
	for i := range peers {
		off := i * entrySize
		ip := net.IP(raw[off : off+4]).String()
		port := binary.BigEndian.Uint16(raw[off+4 : off+entrySize])
		peers[i] = Peer{IP: ip, Port: port}
	}
	return peers, nil
}

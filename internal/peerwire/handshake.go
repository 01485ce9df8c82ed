// Package peerwire implements the BitTorrent peer handshake and the
// socket helpers it is built on, plus the length-prefixed message framing
// used after a handshake completes.
package peerwire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/kdalton/bittorrent/internal/bterr"
)

// Protocol is the protocol name field of the handshake record.
const Protocol = "BitTorrent protocol"

// HandshakeSize is the fixed size of a handshake record: 1 (pstrlen) +
// 19 (proto name) + 8 (reserved) + 20 (info hash) + 20 (peer id).
const HandshakeSize = 1 + len(Protocol) + 8 + 20 + 20

// Handshake is the 68-byte record exchanged at the start of a peer
// connection.
type Handshake struct {
	InfoHash [20]byte
	PeerID   [20]byte
}

// Marshal serialises h into the 68-byte wire record with pstrlen=19, the
// literal protocol name, and all-zero reserved bytes (no BEP-10 extension
// bits are advertised).
func (h Handshake) Marshal() []byte {
	buf := make([]byte, HandshakeSize)
	buf[0] = byte(len(Protocol))
	copy(buf[1:], Protocol)
	// buf[1+len(Protocol) : 1+len(Protocol)+8] stays zero (reserved).
	copy(buf[1+len(Protocol)+8:], h.InfoHash[:])
	copy(buf[1+len(Protocol)+8+20:], h.PeerID[:])
	return buf
}

// Unmarshal validates and parses a 68-byte wire record.
func Unmarshal(buf []byte) (Handshake, error) {
	if len(buf) != HandshakeSize {
		return Handshake{}, bterr.Wrapf(bterr.ErrProtocol, "handshake has wrong size %d, want %d", len(buf), HandshakeSize)
	}
	pstrlen := int(buf[0])
	if pstrlen != len(Protocol) {
		return Handshake{}, bterr.Wrapf(bterr.ErrProtocol, "unexpected pstrlen %d", pstrlen)
	}
	if string(buf[1:1+pstrlen]) != Protocol {
		return Handshake{}, bterr.Wrapf(bterr.ErrProtocol, "unexpected protocol name %q", buf[1:1+pstrlen])
	}
	var h Handshake
	copy(h.InfoHash[:], buf[1+pstrlen+8:1+pstrlen+8+20])
	copy(h.PeerID[:], buf[1+pstrlen+8+20:1+pstrlen+8+40])
	return h, nil
}

// Do sends the local handshake over conn, reads the remote one back, and
// returns it. Sends and receives respect ctx's deadline.
func Do(ctx context.Context, conn net.Conn, local Handshake) (Handshake, error) {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	if err := writeFull(conn, local.Marshal()); err != nil {
		return Handshake{}, bterr.Wrapf(bterr.ErrTransport, "sending handshake: %s", err)
	}

	resp := make([]byte, HandshakeSize)
	if err := ReadExactly(conn, resp); err != nil {
		return Handshake{}, bterr.Wrapf(bterr.ErrTransport, "receiving handshake: %s", err)
	}

	return Unmarshal(resp)
}

func writeFull(w io.Writer, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := w.Write(buf[total:])
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.New("write returned 0 bytes with no error")
		}
		total += n
	}
	return nil
}

// ReadExactly loops on Read until len(buf) bytes have been collected. A
// short read is not an error; a zero-byte read (EOF) is.
func ReadExactly(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}

// TCPConnect opens an IPv4 TCP connection to ip:port.
func TCPConnect(ctx context.Context, ip string, port uint16) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp4", net.JoinHostPort(ip, strconv.Itoa(int(port))))
	if err != nil {
		return nil, bterr.Wrapf(bterr.ErrTransport, "connecting to %s:%d: %s", ip, port, err)
	}
	return conn, nil
}

// TCPConnectFromAddress parses addr as "ip:port" (a single colon; the IP
// must be non-empty and the port in 1..65535) and connects to it.
func TCPConnectFromAddress(ctx context.Context, addr string) (net.Conn, error) {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return nil, bterr.Wrapf(bterr.ErrSyntax, "address %q must have exactly one colon", addr)
	}
	ip, portStr := parts[0], parts[1]
	if ip == "" {
		return nil, bterr.Wrapf(bterr.ErrSyntax, "address %q has an empty IP", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return nil, bterr.Wrapf(bterr.ErrSyntax, "address %q has an invalid port", addr)
	}
	return TCPConnect(ctx, ip, uint16(port))
}

// String implements fmt.Stringer for Handshake, for logging.
func (h Handshake) String() string {
	return fmt.Sprintf("Handshake{infoHash=%x, peerID=%x}", h.InfoHash, h.PeerID)
}

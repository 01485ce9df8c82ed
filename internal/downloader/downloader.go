// Package downloader orchestrates a single piece download from a single
// peer: connect, handshake, interested/unchoke handshake, sequential block
// requests, SHA-1 verification.
//
// Everything for one piece runs sequentially, in ascending block-offset
// order; there is no pipelining or multi-peer fan-out here.
package downloader

import (
	"context"
	"crypto/sha1"
	"net"

	"github.com/kdalton/bittorrent/internal/bterr"
	"github.com/kdalton/bittorrent/internal/metainfo"
	"github.com/kdalton/bittorrent/internal/peerwire"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DownloadPiece connects to addr ("ip:port"), performs the handshake, and
// downloads and verifies a single piece of mi.
func DownloadPiece(ctx context.Context, addr string, mi *metainfo.MetaInfo, peerID [20]byte, piece metainfo.Piece) ([]byte, error) {
	log := logrus.WithFields(logrus.Fields{"component": "downloader", "peer": addr, "piece": piece.Index})

	conn, err := peerwire.TCPConnectFromAddress(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	log.Debug("connected, starting handshake")
	if _, err := peerwire.Do(ctx, conn, peerwire.Handshake{InfoHash: mi.InfoHash, PeerID: peerID}); err != nil {
		return nil, err
	}
	// Do clears the connection deadline on return; reapply ctx's deadline
	// to the message exchange that follows.
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := awaitBitfieldThenUnchoke(conn, log); err != nil {
		return nil, err
	}

	data, err := fetchBlocks(conn, piece)
	if err != nil {
		return nil, err
	}

	sum := sha1.Sum(data)
	if sum != piece.Hash {
		return nil, bterr.Wrapf(bterr.ErrProtocol, "piece %d hash mismatch: got %x, want %x", piece.Index, sum, piece.Hash)
	}
	log.Debug("piece verified")
	return data, nil
}

// awaitBitfieldThenUnchoke reads the peer's first message, normally a
// bitfield (a message with any other id is logged and discarded), sends
// interested, and waits for unchoke. It always blocks for that first
// message; a peer that sends nothing before receiving interested is not
// handled.
func awaitBitfieldThenUnchoke(conn net.Conn, log *logrus.Entry) error {
	msg, err := peerwire.ReadMessage(conn)
	if err != nil {
		return bterr.Wrapf(bterr.ErrTransport, "awaiting bitfield: %s", err)
	}
	if msg.ID != peerwire.MsgBitfield {
		log.WithField("messageID", msg.ID).Debug("peer did not lead with a bitfield, continuing")
	}

	if _, err := conn.Write(peerwire.Interested()); err != nil {
		return bterr.Wrapf(bterr.ErrTransport, "sending interested: %s", err)
	}

	for {
		msg, err := peerwire.ReadMessage(conn)
		if err != nil {
			return bterr.Wrapf(bterr.ErrTransport, "awaiting unchoke: %s", err)
		}
		switch msg.ID {
		case peerwire.MsgUnchoke:
			return nil
		case peerwire.MsgChoke:
			return bterr.Wrap(bterr.ErrProtocol, "peer choked before unchoking")
		default:
			// have/bitfield/etc: ignore and keep waiting for unchoke.
			continue
		}
	}
}

// fetchBlocks requests every block of piece in ascending offset order and
// assembles the piece's bytes.
func fetchBlocks(conn net.Conn, piece metainfo.Piece) ([]byte, error) {
	data := make([]byte, piece.Size)
	received := 0

	for _, block := range piece.Blocks {
		if _, err := conn.Write(peerwire.Request(piece.Index, block.Offset, block.Size)); err != nil {
			return nil, bterr.Wrapf(bterr.ErrTransport, "requesting block at offset %d: %s", block.Offset, err)
		}

		msg, err := peerwire.ReadMessage(conn)
		if err != nil {
			return nil, bterr.Wrapf(bterr.ErrTransport, "reading piece message: %s", err)
		}
		if msg.ID != peerwire.MsgPiece {
			return nil, bterr.Wrapf(bterr.ErrProtocol, "expected a piece message, got id %d", msg.ID)
		}

		index, begin, chunk, err := peerwire.ParsePiece(msg.Payload)
		if err != nil {
			return nil, err
		}
		if index != piece.Index || begin != block.Offset || len(chunk) != block.Size {
			return nil, errors.Errorf("unexpected block: index=%d begin=%d len=%d", index, begin, len(chunk))
		}

		copy(data[begin:begin+len(chunk)], chunk)
		received += len(chunk)
	}

	if received != piece.Size {
		return nil, bterr.Wrapf(bterr.ErrProtocol, "received %d bytes, expected %d", received, piece.Size)
	}
	return data, nil
}

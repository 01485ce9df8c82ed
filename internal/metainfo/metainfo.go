// Package metainfo decomposes a torrent's info dictionary into pieces and
// blocks, and derives the infohash from the exact bencoded bytes of that
// dictionary.
//
// Single-file torrents only: multi-file layouts are not handled here.
package metainfo

import (
	"crypto/sha1"

	"github.com/kdalton/bittorrent/internal/bencode"
	"github.com/kdalton/bittorrent/internal/bterr"
	"github.com/kdalton/bittorrent/internal/bytebuf"
)

// DefaultBlockSize is the size of every block except possibly a piece's last.
const DefaultBlockSize = 16384

// Block is a sub-chunk of a piece, the unit of request in peer message
// exchange. Data is nil until the block has been received.
type Block struct {
	Offset int
	Size   int
	Data   []byte
}

// Piece is a fixed-size chunk of the file, hashed independently.
type Piece struct {
	Index          int
	Size           int
	Hash           [20]byte
	BlockCount     int
	BlocksReceived int
	Blocks         []Block
}

// Done reports whether every block of the piece has been received.
func (p *Piece) Done() bool {
	return p.BlocksReceived >= p.BlockCount
}

// MetaInfo is a single-file torrent's decomposed metainfo.
type MetaInfo struct {
	Announce    string
	Name        string
	TotalSize   int64
	PieceLength int64
	Pieces      []Piece
	InfoHash    [20]byte
}

// Build extracts a MetaInfo from a decoded top-level bencode dictionary.
// root must contain "announce" (a byte string) and "info" (a dictionary
// with "length", "name", "piece length", and "pieces").
func Build(root *bencode.Value) (*MetaInfo, error) {
	if root == nil || root.Kind != bencode.KindDict {
		return nil, bterr.Wrap(bterr.ErrSchema, "metainfo: top level is not a dictionary")
	}

	announce, ok := root.Lookup("announce")
	if !ok || announce.Kind != bencode.KindString {
		return nil, bterr.Wrap(bterr.ErrSchema, "metainfo: missing or malformed \"announce\"")
	}

	info, ok := root.Lookup("info")
	if !ok || info.Kind != bencode.KindDict {
		return nil, bterr.Wrap(bterr.ErrSchema, "metainfo: missing or malformed \"info\"")
	}

	lengthVal, ok := info.Lookup("length")
	if !ok || lengthVal.Kind != bencode.KindInteger || lengthVal.Int < 0 {
		return nil, bterr.Wrap(bterr.ErrSchema, "metainfo: missing or malformed \"length\"")
	}

	nameVal, ok := info.Lookup("name")
	if !ok || nameVal.Kind != bencode.KindString {
		return nil, bterr.Wrap(bterr.ErrSchema, "metainfo: missing or malformed \"name\"")
	}

	pieceLenVal, ok := info.Lookup("piece length")
	if !ok || pieceLenVal.Kind != bencode.KindInteger || pieceLenVal.Int <= 0 {
		return nil, bterr.Wrap(bterr.ErrSchema, "metainfo: missing or malformed \"piece length\"")
	}

	piecesVal, ok := info.Lookup("pieces")
	if !ok || piecesVal.Kind != bencode.KindString {
		return nil, bterr.Wrap(bterr.ErrSchema, "metainfo: missing or malformed \"pieces\"")
	}
	if len(piecesVal.Str)%20 != 0 {
		return nil, bterr.Wrapf(bterr.ErrSchema, "metainfo: \"pieces\" length %d is not a multiple of 20", len(piecesVal.Str))
	}
	numPieces := len(piecesVal.Str) / 20
	if numPieces == 0 {
		return nil, bterr.Wrap(bterr.ErrSchema, "metainfo: \"pieces\" is empty")
	}

	totalSize := lengthVal.Int
	pieceLength := pieceLenVal.Int

	pieces := make([]Piece, numPieces)
	for i := 0; i < numPieces; i++ {
		size := pieceLength
		if i == numPieces-1 {
			if rem := totalSize % pieceLength; rem != 0 {
				size = rem
			}
		}
		var hash [20]byte
		copy(hash[:], piecesVal.Str[i*20:i*20+20])

		pieces[i] = Piece{
			Index:  i,
			Size:   int(size),
			Hash:   hash,
			Blocks: buildBlocks(int(size)),
		}
		pieces[i].BlockCount = len(pieces[i].Blocks)
	}

	infoHash, err := ComputeInfoHash(info)
	if err != nil {
		return nil, err
	}

	return &MetaInfo{
		Announce:    announce.Text(),
		Name:        nameVal.Text(),
		TotalSize:   totalSize,
		PieceLength: pieceLength,
		Pieces:      pieces,
		InfoHash:    infoHash,
	}, nil
}

func buildBlocks(pieceSize int) []Block {
	if pieceSize == 0 {
		return nil
	}
	count := (pieceSize + DefaultBlockSize - 1) / DefaultBlockSize
	blocks := make([]Block, count)
	for i := 0; i < count; i++ {
		size := DefaultBlockSize
		if i == count-1 {
			if rem := pieceSize % DefaultBlockSize; rem != 0 {
				size = rem
			}
		}
		blocks[i] = Block{Offset: i * DefaultBlockSize, Size: size}
	}
	return blocks
}

// ComputeInfoHash returns the SHA-1 digest of the encoder's byte-exact
// output for the info subtree: the infohash is identity for the torrent on
// the wire, so it must be derived from re-encoding, never from a copy of
// the source bytes (which this package, unlike the decoder, does not keep).
func ComputeInfoHash(info *bencode.Value) ([20]byte, error) {
	if info == nil || info.Kind != bencode.KindDict {
		return [20]byte{}, bterr.Wrap(bterr.ErrSchema, "metainfo: info is not a dictionary")
	}
	out := bytebuf.New(256)
	bencode.Encode(info, out)
	return sha1.Sum(out.Bytes()), nil
}

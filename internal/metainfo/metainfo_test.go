package metainfo

import (
	"crypto/sha1"
	"testing"

	"github.com/kdalton/bittorrent/internal/bencode"
	"github.com/kdalton/bittorrent/internal/bterr"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func fourHashes() []byte {
	var buf []byte
	for i := byte(0); i < 4; i++ {
		h := make([]byte, 20)
		for j := range h {
			h[j] = i
		}
		buf = append(buf, h...)
	}
	return buf
}

func buildInfoDict(length, pieceLength int64, name string, pieces []byte) *bencode.Value {
	return bencode.Dict(
		bencode.DictEntry{Key: []byte("length"), Value: bencode.Integer(length)},
		bencode.DictEntry{Key: []byte("name"), Value: bencode.ByteStringFromText(name)},
		bencode.DictEntry{Key: []byte("piece length"), Value: bencode.Integer(pieceLength)},
		bencode.DictEntry{Key: []byte("pieces"), Value: bencode.ByteString(pieces)},
	)
}

// S5 — metainfo piece/block layout.
func TestBuildPieceLayout(t *testing.T) {
	root := bencode.Dict(
		bencode.DictEntry{Key: []byte("announce"), Value: bencode.ByteStringFromText("http://tracker.example/announce")},
		bencode.DictEntry{Key: []byte("info"), Value: buildInfoDict(100, 32, "t.txt", fourHashes())},
	)

	mi, err := Build(root)
	require.NoError(t, err)
	require.Equal(t, "http://tracker.example/announce", mi.Announce)
	require.Len(t, mi.Pieces, 4)

	wantSizes := []int{32, 32, 32, 4}
	for i, p := range mi.Pieces {
		require.Equal(t, i, p.Index)
		require.Equal(t, wantSizes[i], p.Size)
		// every piece here is smaller than the default block size, so each
		// has exactly one block spanning the whole piece.
		require.Equal(t, 1, p.BlockCount)
		require.Len(t, p.Blocks, 1)
		require.Equal(t, 0, p.Blocks[0].Offset)
		require.Equal(t, wantSizes[i], p.Blocks[0].Size)
	}
}

// P4 — piece/block layout invariants, exercised against a piece length
// larger than the default block size so a piece spans multiple blocks.
func TestPieceLayoutInvariants(t *testing.T) {
	totalSize := int64(16384*2 + 16384*2 + 5000) // two full pieces + a short last piece
	pieceLength := int64(16384 * 2)
	pieces := make([]byte, 3*20)

	root := bencode.Dict(
		bencode.DictEntry{Key: []byte("announce"), Value: bencode.ByteStringFromText("http://t/a")},
		bencode.DictEntry{Key: []byte("info"), Value: buildInfoDict(totalSize, pieceLength, "big.bin", pieces)},
	)
	mi, err := Build(root)
	require.NoError(t, err)
	require.Len(t, mi.Pieces, 3)

	var sumPieceSizes int
	for i, p := range mi.Pieces {
		sumPieceSizes += p.Size
		if i < len(mi.Pieces)-1 {
			require.Equal(t, int(pieceLength), p.Size)
		}
		var sumBlockSizes int
		for j, b := range p.Blocks {
			sumBlockSizes += b.Size
			if j < len(p.Blocks)-1 {
				require.Equal(t, DefaultBlockSize, b.Size)
			}
		}
		require.Equal(t, p.Size, sumBlockSizes)
	}
	require.Equal(t, int(totalSize), sumPieceSizes)

	expectedCount := (totalSize + pieceLength - 1) / pieceLength
	require.EqualValues(t, expectedCount, len(mi.Pieces))
}

func TestBuildRejectsMissingKeys(t *testing.T) {
	root := bencode.Dict(
		bencode.DictEntry{Key: []byte("announce"), Value: bencode.ByteStringFromText("http://t/a")},
	)
	_, err := Build(root)
	require.Error(t, err)
	require.True(t, errors.Is(err, bterr.ErrSchema))
}

func TestBuildRejectsBadPiecesLength(t *testing.T) {
	root := bencode.Dict(
		bencode.DictEntry{Key: []byte("announce"), Value: bencode.ByteStringFromText("http://t/a")},
		bencode.DictEntry{Key: []byte("info"), Value: buildInfoDict(10, 10, "x", []byte("not-multiple-of-20"))},
	)
	_, err := Build(root)
	require.Error(t, err)
	require.True(t, errors.Is(err, bterr.ErrSchema))
}

func TestBuildRejectsEmptyPieces(t *testing.T) {
	root := bencode.Dict(
		bencode.DictEntry{Key: []byte("announce"), Value: bencode.ByteStringFromText("http://t/a")},
		bencode.DictEntry{Key: []byte("info"), Value: buildInfoDict(0, 10, "x", nil)},
	)
	_, err := Build(root)
	require.Error(t, err)
	require.True(t, errors.Is(err, bterr.ErrSchema))
}

// P5 — infohash stability: SHA-1 of the re-encoded info subtree, computed
// twice, is the same, and matches an independent encode+sha1.
func TestInfoHashStable(t *testing.T) {
	info := buildInfoDict(100, 32, "t.txt", fourHashes())
	h1, err := ComputeInfoHash(info)
	require.NoError(t, err)
	h2, err := ComputeInfoHash(info)
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	want := sha1.Sum(bencode.EncodeBytes(info))
	require.Equal(t, want, h1)
}

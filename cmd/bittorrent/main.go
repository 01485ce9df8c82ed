// Command bittorrent is the CLI driver: bencode inspection, torrent
// metadata, tracker announces, the peer handshake, and single-piece
// download.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/kdalton/bittorrent/internal/bencode"
	"github.com/kdalton/bittorrent/internal/clientid"
	"github.com/kdalton/bittorrent/internal/downloader"
	"github.com/kdalton/bittorrent/internal/logging"
	"github.com/kdalton/bittorrent/internal/metainfo"
	"github.com/kdalton/bittorrent/internal/peerwire"
	"github.com/kdalton/bittorrent/internal/tracker"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultListenPort = 6881

func main() {
	var logLevel string

	root := &cobra.Command{
		Use:           "bittorrent",
		Short:         "Decode bencode, inspect torrents, and talk to trackers and peers",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(logLevel)
		},
	}
	root.PersistentFlags().StringVarP(&logLevel, "log-level", "v", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		decodeCmd(),
		infoCmd(),
		peersCmd(),
		handshakeCmd(),
		downloadPieceCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func decodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <bencoded-value>",
		Short: "Decode a bencoded value and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, _, err := bencode.Decode([]byte(args[0]))
			if err != nil {
				return err
			}
			out, err := json.Marshal(toJSON(v))
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

// toJSON converts a bencode.Value to a plain Go value suitable for
// encoding/json, representing byte strings as their raw text (bencode
// byte strings in a .torrent's metadata are ASCII in practice, the
// decode command is a debugging aid rather than a binary-safe transport).
func toJSON(v *bencode.Value) interface{} {
	switch v.Kind {
	case bencode.KindInteger:
		return v.Int
	case bencode.KindString:
		return v.Text()
	case bencode.KindList:
		out := make([]interface{}, len(v.List))
		for i, item := range v.List {
			out[i] = toJSON(item)
		}
		return out
	case bencode.KindDict:
		out := make(map[string]interface{}, len(v.Dict))
		for _, e := range v.Dict {
			out[string(e.Key)] = toJSON(e.Value)
		}
		return out
	default:
		return nil
	}
}

func loadMetainfo(path string) (*metainfo.MetaInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, _, err := bencode.Decode(data)
	if err != nil {
		return nil, err
	}
	return metainfo.Build(v)
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <torrent-file>",
		Short: "Print a torrent's tracker URL, length, info hash, and piece hashes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mi, err := loadMetainfo(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Tracker URL: %s\n", mi.Announce)
			fmt.Printf("Length: %d\n", mi.TotalSize)
			fmt.Printf("Info Hash: %x\n", mi.InfoHash)
			fmt.Printf("Piece Length: %d\n", mi.PieceLength)
			fmt.Println("Piece Hashes:")
			for _, p := range mi.Pieces {
				fmt.Printf("%x\n", p.Hash)
			}
			return nil
		},
	}
}

func peersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peers <torrent-file>",
		Short: "Query the tracker and print the discovered peers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mi, err := loadMetainfo(args[0])
			if err != nil {
				return err
			}
			id, err := clientid.New()
			if err != nil {
				return err
			}
			resp, err := tracker.NewClient().Query(cmd.Context(), mi, id, defaultListenPort)
			if err != nil {
				return err
			}
			for _, p := range resp.Peers {
				fmt.Println(p.String())
			}
			return nil
		},
	}
}

func handshakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "handshake <torrent-file> <ip:port>",
		Short: "Perform the peer handshake and print the remote peer id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mi, err := loadMetainfo(args[0])
			if err != nil {
				return err
			}
			id, err := clientid.New()
			if err != nil {
				return err
			}
			conn, err := peerwire.TCPConnectFromAddress(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			defer conn.Close()

			remote, err := peerwire.Do(cmd.Context(), conn, peerwire.Handshake{InfoHash: mi.InfoHash, PeerID: id})
			if err != nil {
				return err
			}
			fmt.Printf("Peer ID: %s\n", hex.EncodeToString(remote.PeerID[:]))
			return nil
		},
	}
}

func downloadPieceCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "download_piece <torrent-file> <piece-index>",
		Short: "Download and verify a single piece from a peer returned by the tracker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return fmt.Errorf("output path is required (-o)")
			}
			mi, err := loadMetainfo(args[0])
			if err != nil {
				return err
			}
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid piece index %q: %w", args[1], err)
			}
			if index < 0 || index >= len(mi.Pieces) {
				return fmt.Errorf("piece index %d out of range [0, %d)", index, len(mi.Pieces))
			}

			id, err := clientid.New()
			if err != nil {
				return err
			}
			resp, err := tracker.NewClient().Query(cmd.Context(), mi, id, defaultListenPort)
			if err != nil {
				return err
			}
			if len(resp.Peers) == 0 {
				return fmt.Errorf("tracker returned no peers")
			}

			data, err := downloader.DownloadPiece(cmd.Context(), resp.Peers[0].String(), mi, id, mi.Pieces[index])
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"path": outPath, "piece": index}).Info("piece written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output file path")
	return cmd
}

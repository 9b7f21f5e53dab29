package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"testing"

	"github.com/ipfs/go-cid"
	carv1 "github.com/ipld/go-car"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/solana-ledger-tools/carstream/carreader"
	"github.com/solana-ledger-tools/carstream/ipld/ledgernode"
	"github.com/solana-ledger-tools/carstream/ledgerkind"
)

func buildCar(t *testing.T, n int) ([]cid.Cid, io.ReadCloser) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, carv1.WriteHeader(&carv1.CarHeader{Version: 1}, &buf))

	cids := make([]cid.Cid, 0, n)
	for i := 0; i < n; i++ {
		entry := &ledgernode.Entry{Kind: int(ledgerkind.Entry), NumHashes: i, Hash: []byte(fmt.Sprintf("hash-%d", i))}
		payload, err := entry.MarshalCBOR()
		require.NoError(t, err)

		mh, err := multihash.Sum(payload, multihash.SHA2_256, -1)
		require.NoError(t, err)
		c := cid.NewCidV1(cid.Raw, mh)
		cids = append(cids, c)

		cidBytes := c.Bytes()
		sectionLen := len(cidBytes) + len(payload)
		var lenBuf [binary.MaxVarintLen64]byte
		ln := binary.PutUvarint(lenBuf[:], uint64(sectionLen))
		buf.Write(lenBuf[:ln])
		buf.Write(cidBytes)
		buf.Write(payload)
	}

	return cids, io.NopCloser(bytes.NewReader(buf.Bytes()))
}

func TestDecodePreservesOrderAcrossWindowSizes(t *testing.T) {
	for _, window := range []int{1, 4, 64, 1024} {
		window := window
		t.Run(fmt.Sprintf("window=%d", window), func(t *testing.T) {
			const n = 500
			cids, rc := buildCar(t, n)

			r, err := carreader.New(rc)
			require.NoError(t, err)

			results := Decode(context.Background(), r, window)

			got := 0
			for res := range results {
				require.NoError(t, res.Err)
				require.True(t, cids[got].Equals(res.CID), "result %d out of order", got)
				entry, ok := res.Node.(*ledgernode.Entry)
				require.True(t, ok)
				require.Equal(t, got, entry.NumHashes)
				got++
			}
			require.Equal(t, n, got)
		})
	}
}

func TestDecodeSurfacesDecodeErrorAndStops(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, carv1.WriteHeader(&carv1.CarHeader{Version: 1}, &buf))

	good := &ledgernode.Entry{Kind: int(ledgerkind.Entry), Hash: []byte{1}}
	goodPayload, err := good.MarshalCBOR()
	require.NoError(t, err)
	writeRawSection(t, &buf, goodPayload)

	// A payload with a corrupted kind tag fails to decode.
	badPayload, err := good.MarshalCBOR()
	require.NoError(t, err)
	badPayload[1] = 200
	writeRawSection(t, &buf, badPayload)

	r, err := carreader.New(io.NopCloser(bytes.NewReader(buf.Bytes())))
	require.NoError(t, err)

	results := Decode(context.Background(), r, 4)

	first := <-results
	require.NoError(t, first.Err)

	second := <-results
	require.Error(t, second.Err)

	_, open := <-results
	require.False(t, open)
}

func writeRawSection(t *testing.T, buf *bytes.Buffer, payload []byte) {
	t.Helper()
	mh, err := multihash.Sum(payload, multihash.SHA2_256, -1)
	require.NoError(t, err)
	c := cid.NewCidV1(cid.Raw, mh)
	cidBytes := c.Bytes()
	sectionLen := len(cidBytes) + len(payload)
	var lenBuf [binary.MaxVarintLen64]byte
	ln := binary.PutUvarint(lenBuf[:], uint64(sectionLen))
	buf.Write(lenBuf[:ln])
	buf.Write(cidBytes)
	buf.Write(payload)
}

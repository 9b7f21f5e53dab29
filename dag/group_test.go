package dag

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/ipfs/go-cid"
	carv1 "github.com/ipld/go-car"
	"github.com/ipld/go-ipld-prime/datamodel"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/solana-ledger-tools/carstream/carerr"
	"github.com/solana-ledger-tools/carstream/carreader"
	"github.com/solana-ledger-tools/carstream/ipld/ledgernode"
	"github.com/solana-ledger-tools/carstream/ledgerkind"
)

func testLinkFor(t *testing.T, seed byte) datamodel.Link {
	t.Helper()
	return cidlink.Link{Cid: cidFor(t, []byte{seed})}
}

func cidFor(t *testing.T, data []byte) cid.Cid {
	t.Helper()
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	require.NoError(t, err)
	return cid.NewCidV1(cid.Raw, mh)
}

// carBuilder accumulates CAR v1 sections in memory for tests that need a
// carreader.Reader over a synthetic stream.
type carBuilder struct {
	buf bytes.Buffer
}

func newCarBuilder(t *testing.T) *carBuilder {
	t.Helper()
	b := &carBuilder{}
	require.NoError(t, carv1.WriteHeader(&carv1.CarHeader{Version: 1}, &b.buf))
	return b
}

func (b *carBuilder) put(t *testing.T, payload []byte) cid.Cid {
	t.Helper()
	c := cidFor(t, payload)
	cidBytes := c.Bytes()
	n := len(cidBytes) + len(payload)
	var lenBuf [binary.MaxVarintLen64]byte
	ln := binary.PutUvarint(lenBuf[:], uint64(n))
	b.buf.Write(lenBuf[:ln])
	b.buf.Write(cidBytes)
	b.buf.Write(payload)
	return c
}

func (b *carBuilder) reader(t *testing.T) *carreader.Reader {
	t.Helper()
	r, err := carreader.New(io.NopCloser(bytes.NewReader(b.buf.Bytes())))
	require.NoError(t, err)
	return r
}

func encodeNode(t *testing.T, n interface{ MarshalCBOR() ([]byte, error) }) []byte {
	t.Helper()
	raw, err := n.MarshalCBOR()
	require.NoError(t, err)
	return raw
}

func TestReadUntilBlockGroupsOneBlockPerGroup(t *testing.T) {
	b := newCarBuilder(t)

	entryCid := b.put(t, encodeNode(t, &ledgernode.Entry{Kind: int(ledgerkind.Entry), Hash: []byte{1}}))
	blockCid := b.put(t, encodeNode(t, &ledgernode.Block{
		Kind:    int(ledgerkind.Block),
		Slot:    10,
		Entries: ledgernode.LinkList{},
		Rewards: testLinkFor(t, 99),
	}))
	secondEntryCid := b.put(t, encodeNode(t, &ledgernode.Entry{Kind: int(ledgerkind.Entry), Hash: []byte{2}}))
	secondBlockCid := b.put(t, encodeNode(t, &ledgernode.Block{
		Kind:    int(ledgerkind.Block),
		Slot:    11,
		Entries: ledgernode.LinkList{},
		Rewards: testLinkFor(t, 98),
	}))

	acc := NewAccumulator(b.reader(t))

	g1, err := acc.ReadUntilBlock()
	require.NoError(t, err)
	require.Equal(t, 2, g1.Len())
	blk1, ok := g1.Block()
	require.True(t, ok)
	require.Equal(t, 10, blk1.Slot)
	_, ok = g1.GetByCid(entryCid)
	require.True(t, ok)
	_, ok = g1.GetByCid(blockCid)
	require.True(t, ok)

	g2, err := acc.ReadUntilBlock()
	require.NoError(t, err)
	require.Equal(t, 2, g2.Len())
	blk2, ok := g2.Block()
	require.True(t, ok)
	require.Equal(t, 11, blk2.Slot)
	_, ok = g2.GetByCid(secondEntryCid)
	require.True(t, ok)
	_, ok = g2.GetByCid(secondBlockCid)
	require.True(t, ok)

	_, err = acc.ReadUntilBlock()
	require.ErrorIs(t, err, io.EOF)
}

func TestReadUntilBlockTrailingPartialGroup(t *testing.T) {
	b := newCarBuilder(t)
	b.put(t, encodeNode(t, &ledgernode.Entry{Kind: int(ledgerkind.Entry), Hash: []byte{1}}))

	acc := NewAccumulator(b.reader(t))

	g, err := acc.ReadUntilBlock()
	require.NoError(t, err)
	require.Equal(t, 1, g.Len())
	_, ok := g.Block()
	require.False(t, ok)

	_, err = acc.ReadUntilBlock()
	require.ErrorIs(t, err, io.EOF)
}

func TestReadUntilBlockDuplicateCid(t *testing.T) {
	b := newCarBuilder(t)
	payload := encodeNode(t, &ledgernode.Entry{Kind: int(ledgerkind.Entry), Hash: []byte{1}})
	// Write the exact same section twice: identical payload -> identical CID.
	b.put(t, payload)
	b.put(t, payload)

	acc := NewAccumulator(b.reader(t))
	_, err := acc.ReadUntilBlock()
	require.True(t, carerr.Is(err, carerr.DuplicateCid))
}

package carstream

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"testing"

	"github.com/ipfs/go-cid"
	carv1 "github.com/ipld/go-car"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/solana-ledger-tools/carstream/dag"
	"github.com/solana-ledger-tools/carstream/ipld/ledgernode"
	"github.com/solana-ledger-tools/carstream/ledgerkind"
)

type carFixture struct {
	buf bytes.Buffer
}

func newCarFixture(t *testing.T, roots ...cid.Cid) *carFixture {
	t.Helper()
	f := &carFixture{}
	require.NoError(t, carv1.WriteHeader(&carv1.CarHeader{Roots: roots, Version: 1}, &f.buf))
	return f
}

func (f *carFixture) put(t *testing.T, n interface{ MarshalCBOR() ([]byte, error) }) cid.Cid {
	t.Helper()
	payload, err := n.MarshalCBOR()
	require.NoError(t, err)

	mh, err := multihash.Sum(payload, multihash.SHA2_256, -1)
	require.NoError(t, err)
	c := cid.NewCidV1(cid.Raw, mh)

	cidBytes := c.Bytes()
	sectionLen := len(cidBytes) + len(payload)
	var lenBuf [binary.MaxVarintLen64]byte
	ln := binary.PutUvarint(lenBuf[:], uint64(sectionLen))
	f.buf.Write(lenBuf[:ln])
	f.buf.Write(cidBytes)
	f.buf.Write(payload)
	return c
}

func (f *carFixture) reader() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(f.buf.Bytes()))
}

func testLink(t *testing.T, seed byte) cidlink.Link {
	t.Helper()
	mh, err := multihash.Sum([]byte{seed}, multihash.SHA2_256, -1)
	require.NoError(t, err)
	return cidlink.Link{Cid: cid.NewCidV1(cid.Raw, mh)}
}

func TestNodesInlineAndParallelAgree(t *testing.T) {
	f := newCarFixture(t)
	var cids []cid.Cid
	for i := 0; i < 50; i++ {
		c := f.put(t, &ledgernode.Entry{Kind: int(ledgerkind.Entry), NumHashes: i, Hash: []byte{byte(i)}})
		cids = append(cids, c)
	}

	inlineCfg := Config{Window: 1, MaxBlockSize: DefaultConfig().MaxBlockSize}
	rd, err := New(f.reader(), inlineCfg)
	require.NoError(t, err)

	var got []cid.Cid
	for noe := range rd.Nodes(context.Background()) {
		require.NoError(t, noe.Err)
		got = append(got, noe.CID)
	}
	require.Equal(t, cids, got)

	parallelCfg := Config{Window: 8, MaxBlockSize: DefaultConfig().MaxBlockSize}
	rd2, err := New(f.reader(), parallelCfg)
	require.NoError(t, err)

	var got2 []cid.Cid
	for noe := range rd2.Nodes(context.Background()) {
		require.NoError(t, noe.Err)
		got2 = append(got2, noe.CID)
	}
	require.Equal(t, cids, got2)
}

func TestGroupsSplitsOnePerBlock(t *testing.T) {
	f := newCarFixture(t)
	f.put(t, &ledgernode.Entry{Kind: int(ledgerkind.Entry), Hash: []byte{1}})
	f.put(t, &ledgernode.Block{Kind: int(ledgerkind.Block), Slot: 7, Entries: ledgernode.LinkList{}, Rewards: testLink(t, 1)})
	f.put(t, &ledgernode.Entry{Kind: int(ledgerkind.Entry), Hash: []byte{2}})
	f.put(t, &ledgernode.Block{Kind: int(ledgerkind.Block), Slot: 8, Entries: ledgernode.LinkList{}, Rewards: testLink(t, 2)})

	rd, err := New(f.reader(), DefaultConfig())
	require.NoError(t, err)

	var slots []int
	for goe := range rd.Groups(context.Background()) {
		require.NoError(t, goe.Err)
		blk, ok := goe.Group.Block()
		require.True(t, ok)
		slots = append(slots, blk.Slot)
	}
	require.Equal(t, []int{7, 8}, slots)
}

func TestEndToEndChainedDataFrameReassembly(t *testing.T) {
	f := newCarFixture(t)

	c3 := f.put(t, &ledgernode.DataFrame{Kind: int(ledgerkind.DataFrame), Data: []byte("ccc")})
	c2 := f.put(t, &ledgernode.DataFrame{
		Kind: int(ledgerkind.DataFrame),
		Data: []byte("bbb"),
		Next: ledgernode.LinkList{cidlink.Link{Cid: c3}},
	})
	total := 3
	f.put(t, &ledgernode.DataFrame{
		Kind:  int(ledgerkind.DataFrame),
		Total: &total,
		Data:  []byte("aaa"),
		Next:  ledgernode.LinkList{cidlink.Link{Cid: c2}},
	})

	rd, err := New(f.reader(), DefaultConfig())
	require.NoError(t, err)

	byCid := map[cid.Cid]*ledgernode.DataFrame{}
	var first *ledgernode.DataFrame
	for noe := range rd.Nodes(context.Background()) {
		require.NoError(t, noe.Err)
		df, ok := noe.Node.(*ledgernode.DataFrame)
		require.True(t, ok)
		byCid[noe.CID] = df
		if df.Data[0] == 'a' {
			first = df
		}
	}
	require.NotNil(t, first)

	resolve := func(_ context.Context, c cid.Cid) (*ledgernode.DataFrame, error) {
		df, ok := byCid[c]
		require.True(t, ok)
		return df, nil
	}

	got, err := dag.Reassemble(context.Background(), first, resolve)
	require.NoError(t, err)
	require.Equal(t, []byte("aaabbbccc"), got)
}

func TestNodesSurfacesTruncationInline(t *testing.T) {
	f := newCarFixture(t)
	f.put(t, &ledgernode.Entry{Kind: int(ledgerkind.Entry), Hash: []byte("some bytes long enough to truncate")})

	truncated := f.buf.Bytes()[:f.buf.Len()-4]

	rd, err := New(io.NopCloser(bytes.NewReader(truncated)), Config{Window: 1})
	require.NoError(t, err)

	var last NodeOrError
	for noe := range rd.Nodes(context.Background()) {
		last = noe
	}
	require.Error(t, last.Err)
}

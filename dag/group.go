// Package dag accumulates decoded ledger nodes into per-block groups and
// reassembles sharded DataFrame chains into their original payload bytes.
package dag

import (
	"fmt"
	"io"

	"github.com/ipfs/go-cid"

	"github.com/solana-ledger-tools/carstream/carerr"
	"github.com/solana-ledger-tools/carstream/carreader"
	"github.com/solana-ledger-tools/carstream/ipld/ledgernode"
)

// Group is the ordered set of nodes read from a CAR stream up to and
// including the Block node that terminates it. It supports both
// insertion-order iteration and O(1) lookup by CID.
type Group struct {
	order []cid.Cid
	byCid map[cid.Cid]ledgernode.Node
	block *ledgernode.Block
}

// Len reports how many nodes are in the group.
func (g *Group) Len() int { return len(g.order) }

// CIDs returns the group's CIDs in the order they were read.
func (g *Group) CIDs() []cid.Cid { return g.order }

// GetByCid looks up a decoded node by CID in O(1).
func (g *Group) GetByCid(c cid.Cid) (ledgernode.Node, bool) {
	n, ok := g.byCid[c]
	return n, ok
}

// Block returns the Block node that terminated the group, if any. A group
// read at EOF before any Block node appeared returns (nil, false).
func (g *Group) Block() (*ledgernode.Block, bool) {
	if g.block == nil {
		return nil, false
	}
	return g.block, true
}

func newGroup(capHint int) *Group {
	return &Group{
		order: make([]cid.Cid, 0, capHint),
		byCid: make(map[cid.Cid]ledgernode.Node, capHint),
	}
}

func (g *Group) add(c cid.Cid, n ledgernode.Node) error {
	if _, dup := g.byCid[c]; dup {
		return carerr.WithCID(carerr.DuplicateCid, c, fmt.Errorf("cid already present in group"))
	}
	g.order = append(g.order, c)
	g.byCid[c] = n
	return nil
}

// Accumulator buffers decoded nodes read sequentially from a carreader.Reader
// into successive Groups, one per Block node encountered.
type Accumulator struct {
	r *carreader.Reader
}

// NewAccumulator wraps r for group-at-a-time reading.
func NewAccumulator(r *carreader.Reader) *Accumulator {
	return &Accumulator{r: r}
}

// ReadUntilBlock reads and decodes nodes until a Block node is read
// (inclusive) or the underlying stream ends. It returns io.EOF only when no
// nodes at all were read for this call, matching the teacher's "clean end of
// stream" convention; a partial group read right before EOF is still
// returned with a nil error, and the caller's next call will see the EOF.
func (a *Accumulator) ReadUntilBlock() (*Group, error) {
	g := newGroup(64)
	for {
		c, _, data, err := a.r.NextNodeBytes()
		if err != nil {
			if err == io.EOF {
				if g.Len() == 0 {
					return nil, io.EOF
				}
				return g, nil
			}
			return nil, err
		}

		node, err := ledgernode.DecodeAny(data)
		if err != nil {
			return nil, err
		}

		if err := g.add(c, node); err != nil {
			return nil, err
		}

		if blk, ok := node.(*ledgernode.Block); ok {
			g.block = blk
			return g, nil
		}
	}
}

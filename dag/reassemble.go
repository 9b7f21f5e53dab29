package dag

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"

	"github.com/solana-ledger-tools/carstream/carerr"
	"github.com/solana-ledger-tools/carstream/ipld/ledgernode"
)

// ResolveFunc fetches the DataFrame a Next link points at, e.g. from a Group
// via GetByCid or from some backing store keyed by CID.
type ResolveFunc func(ctx context.Context, c cid.Cid) (*ledgernode.DataFrame, error)

// Reassemble concatenates first and, if it chains via Next, every frame
// reachable by walking Next links depth-first in the order they appear
// (never re-sorted by Index). It fails closed on a repeated CID
// (carerr.CyclicChain) or a frame count that disagrees with first's
// recorded Total (carerr.InconsistentChain). When first's Total is absent
// or 1, first's own bytes are returned as they are, without calling
// resolve and without checking Hash; otherwise, if first carries a Hash,
// the reassembled bytes are verified against it before returning.
func Reassemble(ctx context.Context, first *ledgernode.DataFrame, resolve ResolveFunc) ([]byte, error) {
	if total, ok := first.GetTotal(); !ok || total == 1 {
		return first.Bytes(), nil
	}

	frames, err := collectChain(ctx, first, resolve, map[cid.Cid]struct{}{})
	if err != nil {
		return nil, err
	}

	if total, ok := first.GetTotal(); ok && len(frames) != total {
		return nil, carerr.New(carerr.InconsistentChain, fmt.Errorf("expected %d frames, got %d", total, len(frames)))
	}

	buf := new(bytes.Buffer)
	for _, f := range frames {
		buf.Write(f.Bytes())
	}

	if hash, ok := first.GetHash(); ok {
		if err := ledgernode.VerifyHash(buf.Bytes(), hash); err != nil {
			return nil, carerr.New(carerr.InconsistentChain, err)
		}
	}

	return buf.Bytes(), nil
}

func collectChain(ctx context.Context, frame *ledgernode.DataFrame, resolve ResolveFunc, visited map[cid.Cid]struct{}) ([]*ledgernode.DataFrame, error) {
	frames := []*ledgernode.DataFrame{frame}

	next, ok := frame.GetNext()
	if !ok {
		return frames, nil
	}

	for _, l := range next {
		link, ok := l.(cidlink.Link)
		if !ok {
			return nil, carerr.New(carerr.MissingRef, fmt.Errorf("next link is not a CID link: %T", l))
		}
		c := link.Cid

		if _, seen := visited[c]; seen {
			return nil, carerr.WithCID(carerr.CyclicChain, c, fmt.Errorf("next link revisits a cid already seen in this chain"))
		}
		visited[c] = struct{}{}

		nextFrame, err := resolve(ctx, c)
		if err != nil {
			return nil, carerr.WithCID(carerr.MissingRef, c, err)
		}

		more, err := collectChain(ctx, nextFrame, resolve, visited)
		if err != nil {
			return nil, err
		}
		frames = append(frames, more...)
	}

	return frames, nil
}

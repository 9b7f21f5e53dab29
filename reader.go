package carstream

import (
	"context"
	"io"

	"github.com/ipfs/go-cid"
	carv1 "github.com/ipld/go-car"

	"github.com/solana-ledger-tools/carstream/carreader"
	"github.com/solana-ledger-tools/carstream/dag"
	"github.com/solana-ledger-tools/carstream/ipld/ledgernode"
	"github.com/solana-ledger-tools/carstream/pipeline"
)

// NodeOrError is one element of a Reader.Nodes stream.
type NodeOrError struct {
	CID  cid.Cid
	Node ledgernode.Node
	Err  error
}

// GroupOrError is one element of a Reader.Groups stream.
type GroupOrError struct {
	Group *dag.Group
	Err   error
}

// Reader streams decoded nodes and node groups out of a single CAR v1 epoch
// archive opened over r.
type Reader struct {
	cr  *carreader.Reader
	cfg Config
}

// New opens a CAR v1 stream over r, reading and validating its header
// immediately.
func New(r io.ReadCloser, cfg Config) (*Reader, error) {
	cr, err := carreader.New(r, carreader.WithMaxBlockSize(cfg.maxBlockSize()))
	if err != nil {
		return nil, err
	}
	return &Reader{cr: cr, cfg: cfg}, nil
}

// CarHeader returns the CAR v1 header read by New.
func (rd *Reader) CarHeader() *carv1.CarHeader { return rd.cr.Header }

// Close releases the underlying io.ReadCloser passed to New. Callers should
// let any in-flight Nodes/Groups channel drain (or cancel its context) before
// closing, since a closed reader turns further reads into a surfaced error.
func (rd *Reader) Close() error { return rd.cr.Close() }

// Nodes streams every node in the CAR in file order. The channel is closed
// after the first error (including a clean end of stream, which is not
// itself sent as a NodeOrError) or when ctx is done.
func (rd *Reader) Nodes(ctx context.Context) <-chan NodeOrError {
	out := make(chan NodeOrError)

	if rd.cfg.parallel() {
		go rd.nodesParallel(ctx, out)
	} else {
		go rd.nodesInline(ctx, out)
	}

	return out
}

func (rd *Reader) nodesInline(ctx context.Context, out chan<- NodeOrError) {
	defer close(out)
	for {
		if ctx.Err() != nil {
			return
		}
		c, _, data, err := rd.cr.NextNodeBytes()
		if err != nil {
			if err != io.EOF {
				send(ctx, out, NodeOrError{Err: err})
			}
			return
		}
		node, err := ledgernode.DecodeAny(data)
		if err != nil {
			send(ctx, out, NodeOrError{CID: c, Err: err})
			return
		}
		if !send(ctx, out, NodeOrError{CID: c, Node: node}) {
			return
		}
	}
}

func (rd *Reader) nodesParallel(ctx context.Context, out chan<- NodeOrError) {
	defer close(out)
	for r := range pipeline.Decode(ctx, rd.cr, rd.cfg.Window) {
		if !send(ctx, out, NodeOrError{CID: r.CID, Node: r.Node, Err: r.Err}) {
			return
		}
		if r.Err != nil {
			return
		}
	}
}

// Groups streams every Solana-block-sized group of nodes in the CAR, in
// file order. The channel is closed after the first error or when ctx is
// done. Groups reads inline regardless of Config.Window: grouping is an
// inherently sequential fold over the node stream, and only the per-node
// decode work benefits from a worker pool.
func (rd *Reader) Groups(ctx context.Context) <-chan GroupOrError {
	out := make(chan GroupOrError)
	go func() {
		defer close(out)
		acc := dag.NewAccumulator(rd.cr)
		for {
			if ctx.Err() != nil {
				return
			}
			g, err := acc.ReadUntilBlock()
			if err != nil {
				if err != io.EOF {
					select {
					case out <- GroupOrError{Err: err}:
					case <-ctx.Done():
					}
				}
				return
			}
			select {
			case out <- GroupOrError{Group: g}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func send(ctx context.Context, out chan<- NodeOrError, v NodeOrError) bool {
	select {
	case out <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

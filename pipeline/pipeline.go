// Package pipeline runs CAR node decoding on a bounded worker pool while
// preserving the input order of results, so a caller downstream of Decode
// sees nodes in the same order they appeared in the CAR stream regardless of
// which worker finished first.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	concurrently "github.com/tejzpr/ordered-concurrently/v3"

	"github.com/solana-ledger-tools/carstream/carerr"
	"github.com/solana-ledger-tools/carstream/carreader"
	"github.com/solana-ledger-tools/carstream/ipld/ledgernode"
)

// Result is one decoded node, in the order it was read from the CAR stream.
type Result struct {
	CID    cid.Cid
	Offset uint64
	Node   ledgernode.Node
	Err    error
}

type decodeJob struct {
	cid    cid.Cid
	offset uint64
	data   []byte
}

// errJob carries a terminal read error (anything but a clean EOF) through
// the ordered pipeline so it surfaces to the consumer in correct sequence
// relative to sections read before it.
type errJob struct{ err error }

func (j errJob) Run(ctx context.Context) interface{} {
	return Result{Err: j.err}
}

func (j decodeJob) Run(ctx context.Context) (out interface{}) {
	defer func() {
		if rec := recover(); rec != nil {
			out = Result{CID: j.cid, Offset: j.offset, Err: carerr.New(carerr.WorkerPanic, fmt.Errorf("%v", rec))}
		}
	}()

	node, err := ledgernode.DecodeAny(j.data)
	if err != nil {
		return Result{CID: j.cid, Offset: j.offset, Err: err}
	}
	return Result{CID: j.cid, Offset: j.offset, Node: node}
}

// Decode reads sequential sections from r on a goroutine of its own and
// decodes each one on a pool of up to window workers, emitting Results on
// the returned channel in the same order the sections were read. The
// channel is closed after the first error (from reading or decoding) or
// after r is exhausted; a read error other than a clean io.EOF is sent as a
// final Result carrying only Err. window is both the worker pool size and
// the maximum number of sections read ahead of the slowest consumer.
func Decode(ctx context.Context, r *carreader.Reader, window int) <-chan Result {
	if window < 1 {
		window = 1
	}

	// runCtx is canceled as soon as the consumer stops draining out, so the
	// producer below and concurrently's own internal goroutines don't block
	// forever feeding a pipeline nobody is reading from anymore.
	runCtx, cancel := context.WithCancel(ctx)

	in := make(chan concurrently.WorkFunction, window)
	out := concurrently.Process(runCtx, in, &concurrently.Options{
		PoolSize:         window,
		OutChannelBuffer: window,
	})

	results := make(chan Result, window)

	go func() {
		defer close(in)
		for {
			if runCtx.Err() != nil {
				return
			}
			offset := r.Offset()
			c, _, data, err := r.NextNodeBytes()
			if err != nil {
				if err != io.EOF {
					select {
					case in <- errJob{err}:
					case <-runCtx.Done():
					}
				}
				return
			}
			select {
			case in <- decodeJob{cid: c, offset: offset, data: data}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	go func() {
		defer cancel()
		defer close(results)
		for oo := range out {
			switch v := oo.Value.(type) {
			case Result:
				results <- v
				if v.Err != nil {
					return
				}
			case error:
				results <- Result{Err: v}
				return
			default:
				results <- Result{Err: carerr.New(carerr.WorkerPanic, fmt.Errorf("unexpected pipeline result type %T", oo.Value))}
				return
			}
		}
	}()

	return results
}

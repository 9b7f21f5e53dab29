// Package carstream streams decoded ledger nodes and Solana-block groups out
// of a CAR v1 epoch archive, composing carreader, ipld/ledgernode, pipeline
// and dag behind a single entry point.
package carstream

import (
	"github.com/solana-ledger-tools/carstream/carreader"
)

// Config selects the resource limits and concurrency a Reader uses.
type Config struct {
	// Window bounds both the decode worker pool size and how many sections
	// may be read ahead of the slowest consumer. Window <= 1 disables the
	// parallel pipeline: Nodes then reads and decodes inline on the single
	// goroutine it starts, with no worker pool, matching the teacher's own
	// CLIs when they don't need one. Groups always works this way.
	Window int
	// MaxBlockSize caps a single CAR section's length (CID plus payload); sections
	// claiming a larger size fail with carerr.BlockTooLarge. Zero selects
	// carreader.DefaultMaxBlockSize.
	MaxBlockSize uint64
}

// DefaultConfig returns a Config with an 8-wide pipeline window and the
// default max block size. New applies no defaults of its own beyond
// MaxBlockSize: a zero Config decodes inline.
func DefaultConfig() Config {
	return Config{
		Window:       8,
		MaxBlockSize: carreader.DefaultMaxBlockSize,
	}
}

func (c Config) maxBlockSize() uint64 {
	if c.MaxBlockSize == 0 {
		return carreader.DefaultMaxBlockSize
	}
	return c.MaxBlockSize
}

func (c Config) parallel() bool {
	return c.Window > 1
}

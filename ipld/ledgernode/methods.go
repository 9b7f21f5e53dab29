package ledgernode

import (
	"fmt"
	"hash/crc64"
	"hash/fnv"

	"github.com/ipfs/go-cid"
	"github.com/solana-ledger-tools/carstream/dummycid"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
)

// HasHash reports whether Hash is present.
func (d *DataFrame) HasHash() bool { return d.Hash != nil }

// GetHash returns Hash and whether it was present.
func (d *DataFrame) GetHash() (uint64, bool) {
	if d.Hash == nil {
		return 0, false
	}
	return *d.Hash, true
}

// HasIndex reports whether Index is present. Absent means index 0.
func (d *DataFrame) HasIndex() bool { return d.Index != nil }

// GetIndex returns Index and whether it was present.
func (d *DataFrame) GetIndex() (int, bool) {
	if d.Index == nil {
		return 0, false
	}
	return *d.Index, true
}

// HasTotal reports whether Total is present. Absent means a single frame.
func (d *DataFrame) HasTotal() bool { return d.Total != nil }

// GetTotal returns Total and whether it was present.
func (d *DataFrame) GetTotal() (int, bool) {
	if d.Total == nil {
		return 0, false
	}
	return *d.Total, true
}

// Bytes returns this frame's own payload (not the reassembled chain).
func (d *DataFrame) Bytes() []byte { return d.Data }

// HasNext reports whether this frame chains to further frames.
func (d *DataFrame) HasNext() bool { return len(d.Next) > 0 }

// GetNext returns Next and whether it is non-empty.
func (d *DataFrame) GetNext() (LinkList, bool) {
	if len(d.Next) == 0 {
		return nil, false
	}
	return d.Next, true
}

// checksumFnv is the legacy checksum, used by early writers of this format.
func checksumFnv(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

// checksumCrc64 is the checksum used by current writers of this format.
func checksumCrc64(data []byte) uint64 {
	return crc64.Checksum(data, crc64.MakeTable(crc64.ISO))
}

// VerifyHash reports whether data's checksum matches hash, trying the
// current CRC-64/ISO checksum first and falling back to the legacy FNV-64a
// checksum used by some older writers.
func VerifyHash(data []byte, hash uint64) error {
	if checksumCrc64(data) == hash {
		return nil
	}
	if checksumFnv(data) == hash {
		return nil
	}
	return fmt.Errorf("data hash mismatch: got neither crc64/iso nor fnv-64a match for %d", hash)
}

// HasIndex reports whether Index is present on this transaction.
func (t *Transaction) HasIndex() bool { return t.Index != nil }

// GetPositionIndex returns the transaction's 0-based position within its
// block, and whether that position was recorded.
func (t *Transaction) GetPositionIndex() (int, bool) {
	if t.Index == nil {
		return 0, false
	}
	return *t.Index, true
}

// HasBlockHeight reports whether BlockHeight is present.
func (m SlotMeta) HasBlockHeight() bool { return m.BlockHeight != nil }

// GetBlockHeight returns BlockHeight and whether it was present.
func (m SlotMeta) GetBlockHeight() (uint64, bool) {
	if m.BlockHeight == nil {
		return 0, false
	}
	return uint64(*m.BlockHeight), true
}

// GetBlockHeight returns the block's height, if recorded.
func (b *Block) GetBlockHeight() (uint64, bool) {
	return b.Meta.GetBlockHeight()
}

// rewardsCid extracts the concrete CID out of Block.Rewards.
func (b *Block) rewardsCid() cid.Cid {
	link, ok := b.Rewards.(cidlink.Link)
	if !ok {
		return cid.Undef
	}
	return link.Cid
}

// HasRewards reports whether the block has a real Rewards node, as opposed
// to the dummy-CID sentinel used to mean "no rewards".
func (b *Block) HasRewards() bool {
	return !b.rewardsCid().Equals(dummycid.DummyCID)
}

// GetRewards returns the block's Rewards CID, and false if the block uses
// the dummy-CID sentinel for "no rewards".
func (b *Block) GetRewards() (cid.Cid, bool) {
	c := b.rewardsCid()
	if c.Equals(dummycid.DummyCID) {
		return cid.Cid{}, false
	}
	return c, true
}

// GetSlot returns the block's slot.
func (b *Block) GetSlot() uint64 {
	if b == nil {
		return 0
	}
	return uint64(b.Slot)
}

// GetParentSlot returns the block's recorded parent slot.
func (b *Block) GetParentSlot() uint64 {
	if b == nil {
		return 0
	}
	return uint64(b.Meta.ParentSlot)
}

// GetBlocktime returns the block's recorded blocktime (unix seconds).
func (b *Block) GetBlocktime() int64 {
	if b == nil {
		return 0
	}
	return int64(b.Meta.Blocktime)
}

// Reset clears l to an empty slice, for sync.Pool reuse.
func (l *LinkList) Reset() {
	if l == nil {
		return
	}
	*l = (*l)[:0]
}

// Reset clears e to its zero value, for sync.Pool reuse.
func (e *Epoch) Reset() {
	if e == nil {
		return
	}
	e.Kind = 0
	e.Epoch = 0
	e.Subsets.Reset()
}

// Reset clears s to its zero value, for sync.Pool reuse.
func (s *Subset) Reset() {
	if s == nil {
		return
	}
	s.Kind = 0
	s.First = 0
	s.Last = 0
	s.Blocks.Reset()
}

// Reset clears b to its zero value, for sync.Pool reuse.
func (b *Block) Reset() {
	if b == nil {
		return
	}
	b.Kind = 0
	b.Slot = 0
	b.Shredding = b.Shredding[:0]
	b.Entries.Reset()
	b.Meta = SlotMeta{}
	b.Rewards = cidlink.Link{Cid: dummycid.DummyCID}
}

// Reset clears r to its zero value, for sync.Pool reuse.
func (r *Rewards) Reset() {
	if r == nil {
		return
	}
	r.Kind = 0
	r.Slot = 0
	r.Data.Reset()
}

// Reset clears e to its zero value, for sync.Pool reuse.
func (e *Entry) Reset() {
	if e == nil {
		return
	}
	e.Kind = 0
	e.NumHashes = 0
	e.Hash = e.Hash[:0]
	e.Transactions.Reset()
}

// Reset clears t to its zero value, for sync.Pool reuse.
func (t *Transaction) Reset() {
	if t == nil {
		return
	}
	t.Kind = 0
	t.Data.Reset()
	t.Metadata.Reset()
	t.Slot = 0
	t.Index = nil
}

// Reset clears d to its zero value, for sync.Pool reuse.
func (d *DataFrame) Reset() {
	if d == nil {
		return
	}
	d.Kind = 0
	d.Hash = nil
	d.Index = nil
	d.Total = nil
	d.Data = d.Data[:0]
	d.Next = nil
}

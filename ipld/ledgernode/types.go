// Package ledgernode holds the seven typed ledger node variants stored as
// CBOR-array-encoded IPLD blocks inside a CAR epoch, plus their codec,
// accessors, and a sync.Pool-backed allocator for each variant.
package ledgernode

import (
	"github.com/ipld/go-ipld-prime/datamodel"
)

// LinkList is a CID list as found in Epoch.Subsets, Subset.Blocks,
// Block.Entries, Entry.Transactions and DataFrame.Next. It is kept as
// datamodel.Link (rather than a bare []cid.Cid) so that a caller already
// working with go-ipld-prime link selectors can consume it directly.
type LinkList []datamodel.Link

// Node is implemented by every decoded ledger node variant.
type Node interface {
	Node()
}

var (
	_ Node = (*Epoch)(nil)
	_ Node = (*Subset)(nil)
	_ Node = (*Block)(nil)
	_ Node = (*Rewards)(nil)
	_ Node = (*Entry)(nil)
	_ Node = (*Transaction)(nil)
	_ Node = (*DataFrame)(nil)
)

func (e *Epoch) Node()       {}
func (s *Subset) Node()      {}
func (b *Block) Node()       {}
func (r *Rewards) Node()     {}
func (e *Entry) Node()       {}
func (t *Transaction) Node() {}
func (d *DataFrame) Node()   {}

// Epoch is the root node of an epoch's DAG: a list of Subset CIDs.
type Epoch struct {
	Kind    int
	Epoch   int
	Subsets LinkList
}

// Subset groups a contiguous range of block slots within an epoch.
type Subset struct {
	Kind   int
	First  int
	Last   int
	Blocks LinkList
}

// Shredding records, for one entry within a block, the index one past its
// last transaction and the index one past its last shred.
type Shredding struct {
	EntryEndIdx int
	ShredEndIdx int
}

// SlotMeta carries the block-level metadata attached to a Block node.
// BlockHeight is absent for blocks written before block-height tracking
// existed in the source ledger.
type SlotMeta struct {
	ParentSlot  int
	Blocktime   int
	BlockHeight *int
}

// Block is a single ledger slot: its entries, their shredding layout, slot
// metadata, and a link to its Rewards node (or the dummy CID sentinel when
// the slot has none).
type Block struct {
	Kind      int
	Slot      int
	Shredding []Shredding
	Entries   LinkList
	Meta      SlotMeta
	Rewards   datamodel.Link
}

// Rewards holds the (possibly sharded) reward-payout payload for one slot.
type Rewards struct {
	Kind int
	Slot int
	Data DataFrame
}

// Entry is one entry within a block: its hash, PoH hash count, and the
// transactions it contains.
type Entry struct {
	Kind         int
	NumHashes    int
	Hash         []byte
	Transactions LinkList
}

// Transaction is one transaction within a block, carrying its (possibly
// sharded) wire bytes and status metadata.
type Transaction struct {
	Kind     int
	Data     DataFrame
	Metadata DataFrame
	Slot     int
	Index    *int
}

// DataFrame is one shard of a payload that may be split across multiple
// DataFrame nodes chained via Next. Hash, Index and Total are present only
// on frames that are part of (or document) a multi-frame chain; Hash, when
// present, is the checksum of the full reassembled payload and is only set
// on the first frame.
type DataFrame struct {
	Kind  int
	Hash  *uint64
	Index *int
	Total *int
	Data  []byte
	Next  LinkList
}

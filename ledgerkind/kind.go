// Package ledgerkind defines the seven ledger node kinds stored in a CAR
// epoch DAG and the tag byte each is identified by on the wire.
package ledgerkind

import "fmt"

// Kind identifies the type of a decoded ledger node. It matches the first
// element of the node's CBOR array encoding.
type Kind int

const (
	Transaction Kind = iota
	Entry
	Block
	Subset
	Epoch
	Rewards
	DataFrame
)

// Slice is a small set of Kind values, used to filter which kinds a caller
// wants skipped while scanning a group.
type Slice []Kind

func (ks Slice) Has(k Kind) bool {
	for _, kind := range ks {
		if kind == k {
			return true
		}
	}
	return false
}

func (ks Slice) HasAny(kinds ...Kind) bool {
	for _, kind := range kinds {
		if ks.Has(kind) {
			return true
		}
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case Transaction:
		return "Transaction"
	case Entry:
		return "Entry"
	case Block:
		return "Block"
	case Subset:
		return "Subset"
	case Epoch:
		return "Epoch"
	case Rewards:
		return "Rewards"
	case DataFrame:
		return "DataFrame"
	default:
		return fmt.Sprintf("Unknown kind %d", int(k))
	}
}

// Valid reports whether k is one of the seven known kinds.
func (k Kind) Valid() bool {
	return k >= Transaction && k <= DataFrame
}

// FromTag reads the kind tag out of a raw node payload. Per the wire format
// the tag is always the second byte of the CBOR array encoding (after the
// single-byte array-length/type header).
func FromTag(raw []byte) (Kind, error) {
	if len(raw) < 2 {
		return -1, fmt.Errorf("node payload too short to contain a kind tag: %d bytes", len(raw))
	}
	return Kind(raw[1]), nil
}

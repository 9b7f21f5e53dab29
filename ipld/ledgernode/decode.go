package ledgernode

import (
	"fmt"

	"github.com/solana-ledger-tools/carstream/carerr"
	"github.com/solana-ledger-tools/carstream/ledgerkind"
)

// DecodeEpoch decodes raw as an Epoch node, using a pooled instance.
func DecodeEpoch(raw []byte) (*Epoch, error) {
	x := GetEpoch()
	if err := x.UnmarshalCBOR(raw); err != nil {
		PutEpoch(x)
		return nil, err
	}
	return x, nil
}

// DecodeSubset decodes raw as a Subset node, using a pooled instance.
func DecodeSubset(raw []byte) (*Subset, error) {
	x := GetSubset()
	if err := x.UnmarshalCBOR(raw); err != nil {
		PutSubset(x)
		return nil, err
	}
	return x, nil
}

// DecodeBlock decodes raw as a Block node, using a pooled instance.
func DecodeBlock(raw []byte) (*Block, error) {
	x := GetBlock()
	if err := x.UnmarshalCBOR(raw); err != nil {
		PutBlock(x)
		return nil, err
	}
	return x, nil
}

// DecodeEntry decodes raw as an Entry node, using a pooled instance.
func DecodeEntry(raw []byte) (*Entry, error) {
	x := GetEntry()
	if err := x.UnmarshalCBOR(raw); err != nil {
		PutEntry(x)
		return nil, err
	}
	return x, nil
}

// DecodeTransaction decodes raw as a Transaction node, using a pooled instance.
func DecodeTransaction(raw []byte) (*Transaction, error) {
	x := GetTransaction()
	if err := x.UnmarshalCBOR(raw); err != nil {
		PutTransaction(x)
		return nil, err
	}
	return x, nil
}

// DecodeRewards decodes raw as a Rewards node, using a pooled instance.
func DecodeRewards(raw []byte) (*Rewards, error) {
	x := GetRewards()
	if err := x.UnmarshalCBOR(raw); err != nil {
		PutRewards(x)
		return nil, err
	}
	return x, nil
}

// DecodeDataFrame decodes raw as a DataFrame node, using a pooled instance.
func DecodeDataFrame(raw []byte) (*DataFrame, error) {
	x := GetDataFrame()
	if err := x.UnmarshalCBOR(raw); err != nil {
		PutDataFrame(x)
		return nil, err
	}
	return x, nil
}

// GetKind reads the kind tag out of a raw node payload without decoding it.
func GetKind(raw []byte) (ledgerkind.Kind, error) {
	k, err := ledgerkind.FromTag(raw)
	if err != nil {
		return -1, carerr.New(carerr.MalformedNode, err)
	}
	return k, nil
}

// DecodeAny dispatches on raw's kind tag and decodes it as the matching
// Node variant.
func DecodeAny(raw []byte) (Node, error) {
	kind, err := GetKind(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case ledgerkind.Transaction:
		return DecodeTransaction(raw)
	case ledgerkind.Entry:
		return DecodeEntry(raw)
	case ledgerkind.Block:
		return DecodeBlock(raw)
	case ledgerkind.Subset:
		return DecodeSubset(raw)
	case ledgerkind.Epoch:
		return DecodeEpoch(raw)
	case ledgerkind.Rewards:
		return DecodeRewards(raw)
	case ledgerkind.DataFrame:
		return DecodeDataFrame(raw)
	default:
		return nil, carerr.New(carerr.UnknownKind, fmt.Errorf("unknown kind tag %d", int(kind)))
	}
}

package ledgernode

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/ipld/go-ipld-prime/datamodel"
	cidlink "github.com/ipld/go-ipld-prime/linking/cid"
	"github.com/solana-ledger-tools/carstream/carerr"
	"github.com/solana-ledger-tools/carstream/ledgerkind"
)

// _array is a thin positional-access wrapper over a decoded CBOR array, the
// shape every ledger node is encoded as.
type _array []any

func (a _array) Get(i int) (any, bool) {
	if i < 0 || i >= len(a) {
		return nil, false
	}
	return a[i], true
}

func newArray(l int) _array { return make(_array, l) }

func (a *_array) Set(i int, v any) { (*a)[i] = v }

var encMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("ledgernode: invalid canonical cbor encoding options: %s", err))
	}
	return em
}()

func encodeCBOR(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encMode.NewEncoder(&buf).Encode(v); err != nil {
		return nil, carerr.New(carerr.Cbor, fmt.Errorf("encode: %w", err))
	}
	return buf.Bytes(), nil
}

func decodeArray(data []byte) (_array, error) {
	var arr _array
	if err := cbor.NewDecoder(bytes.NewReader(data)).Decode(&arr); err != nil {
		return nil, carerr.New(carerr.Cbor, fmt.Errorf("decode top-level array: %w", err))
	}
	return arr, nil
}

func requireLen(arr _array, kind ledgerkind.Kind, want int) error {
	if len(arr) != want {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("%s node: expected array of length %d, got %d", kind, want, len(arr)))
	}
	return nil
}

func getUint64(i any) (uint64, error) {
	switch v := i.(type) {
	case uint64:
		return v, nil
	case int64:
		return uint64(v), nil
	default:
		return 0, fmt.Errorf("expected uint64 or int64, got %T", i)
	}
}

func requireField(arr _array, i int, name string) (any, error) {
	v, ok := arr.Get(i)
	if !ok {
		return nil, fmt.Errorf("expected field %q to be present", name)
	}
	return v, nil
}

func requireKind(arr _array, wantKind ledgerkind.Kind) (int, error) {
	raw, err := requireField(arr, 0, "kind")
	if err != nil {
		return 0, carerr.New(carerr.MalformedNode, err)
	}
	kindVal, err := getUint64(raw)
	if err != nil {
		return 0, carerr.New(carerr.MalformedNode, fmt.Errorf("field kind: %w", err))
	}
	if int(kindVal) != int(wantKind) {
		return 0, carerr.New(carerr.UnknownKind, fmt.Errorf("expected %s node, got kind %d", wantKind, kindVal))
	}
	return int(kindVal), nil
}

func linksToCBOR(links LinkList) []any {
	out := make([]any, len(links))
	for i, l := range links {
		out[i] = linkToTag(l)
	}
	return out
}

func linkToTag(l datamodel.Link) any {
	c := l.(cidlink.Link).Cid
	return cbor.Tag{Number: 42, Content: append([]byte{0}, c.Bytes()...)}
}

func linksFromCBOR(raw any) (LinkList, error) {
	if raw == nil {
		return nil, nil
	}
	rawList, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array of links, got %T", raw)
	}
	list := make(LinkList, 0, len(rawList))
	for _, item := range rawList {
		tag, ok := item.(cbor.Tag)
		if !ok {
			return nil, fmt.Errorf("expected cbor tag for link, got %T", item)
		}
		if tag.Number != 42 {
			return nil, fmt.Errorf("expected cbor tag 42 for link, got %d", tag.Number)
		}
		raw, ok := tag.Content.([]byte)
		if !ok {
			return nil, fmt.Errorf("expected cbor tag content to be []byte, got %T", tag.Content)
		}
		if len(raw) < 1 {
			return nil, fmt.Errorf("empty cid-link content")
		}
		_, c, err := cid.CidFromBytes(raw[1:])
		if err != nil {
			return nil, fmt.Errorf("invalid cid in link: %w", err)
		}
		list = append(list, cidlink.Link{Cid: c})
	}
	return list, nil
}

// EncodeArrayWith16BitLen encodes values as a CBOR array using a fixed
// two-byte length header, matching the wire format used for Subset.Blocks.
func EncodeArrayWith16BitLen(values ...any) ([]byte, error) {
	items := make([]cbor.RawMessage, 0, len(values))
	for _, v := range values {
		b, err := cbor.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("cbor.Marshal: %w", err)
		}
		items = append(items, b)
	}
	length := len(items)
	header := []byte{0x99, byte(length >> 8), byte(length)}
	out := make([]byte, 0, len(header))
	out = append(out, header...)
	for _, it := range items {
		out = append(out, it...)
	}
	return out, nil
}

// --- Epoch ---

var (
	_ cbor.Marshaler   = (*Epoch)(nil)
	_ cbor.Unmarshaler = (*Epoch)(nil)
)

func (x *Epoch) MarshalCBOR() ([]byte, error) {
	arr := newArray(3)
	arr.Set(0, uint64(x.Kind))
	arr.Set(1, uint64(x.Epoch))
	arr.Set(2, linksToCBOR(x.Subsets))
	return encodeCBOR(arr)
}

func (x *Epoch) UnmarshalCBOR(data []byte) error {
	arr, err := decodeArray(data)
	if err != nil {
		return err
	}
	if err := requireLen(arr, ledgerkind.Epoch, 3); err != nil {
		return err
	}
	kind, err := requireKind(arr, ledgerkind.Epoch)
	if err != nil {
		return err
	}
	x.Kind = kind
	epoch, err := requireField(arr, 1, "epoch")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	epochVal, err := getUint64(epoch)
	if err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field epoch: %w", err))
	}
	x.Epoch = int(epochVal)
	subsets, err := requireField(arr, 2, "subsets")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	x.Subsets, err = linksFromCBOR(subsets)
	if err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field subsets: %w", err))
	}
	return nil
}

// --- Subset ---

var (
	_ cbor.Marshaler   = (*Subset)(nil)
	_ cbor.Unmarshaler = (*Subset)(nil)
)

func (x *Subset) MarshalCBOR() ([]byte, error) {
	arr := newArray(4)
	arr.Set(0, uint64(x.Kind))
	arr.Set(1, uint64(x.First))
	arr.Set(2, uint64(x.Last))
	blocksRaw, err := EncodeArrayWith16BitLen(linksToCBOR(x.Blocks)...)
	if err != nil {
		return nil, carerr.New(carerr.Cbor, fmt.Errorf("encode blocks: %w", err))
	}
	arr.Set(3, cbor.RawMessage(blocksRaw))
	return encodeCBOR(arr)
}

func (x *Subset) UnmarshalCBOR(data []byte) error {
	arr, err := decodeArray(data)
	if err != nil {
		return err
	}
	if err := requireLen(arr, ledgerkind.Subset, 4); err != nil {
		return err
	}
	kind, err := requireKind(arr, ledgerkind.Subset)
	if err != nil {
		return err
	}
	x.Kind = kind
	first, err := requireField(arr, 1, "first")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	firstVal, err := getUint64(first)
	if err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field first: %w", err))
	}
	x.First = int(firstVal)
	last, err := requireField(arr, 2, "last")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	lastVal, err := getUint64(last)
	if err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field last: %w", err))
	}
	x.Last = int(lastVal)
	blocks, err := requireField(arr, 3, "blocks")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	x.Blocks, err = linksFromCBOR(blocks)
	if err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field blocks: %w", err))
	}
	return nil
}

// --- Block ---

var (
	_ cbor.Marshaler   = (*Block)(nil)
	_ cbor.Unmarshaler = (*Block)(nil)
)

func (x *Block) MarshalCBOR() ([]byte, error) {
	arr := newArray(6)
	arr.Set(0, uint64(x.Kind))
	arr.Set(1, uint64(x.Slot))
	shredding := make([]any, len(x.Shredding))
	for i, shr := range x.Shredding {
		sArr := newArray(2)
		sArr.Set(0, uint64(shr.EntryEndIdx))
		sArr.Set(1, uint64(shr.ShredEndIdx))
		shredding[i] = sArr
	}
	arr.Set(2, shredding)
	arr.Set(3, linksToCBOR(x.Entries))
	meta := newArray(3)
	meta.Set(0, uint64(x.Meta.ParentSlot))
	meta.Set(1, uint64(x.Meta.Blocktime))
	if x.Meta.BlockHeight != nil {
		meta.Set(2, uint64(*x.Meta.BlockHeight))
	}
	arr.Set(4, meta)
	arr.Set(5, linkToTag(x.Rewards))
	return encodeCBOR(arr)
}

func (x *Block) UnmarshalCBOR(data []byte) error {
	arr, err := decodeArray(data)
	if err != nil {
		return err
	}
	if err := requireLen(arr, ledgerkind.Block, 6); err != nil {
		return err
	}
	kind, err := requireKind(arr, ledgerkind.Block)
	if err != nil {
		return err
	}
	x.Kind = kind
	slot, err := requireField(arr, 1, "slot")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	slotVal, err := getUint64(slot)
	if err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field slot: %w", err))
	}
	x.Slot = int(slotVal)

	shreddingRaw, err := requireField(arr, 2, "shredding")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	shreddingList, ok := shreddingRaw.([]any)
	if !ok {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field shredding: expected array, got %T", shreddingRaw))
	}
	x.Shredding = make([]Shredding, 0, len(shreddingList))
	for _, item := range shreddingList {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			return carerr.New(carerr.MalformedNode, fmt.Errorf("field shredding: expected 2-element array, got %T", item))
		}
		entryEndIdx, err := getUint64(pair[0])
		if err != nil {
			return carerr.New(carerr.MalformedNode, fmt.Errorf("field shredding.entry_end_idx: %w", err))
		}
		shredEndIdx, err := getUint64(pair[1])
		if err != nil {
			return carerr.New(carerr.MalformedNode, fmt.Errorf("field shredding.shred_end_idx: %w", err))
		}
		x.Shredding = append(x.Shredding, Shredding{EntryEndIdx: int(entryEndIdx), ShredEndIdx: int(shredEndIdx)})
	}

	entries, err := requireField(arr, 3, "entries")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	x.Entries, err = linksFromCBOR(entries)
	if err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field entries: %w", err))
	}

	metaRaw, err := requireField(arr, 4, "meta")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	metaList, ok := metaRaw.([]any)
	if !ok || len(metaList) < 2 {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field meta: expected array of at least 2 elements, got %T", metaRaw))
	}
	metaArr := _array(metaList)
	var meta SlotMeta
	parentSlot, err := getUint64(metaList[0])
	if err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field meta.parent_slot: %w", err))
	}
	meta.ParentSlot = int(parentSlot)
	blocktime, err := getUint64(metaList[1])
	if err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field meta.blocktime: %w", err))
	}
	meta.Blocktime = int(blocktime)
	if bh, ok := metaArr.Get(2); ok && bh != nil {
		bhVal, err := getUint64(bh)
		if err != nil {
			return carerr.New(carerr.MalformedNode, fmt.Errorf("field meta.block_height: %w", err))
		}
		v := int(bhVal)
		meta.BlockHeight = &v
	}
	x.Meta = meta

	rewards, err := requireField(arr, 5, "rewards")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	rewardsLink, err := tagToLink(rewards)
	if err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field rewards: %w", err))
	}
	x.Rewards = rewardsLink
	return nil
}

func tagToLink(raw any) (datamodel.Link, error) {
	tag, ok := raw.(cbor.Tag)
	if !ok {
		return nil, fmt.Errorf("expected cbor tag, got %T", raw)
	}
	if tag.Number != 42 {
		return nil, fmt.Errorf("expected cbor tag 42, got %d", tag.Number)
	}
	content, ok := tag.Content.([]byte)
	if !ok {
		return nil, fmt.Errorf("expected cbor tag content to be []byte, got %T", tag.Content)
	}
	if len(content) < 1 {
		return nil, fmt.Errorf("empty cid-link content")
	}
	_, c, err := cid.CidFromBytes(content[1:])
	if err != nil {
		return nil, fmt.Errorf("invalid cid: %w", err)
	}
	return cidlink.Link{Cid: c}, nil
}

// --- Rewards ---

var (
	_ cbor.Marshaler   = (*Rewards)(nil)
	_ cbor.Unmarshaler = (*Rewards)(nil)
)

func (x *Rewards) MarshalCBOR() ([]byte, error) {
	arr := newArray(3)
	arr.Set(0, uint64(x.Kind))
	arr.Set(1, uint64(x.Slot))
	arr.Set(2, x.Data.toCBORArray())
	return encodeCBOR(arr)
}

func (x *Rewards) UnmarshalCBOR(data []byte) error {
	arr, err := decodeArray(data)
	if err != nil {
		return err
	}
	if err := requireLen(arr, ledgerkind.Rewards, 3); err != nil {
		return err
	}
	kind, err := requireKind(arr, ledgerkind.Rewards)
	if err != nil {
		return err
	}
	x.Kind = kind
	slot, err := requireField(arr, 1, "slot")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	slotVal, err := getUint64(slot)
	if err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field slot: %w", err))
	}
	x.Slot = int(slotVal)
	dataField, err := requireField(arr, 2, "data")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	dataList, ok := dataField.([]any)
	if !ok {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field data: expected array, got %T", dataField))
	}
	var df DataFrame
	if err := df.fromCBORArray(_array(dataList)); err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field data: %w", err))
	}
	x.Data = df
	return nil
}

// --- Entry ---

var (
	_ cbor.Marshaler   = (*Entry)(nil)
	_ cbor.Unmarshaler = (*Entry)(nil)
)

func (x *Entry) MarshalCBOR() ([]byte, error) {
	arr := newArray(4)
	arr.Set(0, uint64(x.Kind))
	arr.Set(1, uint64(x.NumHashes))
	arr.Set(2, x.Hash)
	arr.Set(3, linksToCBOR(x.Transactions))
	return encodeCBOR(arr)
}

func (x *Entry) UnmarshalCBOR(data []byte) error {
	arr, err := decodeArray(data)
	if err != nil {
		return err
	}
	if err := requireLen(arr, ledgerkind.Entry, 4); err != nil {
		return err
	}
	kind, err := requireKind(arr, ledgerkind.Entry)
	if err != nil {
		return err
	}
	x.Kind = kind
	numHashes, err := requireField(arr, 1, "num_hashes")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	numHashesVal, err := getUint64(numHashes)
	if err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field num_hashes: %w", err))
	}
	x.NumHashes = int(numHashesVal)
	hash, err := requireField(arr, 2, "hash")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	hashBytes, ok := hash.([]byte)
	if !ok {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field hash: expected []byte, got %T", hash))
	}
	x.Hash = hashBytes
	transactions, err := requireField(arr, 3, "transactions")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	x.Transactions, err = linksFromCBOR(transactions)
	if err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field transactions: %w", err))
	}
	return nil
}

// --- Transaction ---

var (
	_ cbor.Marshaler   = (*Transaction)(nil)
	_ cbor.Unmarshaler = (*Transaction)(nil)
)

func (x *Transaction) MarshalCBOR() ([]byte, error) {
	arr := newArray(5)
	arr.Set(0, uint64(x.Kind))
	arr.Set(1, x.Data.toCBORArray())
	arr.Set(2, x.Metadata.toCBORArray())
	arr.Set(3, uint64(x.Slot))
	if x.Index != nil {
		arr.Set(4, uint64(*x.Index))
	}
	return encodeCBOR(arr)
}

func (x *Transaction) UnmarshalCBOR(data []byte) error {
	arr, err := decodeArray(data)
	if err != nil {
		return err
	}
	if err := requireLen(arr, ledgerkind.Transaction, 5); err != nil {
		return err
	}
	kind, err := requireKind(arr, ledgerkind.Transaction)
	if err != nil {
		return err
	}
	x.Kind = kind
	dataField, err := requireField(arr, 1, "data")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	dataList, ok := dataField.([]any)
	if !ok {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field data: expected array, got %T", dataField))
	}
	var d DataFrame
	if err := d.fromCBORArray(_array(dataList)); err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field data: %w", err))
	}
	x.Data = d

	metaField, err := requireField(arr, 2, "metadata")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	metaList, ok := metaField.([]any)
	if !ok {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field metadata: expected array, got %T", metaField))
	}
	var m DataFrame
	if err := m.fromCBORArray(_array(metaList)); err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field metadata: %w", err))
	}
	x.Metadata = m

	slot, err := requireField(arr, 3, "slot")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	slotVal, err := getUint64(slot)
	if err != nil {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field slot: %w", err))
	}
	x.Slot = int(slotVal)

	if index, ok := arr.Get(4); ok && index != nil {
		indexVal, err := getUint64(index)
		if err != nil {
			return carerr.New(carerr.MalformedNode, fmt.Errorf("field index: %w", err))
		}
		v := int(indexVal)
		x.Index = &v
	}
	return nil
}

// --- DataFrame ---

var (
	_ cbor.Marshaler   = (*DataFrame)(nil)
	_ cbor.Unmarshaler = (*DataFrame)(nil)
)

func (x *DataFrame) MarshalCBOR() ([]byte, error) {
	return encodeCBOR(x.toCBORArray())
}

func (x *DataFrame) toCBORArray() _array {
	arr := newArray(6)
	arr.Set(0, uint64(x.Kind))
	if x.Hash != nil {
		arr.Set(1, *x.Hash)
	}
	if x.Index != nil {
		arr.Set(2, uint64(*x.Index))
	}
	if x.Total != nil {
		arr.Set(3, uint64(*x.Total))
	}
	arr.Set(4, x.Data)
	if len(x.Next) > 0 {
		arr.Set(5, linksToCBOR(x.Next))
	}
	return arr
}

func (x *DataFrame) UnmarshalCBOR(data []byte) error {
	arr, err := decodeArray(data)
	if err != nil {
		return err
	}
	return x.fromCBORArray(arr)
}

func (x *DataFrame) fromCBORArray(arr _array) error {
	if err := requireLen(arr, ledgerkind.DataFrame, 6); err != nil {
		return err
	}
	kind, err := requireKind(arr, ledgerkind.DataFrame)
	if err != nil {
		return err
	}
	x.Kind = kind

	if hash, ok := arr.Get(1); ok && hash != nil {
		hashVal, err := getUint64(hash)
		if err != nil {
			return carerr.New(carerr.MalformedNode, fmt.Errorf("field hash: %w", err))
		}
		x.Hash = &hashVal
	}
	if index, ok := arr.Get(2); ok && index != nil {
		indexVal, err := getUint64(index)
		if err != nil {
			return carerr.New(carerr.MalformedNode, fmt.Errorf("field index: %w", err))
		}
		v := int(indexVal)
		x.Index = &v
	}
	if total, ok := arr.Get(3); ok && total != nil {
		totalVal, err := getUint64(total)
		if err != nil {
			return carerr.New(carerr.MalformedNode, fmt.Errorf("field total: %w", err))
		}
		v := int(totalVal)
		x.Total = &v
	}
	dataField, err := requireField(arr, 4, "data")
	if err != nil {
		return carerr.New(carerr.MalformedNode, err)
	}
	dataBytes, ok := dataField.([]byte)
	if !ok {
		return carerr.New(carerr.MalformedNode, fmt.Errorf("field data: expected []byte, got %T", dataField))
	}
	x.Data = dataBytes
	if next, ok := arr.Get(5); ok && next != nil {
		x.Next, err = linksFromCBOR(next)
		if err != nil {
			return carerr.New(carerr.MalformedNode, fmt.Errorf("field next: %w", err))
		}
	}
	return nil
}

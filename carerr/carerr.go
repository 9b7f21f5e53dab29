// Package carerr defines the closed error taxonomy produced while reading
// and reassembling a CAR-encoded ledger epoch. Every error the frame reader,
// node decoder, pipeline and dag packages return to a caller is, or wraps, a
// *carerr.Error, with two exceptions: io.EOF marks a clean end of stream,
// and the standalone helpers ledgernode.EncodeArrayWith16BitLen,
// ledgernode.VerifyHash and package zstdutil return plain errors.
package carerr

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
)

// Code identifies one of the fixed set of ways a CAR stream can fail.
type Code int

const (
	// Io covers reads/writes against the underlying byte source that fail
	// for reasons unrelated to the CAR/CBOR encoding itself.
	Io Code = iota
	// Varint marks a malformed unsigned LEB128 varint (too many continuation
	// bytes, or a value that doesn't fit in 64 bits).
	Varint
	// TruncatedFrame marks a section or CID that ends before enough bytes
	// were available to parse it.
	TruncatedFrame
	// UnsupportedVersion marks a CAR header whose version isn't 1.
	UnsupportedVersion
	// BlockTooLarge marks a section length exceeding the configured maximum.
	BlockTooLarge
	// InvalidCid marks bytes that don't parse as a CIDv1.
	InvalidCid
	// Cbor marks CBOR (a node's array or the CAR header) that doesn't
	// encode or decode at all.
	Cbor
	// UnknownKind marks a node whose kind tag isn't one of the seven known
	// kinds, or isn't the kind a per-kind decoder was asked to decode.
	UnknownKind
	// MalformedNode marks a node whose CBOR array is a plausible shape but
	// whose field count, types, or values don't match its kind.
	MalformedNode
	// DuplicateCid marks two nodes within the same group sharing a CID.
	DuplicateCid
	// MissingRef marks a DataFrame chain or CID list referencing a CID that
	// was never seen.
	MissingRef
	// CyclicChain marks a DataFrame chain whose Next links revisit a CID
	// already seen earlier in the same chain.
	CyclicChain
	// InconsistentChain marks a DataFrame chain whose frame count disagrees
	// with the Total recorded on the first frame, or whose reassembled bytes
	// don't match the first frame's Hash.
	InconsistentChain
	// NotADataFrame marks a CID resolved through a chain that turned out not
	// to decode as a DataFrame.
	NotADataFrame
	// WorkerPanic marks a decode worker that panicked instead of returning
	// an error.
	WorkerPanic
)

func (c Code) String() string {
	switch c {
	case Io:
		return "io"
	case Varint:
		return "varint"
	case TruncatedFrame:
		return "truncated_frame"
	case UnsupportedVersion:
		return "unsupported_version"
	case BlockTooLarge:
		return "block_too_large"
	case InvalidCid:
		return "invalid_cid"
	case Cbor:
		return "cbor"
	case UnknownKind:
		return "unknown_kind"
	case MalformedNode:
		return "malformed_node"
	case DuplicateCid:
		return "duplicate_cid"
	case MissingRef:
		return "missing_ref"
	case CyclicChain:
		return "cyclic_chain"
	case InconsistentChain:
		return "inconsistent_chain"
	case NotADataFrame:
		return "not_a_dataframe"
	case WorkerPanic:
		return "worker_panic"
	default:
		return fmt.Sprintf("unknown_code(%d)", int(c))
	}
}

// Error is the single error type returned across package boundaries in this
// module. Offset is set on errors raised while reading a section's length
// prefix; CID is set on duplicate-CID and DataFrame-chain errors. Other
// errors, node decode errors included, leave both at their zero values;
// pipeline.Result and carstream.NodeOrError carry the CID of a section that
// failed to decode beside the error instead.
type Error struct {
	Code   Code
	Offset uint64
	CID    cid.Cid
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.CID.Defined() && e.Offset != 0:
		return fmt.Sprintf("%s: cid=%s offset=%d: %s", e.Code, e.CID, e.Offset, e.Err)
	case e.CID.Defined():
		return fmt.Sprintf("%s: cid=%s: %s", e.Code, e.CID, e.Err)
	case e.Offset != 0:
		return fmt.Sprintf("%s: offset=%d: %s", e.Code, e.Offset, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a bare *Error for the given code wrapping err.
func New(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

// WithOffset returns a copy of New(code, err) carrying the given byte offset.
func WithOffset(code Code, offset uint64, err error) *Error {
	return &Error{Code: code, Offset: offset, Err: err}
}

// WithCID returns a copy of New(code, err) carrying the given CID.
func WithCID(code Code, c cid.Cid, err error) *Error {
	return &Error{Code: code, CID: c, Err: err}
}

// WithCIDOffset returns a copy of New(code, err) carrying both a CID and a
// byte offset.
func WithCIDOffset(code Code, c cid.Cid, offset uint64, err error) *Error {
	return &Error{Code: code, CID: c, Offset: offset, Err: err}
}

// Is reports whether err is a *Error with the given code, looking through
// any wrapping via errors.As.
func Is(err error, code Code) bool {
	var ce *Error
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == code
}

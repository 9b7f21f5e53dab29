// Package carreader implements CAR v1 framing: the header and the
// length-prefixed CID+payload sections that follow it.
package carreader

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	carv1 "github.com/ipld/go-car"
	"github.com/ipld/go-car/util"

	"github.com/solana-ledger-tools/carstream/carerr"
	"github.com/solana-ledger-tools/carstream/readahead"
)

// DefaultMaxBlockSize bounds a single section's length (CID plus payload),
// as given by its varint prefix. Sections claiming a larger size are rejected with carerr.BlockTooLarge instead of
// being allocated.
const DefaultMaxBlockSize = 16 << 20 // 16 MiB

// Reader reads the header and sections of a CAR v1 stream.
type Reader struct {
	totalOffset  uint64
	headerSize   *uint64
	Header       *carv1.CarHeader
	br           *bufio.Reader
	closer       io.Closer
	maxBlockSize uint64
}

// Option configures a Reader constructed by New.
type Option func(*Reader)

// WithMaxBlockSize overrides DefaultMaxBlockSize.
func WithMaxBlockSize(n uint64) Option {
	return func(r *Reader) { r.maxBlockSize = n }
}

// New wraps r in a page-aligned, chunk-caching reader, reads and validates
// the CAR v1 header, and returns a Reader positioned at the first section.
// The CAR format is read strictly sequentially, so the readahead layer's
// large page-aligned chunks absorb most of the underlying io.ReadCloser's
// per-syscall cost; the small bufio.Reader on top exists only so sections
// can be read one uvarint/byte at a time.
func New(r io.ReadCloser, opts ...Option) (*Reader, error) {
	cc, err := readahead.NewCachingReaderFromReader(r, readahead.DefaultChunkSize)
	if err != nil {
		return nil, carerr.New(carerr.Io, err)
	}
	br := bufio.NewReader(cc)

	cr := &Reader{
		br:           br,
		closer:       cc,
		maxBlockSize: DefaultMaxBlockSize,
	}
	for _, opt := range opts {
		opt(cr)
	}

	ch, err := ReadHeader(br, cr.maxBlockSize)
	if err != nil {
		return nil, err
	}
	if ch.Version != 1 {
		return nil, carerr.New(carerr.UnsupportedVersion, fmt.Errorf("car version %d", ch.Version))
	}
	cr.Header = ch

	headerSize, err := cr.HeaderSize()
	if err != nil {
		return nil, fmt.Errorf("failed to get header size: %w", err)
	}
	cr.totalOffset = headerSize

	return cr, nil
}

// ReadHeader reads and CBOR-decodes the leading length-prefixed CAR header.
func ReadHeader(br io.Reader, maxBlockSize uint64) (*carv1.CarHeader, error) {
	hb, err := util.LdRead(bufio.NewReader(br))
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, carerr.New(carerr.Io, err)
		}
		return nil, carerr.New(carerr.Varint, err)
	}
	if uint64(len(hb)) > maxBlockSize {
		return nil, carerr.New(carerr.BlockTooLarge, fmt.Errorf("header section is %d bytes", len(hb)))
	}

	var ch carv1.CarHeader
	if err := cbor.DecodeInto(hb, &ch); err != nil {
		return nil, carerr.New(carerr.Cbor, fmt.Errorf("invalid car header: %w", err))
	}
	return &ch, nil
}

// NextInfo reads the next section's CID and length, skipping its payload.
func (cr *Reader) NextInfo() (cid.Cid, uint64, error) {
	c, sectionLen, err := cr.readNodeInfoWithoutData()
	if err != nil {
		return c, 0, err
	}
	cr.totalOffset += sectionLen
	return c, sectionLen, nil
}

// NextNodeBytes reads the next section's CID and payload.
func (cr *Reader) NextNodeBytes() (cid.Cid, uint64, []byte, error) {
	c, sectionLen, data, err := cr.readNodeInfoWithData()
	if err != nil {
		return c, 0, nil, err
	}
	cr.totalOffset += sectionLen
	return c, sectionLen, data, nil
}

// HeaderSize returns the encoded byte length of the CAR header section.
func (cr *Reader) HeaderSize() (uint64, error) {
	if cr.headerSize == nil {
		var buf bytes.Buffer
		if err := carv1.WriteHeader(cr.Header, &buf); err != nil {
			return 0, carerr.New(carerr.Cbor, err)
		}
		size := uint64(buf.Len())
		cr.headerSize = &size
	}
	return *cr.headerSize, nil
}

// Offset returns the byte offset of the next section to be read.
func (cr *Reader) Offset() uint64 { return cr.totalOffset }

// Close releases the underlying io.ReadCloser passed to New.
func (cr *Reader) Close() error { return cr.closer.Close() }

func (cr *Reader) readNodeInfoWithoutData() (cid.Cid, uint64, error) {
	sectionLen, ll, err := cr.readSectionLength()
	if err != nil {
		return cid.Cid{}, 0, err
	}

	cidLen, c, err := cid.CidFromReader(cr.br)
	if err != nil {
		return cid.Cid{}, 0, carerr.New(carerr.InvalidCid, err)
	}

	remainingSectionLen := int64(sectionLen) - int64(cidLen)
	if remainingSectionLen < 0 {
		return cid.Cid{}, 0, carerr.New(carerr.TruncatedFrame, fmt.Errorf("section length %d shorter than CID length %d", sectionLen, cidLen))
	}
	if _, err := io.CopyN(io.Discard, cr.br, remainingSectionLen); err != nil {
		return cid.Cid{}, 0, wrapReadErr(err)
	}

	return c, sectionLen + ll, nil
}

func (cr *Reader) readNodeInfoWithData() (cid.Cid, uint64, []byte, error) {
	sectionLen, ll, err := cr.readSectionLength()
	if err != nil {
		return cid.Cid{}, 0, nil, err
	}

	cidLen, c, err := cid.CidFromReader(cr.br)
	if err != nil {
		return cid.Cid{}, 0, nil, carerr.New(carerr.InvalidCid, err)
	}

	remainingSectionLen := int64(sectionLen) - int64(cidLen)
	if remainingSectionLen < 0 {
		return cid.Cid{}, 0, nil, carerr.New(carerr.TruncatedFrame, fmt.Errorf("section length %d shorter than CID length %d", sectionLen, cidLen))
	}

	buf := make([]byte, remainingSectionLen)
	if _, err := io.ReadFull(cr.br, buf); err != nil {
		return cid.Cid{}, 0, nil, wrapReadErr(err)
	}

	return c, sectionLen + ll, buf, nil
}

func wrapReadErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return carerr.New(carerr.TruncatedFrame, err)
	}
	return carerr.New(carerr.Io, err)
}

func (cr *Reader) readSectionLength() (uint64, uint64, error) {
	if _, err := cr.br.Peek(1); err != nil { // no more sections, likely clean io.EOF
		if errors.Is(err, io.EOF) {
			return 0, 0, io.EOF
		}
		return 0, 0, carerr.New(carerr.Io, err)
	}

	br := byteReaderWithCounter{cr.br, 0}
	l, err := binary.ReadUvarint(&br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, 0, carerr.WithOffset(carerr.TruncatedFrame, cr.totalOffset, io.ErrUnexpectedEOF)
		}
		return 0, 0, carerr.WithOffset(carerr.Varint, cr.totalOffset, err)
	}

	if l == 0 {
		// A zero-length varint is the CAR v1 convention for clean stream
		// termination, whether or not more bytes trail it (e.g. padding).
		return 0, 0, io.EOF
	}

	if l > cr.maxBlockSize {
		return 0, 0, carerr.WithOffset(carerr.BlockTooLarge, cr.totalOffset, fmt.Errorf("section claims %d bytes, max is %d", l, cr.maxBlockSize))
	}

	return l, br.Offset, nil
}

type byteReaderWithCounter struct {
	io.ByteReader
	Offset uint64
}

func (b *byteReaderWithCounter) ReadByte() (byte, error) {
	c, err := b.ByteReader.ReadByte()
	if err == nil {
		b.Offset++
	}
	return c, err
}

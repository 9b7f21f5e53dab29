// Package zstdutil decompresses and compresses the zstd payloads some CAR
// writers embed inside DataFrame/Transaction/Entry bytes. Decompression is
// never applied by dag or pipeline: a reassembled payload's compression, if
// any, is a property of the ledger data itself, not of the CAR/CBOR framing,
// so callers decide when to invoke this package.
package zstdutil

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	zstdpool "github.com/mostynb/zstdpool-freelist"
)

var decoderPool = zstdpool.NewDecoderPool()

// Decompress decodes a zstd frame using a pooled decoder.
func Decompress(data []byte) ([]byte, error) {
	dec, err := decoderPool.Get(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get zstd decoder from pool: %w", err)
	}
	defer decoderPool.Put(dec)

	content, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress zstd data: %w", err)
	}
	return content, nil
}

var encoderPool = zstdpool.NewEncoderPool(
	zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
)

// Compress encodes data as a zstd frame using a pooled encoder.
func Compress(data []byte) ([]byte, error) {
	enc, err := encoderPool.Get(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get zstd encoder from pool: %w", err)
	}
	defer encoderPool.Put(enc)
	return enc.EncodeAll(data, nil), nil
}

package zstdutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	original := []byte("the quick brown fox jumps over the lazy dog, repeatedly, for compressibility")

	compressed, err := Compress(original)
	require.NoError(t, err)
	require.NotEmpty(t, compressed)

	got, err := Decompress(compressed)
	require.NoError(t, err)
	require.Equal(t, original, got)
}

func TestDecompressRejectsGarbage(t *testing.T) {
	_, err := Decompress([]byte{0x01, 0x02, 0x03, 0x04})
	require.Error(t, err)
}

func TestCompressEmptyInput(t *testing.T) {
	compressed, err := Compress(nil)
	require.NoError(t, err)

	got, err := Decompress(compressed)
	require.NoError(t, err)
	require.Empty(t, got)
}

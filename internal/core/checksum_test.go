package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataChecksumEmptyInput(t *testing.T) {
	// The lookup3 internal state starts at 0xdeadbeef + length + seed and
	// an empty input returns it unmixed.
	assert.Equal(t, uint32(0xdeadbeef), MetadataChecksum(nil, 0))
	assert.Equal(t, uint32(0xdeadbeef+7), MetadataChecksum(nil, 7))
}

func TestMetadataChecksumDeterministic(t *testing.T) {
	data := []byte("The quick brown fox jumps over the lazy dog")
	a := MetadataChecksum(data, 0)
	b := MetadataChecksum(data, 0)
	assert.Equal(t, a, b)
}

func TestMetadataChecksumSensitivity(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i)
	}
	base := MetadataChecksum(data, 0)

	for _, flip := range []int{0, 11, 12, 13, 63} {
		mutated := append([]byte(nil), data...)
		mutated[flip] ^= 0x01
		assert.NotEqual(t, base, MetadataChecksum(mutated, 0), "flip at byte %d went undetected", flip)
	}
}

func TestMetadataChecksumSeedChaining(t *testing.T) {
	data := []byte("superblock bytes")
	more := []byte("driver info bytes")

	first := MetadataChecksum(data, 0)
	chained := MetadataChecksum(more, first)
	require.NotEqual(t, first, chained)
	assert.NotEqual(t, MetadataChecksum(more, 0), chained)
}

func TestMetadataChecksumTailLengths(t *testing.T) {
	// Exercise every final-block length including the 12-byte boundary.
	seen := make(map[uint32]int)
	for n := 1; n <= 13; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = 0x5A
		}
		sum := MetadataChecksum(data, 0)
		prev, dup := seen[sum]
		require.False(t, dup, "lengths %d and %d collided", prev, n)
		seen[sum] = n
	}
}

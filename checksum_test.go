package diskkit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateChecksum(t *testing.T) {
	tests := []struct {
		algorithm ChecksumAlgorithm
		want      string
	}{
		{ChecksumMD5, "5d41402abc4b2a76b9719d911017c592"},
		{ChecksumSHA1, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"},
		{ChecksumSHA256, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
		{ChecksumCRC32, "3610a686"},
	}

	for _, tt := range tests {
		t.Run(string(tt.algorithm), func(t *testing.T) {
			got, err := CalculateChecksum(strings.NewReader("hello"), tt.algorithm)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculateChecksum_XXHash(t *testing.T) {
	a, err := CalculateChecksum(strings.NewReader("hello"), ChecksumXXHash)
	require.NoError(t, err)
	b, err := CalculateChecksum(strings.NewReader("hello"), ChecksumXXHash)
	require.NoError(t, err)
	c, err := CalculateChecksum(strings.NewReader("world"), ChecksumXXHash)
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNewHasher_Unsupported(t *testing.T) {
	_, err := NewHasher("blake3")
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestCalculateChecksums(t *testing.T) {
	sums, err := CalculateChecksums(strings.NewReader("hello"), ChecksumMD5, ChecksumCRC32, ChecksumMD5)
	require.NoError(t, err)
	assert.Equal(t, map[ChecksumAlgorithm]string{
		ChecksumMD5:   "5d41402abc4b2a76b9719d911017c592",
		ChecksumCRC32: "3610a686",
	}, sums)

	_, err = CalculateChecksums(strings.NewReader("hello"), ChecksumSHA256, "blake3")
	assert.ErrorIs(t, err, ErrNotSupported)
}

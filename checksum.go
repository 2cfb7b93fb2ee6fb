package diskkit

import (
	"crypto/md5"  //nolint:gosec // integrity only
	"crypto/sha1" //nolint:gosec // integrity only
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/cespare/xxhash/v2"
)

var hashers = map[ChecksumAlgorithm]func() hash.Hash{
	ChecksumMD5:    md5.New,
	ChecksumSHA1:   sha1.New,
	ChecksumSHA256: sha256.New,
	ChecksumSHA512: sha512.New,
	ChecksumCRC32:  func() hash.Hash { return crc32.NewIEEE() },
	ChecksumXXHash: func() hash.Hash { return xxhash.New() },
}

// NewHasher returns a fresh hash for algorithm, or ErrNotSupported.
func NewHasher(algorithm ChecksumAlgorithm) (hash.Hash, error) {
	newHash, ok := hashers[algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: checksum algorithm %q", ErrNotSupported, algorithm)
	}
	return newHash(), nil
}

// CalculateChecksum reads r to the end and returns its hex-encoded checksum.
func CalculateChecksum(r io.Reader, algorithm ChecksumAlgorithm) (string, error) {
	sums, err := CalculateChecksums(r, algorithm)
	if err != nil {
		return "", err
	}
	return sums[algorithm], nil
}

// CalculateChecksums hashes r once for every algorithm and returns the
// hex-encoded sums keyed by algorithm.
func CalculateChecksums(r io.Reader, algorithms ...ChecksumAlgorithm) (map[ChecksumAlgorithm]string, error) {
	hashes := make(map[ChecksumAlgorithm]hash.Hash, len(algorithms))
	writers := make([]io.Writer, 0, len(algorithms))
	for _, algorithm := range algorithms {
		if _, dup := hashes[algorithm]; dup {
			continue
		}
		h, err := NewHasher(algorithm)
		if err != nil {
			return nil, err
		}
		hashes[algorithm] = h
		writers = append(writers, h)
	}

	if _, err := io.Copy(io.MultiWriter(writers...), r); err != nil {
		return nil, fmt.Errorf("failed to calculate checksum: %w", err)
	}

	sums := make(map[ChecksumAlgorithm]string, len(hashes))
	for algorithm, h := range hashes {
		sums[algorithm] = hex.EncodeToString(h.Sum(nil))
	}
	return sums, nil
}

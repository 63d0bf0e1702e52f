// Package fingerprint computes SHA-256 content digests of files and streams.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const chunkSize = 8 << 10

// Digest is a lowercase hex SHA-256 plus the number of bytes hashed.
type Digest struct {
	SHA256    string
	SizeBytes int64
}

func File(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	d, err := Reader(f)
	if err != nil {
		return Digest{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return d, nil
}

// Reader hashes r in fixed-size chunks so memory use does not grow with input size.
func Reader(r io.Reader) (Digest, error) {
	hasher := sha256.New()
	n, err := io.CopyBuffer(hasher, r, make([]byte, chunkSize))
	if err != nil {
		return Digest{}, err
	}
	return Digest{SHA256: hex.EncodeToString(hasher.Sum(nil)), SizeBytes: n}, nil
}

func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

package scan

import (
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os"
)

// checksumSHA1 hashes a file's content. Files larger than maxBytes are not
// hashed at all: a partial hash would be misleading, and streaming whole
// multi-gigabyte grids through the NAS defeats the point of a metadata
// scan.
func checksumSHA1(path string, size, maxBytes int64) (string, error) {
	if maxBytes > 0 && size > maxBytes {
		return "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

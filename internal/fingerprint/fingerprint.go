// Package fingerprint computes cheap content hashes used for change detection.
package fingerprint

import (
	"hash/fnv"
	"strconv"
)

// Hash returns the hex-encoded FNV-1a digest of data. It is not
// cryptographic; it only needs to answer "did this content change".
func Hash(data []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return strconv.FormatUint(h.Sum64(), 16)
}

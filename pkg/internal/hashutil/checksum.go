// Package hashutil computes the content digests stored in the install log.
package hashutil

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Sum returns the hex BLAKE3-256 digest of data.
func Sum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

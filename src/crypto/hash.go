package crypto

import (
	"crypto/sha256"
)

// SHA256 is the content hash used for chain IDs, certificate values and
// blobs.
func SHA256(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:]
}

// SimpleHashFromTwoHashes folds two hashes into one. Used to compute a
// validator set hash from the member public keys.
func SimpleHashFromTwoHashes(left []byte, right []byte) []byte {
	hasher := sha256.New()
	hasher.Write(left)
	hasher.Write(right)
	return hasher.Sum(nil)
}

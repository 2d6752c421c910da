package ledger

import (
	"github.com/corelattice/lattice/src/crypto"
)

// BlobID is the content hash of a blob in hex.
type BlobID string

// Blob is an immutable piece of auxiliary data referenced by blocks, such as
// published bytecode or user data. Blobs are content-addressed.
type Blob struct {
	Data []byte

	id BlobID
}

// NewBlob wraps raw data in a blob.
func NewBlob(data []byte) *Blob {
	return &Blob{Data: data}
}

// ID returns the content hash of the blob. The result is cached after the
// first call; blobs must not be mutated once hashed.
func (b *Blob) ID() BlobID {
	if b.id == "" {
		b.id = BlobID(hexEncode(crypto.SHA256(b.Data)))
	}
	return b.id
}

package ledger

import (
	"bytes"

	"github.com/ugorji/go/codec"

	"github.com/corelattice/lattice/src/crypto"
)

// ValueKind distinguishes the certification stages of a block.
type ValueKind uint8

const (
	// ValueConfirmed marks a block that the committee finalized. Only
	// confirmed values advance a chain.
	ValueConfirmed ValueKind = iota
	// ValueValidated marks a block that passed one round of validation but
	// is not final yet.
	ValueValidated
)

func (k ValueKind) String() string {
	switch k {
	case ValueConfirmed:
		return "confirmed"
	case ValueValidated:
		return "validated"
	}
	return "unknown"
}

// BytecodeLocation points at the bytecode published by a given certified
// value. Index selects one of possibly several modules published together.
type BytecodeLocation struct {
	CertificateHash string
	Index           uint32
}

// ApplicationDescription records where an application's bytecode lives and
// which chain created it.
type ApplicationDescription struct {
	ChainID  ChainID
	Bytecode BytecodeLocation
	Creation MessageID
}

// CertificateValue is the body of a certificate: one executed block together
// with everything needed to re-execute it locally.
type CertificateValue struct {
	Kind    ValueKind
	ChainID ChainID
	Height  BlockHeight

	// Block is the opaque executed-block payload handed to the worker.
	Block []byte

	// Messages lists the cross-chain messages the block sent.
	Messages []MessageID

	// RequiredBytecode and RequiredBlobs are the dependencies that must be
	// resolvable before the block can be processed.
	RequiredBytecode []BytecodeLocation
	RequiredBlobs    []BlobID

	// PublishedBytecode is the number of bytecode modules this value
	// publishes itself.
	PublishedBytecode uint32

	hash string
}

// Marshal returns the canonical encoding of the value.
func (v *CertificateValue) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Unmarshal parses a canonical encoding into v.
func (v *CertificateValue) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)
	return dec.Decode(v)
}

// Hash returns the content hash of the value in hex. The result is cached
// after the first call; values must not be mutated once hashed.
func (v *CertificateValue) Hash() (string, error) {
	if v.hash == "" {
		data, err := v.Marshal()
		if err != nil {
			return "", err
		}
		v.hash = hexEncode(crypto.SHA256(data))
	}
	return v.hash, nil
}

// IsConfirmed reports whether the value finalizes its block.
func (v *CertificateValue) IsConfirmed() bool {
	return v.Kind == ValueConfirmed
}

// HasMessage reports whether the block sent the given message.
func (v *CertificateValue) HasMessage(id MessageID) bool {
	if v.ChainID != id.ChainID || v.Height != id.Height {
		return false
	}
	for _, m := range v.Messages {
		if m == id {
			return true
		}
	}
	return false
}

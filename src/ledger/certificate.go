package ledger

import (
	"bytes"
	"fmt"

	"github.com/ugorji/go/codec"
)

// ValidatorSignature is one committee member's signature over a certificate
// value hash. Validator is the signer's hex public key and Signature an
// encoded ECDSA signature.
type ValidatorSignature struct {
	Validator string
	Signature string
}

// Certificate is a certificate value together with a quorum of committee
// signatures. Certificates are treated as immutable once built.
type Certificate struct {
	Value      *CertificateValue
	Signatures []ValidatorSignature
}

// NewCertificate wraps a value and its signatures.
func NewCertificate(value *CertificateValue, sigs []ValidatorSignature) *Certificate {
	return &Certificate{
		Value:      value,
		Signatures: sigs,
	}
}

// Hash returns the content hash of the underlying value.
func (c *Certificate) Hash() (string, error) {
	return c.Value.Hash()
}

// Lite strips the value from the certificate, keeping only the hash and the
// signatures.
func (c *Certificate) Lite() (*LiteCertificate, error) {
	hash, err := c.Value.Hash()
	if err != nil {
		return nil, err
	}
	return &LiteCertificate{
		ChainID:    c.Value.ChainID,
		ValueHash:  hash,
		Signatures: c.Signatures,
	}, nil
}

// Marshal returns the canonical encoding of the certificate.
func (c *Certificate) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Unmarshal parses a canonical encoding into c.
func (c *Certificate) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)
	return dec.Decode(c)
}

// LiteCertificate carries the signatures of a certificate without its value.
// It can be upgraded back to a full certificate once the value is known.
type LiteCertificate struct {
	ChainID    ChainID
	ValueHash  string
	Signatures []ValidatorSignature
}

// WithValue rebuilds a full certificate from the given value. It fails if the
// value does not hash to the expected digest or belongs to another chain.
func (lc *LiteCertificate) WithValue(value *CertificateValue) (*Certificate, error) {
	if value == nil {
		return nil, fmt.Errorf("no value for lite certificate %s", lc.ValueHash)
	}
	hash, err := value.Hash()
	if err != nil {
		return nil, err
	}
	if hash != lc.ValueHash || value.ChainID != lc.ChainID {
		return nil, fmt.Errorf("value %s does not match lite certificate %s", hash, lc.ValueHash)
	}
	return NewCertificate(value, lc.Signatures), nil
}

package ledger

import (
	"bytes"
	"crypto/ecdsa"
	"errors"

	"github.com/ugorji/go/codec"

	"github.com/corelattice/lattice/src/common"
	"github.com/corelattice/lattice/src/crypto"
	"github.com/corelattice/lattice/src/crypto/keys"
)

// ChainManager is the consensus state of a chain as seen by one node: the
// proposal and the validated certificate currently on the table, if any.
type ChainManager struct {
	RequestedProposal *BlockProposal
	RequestedLocked   *Certificate
}

// ChainInfo is a node's view of one chain.
type ChainInfo struct {
	ChainID         ChainID
	NextBlockHeight BlockHeight

	// RequestedSentCertificates is filled when the query asked for a height
	// range, in increasing height order.
	RequestedSentCertificates []*Certificate

	// Manager is filled when the query asked for manager values.
	Manager ChainManager

	// RequestedCertificateValue and RequestedBlob are filled when the query
	// asked for them and the node has them.
	RequestedCertificateValue *CertificateValue
	RequestedBlob             *Blob
}

// ChainInfoQuery selects what a node should report about a chain. The zero
// query only asks for the chain's next block height.
type ChainInfoQuery struct {
	ChainID ChainID

	SentCertificatesInRange *BlockHeightRange
	RequestManagerValues    bool

	// RequestCertificateValue asks for the value with this hash, "" if unset.
	RequestCertificateValue string
	// RequestBlob asks for the blob with this ID, "" if unset.
	RequestBlob BlobID
}

// NewChainInfoQuery returns the minimal query for a chain.
func NewChainInfoQuery(chainID ChainID) *ChainInfoQuery {
	return &ChainInfoQuery{ChainID: chainID}
}

// WithSentCertificatesInRange asks for the certificates in the given range.
func (q *ChainInfoQuery) WithSentCertificatesInRange(r BlockHeightRange) *ChainInfoQuery {
	q.SentCertificatesInRange = &r
	return q
}

// WithManagerValues asks for the chain's pending proposal and locked
// certificate.
func (q *ChainInfoQuery) WithManagerValues() *ChainInfoQuery {
	q.RequestManagerValues = true
	return q
}

// WithCertificateValue asks for the certificate value with the given hash.
func (q *ChainInfoQuery) WithCertificateValue(hash string) *ChainInfoQuery {
	q.RequestCertificateValue = hash
	return q
}

// WithBlob asks for the blob with the given ID.
func (q *ChainInfoQuery) WithBlob(id BlobID) *ChainInfoQuery {
	q.RequestBlob = id
	return q
}

// ErrInvalidResponseSignature is returned by Check when a response signature
// does not verify against the expected key.
var ErrInvalidResponseSignature = errors.New("invalid chain info response signature")

// ChainInfoResponse is a signed ChainInfo. The signature binds the whole Info
// to the responding node's key.
type ChainInfoResponse struct {
	Info      *ChainInfo
	Signature string
}

func (r *ChainInfoResponse) signedBody() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)
	if err := enc.Encode(r.Info); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Sign signs the response with the node's key.
func (r *ChainInfoResponse) Sign(priv *ecdsa.PrivateKey) error {
	data, err := r.signedBody()
	if err != nil {
		return err
	}
	sigR, sigS, err := keys.Sign(priv, crypto.SHA256(data))
	if err != nil {
		return err
	}
	r.Signature = keys.EncodeSignature(sigR, sigS)
	return nil
}

// Check verifies the response signature against the given hex public key. It
// returns ErrInvalidResponseSignature on mismatch.
func (r *ChainInfoResponse) Check(pubKeyHex string) error {
	pubBytes, err := common.DecodeFromString(pubKeyHex)
	if err != nil {
		return err
	}
	data, err := r.signedBody()
	if err != nil {
		return err
	}
	sigR, sigS, err := keys.DecodeSignature(r.Signature)
	if err != nil {
		return err
	}
	if !keys.Verify(keys.ToPublicKey(pubBytes), crypto.SHA256(data), sigR, sigS) {
		return ErrInvalidResponseSignature
	}
	return nil
}

package ledger

import (
	"bytes"
	"crypto/ecdsa"

	"github.com/ugorji/go/codec"

	"github.com/corelattice/lattice/src/common"
	"github.com/corelattice/lattice/src/crypto"
	"github.com/corelattice/lattice/src/crypto/keys"
)

// BlockProposal is a block offered by a chain owner but not yet certified.
// Owner is the proposer's hex public key.
type BlockProposal struct {
	ChainID   ChainID
	Height    BlockHeight
	Owner     string
	Payload   []byte
	Signature string
}

func (p *BlockProposal) signedBody() ([]byte, error) {
	body := BlockProposal{
		ChainID: p.ChainID,
		Height:  p.Height,
		Owner:   p.Owner,
		Payload: p.Payload,
	}
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)
	if err := enc.Encode(body); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Sign signs the proposal with the owner's key.
func (p *BlockProposal) Sign(priv *ecdsa.PrivateKey) error {
	data, err := p.signedBody()
	if err != nil {
		return err
	}
	r, s, err := keys.Sign(priv, crypto.SHA256(data))
	if err != nil {
		return err
	}
	p.Signature = keys.EncodeSignature(r, s)
	return nil
}

// Verify checks the proposal signature against the Owner public key.
func (p *BlockProposal) Verify() (bool, error) {
	pubBytes, err := common.DecodeFromString(p.Owner)
	if err != nil {
		return false, err
	}
	data, err := p.signedBody()
	if err != nil {
		return false, err
	}
	r, s, err := keys.DecodeSignature(p.Signature)
	if err != nil {
		return false, err
	}
	return keys.Verify(keys.ToPublicKey(pubBytes), crypto.SHA256(data), r, s), nil
}

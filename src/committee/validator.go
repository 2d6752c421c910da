package committee

import (
	"encoding/hex"

	"github.com/corelattice/lattice/src/common"
)

// Validator is one member of the committee that certifies blocks. ID is
// derived from the public key and used to keep wire messages and log fields
// short.
type Validator struct {
	ID        uint32 `json:"-"`
	NetAddr   string
	PubKeyHex string
	Moniker   string
}

// NewValidator creates a Validator and computes its ID.
func NewValidator(pubKeyHex, netAddr, moniker string) *Validator {
	validator := &Validator{
		PubKeyHex: pubKeyHex,
		NetAddr:   netAddr,
		Moniker:   moniker,
	}

	validator.computeID()

	return validator
}

// PubKeyBytes decodes the hex public key, skipping the 0X prefix.
func (v *Validator) PubKeyBytes() ([]byte, error) {
	return hex.DecodeString(v.PubKeyHex[2:])
}

func (v *Validator) computeID() error {
	pubKey, err := v.PubKeyBytes()

	if err != nil {
		return err
	}

	v.ID = common.Hash32(pubKey)

	return nil
}

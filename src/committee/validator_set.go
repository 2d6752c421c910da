package committee

import (
	"bytes"
	"encoding/json"
	"math/rand"

	"github.com/corelattice/lattice/src/common"
	"github.com/corelattice/lattice/src/crypto"
)

// ValidatorSet is the set of Validators forming the committee of a network.
type ValidatorSet struct {
	Validators []*Validator          `json:"validators"`
	ByPubKey   map[string]*Validator `json:"-"`
	ByID       map[uint32]*Validator `json:"-"`

	//cached values
	hash          []byte
	hex           string
	superMajority *int
}

// NewValidatorSet creates a new ValidatorSet from a list of Validators.
func NewValidatorSet(validators []*Validator) *ValidatorSet {
	validatorSet := &ValidatorSet{
		ByPubKey: make(map[string]*Validator),
		ByID:     make(map[uint32]*Validator),
	}

	for _, validator := range validators {
		if validator.ID == 0 {
			validator.computeID()
		}
		validatorSet.ByPubKey[validator.PubKeyHex] = validator
		validatorSet.ByID[validator.ID] = validator
	}

	validatorSet.Validators = validators

	return validatorSet
}

// NewValidatorSetFromSliceBytes creates a new ValidatorSet from a JSON-encoded
// Validator slice.
func NewValidatorSetFromSliceBytes(data []byte) (*ValidatorSet, error) {
	validators := []*Validator{}

	b := bytes.NewBuffer(data)
	dec := json.NewDecoder(b)

	err := dec.Decode(&validators)
	if err != nil {
		return nil, err
	}

	return NewValidatorSet(validators), nil
}

// PubKeys returns the ValidatorSet's slice of public keys.
func (vs *ValidatorSet) PubKeys() []string {
	res := []string{}

	for _, validator := range vs.Validators {
		res = append(res, validator.PubKeyHex)
	}

	return res
}

// IDs returns the ValidatorSet's slice of IDs.
func (vs *ValidatorSet) IDs() []uint32 {
	res := []uint32{}

	for _, validator := range vs.Validators {
		res = append(res, validator.ID)
	}

	return res
}

// Len returns the number of Validators in the ValidatorSet.
func (vs *ValidatorSet) Len() int {
	return len(vs.ByPubKey)
}

// Hash uniquely identifies a ValidatorSet. It is computed by hashing (SHA256)
// the public keys together, one by one.
func (vs *ValidatorSet) Hash() ([]byte, error) {
	if len(vs.hash) == 0 {
		hash := []byte{}
		for _, v := range vs.Validators {
			pk, err := v.PubKeyBytes()
			if err != nil {
				return nil, err
			}
			hash = crypto.SimpleHashFromTwoHashes(hash, pk)
		}
		vs.hash = hash
	}
	return vs.hash, nil
}

// Hex is the hexadecimal representation of Hash.
func (vs *ValidatorSet) Hex() string {
	if len(vs.hex) == 0 {
		hash, _ := vs.Hash()
		vs.hex = common.EncodeToString(hash)
	}
	return vs.hex
}

// Marshal marshals the validator slice as JSON.
func (vs *ValidatorSet) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(vs.Validators); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SuperMajority returns the number of validators that forms a strong majority
// (+2/3) in the ValidatorSet.
func (vs *ValidatorSet) SuperMajority() int {
	if vs.superMajority == nil {
		val := 2*vs.Len()/3 + 1
		vs.superMajority = &val
	}
	return *vs.superMajority
}

// Shuffled returns the validators in random order. The caller may pass its
// own source of randomness; a nil rng uses the global one.
func (vs *ValidatorSet) Shuffled(rng *rand.Rand) []*Validator {
	shuffled := make([]*Validator, len(vs.Validators))
	copy(shuffled, vs.Validators)

	swap := func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	if rng != nil {
		rng.Shuffle(len(shuffled), swap)
	} else {
		rand.Shuffle(len(shuffled), swap)
	}

	return shuffled
}

package committee

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"strings"
	"sync"
)

const jsonValidatorSetPath = "validators.json"

// JSONValidatorSet provides committee persistence on disk in the form of a
// JSON file.
type JSONValidatorSet struct {
	l    sync.Mutex
	path string
}

// NewJSONValidatorSet creates a new JSONValidatorSet with reference to a base
// directory where the JSON file resides.
func NewJSONValidatorSet(base string) *JSONValidatorSet {
	return &JSONValidatorSet{
		path: filepath.Join(base, jsonValidatorSetPath),
	}
}

// ValidatorSet parses the underlying JSON file and returns the corresponding
// ValidatorSet.
func (j *JSONValidatorSet) ValidatorSet() (*ValidatorSet, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	if len(buf) == 0 {
		return nil, nil
	}

	var validators []*Validator
	dec := json.NewDecoder(bytes.NewReader(buf))
	if err := dec.Decode(&validators); err != nil {
		return nil, err
	}

	cleanseValidators(validators)

	return NewValidatorSet(validators), nil
}

// cleanseValidators standardises the public key strings to match the format
// derived from a private key.
func cleanseValidators(validators []*Validator) {
	for _, validator := range validators {
		validator.PubKeyHex = "0X" + strings.TrimPrefix(strings.ToUpper(validator.PubKeyHex), "0X")
	}
}

// Write persists a validator slice to a JSON file.
func (j *JSONValidatorSet) Write(validators []*Validator) error {
	j.l.Lock()
	defer j.l.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(validators); err != nil {
		return err
	}

	return ioutil.WriteFile(j.path, buf.Bytes(), 0755)
}

package committee

import (
	"fmt"
	"io/ioutil"
	"math/rand"
	"os"
	"reflect"
	"sort"
	"testing"

	"github.com/corelattice/lattice/src/crypto/keys"
)

func testValidators(n int) []*Validator {
	validators := []*Validator{}
	for i := 0; i < n; i++ {
		key, _ := keys.GenerateECDSAKey()
		pubHex := keys.PublicKeyHex(&key.PublicKey)
		validators = append(validators,
			NewValidator(pubHex, fmt.Sprintf("127.0.0.1:%d", 1337+i), fmt.Sprintf("validator%d", i)))
	}
	return validators
}

func TestNewValidatorSet(t *testing.T) {
	validators := testValidators(4)
	set := NewValidatorSet(validators)

	if set.Len() != 4 {
		t.Fatalf("expected 4 validators, got %d", set.Len())
	}

	for _, v := range validators {
		if v.ID == 0 {
			t.Fatalf("validator %s should have a computed ID", v.Moniker)
		}
		if set.ByPubKey[v.PubKeyHex] != v {
			t.Fatalf("validator %s not indexed by pubkey", v.Moniker)
		}
		if set.ByID[v.ID] != v {
			t.Fatalf("validator %s not indexed by ID", v.Moniker)
		}
	}
}

func TestSuperMajority(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{1, 1},
		{3, 3},
		{4, 3},
		{7, 5},
		{10, 7},
	}

	for _, tt := range tests {
		set := NewValidatorSet(testValidators(tt.n))
		if sm := set.SuperMajority(); sm != tt.expected {
			t.Fatalf("ValidatorSet(%d).SuperMajority() should be %d, got %d", tt.n, tt.expected, sm)
		}
	}
}

func TestShuffled(t *testing.T) {
	set := NewValidatorSet(testValidators(10))

	shuffled := set.Shuffled(rand.New(rand.NewSource(1)))

	if len(shuffled) != set.Len() {
		t.Fatalf("expected %d validators, got %d", set.Len(), len(shuffled))
	}

	//shuffling must not touch the set's own ordering
	ids := []uint32{}
	for _, v := range shuffled {
		ids = append(ids, v.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	setIDs := set.IDs()
	sort.Slice(setIDs, func(i, j int) bool { return setIDs[i] < setIDs[j] })

	if !reflect.DeepEqual(ids, setIDs) {
		t.Fatal("shuffled set should contain the same validators")
	}

	//a seeded rng must give a reproducible order
	again := set.Shuffled(rand.New(rand.NewSource(1)))
	for i := range shuffled {
		if shuffled[i] != again[i] {
			t.Fatal("same seed should give the same order")
		}
	}
}

func TestValidatorSetMarshal(t *testing.T) {
	set := NewValidatorSet(testValidators(3))

	data, err := set.Marshal()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	decoded, err := NewValidatorSetFromSliceBytes(data)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if decoded.Hex() != set.Hex() {
		t.Fatalf("hash mismatch after round-trip: %s != %s", decoded.Hex(), set.Hex())
	}
}

func TestJSONValidatorSet(t *testing.T) {
	os.RemoveAll("test_data")
	os.Mkdir("test_data", os.ModeDir|0777)
	dir, err := ioutil.TempDir("test_data", "validators")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	validators := testValidators(3)

	store := NewJSONValidatorSet(dir)
	if err := store.Write(validators); err != nil {
		t.Fatalf("err: %v", err)
	}

	read, err := store.ValidatorSet()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if read.Len() != 3 {
		t.Fatalf("expected 3 validators, got %d", read.Len())
	}

	for _, v := range validators {
		if _, ok := read.ByPubKey[v.PubKeyHex]; !ok {
			t.Fatalf("validator %s missing after round-trip", v.Moniker)
		}
	}
}

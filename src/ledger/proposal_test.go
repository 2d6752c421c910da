package ledger

import (
	"testing"

	"github.com/corelattice/lattice/src/crypto/keys"
)

func TestBlockProposalSignVerify(t *testing.T) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	proposal := &BlockProposal{
		ChainID: NewChainID([]byte("proposal chain")),
		Height:  2,
		Owner:   keys.PublicKeyHex(&key.PublicKey),
		Payload: []byte("proposed block"),
	}

	if err := proposal.Sign(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	ok, err := proposal.Verify()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}

	//tampering with the payload invalidates the signature
	proposal.Payload = []byte("tampered block")
	ok, err = proposal.Verify()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if ok {
		t.Fatal("expected tampered proposal to fail verification")
	}
}

func TestChainInfoResponseSignCheck(t *testing.T) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	pubHex := keys.PublicKeyHex(&key.PublicKey)

	resp := &ChainInfoResponse{
		Info: &ChainInfo{
			ChainID:         NewChainID([]byte("response chain")),
			NextBlockHeight: 8,
		},
	}

	if err := resp.Sign(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := resp.Check(pubHex); err != nil {
		t.Fatalf("err: %v", err)
	}

	//a response signed by someone else must be rejected
	otherKey, _ := keys.GenerateECDSAKey()
	if err := resp.Check(keys.PublicKeyHex(&otherKey.PublicKey)); err != ErrInvalidResponseSignature {
		t.Fatalf("expected ErrInvalidResponseSignature, got %v", err)
	}

	//tampering with the info invalidates the signature
	resp.Info.NextBlockHeight = 9
	if err := resp.Check(pubHex); err != ErrInvalidResponseSignature {
		t.Fatalf("expected ErrInvalidResponseSignature, got %v", err)
	}
}

package node

import (
	"testing"

	"github.com/corelattice/lattice/src/crypto/keys"
	"github.com/corelattice/lattice/src/ledger"
)

func TestSynchronizeChainState(t *testing.T) {
	chainID := ledger.NewChainID([]byte("sync chain"))

	heights := []int{2, 4, 3}
	validators := []*testValidator{}
	for i, h := range heights {
		v := newTestValidator(string(rune('a'+i)), t)
		defer v.stop()
		v.seedCertificates(chainID, h, t)
		validators = append(validators, v)
	}

	client, remotes := newTestClient(1, validators, t)

	notifications := []ledger.Notification{}
	info, err := client.SynchronizeChainState(remotes, chainID, &notifications)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	//the merged view reaches the most advanced validator
	if info.NextBlockHeight != 4 {
		t.Fatalf("expected next height 4, got %d", info.NextBlockHeight)
	}

	//each height is applied and notified exactly once
	if len(notifications) != 4 {
		t.Fatalf("expected 4 notifications, got %d", len(notifications))
	}
	seen := map[ledger.BlockHeight]bool{}
	for _, n := range notifications {
		if n.Reason != ledger.ReasonNewBlock || n.ChainID != chainID {
			t.Fatalf("unexpected notification: %v", n)
		}
		if seen[n.Height] {
			t.Fatalf("duplicate notification for height %d", n.Height)
		}
		seen[n.Height] = true
	}
}

func TestSynchronizeChainStateBadValidators(t *testing.T) {
	chainID := ledger.NewChainID([]byte("sync chain"))

	failing := newTestValidator("failing", t)
	defer failing.stop()
	failing.failQueries = true

	badSig := newTestValidator("badsig", t)
	defer badSig.stop()
	badSig.seedCertificates(chainID, 5, t)
	wrongKey, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}
	badSig.badSigKey = wrongKey

	good := newTestValidator("good", t)
	defer good.stop()
	good.seedCertificates(chainID, 3, t)

	client, remotes := newTestClient(1, []*testValidator{failing, badSig, good}, t)

	//remote failures are swallowed, the good validator still gets through
	info, err := client.SynchronizeChainState(remotes, chainID, nil)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if info.NextBlockHeight != 3 {
		t.Fatalf("expected next height 3, got %d", info.NextBlockHeight)
	}
}

func TestSynchronizeChainStateNoValidators(t *testing.T) {
	chainID := ledger.NewChainID([]byte("sync chain"))

	failing := newTestValidator("failing", t)
	defer failing.stop()
	failing.failQueries = true

	client, remotes := newTestClient(1, []*testValidator{failing}, t)

	info, err := client.SynchronizeChainState(remotes, chainID, nil)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if info.NextBlockHeight != 0 {
		t.Fatalf("expected next height 0, got %d", info.NextBlockHeight)
	}
}

func TestSynchronizeChainStateManagerValues(t *testing.T) {
	chainID := ledger.NewChainID([]byte("sync chain"))

	v := newTestValidator("validator0", t)
	defer v.stop()
	v.seedCertificates(chainID, 2, t)

	//a pending proposal for the next block
	ownerKey, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}
	proposal := &ledger.BlockProposal{
		ChainID: chainID,
		Height:  2,
		Owner:   keys.PublicKeyHex(&ownerKey.PublicKey),
		Payload: []byte("proposed block"),
	}
	if err := proposal.Sign(ownerKey); err != nil {
		t.Fatal(err)
	}
	if _, err := v.local.HandleBlockProposal(proposal); err != nil {
		t.Fatalf("err: %v", err)
	}

	//and a locked validated certificate at the same height
	lockedValue := testConfirmedValue(chainID, 2)
	lockedValue.Kind = ledger.ValueValidated
	locked := ledger.NewCertificate(lockedValue, nil)
	if _, err := v.local.HandleCertificate(locked, nil, nil).Factor(nil); err != nil {
		t.Fatalf("err: %v", err)
	}

	client, remotes := newTestClient(1, []*testValidator{v}, t)

	notifications := []ledger.Notification{}
	info, err := client.SynchronizeChainState(remotes, chainID, &notifications)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if info.NextBlockHeight != 2 {
		t.Fatalf("expected next height 2, got %d", info.NextBlockHeight)
	}

	//the client adopted the proposal and the locked certificate
	resp, err := client.HandleChainInfoQuery(ledger.NewChainInfoQuery(chainID).WithManagerValues())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if resp.Info.Manager.RequestedProposal == nil {
		t.Fatal("expected adopted proposal")
	}
	if resp.Info.Manager.RequestedProposal.Owner != proposal.Owner {
		t.Fatalf("unexpected proposal owner %s", resp.Info.Manager.RequestedProposal.Owner)
	}
	if resp.Info.Manager.RequestedLocked == nil {
		t.Fatal("expected adopted locked certificate")
	}

	//the locked certificate signals a new round without advancing the chain
	var rounds int
	for _, n := range notifications {
		if n.Reason == ledger.ReasonNewRound {
			rounds++
		}
	}
	if rounds != 1 {
		t.Fatalf("expected 1 new round notification, got %d", rounds)
	}
}

func TestSynchronizeChainStatePartialBatch(t *testing.T) {
	chainID := ledger.NewChainID([]byte("sync chain"))

	//a validator serving a batch with a gap after the first certificate
	v := newTestValidator("gapped", t)
	defer v.stop()
	v.script = func(q *ledger.ChainInfoQuery) (*ledger.ChainInfoResponse, error) {
		return &ledger.ChainInfoResponse{
			Info: &ledger.ChainInfo{
				ChainID:         chainID,
				NextBlockHeight: 3,
				RequestedSentCertificates: []*ledger.Certificate{
					testConfirmedCertificate(chainID, 0),
					testConfirmedCertificate(chainID, 2),
				},
			},
		}, nil
	}

	client, remotes := newTestClient(1, []*testValidator{v}, t)

	notifications := []ledger.Notification{}
	info, err := client.SynchronizeChainState(remotes, chainID, &notifications)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	//progress before the gap is kept
	if info.NextBlockHeight != 1 {
		t.Fatalf("expected next height 1, got %d", info.NextBlockHeight)
	}
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
	if notifications[0].Height != 0 || notifications[0].Reason != ledger.ReasonNewBlock {
		t.Fatalf("unexpected notification: %v", notifications[0])
	}
}

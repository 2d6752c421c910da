package worker

import (
	"errors"
	"testing"

	cm "github.com/corelattice/lattice/src/common"
	"github.com/corelattice/lattice/src/crypto/keys"
	"github.com/corelattice/lattice/src/ledger"
)

func initMachine(t *testing.T) *Machine {
	store := ledger.NewInmemStore(10)
	machine, err := NewMachine(store, cm.NewTestEntry(t, cm.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}
	return machine
}

func confirmedValue(chainID ledger.ChainID, height ledger.BlockHeight) *ledger.CertificateValue {
	return &ledger.CertificateValue{
		Kind:    ledger.ValueConfirmed,
		ChainID: chainID,
		Height:  height,
		Block:   []byte("block payload"),
	}
}

func confirmedCertificate(chainID ledger.ChainID, height ledger.BlockHeight) *ledger.Certificate {
	return ledger.NewCertificate(confirmedValue(chainID, height), []ledger.ValidatorSignature{
		{Validator: "0XAA", Signature: "sig"},
	})
}

func TestFullyHandleCertificateOrder(t *testing.T) {
	machine := initMachine(t)
	chainID := ledger.NewChainID([]byte("worker chain"))

	notifications := []ledger.Notification{}

	//a certificate above the expected height must be rejected
	if _, err := machine.FullyHandleCertificate(confirmedCertificate(chainID, 1), nil, nil, &notifications); err == nil {
		t.Fatal("expected height 1 to be rejected on a fresh chain")
	}

	resp, err := machine.FullyHandleCertificate(confirmedCertificate(chainID, 0), nil, nil, &notifications)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if resp.Info.NextBlockHeight != 1 {
		t.Fatalf("expected next height 1, got %d", resp.Info.NextBlockHeight)
	}

	resp, err = machine.FullyHandleCertificate(confirmedCertificate(chainID, 1), nil, nil, &notifications)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if resp.Info.NextBlockHeight != 2 {
		t.Fatalf("expected next height 2, got %d", resp.Info.NextBlockHeight)
	}

	if len(notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notifications))
	}
	for i, n := range notifications {
		if n.Reason != ledger.ReasonNewBlock {
			t.Fatalf("notification %d should be ReasonNewBlock", i)
		}
		if n.Height != ledger.BlockHeight(i) {
			t.Fatalf("notification %d should be at height %d, got %d", i, i, n.Height)
		}
	}
}

func TestFullyHandleCertificateIdempotent(t *testing.T) {
	machine := initMachine(t)
	chainID := ledger.NewChainID([]byte("worker chain"))

	notifications := []ledger.Notification{}

	if _, err := machine.FullyHandleCertificate(confirmedCertificate(chainID, 0), nil, nil, &notifications); err != nil {
		t.Fatalf("err: %v", err)
	}

	//replaying an applied certificate succeeds without a new notification
	resp, err := machine.FullyHandleCertificate(confirmedCertificate(chainID, 0), nil, nil, &notifications)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if resp.Info.NextBlockHeight != 1 {
		t.Fatalf("expected next height 1, got %d", resp.Info.NextBlockHeight)
	}
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
}

func TestFullyHandleCertificateMissingDependencies(t *testing.T) {
	machine := initMachine(t)
	chainID := ledger.NewChainID([]byte("worker chain"))

	blob := ledger.NewBlob([]byte("required blob"))

	publisher := confirmedValue(chainID, 0)
	publisher.PublishedBytecode = 1
	publisherHash, _ := publisher.Hash()

	value := confirmedValue(chainID, 0)
	value.RequiredBytecode = []ledger.BytecodeLocation{{CertificateHash: publisherHash, Index: 0}}
	value.RequiredBlobs = []ledger.BlobID{blob.ID()}
	cert := ledger.NewCertificate(value, nil)

	//both dependency kinds missing
	_, err := machine.FullyHandleCertificate(cert, nil, nil, nil)
	depErr := new(ledger.DependenciesMissingError)
	if !errors.As(err, &depErr) {
		t.Fatalf("expected DependenciesMissingError, got %v", err)
	}
	if len(depErr.Locations) != 1 || len(depErr.IDs) != 1 {
		t.Fatalf("expected 1 location and 1 blob, got %d and %d", len(depErr.Locations), len(depErr.IDs))
	}

	//only the blob missing
	_, err = machine.FullyHandleCertificate(cert, []*ledger.CertificateValue{publisher}, nil, nil)
	blobErr := new(ledger.BlobsMissingError)
	if !errors.As(err, &blobErr) {
		t.Fatalf("expected BlobsMissingError, got %v", err)
	}

	//only the bytecode missing
	_, err = machine.FullyHandleCertificate(cert, nil, []*ledger.Blob{blob}, nil)
	bytecodeErr := new(ledger.BytecodeMissingError)
	if !errors.As(err, &bytecodeErr) {
		t.Fatalf("expected BytecodeMissingError, got %v", err)
	}

	//everything supplied
	notifications := []ledger.Notification{}
	if _, err := machine.FullyHandleCertificate(cert,
		[]*ledger.CertificateValue{publisher}, []*ledger.Blob{blob}, &notifications); err != nil {
		t.Fatalf("err: %v", err)
	}

	//supplied dependencies are persisted
	if _, err := machine.Storage().GetBlob(blob.ID()); err != nil {
		t.Fatalf("err: %v", err)
	}
	if _, err := machine.Storage().GetCertificateValue(publisherHash); err != nil {
		t.Fatalf("err: %v", err)
	}
}

func TestHandleValidatedCertificate(t *testing.T) {
	machine := initMachine(t)
	chainID := ledger.NewChainID([]byte("worker chain"))

	value := confirmedValue(chainID, 0)
	value.Kind = ledger.ValueValidated
	cert := ledger.NewCertificate(value, nil)

	notifications := []ledger.Notification{}
	resp, err := machine.FullyHandleCertificate(cert, nil, nil, &notifications)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	//a validated certificate does not advance the chain
	if resp.Info.NextBlockHeight != 0 {
		t.Fatalf("expected next height 0, got %d", resp.Info.NextBlockHeight)
	}

	if len(notifications) != 1 || notifications[0].Reason != ledger.ReasonNewRound {
		t.Fatalf("expected one ReasonNewRound notification, got %v", notifications)
	}

	manager, err := machine.Storage().GetManager(chainID)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if manager.RequestedLocked == nil {
		t.Fatal("expected locked certificate in manager")
	}
}

func TestFullCertificate(t *testing.T) {
	machine := initMachine(t)
	chainID := ledger.NewChainID([]byte("worker chain"))

	cert := confirmedCertificate(chainID, 0)
	lite, err := cert.Lite()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	//unknown value
	if _, err := machine.FullCertificate(lite); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}

	//value in the recency cache
	machine.CacheCertificateValue(cert.Value)

	full, err := machine.FullCertificate(lite)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if h, _ := full.Hash(); h != lite.ValueHash {
		t.Fatalf("expected hash %s, got %s", lite.ValueHash, h)
	}
}

func TestHandleBlockProposal(t *testing.T) {
	machine := initMachine(t)
	chainID := ledger.NewChainID([]byte("worker chain"))

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	proposal := &ledger.BlockProposal{
		ChainID: chainID,
		Height:  0,
		Owner:   keys.PublicKeyHex(&key.PublicKey),
		Payload: []byte("proposed block"),
	}
	if err := proposal.Sign(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	if _, err := machine.HandleBlockProposal(proposal); err != nil {
		t.Fatalf("err: %v", err)
	}

	manager, err := machine.Storage().GetManager(chainID)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if manager.RequestedProposal == nil {
		t.Fatal("expected pending proposal in manager")
	}

	//a proposal at the wrong height must be rejected
	badHeight := &ledger.BlockProposal{
		ChainID: chainID,
		Height:  5,
		Owner:   keys.PublicKeyHex(&key.PublicKey),
		Payload: []byte("proposed block"),
	}
	badHeight.Sign(key)

	if _, err := machine.HandleBlockProposal(badHeight); err == nil {
		t.Fatal("expected wrong height proposal to be rejected")
	}

	//a proposal with a bad signature must be rejected
	badSig := &ledger.BlockProposal{
		ChainID: chainID,
		Height:  0,
		Owner:   keys.PublicKeyHex(&key.PublicKey),
		Payload: []byte("proposed block"),
	}
	badSig.Sign(key)
	badSig.Payload = []byte("tampered block")

	if _, err := machine.HandleBlockProposal(badSig); err == nil {
		t.Fatal("expected bad signature to be rejected")
	}
}

func TestChainInfoQueryRange(t *testing.T) {
	machine := initMachine(t)
	chainID := ledger.NewChainID([]byte("worker chain"))

	for i := 0; i < 5; i++ {
		if _, err := machine.FullyHandleCertificate(confirmedCertificate(chainID, ledger.BlockHeight(i)), nil, nil, nil); err != nil {
			t.Fatalf("err: %v", err)
		}
	}

	query := ledger.NewChainInfoQuery(chainID).
		WithSentCertificatesInRange(ledger.BlockHeightRange{Start: 1, Limit: 2})

	resp, err := machine.HandleChainInfoQuery(query)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	certs := resp.Info.RequestedSentCertificates
	if len(certs) != 2 {
		t.Fatalf("expected 2 certificates, got %d", len(certs))
	}
	if certs[0].Value.Height != 1 || certs[1].Value.Height != 2 {
		t.Fatalf("expected heights 1,2 got %d,%d", certs[0].Value.Height, certs[1].Value.Height)
	}

	//an unbounded range stops at the chain head
	query = ledger.NewChainInfoQuery(chainID).
		WithSentCertificatesInRange(ledger.BlockHeightRange{Start: 3})

	resp, err = machine.HandleChainInfoQuery(query)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(resp.Info.RequestedSentCertificates) != 2 {
		t.Fatalf("expected 2 certificates, got %d", len(resp.Info.RequestedSentCertificates))
	}
}

func TestQueryApplication(t *testing.T) {
	machine := initMachine(t)
	chainID := ledger.NewChainID([]byte("worker chain"))

	if _, err := machine.QueryApplication(chainID, []byte("q")); err == nil {
		t.Fatal("expected error without a query handler")
	}

	machine.SetQueryHandler(func(id ledger.ChainID, query []byte) ([]byte, error) {
		return append([]byte("echo:"), query...), nil
	})

	res, err := machine.QueryApplication(chainID, []byte("q"))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if string(res) != "echo:q" {
		t.Fatalf("unexpected result: %s", res)
	}
}

func TestDescribeApplication(t *testing.T) {
	machine := initMachine(t)
	chainID := ledger.NewChainID([]byte("worker chain"))

	if _, err := machine.DescribeApplication(chainID, "counter"); err == nil {
		t.Fatal("expected error for unknown application")
	}

	machine.RegisterApplication("counter", &ledger.ApplicationDescription{
		ChainID:  chainID,
		Bytecode: ledger.BytecodeLocation{CertificateHash: "abc", Index: 0},
	})

	desc, err := machine.DescribeApplication(chainID, "counter")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if desc.Bytecode.CertificateHash != "abc" {
		t.Fatalf("unexpected description: %v", desc)
	}
}

func TestFullyHandleCertificateCachesValue(t *testing.T) {
	machine := initMachine(t)
	chainID := ledger.NewChainID([]byte("worker chain"))

	value := confirmedValue(chainID, 0)
	hash, err := value.Hash()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if _, err := machine.FullyHandleCertificate(ledger.NewCertificate(value, nil), nil, nil, nil); err != nil {
		t.Fatalf("err: %v", err)
	}

	//an applied certificate's value lands in the recency cache
	cached := machine.RecentCertificateValue(hash)
	if cached == nil {
		t.Fatal("expected value in recency cache")
	}
	if cached.Height != 0 || cached.ChainID != chainID {
		t.Fatalf("unexpected cached value: %v", cached)
	}
}

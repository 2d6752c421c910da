package ledger

import (
	"testing"

	cm "github.com/corelattice/lattice/src/common"
)

func TestInmemCertificates(t *testing.T) {
	store := NewInmemStore(10)

	chainID := NewChainID([]byte("inmem chain"))
	cert := testCertificate(chainID, 0)
	hash, _ := cert.Hash()

	if _, err := store.GetCertificate(hash); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}

	if err := store.SetCertificate(cert); err != nil {
		t.Fatalf("err: %v", err)
	}

	stored, err := store.GetCertificate(hash)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if stored.Value.Height != cert.Value.Height {
		t.Fatalf("expected height %d, got %d", cert.Value.Height, stored.Value.Height)
	}
}

func TestInmemChainCertificates(t *testing.T) {
	store := NewInmemStore(10)

	chainID := NewChainID([]byte("inmem chain"))

	for i := 0; i < 3; i++ {
		cert := testCertificate(chainID, BlockHeight(i))
		if err := store.SetChainCertificate(cert); err != nil {
			t.Fatalf("err: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		cert, err := store.GetChainCertificate(chainID, BlockHeight(i))
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if cert.Value.Height != BlockHeight(i) {
			t.Fatalf("expected height %d, got %d", i, cert.Value.Height)
		}
	}

	if _, err := store.GetChainCertificate(chainID, 3); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}
}

func TestInmemChainHead(t *testing.T) {
	store := NewInmemStore(10)

	chainID := NewChainID([]byte("inmem chain"))

	if _, err := store.GetChainHead(chainID); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}

	if err := store.SetChainHead(chainID, 4); err != nil {
		t.Fatalf("err: %v", err)
	}

	head, err := store.GetChainHead(chainID)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if head != 4 {
		t.Fatalf("expected head 4, got %d", head)
	}

	chains := store.Chains()
	if len(chains) != 1 || chains[0] != chainID {
		t.Fatalf("expected chains [%s], got %v", chainID, chains)
	}
}

func TestInmemBlobs(t *testing.T) {
	store := NewInmemStore(10)

	blob := NewBlob([]byte("blob data"))

	if _, err := store.GetBlob(blob.ID()); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}

	if err := store.SetBlob(blob); err != nil {
		t.Fatalf("err: %v", err)
	}

	stored, err := store.GetBlob(blob.ID())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if string(stored.Data) != "blob data" {
		t.Fatalf("unexpected blob data: %s", stored.Data)
	}
}

func TestInmemManager(t *testing.T) {
	store := NewInmemStore(10)

	chainID := NewChainID([]byte("inmem chain"))

	if _, err := store.GetManager(chainID); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}

	manager := &ChainManager{
		RequestedLocked: testCertificate(chainID, 2),
	}
	if err := store.SetManager(chainID, manager); err != nil {
		t.Fatalf("err: %v", err)
	}

	stored, err := store.GetManager(chainID)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if stored.RequestedLocked == nil || stored.RequestedLocked.Value.Height != 2 {
		t.Fatal("manager locked certificate not preserved")
	}
}

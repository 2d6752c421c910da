// +build !mobile

package ledger

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/sirupsen/logrus"

	cm "github.com/corelattice/lattice/src/common"
)

func initBadgerStore(cacheSize int, t *testing.T) *BadgerStore {
	os.RemoveAll("test_data")
	os.Mkdir("test_data", os.ModeDir|0777)
	dir, err := ioutil.TempDir("test_data", "badger")
	if err != nil {
		t.Fatal(err)
	}

	store, err := NewBadgerStore(cacheSize, dir, cm.NewTestEntry(t, logrus.ErrorLevel))
	if err != nil {
		t.Fatal(err)
	}

	return store
}

func removeBadgerStore(store *BadgerStore, t *testing.T) {
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(store.path); err != nil {
		t.Fatal(err)
	}
}

func TestBadgerCertificates(t *testing.T) {
	store := initBadgerStore(10, t)
	defer removeBadgerStore(store, t)

	chainID := NewChainID([]byte("badger chain"))
	cert := testCertificate(chainID, 0)
	hash, _ := cert.Hash()

	if _, err := store.GetCertificate(hash); !cm.IsStore(err, cm.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}

	if err := store.SetCertificate(cert); err != nil {
		t.Fatalf("err: %v", err)
	}

	//read through the cache
	stored, err := store.GetCertificate(hash)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if h, _ := stored.Hash(); h != hash {
		t.Fatalf("expected hash %s, got %s", hash, h)
	}

	//read from the db directly
	dbStored, err := store.dbGetCertificate(certKey(hash))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if dbStored.Value.Height != cert.Value.Height {
		t.Fatalf("expected height %d, got %d", cert.Value.Height, dbStored.Value.Height)
	}
}

func TestBadgerChainHead(t *testing.T) {
	store := initBadgerStore(10, t)
	defer removeBadgerStore(store, t)

	chainID := NewChainID([]byte("badger chain"))

	if err := store.SetChainHead(chainID, 9); err != nil {
		t.Fatalf("err: %v", err)
	}

	head, err := store.GetChainHead(chainID)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if head != 9 {
		t.Fatalf("expected head 9, got %d", head)
	}
}

func TestBadgerBootstrap(t *testing.T) {
	store := initBadgerStore(10, t)
	path := store.path

	chainID := NewChainID([]byte("badger chain"))

	for i := 0; i < 3; i++ {
		cert := testCertificate(chainID, BlockHeight(i))
		if err := store.SetChainCertificate(cert); err != nil {
			t.Fatalf("err: %v", err)
		}
	}
	if err := store.SetChainHead(chainID, 3); err != nil {
		t.Fatalf("err: %v", err)
	}

	if store.NeedBootstrap() {
		t.Fatal("a fresh store should not need bootstrap")
	}

	if err := store.Close(); err != nil {
		t.Fatalf("err: %v", err)
	}

	loaded, err := LoadBadgerStore(10, path, cm.NewTestEntry(t, logrus.ErrorLevel))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer removeBadgerStore(loaded, t)

	if !loaded.NeedBootstrap() {
		t.Fatal("a loaded store should need bootstrap")
	}

	head, err := loaded.GetChainHead(chainID)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if head != 3 {
		t.Fatalf("expected head 3, got %d", head)
	}

	//chain certificates are read back from the db on demand
	cert, err := loaded.GetChainCertificate(chainID, 1)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if cert.Value.Height != 1 {
		t.Fatalf("expected height 1, got %d", cert.Value.Height)
	}

	chains := loaded.Chains()
	if len(chains) != 1 || chains[0] != chainID {
		t.Fatalf("expected chains [%s], got %v", chainID, chains)
	}
}

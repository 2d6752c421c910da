// +build mobile

package ledger

/*

This file is a duplicate of badger_store.go but imports a fork of badger db.
This fork does not attempt to acquire a directory lock as this is likely to
fail in Android 6 and below due to a bug in SELinux.

*/

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jonknight73/badger"
	badger_options "github.com/jonknight73/badger/options"
	"github.com/sirupsen/logrus"

	cm "github.com/corelattice/lattice/src/common"
)

const (
	certPrefix    = "cert"
	valuePrefix   = "value"
	blobPrefix    = "blob"
	chainPrefix   = "chain"
	headPrefix    = "head"
	managerPrefix = "manager"
)

// BadgerStore persists chain data in a Badger database, with an InmemStore in
// front acting as a write-through cache.
type BadgerStore struct {
	inmemStore    *InmemStore
	db            *badger.DB
	path          string
	needBootstrap bool
}

// NewBadgerStore creates a brand new store with a new database.
func NewBadgerStore(cacheSize int, path string, logger *logrus.Entry) (*BadgerStore, error) {
	handle, err := openBadgerDB(path, logger)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{
		inmemStore: NewInmemStore(cacheSize),
		db:         handle,
		path:       path,
	}, nil
}

// LoadBadgerStore creates a store from an existing database. Chain heads and
// managers are read back into the in-memory layer.
func LoadBadgerStore(cacheSize int, path string, logger *logrus.Entry) (*BadgerStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	handle, err := openBadgerDB(path, logger)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore:    NewInmemStore(cacheSize),
		db:            handle,
		path:          path,
		needBootstrap: true,
	}

	if err := store.dbLoadChains(); err != nil {
		store.db.Close()
		return nil, err
	}

	return store, nil
}

// LoadOrCreateBadgerStore loads an existing database or creates a new one if
// nothing is found in path.
func LoadOrCreateBadgerStore(cacheSize int, path string, logger *logrus.Entry) (*BadgerStore, error) {
	store, err := LoadBadgerStore(cacheSize, path, logger)

	if err != nil {
		store, err = NewBadgerStore(cacheSize, path, logger)

		if err != nil {
			return nil, err
		}
	}

	return store, nil
}

func openBadgerDB(path string, logger *logrus.Entry) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true).
		WithTableLoadingMode(badger_options.FileIO).
		WithValueLogLoadingMode(badger_options.FileIO)

	if logger != nil {
		opts = opts.WithLogger(logger.WithFields(logrus.Fields{"ns": "badger"}))
	}

	return badger.Open(opts)
}

//==============================================================================
//Keys

func certKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s_%s", certPrefix, hash))
}

func valueKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s_%s", valuePrefix, hash))
}

func blobKey(id BlobID) []byte {
	return []byte(fmt.Sprintf("%s_%s", blobPrefix, id))
}

func chainCertKey(chainID ChainID, height BlockHeight) []byte {
	return []byte(fmt.Sprintf("%s_%s_%020d", chainPrefix, chainID, height))
}

func headKey(chainID ChainID) []byte {
	return []byte(fmt.Sprintf("%s_%s", headPrefix, chainID))
}

func managerKey(chainID ChainID) []byte {
	return []byte(fmt.Sprintf("%s_%s", managerPrefix, chainID))
}

//==============================================================================
//Implement the Store interface

// CacheSize returns the configured recency cache size.
func (s *BadgerStore) CacheSize() int {
	return s.inmemStore.CacheSize()
}

// GetCertificate returns a certificate by value hash, from cache or db.
func (s *BadgerStore) GetCertificate(hash string) (*Certificate, error) {
	cert, err := s.inmemStore.GetCertificate(hash)
	if err != nil {
		cert, err = s.dbGetCertificate(certKey(hash))
	}
	return cert, mapError(err, "Certificate", hash)
}

// SetCertificate records a certificate in cache and db.
func (s *BadgerStore) SetCertificate(cert *Certificate) error {
	if err := s.inmemStore.SetCertificate(cert); err != nil {
		return err
	}
	hash, err := cert.Hash()
	if err != nil {
		return err
	}
	data, err := cert.Marshal()
	if err != nil {
		return err
	}
	return s.dbSet(certKey(hash), data)
}

// GetCertificateValue returns a certificate value by hash, from cache or db.
func (s *BadgerStore) GetCertificateValue(hash string) (*CertificateValue, error) {
	value, err := s.inmemStore.GetCertificateValue(hash)
	if err != nil {
		var data []byte
		data, err = s.dbGet(valueKey(hash))
		if err == nil {
			value = new(CertificateValue)
			err = value.Unmarshal(data)
		}
	}
	return value, mapError(err, "CertificateValue", hash)
}

// SetCertificateValue records a certificate value in cache and db.
func (s *BadgerStore) SetCertificateValue(value *CertificateValue) error {
	if err := s.inmemStore.SetCertificateValue(value); err != nil {
		return err
	}
	hash, err := value.Hash()
	if err != nil {
		return err
	}
	data, err := value.Marshal()
	if err != nil {
		return err
	}
	return s.dbSet(valueKey(hash), data)
}

// GetBlob returns a blob by ID, from cache or db.
func (s *BadgerStore) GetBlob(id BlobID) (*Blob, error) {
	blob, err := s.inmemStore.GetBlob(id)
	if err != nil {
		var data []byte
		data, err = s.dbGet(blobKey(id))
		if err == nil {
			blob = NewBlob(data)
		}
	}
	return blob, mapError(err, "Blob", string(id))
}

// SetBlob records a blob in cache and db.
func (s *BadgerStore) SetBlob(blob *Blob) error {
	if err := s.inmemStore.SetBlob(blob); err != nil {
		return err
	}
	return s.dbSet(blobKey(blob.ID()), blob.Data)
}

// GetChainCertificate returns the certificate applied at a chain height.
func (s *BadgerStore) GetChainCertificate(chainID ChainID, height BlockHeight) (*Certificate, error) {
	cert, err := s.inmemStore.GetChainCertificate(chainID, height)
	if err != nil {
		cert, err = s.dbGetCertificate(chainCertKey(chainID, height))
	}
	return cert, mapError(err, "ChainCertificate", string(chainID))
}

// SetChainCertificate indexes a certificate by chain and height, and by value
// hash.
func (s *BadgerStore) SetChainCertificate(cert *Certificate) error {
	if err := s.inmemStore.SetChainCertificate(cert); err != nil {
		return err
	}
	hash, err := cert.Hash()
	if err != nil {
		return err
	}
	data, err := cert.Marshal()
	if err != nil {
		return err
	}
	if err := s.dbSet(certKey(hash), data); err != nil {
		return err
	}
	return s.dbSet(chainCertKey(cert.Value.ChainID, cert.Value.Height), data)
}

// GetChainHead returns the next expected block height of a chain.
func (s *BadgerStore) GetChainHead(chainID ChainID) (BlockHeight, error) {
	head, err := s.inmemStore.GetChainHead(chainID)
	if err != nil {
		var data []byte
		data, err = s.dbGet(headKey(chainID))
		if err == nil {
			var h uint64
			h, err = strconv.ParseUint(string(data), 10, 64)
			head = BlockHeight(h)
		}
	}
	return head, mapError(err, "ChainHead", string(chainID))
}

// SetChainHead records the next expected block height of a chain.
func (s *BadgerStore) SetChainHead(chainID ChainID, next BlockHeight) error {
	if err := s.inmemStore.SetChainHead(chainID, next); err != nil {
		return err
	}
	return s.dbSet(headKey(chainID), []byte(strconv.FormatUint(uint64(next), 10)))
}

// GetManager returns the consensus slots of a chain.
func (s *BadgerStore) GetManager(chainID ChainID) (*ChainManager, error) {
	manager, err := s.inmemStore.GetManager(chainID)
	if err != nil {
		var data []byte
		data, err = s.dbGet(managerKey(chainID))
		if err == nil {
			manager = new(ChainManager)
			err = codecUnmarshal(data, manager)
		}
	}
	return manager, mapError(err, "Manager", string(chainID))
}

// SetManager records the consensus slots of a chain.
func (s *BadgerStore) SetManager(chainID ChainID, manager *ChainManager) error {
	if err := s.inmemStore.SetManager(chainID, manager); err != nil {
		return err
	}
	data, err := codecMarshal(manager)
	if err != nil {
		return err
	}
	return s.dbSet(managerKey(chainID), data)
}

// Chains lists every chain with a recorded head.
func (s *BadgerStore) Chains() []ChainID {
	return s.inmemStore.Chains()
}

// NeedBootstrap reports whether the store was opened over existing data.
func (s *BadgerStore) NeedBootstrap() bool {
	return s.needBootstrap
}

// StorePath returns the database directory.
func (s *BadgerStore) StorePath() string {
	return s.path
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	if err := s.inmemStore.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

//++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++++
//DB Methods

func (s *BadgerStore) dbGet(key []byte) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *BadgerStore) dbSet(key, val []byte) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	if err := tx.Set(key, val); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *BadgerStore) dbGetCertificate(key []byte) (*Certificate, error) {
	data, err := s.dbGet(key)
	if err != nil {
		return nil, err
	}
	cert := new(Certificate)
	if err := cert.Unmarshal(data); err != nil {
		return nil, err
	}
	return cert, nil
}

// dbLoadChains reads chain heads and managers back into the in-memory layer.
func (s *BadgerStore) dbLoadChains() error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(headPrefix + "_")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			chainID := ChainID(item.Key()[len(prefix):])
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			h, err := strconv.ParseUint(string(data), 10, 64)
			if err != nil {
				return err
			}
			if err := s.inmemStore.SetChainHead(chainID, BlockHeight(h)); err != nil {
				return err
			}

			manager := new(ChainManager)
			mdata, err := s.dbGet(managerKey(chainID))
			if err == nil {
				if err := codecUnmarshal(mdata, manager); err != nil {
					return err
				}
				if err := s.inmemStore.SetManager(chainID, manager); err != nil {
					return err
				}
			} else if !isDBKeyNotFound(err) {
				return err
			}
		}
		return nil
	})
}

func isDBKeyNotFound(err error) bool {
	return err.Error() == badger.ErrKeyNotFound.Error()
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}

package ledger

import (
	"sort"
	"sync"

	cm "github.com/corelattice/lattice/src/common"
)

type chainKey struct {
	chainID ChainID
	height  BlockHeight
}

// InmemStore keeps everything in memory. It is the default backing store and
// the one used in tests.
type InmemStore struct {
	cacheSize int

	sync.RWMutex
	certificates map[string]*Certificate
	values       map[string]*CertificateValue
	blobs        map[BlobID]*Blob
	byHeight     map[chainKey]*Certificate
	heads        map[ChainID]BlockHeight
	managers     map[ChainID]*ChainManager
}

// NewInmemStore creates an empty InmemStore.
func NewInmemStore(cacheSize int) *InmemStore {
	return &InmemStore{
		cacheSize:    cacheSize,
		certificates: make(map[string]*Certificate),
		values:       make(map[string]*CertificateValue),
		blobs:        make(map[BlobID]*Blob),
		byHeight:     make(map[chainKey]*Certificate),
		heads:        make(map[ChainID]BlockHeight),
		managers:     make(map[ChainID]*ChainManager),
	}
}

// CacheSize returns the configured recency cache size.
func (s *InmemStore) CacheSize() int {
	return s.cacheSize
}

// GetCertificate returns a certificate by value hash.
func (s *InmemStore) GetCertificate(hash string) (*Certificate, error) {
	s.RLock()
	defer s.RUnlock()
	cert, ok := s.certificates[hash]
	if !ok {
		return nil, cm.NewStoreErr("Certificate", cm.KeyNotFound, hash)
	}
	return cert, nil
}

// SetCertificate records a certificate under its value hash.
func (s *InmemStore) SetCertificate(cert *Certificate) error {
	hash, err := cert.Hash()
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	s.certificates[hash] = cert
	return nil
}

// GetCertificateValue returns a certificate value by hash.
func (s *InmemStore) GetCertificateValue(hash string) (*CertificateValue, error) {
	s.RLock()
	defer s.RUnlock()
	value, ok := s.values[hash]
	if !ok {
		return nil, cm.NewStoreErr("CertificateValue", cm.KeyNotFound, hash)
	}
	return value, nil
}

// SetCertificateValue records a certificate value under its hash.
func (s *InmemStore) SetCertificateValue(value *CertificateValue) error {
	hash, err := value.Hash()
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	s.values[hash] = value
	return nil
}

// GetBlob returns a blob by ID.
func (s *InmemStore) GetBlob(id BlobID) (*Blob, error) {
	s.RLock()
	defer s.RUnlock()
	blob, ok := s.blobs[id]
	if !ok {
		return nil, cm.NewStoreErr("Blob", cm.KeyNotFound, string(id))
	}
	return blob, nil
}

// SetBlob records a blob under its content ID.
func (s *InmemStore) SetBlob(blob *Blob) error {
	s.Lock()
	defer s.Unlock()
	s.blobs[blob.ID()] = blob
	return nil
}

// GetChainCertificate returns the certificate applied at a chain height.
func (s *InmemStore) GetChainCertificate(chainID ChainID, height BlockHeight) (*Certificate, error) {
	s.RLock()
	defer s.RUnlock()
	cert, ok := s.byHeight[chainKey{chainID, height}]
	if !ok {
		return nil, cm.NewStoreErr("ChainCertificate", cm.KeyNotFound, string(chainID))
	}
	return cert, nil
}

// SetChainCertificate indexes a certificate by chain and height, and by value
// hash.
func (s *InmemStore) SetChainCertificate(cert *Certificate) error {
	if err := s.SetCertificate(cert); err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	s.byHeight[chainKey{cert.Value.ChainID, cert.Value.Height}] = cert
	return nil
}

// GetChainHead returns the next expected block height of a chain.
func (s *InmemStore) GetChainHead(chainID ChainID) (BlockHeight, error) {
	s.RLock()
	defer s.RUnlock()
	head, ok := s.heads[chainID]
	if !ok {
		return 0, cm.NewStoreErr("ChainHead", cm.KeyNotFound, string(chainID))
	}
	return head, nil
}

// SetChainHead records the next expected block height of a chain.
func (s *InmemStore) SetChainHead(chainID ChainID, next BlockHeight) error {
	s.Lock()
	defer s.Unlock()
	s.heads[chainID] = next
	return nil
}

// GetManager returns the consensus slots of a chain.
func (s *InmemStore) GetManager(chainID ChainID) (*ChainManager, error) {
	s.RLock()
	defer s.RUnlock()
	manager, ok := s.managers[chainID]
	if !ok {
		return nil, cm.NewStoreErr("Manager", cm.KeyNotFound, string(chainID))
	}
	return manager, nil
}

// SetManager records the consensus slots of a chain.
func (s *InmemStore) SetManager(chainID ChainID, manager *ChainManager) error {
	s.Lock()
	defer s.Unlock()
	s.managers[chainID] = manager
	return nil
}

// Chains lists every chain with a recorded head, in stable order.
func (s *InmemStore) Chains() []ChainID {
	s.RLock()
	defer s.RUnlock()
	chains := make([]ChainID, 0, len(s.heads))
	for id := range s.heads {
		chains = append(chains, id)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}

// NeedBootstrap always returns false for an in-memory store.
func (s *InmemStore) NeedBootstrap() bool {
	return false
}

// StorePath returns an empty string for an in-memory store.
func (s *InmemStore) StorePath() string {
	return ""
}

// Close is a no-op for an in-memory store.
func (s *InmemStore) Close() error {
	return nil
}

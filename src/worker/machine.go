package worker

import (
	"fmt"

	"github.com/sirupsen/logrus"

	cm "github.com/corelattice/lattice/src/common"
	"github.com/corelattice/lattice/src/ledger"
)

// QueryHandler runs read-only application queries. It is pluggable so that
// the application runtime can live outside this package.
type QueryHandler func(chainID ledger.ChainID, query []byte) ([]byte, error)

type appKey struct {
	chainID ledger.ChainID
	name    string
}

// Machine is the in-process Worker. It enforces strict height ordering per
// chain, detects missing dependencies before applying a block, and emits a
// notification for every block it applies.
//
// Machine is not thread-safe. It is meant to be owned exclusively by a single
// node which serializes access.
type Machine struct {
	store      ledger.Store
	valueCache *ledger.ValueCache
	blobCache  *ledger.BlobCache

	apps         map[appKey]*ledger.ApplicationDescription
	queryHandler QueryHandler

	logger *logrus.Entry
}

// NewMachine creates a Machine over the given store. The recency caches are
// sized from the store's configured cache size.
func NewMachine(store ledger.Store, logger *logrus.Entry) (*Machine, error) {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	valueCache, err := ledger.NewValueCache(store.CacheSize())
	if err != nil {
		return nil, err
	}

	blobCache, err := ledger.NewBlobCache(store.CacheSize())
	if err != nil {
		return nil, err
	}

	return &Machine{
		store:      store,
		valueCache: valueCache,
		blobCache:  blobCache,
		apps:       make(map[appKey]*ledger.ApplicationDescription),
		logger:     logger,
	}, nil
}

// SetQueryHandler plugs in the application query runtime.
func (m *Machine) SetQueryHandler(handler QueryHandler) {
	m.queryHandler = handler
}

// RegisterApplication records an application description for
// DescribeApplication.
func (m *Machine) RegisterApplication(name string, desc *ledger.ApplicationDescription) {
	m.apps[appKey{desc.ChainID, name}] = desc
}

// nextHeight returns the next expected block height of a chain. A chain with
// no recorded head starts at height 0.
func (m *Machine) nextHeight(chainID ledger.ChainID) (ledger.BlockHeight, error) {
	head, err := m.store.GetChainHead(chainID)
	if err != nil {
		if cm.IsStore(err, cm.KeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return head, nil
}

// HandleBlockProposal verifies a proposal signature and height, and records
// it as the chain's pending proposal.
func (m *Machine) HandleBlockProposal(proposal *ledger.BlockProposal) (*ledger.ChainInfoResponse, error) {
	ok, err := proposal.Verify()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("invalid proposal signature for chain %s", proposal.ChainID)
	}

	next, err := m.nextHeight(proposal.ChainID)
	if err != nil {
		return nil, err
	}
	if proposal.Height != next {
		return nil, fmt.Errorf("proposal height %d does not match expected height %d for chain %s",
			proposal.Height, next, proposal.ChainID)
	}

	manager, err := m.manager(proposal.ChainID)
	if err != nil {
		return nil, err
	}
	manager.RequestedProposal = proposal
	if err := m.store.SetManager(proposal.ChainID, manager); err != nil {
		return nil, err
	}

	return m.chainInfoResponse(ledger.NewChainInfoQuery(proposal.ChainID))
}

// FullCertificate upgrades a lite certificate using locally known values.
func (m *Machine) FullCertificate(lite *ledger.LiteCertificate) (*ledger.Certificate, error) {
	value := m.valueCache.Get(lite.ValueHash)
	if value == nil {
		var err error
		value, err = m.store.GetCertificateValue(lite.ValueHash)
		if err != nil {
			return nil, err
		}
	}
	return lite.WithValue(value)
}

// FullyHandleCertificate applies a certificate. Confirmed certificates extend
// the chain; validated ones are recorded in the chain's manager. The supplied
// values and blobs are used to satisfy dependencies and are persisted on
// success.
func (m *Machine) FullyHandleCertificate(cert *ledger.Certificate, values []*ledger.CertificateValue,
	blobs []*ledger.Blob, sink *[]ledger.Notification) (*ledger.ChainInfoResponse, error) {

	value := cert.Value
	chainID := value.ChainID

	if value.Kind == ledger.ValueValidated {
		return m.handleValidated(cert, sink)
	}

	next, err := m.nextHeight(chainID)
	if err != nil {
		return nil, err
	}

	if value.Height < next {
		// Already applied
		return m.chainInfoResponse(ledger.NewChainInfoQuery(chainID))
	}

	if value.Height > next {
		return nil, fmt.Errorf("certificate height %d above expected height %d for chain %s",
			value.Height, next, chainID)
	}

	if err := m.checkDependencies(value, values, blobs); err != nil {
		return nil, err
	}

	for _, v := range values {
		if err := m.store.SetCertificateValue(v); err != nil {
			return nil, err
		}
	}
	for _, b := range blobs {
		if err := m.store.SetBlob(b); err != nil {
			return nil, err
		}
	}

	if err := m.store.SetChainCertificate(cert); err != nil {
		return nil, err
	}

	newNext, err := value.Height.Add(1)
	if err != nil {
		return nil, err
	}
	if err := m.store.SetChainHead(chainID, newNext); err != nil {
		return nil, err
	}

	if sink != nil {
		*sink = append(*sink, ledger.Notification{
			ChainID: chainID,
			Height:  value.Height,
			Reason:  ledger.ReasonNewBlock,
		})
	}

	if _, err := m.valueCache.Add(value); err != nil {
		m.logger.WithField("error", err).Error("Failed to cache certificate value")
	}

	return m.chainInfoResponse(ledger.NewChainInfoQuery(chainID))
}

// handleValidated records a validated certificate in the chain's manager.
func (m *Machine) handleValidated(cert *ledger.Certificate, sink *[]ledger.Notification) (*ledger.ChainInfoResponse, error) {
	chainID := cert.Value.ChainID

	manager, err := m.manager(chainID)
	if err != nil {
		return nil, err
	}
	manager.RequestedLocked = cert
	if err := m.store.SetManager(chainID, manager); err != nil {
		return nil, err
	}

	if sink != nil {
		*sink = append(*sink, ledger.Notification{
			ChainID: chainID,
			Height:  cert.Value.Height,
			Reason:  ledger.ReasonNewRound,
		})
	}

	return m.chainInfoResponse(ledger.NewChainInfoQuery(chainID))
}

// checkDependencies verifies that every bytecode location and blob the value
// requires is resolvable from the supplied extras, the recency caches, or the
// store. It returns one of the missing-dependency error shapes otherwise.
func (m *Machine) checkDependencies(value *ledger.CertificateValue,
	values []*ledger.CertificateValue, blobs []*ledger.Blob) error {

	supplied := make(map[string]*ledger.CertificateValue, len(values))
	for _, v := range values {
		hash, err := v.Hash()
		if err != nil {
			return err
		}
		supplied[hash] = v
	}

	suppliedBlobs := make(map[ledger.BlobID]bool, len(blobs))
	for _, b := range blobs {
		suppliedBlobs[b.ID()] = true
	}

	missingBytecode := []ledger.BytecodeLocation{}
	for _, loc := range value.RequiredBytecode {
		if !m.bytecodeAvailable(loc, supplied) {
			missingBytecode = append(missingBytecode, loc)
		}
	}

	missingBlobs := []ledger.BlobID{}
	for _, id := range value.RequiredBlobs {
		if suppliedBlobs[id] || m.blobCache.Get(id) != nil {
			continue
		}
		if _, err := m.store.GetBlob(id); err == nil {
			continue
		}
		missingBlobs = append(missingBlobs, id)
	}

	switch {
	case len(missingBytecode) > 0 && len(missingBlobs) > 0:
		return &ledger.DependenciesMissingError{Locations: missingBytecode, IDs: missingBlobs}
	case len(missingBytecode) > 0:
		return &ledger.BytecodeMissingError{Locations: missingBytecode}
	case len(missingBlobs) > 0:
		return &ledger.BlobsMissingError{IDs: missingBlobs}
	}
	return nil
}

func (m *Machine) bytecodeAvailable(loc ledger.BytecodeLocation, supplied map[string]*ledger.CertificateValue) bool {
	publisher := supplied[loc.CertificateHash]
	if publisher == nil {
		publisher = m.valueCache.Get(loc.CertificateHash)
	}
	if publisher == nil {
		var err error
		publisher, err = m.store.GetCertificateValue(loc.CertificateHash)
		if err != nil {
			return false
		}
	}
	return loc.Index < publisher.PublishedBytecode
}

// HandleChainInfoQuery answers a query about a chain. The response is not
// signed; signing is up to the serving node.
func (m *Machine) HandleChainInfoQuery(query *ledger.ChainInfoQuery) (*ledger.ChainInfoResponse, error) {
	return m.chainInfoResponse(query)
}

func (m *Machine) chainInfoResponse(query *ledger.ChainInfoQuery) (*ledger.ChainInfoResponse, error) {
	next, err := m.nextHeight(query.ChainID)
	if err != nil {
		return nil, err
	}

	info := &ledger.ChainInfo{
		ChainID:         query.ChainID,
		NextBlockHeight: next,
	}

	if r := query.SentCertificatesInRange; r != nil {
		certs, err := m.certificatesInRange(query.ChainID, *r)
		if err != nil {
			return nil, err
		}
		info.RequestedSentCertificates = certs
	}

	if query.RequestManagerValues {
		manager, err := m.manager(query.ChainID)
		if err != nil {
			return nil, err
		}
		info.Manager = *manager
	}

	if hash := query.RequestCertificateValue; hash != "" {
		value := m.valueCache.Get(hash)
		if value == nil {
			value, _ = m.store.GetCertificateValue(hash)
		}
		info.RequestedCertificateValue = value
	}

	if id := query.RequestBlob; id != "" {
		blob := m.blobCache.Get(id)
		if blob == nil {
			blob, _ = m.store.GetBlob(id)
		}
		info.RequestedBlob = blob
	}

	return &ledger.ChainInfoResponse{Info: info}, nil
}

// certificatesInRange reads applied certificates from Start, in increasing
// height order, stopping at the first gap or at the range limit.
func (m *Machine) certificatesInRange(chainID ledger.ChainID, r ledger.BlockHeightRange) ([]*ledger.Certificate, error) {
	certs := []*ledger.Certificate{}

	height := r.Start
	for {
		if r.Limit > 0 && uint64(len(certs)) >= r.Limit {
			break
		}
		cert, err := m.store.GetChainCertificate(chainID, height)
		if err != nil {
			if cm.IsStore(err, cm.KeyNotFound) {
				break
			}
			return nil, err
		}
		certs = append(certs, cert)

		next, err := height.Add(1)
		if err != nil {
			return nil, err
		}
		height = next
	}

	return certs, nil
}

func (m *Machine) manager(chainID ledger.ChainID) (*ledger.ChainManager, error) {
	manager, err := m.store.GetManager(chainID)
	if err != nil {
		if cm.IsStore(err, cm.KeyNotFound) {
			return &ledger.ChainManager{}, nil
		}
		return nil, err
	}
	return manager, nil
}

// StageBlock simulates the execution of a proposal without committing any
// state.
func (m *Machine) StageBlock(proposal *ledger.BlockProposal) (*ledger.ChainInfoResponse, error) {
	next, err := m.nextHeight(proposal.ChainID)
	if err != nil {
		return nil, err
	}
	if proposal.Height != next {
		return nil, fmt.Errorf("proposal height %d does not match expected height %d for chain %s",
			proposal.Height, next, proposal.ChainID)
	}
	return m.chainInfoResponse(ledger.NewChainInfoQuery(proposal.ChainID))
}

// QueryApplication runs a read-only query through the registered handler.
func (m *Machine) QueryApplication(chainID ledger.ChainID, query []byte) ([]byte, error) {
	if m.queryHandler == nil {
		return nil, fmt.Errorf("no application query handler for chain %s", chainID)
	}
	return m.queryHandler(chainID, query)
}

// DescribeApplication returns the description of a registered application.
func (m *Machine) DescribeApplication(chainID ledger.ChainID, name string) (*ledger.ApplicationDescription, error) {
	desc, ok := m.apps[appKey{chainID, name}]
	if !ok {
		return nil, fmt.Errorf("unknown application %s on chain %s", name, chainID)
	}
	return desc, nil
}

// RecentCertificateValue returns a recently seen value, or nil.
func (m *Machine) RecentCertificateValue(hash string) *ledger.CertificateValue {
	return m.valueCache.Get(hash)
}

// CacheCertificateValue caches a value. It returns true if the value was not
// already cached.
func (m *Machine) CacheCertificateValue(value *ledger.CertificateValue) bool {
	added, err := m.valueCache.Add(value)
	if err != nil {
		m.logger.WithField("error", err).Error("Failed to cache certificate value")
		return false
	}
	return added
}

// RecentBlob returns a recently seen blob, or nil.
func (m *Machine) RecentBlob(id ledger.BlobID) *ledger.Blob {
	return m.blobCache.Get(id)
}

// RecentBlobs returns all recently seen blobs.
func (m *Machine) RecentBlobs() []*ledger.Blob {
	return m.blobCache.Blobs()
}

// CacheBlob caches a blob. It returns true if the blob was not already
// cached.
func (m *Machine) CacheBlob(blob *ledger.Blob) bool {
	return m.blobCache.Add(blob)
}

// Storage exposes the underlying store.
func (m *Machine) Storage() ledger.Store {
	return m.store
}

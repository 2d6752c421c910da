package node

import (
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/corelattice/lattice/src/ledger"
	"github.com/corelattice/lattice/src/worker"
)

// LocalNode wraps the exclusively-owned chain state machine behind a single
// lock. Every worker interaction, reads included, happens under the lock;
// network waits never do. Handles are shared by pointer, so all copies see
// the same state.
type LocalNode struct {
	coreLock sync.Mutex
	worker   worker.Worker

	// rng drives validator selection. A nil rng uses the global source.
	rng *rand.Rand

	batchLimit uint64

	logger *logrus.Entry
}

// DefaultBatchLimit caps how many certificates are requested from a validator
// in one query.
const DefaultBatchLimit = 1000

// NewLocalNode creates a LocalNode over the given worker. batchLimit <= 0
// falls back to DefaultBatchLimit.
func NewLocalNode(w worker.Worker, batchLimit int, rng *rand.Rand, logger *logrus.Entry) *LocalNode {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	limit := uint64(DefaultBatchLimit)
	if batchLimit > 0 {
		limit = uint64(batchLimit)
	}

	return &LocalNode{
		worker:     w,
		rng:        rng,
		batchLimit: limit,
		logger:     logger,
	}
}

// HandleBlockProposal verifies and records a block proposal.
func (n *LocalNode) HandleBlockProposal(proposal *ledger.BlockProposal) (*ledger.ChainInfoResponse, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.worker.HandleBlockProposal(proposal)
}

// HandleLiteCertificate hydrates a lite certificate from locally known values
// and applies it.
func (n *LocalNode) HandleLiteCertificate(lite *ledger.LiteCertificate) Notified[*ledger.ChainInfoResponse] {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	notifications := []ledger.Notification{}

	cert, err := n.worker.FullCertificate(lite)
	if err != nil {
		return Notified[*ledger.ChainInfoResponse]{Err: err, Notifications: notifications}
	}

	resp, err := n.worker.FullyHandleCertificate(cert, nil, nil, &notifications)
	return Notified[*ledger.ChainInfoResponse]{Value: resp, Notifications: notifications, Err: err}
}

// HandleCertificate applies a certificate, with extra values and blobs
// supplied to satisfy its dependencies.
func (n *LocalNode) HandleCertificate(cert *ledger.Certificate, values []*ledger.CertificateValue,
	blobs []*ledger.Blob) Notified[*ledger.ChainInfoResponse] {

	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	notifications := []ledger.Notification{}
	resp, err := n.worker.FullyHandleCertificate(cert, values, blobs, &notifications)
	return Notified[*ledger.ChainInfoResponse]{Value: resp, Notifications: notifications, Err: err}
}

// HandleChainInfoQuery answers a query about a chain from local state.
func (n *LocalNode) HandleChainInfoQuery(query *ledger.ChainInfoQuery) (*ledger.ChainInfoResponse, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.worker.HandleChainInfoQuery(query)
}

// LocalChainInfo returns the minimal local view of a chain.
func (n *LocalNode) LocalChainInfo(chainID ledger.ChainID) (*ledger.ChainInfo, error) {
	resp, err := n.HandleChainInfoQuery(ledger.NewChainInfoQuery(chainID))
	if err != nil {
		return nil, err
	}
	return resp.Info, nil
}

// StageBlock simulates the execution of a proposal without committing any
// state.
func (n *LocalNode) StageBlock(proposal *ledger.BlockProposal) (*ledger.ChainInfoResponse, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.worker.StageBlock(proposal)
}

// QueryApplication runs a read-only query against an application.
func (n *LocalNode) QueryApplication(chainID ledger.ChainID, query []byte) ([]byte, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.worker.QueryApplication(chainID, query)
}

// DescribeApplication returns the description of a registered application.
func (n *LocalNode) DescribeApplication(chainID ledger.ChainID, name string) (*ledger.ApplicationDescription, error) {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.worker.DescribeApplication(chainID, name)
}

// RecentBlob returns a recently seen blob, or nil.
func (n *LocalNode) RecentBlob(id ledger.BlobID) *ledger.Blob {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.worker.RecentBlob(id)
}

// RecentBlobs returns all recently seen blobs.
func (n *LocalNode) RecentBlobs() []*ledger.Blob {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.worker.RecentBlobs()
}

// CacheRecentBlob caches a blob. It returns true if the blob was not already
// cached.
func (n *LocalNode) CacheRecentBlob(blob *ledger.Blob) bool {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.worker.CacheBlob(blob)
}

// StorageClient exposes the worker's store. The store is safe for use
// outside the core lock.
func (n *LocalNode) StorageClient() ledger.Store {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	return n.worker.Storage()
}

// Package worker defines the chain state machine that applies certified
// blocks, and the interface through which the node drives it.
package worker

import (
	"github.com/corelattice/lattice/src/ledger"
)

// Worker is the chain state machine. Implementations are not required to be
// thread-safe; the node serializes all access behind its own lock.
type Worker interface {
	// HandleBlockProposal verifies and records a block proposal.
	HandleBlockProposal(proposal *ledger.BlockProposal) (*ledger.ChainInfoResponse, error)

	// FullCertificate upgrades a lite certificate to a full one using
	// locally known values.
	FullCertificate(lite *ledger.LiteCertificate) (*ledger.Certificate, error)

	// FullyHandleCertificate applies a certificate to the chain state. The
	// values and blobs are extra dependencies supplied by the caller.
	// Notifications produced while applying are appended to sink, and must
	// be kept by the caller even when an error is returned.
	FullyHandleCertificate(cert *ledger.Certificate, values []*ledger.CertificateValue,
		blobs []*ledger.Blob, sink *[]ledger.Notification) (*ledger.ChainInfoResponse, error)

	// HandleChainInfoQuery answers a query about a chain.
	HandleChainInfoQuery(query *ledger.ChainInfoQuery) (*ledger.ChainInfoResponse, error)

	// StageBlock simulates the execution of a proposal without committing
	// any state.
	StageBlock(proposal *ledger.BlockProposal) (*ledger.ChainInfoResponse, error)

	// QueryApplication runs a read-only query against an application.
	QueryApplication(chainID ledger.ChainID, query []byte) ([]byte, error)

	// DescribeApplication returns the description of a registered
	// application.
	DescribeApplication(chainID ledger.ChainID, name string) (*ledger.ApplicationDescription, error)

	// RecentCertificateValue returns a recently seen value, or nil.
	RecentCertificateValue(hash string) *ledger.CertificateValue

	// CacheCertificateValue caches a value. It returns true if the value
	// was not already cached.
	CacheCertificateValue(value *ledger.CertificateValue) bool

	// RecentBlob returns a recently seen blob, or nil.
	RecentBlob(id ledger.BlobID) *ledger.Blob

	// RecentBlobs returns all recently seen blobs.
	RecentBlobs() []*ledger.Blob

	// CacheBlob caches a blob. It returns true if the blob was not already
	// cached.
	CacheBlob(blob *ledger.Blob) bool

	// Storage exposes the underlying store.
	Storage() ledger.Store
}

package ledger

// Store is the persistence interface for certified chain data. Reads return a
// common.StoreErr with KeyNotFound when the item is absent, which callers use
// to decide whether to try the network.
type Store interface {
	// CacheSize returns the configured size for the recency caches layered
	// on top of this store.
	CacheSize() int

	GetCertificate(hash string) (*Certificate, error)
	SetCertificate(cert *Certificate) error

	GetCertificateValue(hash string) (*CertificateValue, error)
	SetCertificateValue(value *CertificateValue) error

	GetBlob(id BlobID) (*Blob, error)
	SetBlob(blob *Blob) error

	// GetChainCertificate returns the certificate applied at the given
	// height of a chain.
	GetChainCertificate(chainID ChainID, height BlockHeight) (*Certificate, error)
	// SetChainCertificate records a certificate under its chain and height,
	// and under its value hash.
	SetChainCertificate(cert *Certificate) error

	// GetChainHead returns the next expected block height of a chain.
	GetChainHead(chainID ChainID) (BlockHeight, error)
	SetChainHead(chainID ChainID, next BlockHeight) error

	GetManager(chainID ChainID) (*ChainManager, error)
	SetManager(chainID ChainID, manager *ChainManager) error

	// Chains lists every chain the store has a head for.
	Chains() []ChainID

	// NeedBootstrap reports whether the store was opened over existing data.
	NeedBootstrap() bool

	StorePath() string

	Close() error
}

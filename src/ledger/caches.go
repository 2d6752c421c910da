package ledger

import (
	lru "github.com/hashicorp/golang-lru"
)

// ValueCache is a bounded recency cache for certificate values, keyed by
// content hash. It sits in front of the store so that values fetched during
// dependency resolution do not hit disk twice.
type ValueCache struct {
	cache *lru.Cache
}

// NewValueCache creates a ValueCache holding at most size values.
func NewValueCache(size int) (*ValueCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &ValueCache{cache: cache}, nil
}

// Get returns the cached value for a hash, or nil.
func (c *ValueCache) Get(hash string) *CertificateValue {
	if v, ok := c.cache.Get(hash); ok {
		return v.(*CertificateValue)
	}
	return nil
}

// Add caches a value. It returns true if the value was not already cached.
func (c *ValueCache) Add(value *CertificateValue) (bool, error) {
	hash, err := value.Hash()
	if err != nil {
		return false, err
	}
	if c.cache.Contains(hash) {
		return false, nil
	}
	c.cache.Add(hash, value)
	return true, nil
}

// Len returns the number of cached values.
func (c *ValueCache) Len() int {
	return c.cache.Len()
}

// BlobCache is a bounded recency cache for blobs, keyed by content ID.
type BlobCache struct {
	cache *lru.Cache
}

// NewBlobCache creates a BlobCache holding at most size blobs.
func NewBlobCache(size int) (*BlobCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &BlobCache{cache: cache}, nil
}

// Get returns the cached blob for an ID, or nil.
func (c *BlobCache) Get(id BlobID) *Blob {
	if b, ok := c.cache.Get(id); ok {
		return b.(*Blob)
	}
	return nil
}

// Add caches a blob. It returns true if the blob was not already cached.
func (c *BlobCache) Add(blob *Blob) bool {
	id := blob.ID()
	if c.cache.Contains(id) {
		return false
	}
	c.cache.Add(id, blob)
	return true
}

// Blobs returns all cached blobs, most recent last.
func (c *BlobCache) Blobs() []*Blob {
	keys := c.cache.Keys()
	blobs := make([]*Blob, 0, len(keys))
	for _, k := range keys {
		if b, ok := c.cache.Peek(k); ok {
			blobs = append(blobs, b.(*Blob))
		}
	}
	return blobs
}

// Len returns the number of cached blobs.
func (c *BlobCache) Len() int {
	return c.cache.Len()
}

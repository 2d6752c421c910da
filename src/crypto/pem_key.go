package crypto

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/corelattice/lattice/src/crypto/keys"
)

const (
	pemKeyPath = "priv_key.pem"
)

// PemKey manages the validator's private key file in PEM format.
type PemKey struct {
	l    sync.Mutex
	path string
}

// NewPemKey returns a PemKey rooted at the base directory.
func NewPemKey(base string) *PemKey {
	path := filepath.Join(base, pemKeyPath)

	pemKey := &PemKey{
		path: path,
	}

	return pemKey
}

// ReadKey parses the key file.
func (k *PemKey) ReadKey() (*ecdsa.PrivateKey, error) {
	k.l.Lock()
	defer k.l.Unlock()

	buf, err := ioutil.ReadFile(k.path)

	if err != nil {
		return nil, err
	}

	return k.ReadKeyFromBuf(buf)
}

// ReadKeyFromBuf parses a PEM buffer.
func (k *PemKey) ReadKeyFromBuf(buf []byte) (*ecdsa.PrivateKey, error) {
	if len(buf) == 0 {
		return nil, nil
	}

	block, _ := pem.Decode(buf)

	if block == nil {
		return nil, fmt.Errorf("Error decoding PEM block from data")
	}

	return x509.ParseECPrivateKey(block.Bytes)
}

// WriteKey persists the key to the key file.
func (k *PemKey) WriteKey(key *ecdsa.PrivateKey) error {
	k.l.Lock()
	defer k.l.Unlock()

	pemKey, err := ToPemKey(key)

	if err != nil {
		return err
	}

	if err := os.MkdirAll(path.Dir(k.path), 0700); err != nil {
		return err
	}

	return ioutil.WriteFile(k.path, []byte(pemKey.PrivateKey), 0755)
}

// PemDump contains the public and private keys in string form.
type PemDump struct {
	PublicKey  string
	PrivateKey string
}

// GeneratePemKey creates a fresh key pair.
func GeneratePemKey() (*PemDump, error) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	return ToPemKey(key)
}

// ToPemKey converts a private key to its PEM dump.
func ToPemKey(priv *ecdsa.PrivateKey) (*PemDump, error) {
	pub := fmt.Sprintf("0x%X", keys.FromPublicKey(&priv.PublicKey))

	b, err := x509.MarshalECPrivateKey(priv)

	if err != nil {
		return nil, err
	}

	pemBlock := &pem.Block{Type: "EC PRIVATE KEY", Bytes: b}

	data := pem.EncodeToMemory(pemBlock)

	return &PemDump{
		PublicKey:  pub,
		PrivateKey: string(data),
	}, nil
}

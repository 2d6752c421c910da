package node

import (
	"errors"
	"fmt"

	"github.com/corelattice/lattice/src/ledger"
)

var (
	// ErrSyncStalled is returned when a validator reports a height range but
	// then fails to move the cursor forward, which would loop forever.
	ErrSyncStalled = errors.New("validator reported certificates but made no progress")
)

// CannotDownloadCertificatesError is returned when a certificate download
// could not reach the target height on any validator.
type CannotDownloadCertificatesError struct {
	ChainID ledger.ChainID
	Target  ledger.BlockHeight
}

func (e *CannotDownloadCertificatesError) Error() string {
	return fmt.Sprintf("cannot download certificates for chain %s up to height %d", e.ChainID, e.Target)
}

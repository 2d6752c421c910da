package net

import (
	"github.com/corelattice/lattice/src/ledger"
)

// ChainInfoRequest asks a node to report its view of a chain. The Query
// selects which parts of the view to include. FromID identifies the
// requester.
type ChainInfoRequest struct {
	FromID uint32
	Query  *ledger.ChainInfoQuery
}

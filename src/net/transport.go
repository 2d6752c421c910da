package net

import (
	"github.com/corelattice/lattice/src/ledger"
)

// Transport provides an interface for network transports to allow a node to
// query other nodes.
type Transport interface {

	// Starts the transport listening
	Listen()

	// Consumer returns a channel that can be used to
	// consume and respond to RPC requests.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address
	LocalAddr() string

	// AdvertiseAddr is used to return our advertise address where other
	// nodes can reach us
	AdvertiseAddr() string

	// ChainInfo sends a chain info query to the target node.
	ChainInfo(target string, args *ChainInfoRequest, resp *ledger.ChainInfoResponse) error

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}

package node

import (
	"github.com/corelattice/lattice/src/committee"
	"github.com/corelattice/lattice/src/ledger"
	"github.com/corelattice/lattice/src/net"
)

// RemoteNode is a handle on one committee validator, pairing its identity
// with the transport used to reach it. Responses are checked against the
// validator's key before being trusted.
type RemoteNode struct {
	Validator *committee.Validator

	trans  net.Transport
	fromID uint32
}

// NewRemoteNode creates a handle on a validator. fromID identifies the local
// node in requests.
func NewRemoteNode(validator *committee.Validator, trans net.Transport, fromID uint32) *RemoteNode {
	return &RemoteNode{
		Validator: validator,
		trans:     trans,
		fromID:    fromID,
	}
}

// ChainInfoQuery sends a query to the validator and returns its signed
// response. The signature is not verified here; see CheckResponse.
func (r *RemoteNode) ChainInfoQuery(query *ledger.ChainInfoQuery) (*ledger.ChainInfoResponse, error) {
	args := &net.ChainInfoRequest{
		FromID: r.fromID,
		Query:  query,
	}
	var resp ledger.ChainInfoResponse
	if err := r.trans.ChainInfo(r.Validator.NetAddr, args, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CheckResponse verifies the response signature against the validator's
// public key.
func (r *RemoteNode) CheckResponse(resp *ledger.ChainInfoResponse) error {
	return resp.Check(r.Validator.PubKeyHex)
}

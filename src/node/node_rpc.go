package node

import (
	"fmt"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/corelattice/lattice/src/net"
)

func (n *Node) processRPC(rpc net.RPC) {
	switch cmd := rpc.Command.(type) {
	case *net.ChainInfoRequest:
		n.processChainInfoRequest(rpc, cmd)
	default:
		n.logger.WithField("cmd", rpc.Command).Error("Unexpected RPC command")
		rpc.Respond(nil, fmt.Errorf("unexpected command"))
	}
}

// processChainInfoRequest serves a chain info query and signs the response so
// the caller can authenticate it.
func (n *Node) processChainInfoRequest(rpc net.RPC, cmd *net.ChainInfoRequest) {
	n.logger.WithFields(logrus.Fields{
		"from_id":  cmd.FromID,
		"chain_id": cmd.Query.ChainID,
	}).Debug("process ChainInfoRequest")

	atomic.AddInt32(&n.syncRequests, 1)

	resp, err := n.local.HandleChainInfoQuery(cmd.Query)
	if err != nil {
		n.logger.WithField("error", err).Error("Handling ChainInfoRequest")
		atomic.AddInt32(&n.syncErrors, 1)
		rpc.Respond(nil, err)
		return
	}

	if err := resp.Sign(n.validator.Key); err != nil {
		n.logger.WithField("error", err).Error("Signing ChainInfoResponse")
		atomic.AddInt32(&n.syncErrors, 1)
		rpc.Respond(nil, err)
		return
	}

	n.logger.WithFields(logrus.Fields{
		"from_id":           cmd.FromID,
		"chain_id":          cmd.Query.ChainID,
		"next_block_height": resp.Info.NextBlockHeight,
	}).Debug("Responding to ChainInfoRequest")

	rpc.Respond(resp, nil)
}

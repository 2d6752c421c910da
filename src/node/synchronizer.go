package node

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/corelattice/lattice/src/ledger"
)

// SynchronizeChainState brings the local chain up to date with the whole
// committee: every validator is tried concurrently, each remote failure is
// logged and swallowed, and the merged local view is returned once all tries
// have finished. Notifications from every applied certificate are appended
// to sink.
func (n *LocalNode) SynchronizeChainState(validators []*RemoteNode, chainID ledger.ChainID,
	sink *[]ledger.Notification) (*ledger.ChainInfo, error) {

	type result struct {
		notifications []ledger.Notification
		err           error
	}

	results := make([]result, len(validators))

	var wg sync.WaitGroup
	for i, remote := range validators {
		wg.Add(1)
		go func(i int, remote *RemoteNode) {
			defer wg.Done()
			notifications, err := n.trySynchronizeChainStateFrom(remote, chainID)
			results[i] = result{notifications, err}
		}(i, remote)
	}
	wg.Wait()

	for i, res := range results {
		if sink != nil {
			*sink = append(*sink, res.notifications...)
		}
		if res.err != nil {
			n.logger.WithFields(logrus.Fields{
				"validator": validators[i].Validator.Moniker,
				"error":     res.err,
			}).Warn("Failed to synchronize from validator")
		}
	}

	return n.LocalChainInfo(chainID)
}

// trySynchronizeChainStateFrom downloads and applies everything one
// validator knows beyond the local height, then adopts the validator's
// pending proposal and locked certificate if any. Remote failures are logged
// and swallowed; only local errors are returned. The returned notifications
// are valid even when an error is returned.
func (n *LocalNode) trySynchronizeChainStateFrom(remote *RemoteNode, chainID ledger.ChainID) ([]ledger.Notification, error) {
	notifications := []ledger.Notification{}

	localInfo, err := n.LocalChainInfo(chainID)
	if err != nil {
		return notifications, err
	}

	query := ledger.NewChainInfoQuery(chainID).
		WithSentCertificatesInRange(ledger.BlockHeightRange{Start: localInfo.NextBlockHeight}).
		WithManagerValues()

	resp, err := remote.ChainInfoQuery(query)
	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"validator": remote.Validator.Moniker,
			"error":     err,
		}).Warn("Ignoring error from validator")
		// Give up on this validator.
		return notifications, nil
	}
	if err := remote.CheckResponse(resp); err != nil {
		n.logger.WithField("validator", remote.Validator.Moniker).
			Warn("Ignoring invalid response from validator")
		// Give up on this validator.
		return notifications, nil
	}
	info := resp.Info

	if len(info.RequestedSentCertificates) > 0 {
		processed := n.tryProcessCertificates(remote, chainID, info.RequestedSentCertificates).
			Extend(&notifications)
		if processed == nil {
			return notifications, nil
		}
	}

	if proposal := info.Manager.RequestedProposal; proposal != nil && proposal.ChainID == chainID {
		if _, err := n.HandleBlockProposal(proposal); err != nil {
			n.logger.WithFields(logrus.Fields{
				"owner": proposal.Owner,
				"error": err,
			}).Warn("Skipping proposal")
		}
	}

	if locked := info.Manager.RequestedLocked; locked != nil &&
		locked.Value.Kind == ledger.ValueValidated && locked.Value.ChainID == chainID {
		if _, err := n.HandleCertificate(locked, nil, nil).Factor(&notifications); err != nil {
			hash, _ := locked.Hash()
			n.logger.WithFields(logrus.Fields{
				"certificate": hash,
				"error":       err,
			}).Warn("Skipping certificate")
		}
	}

	return notifications, nil
}

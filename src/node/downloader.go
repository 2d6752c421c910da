package node

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	cm "github.com/corelattice/lattice/src/common"
	"github.com/corelattice/lattice/src/ledger"
)

// ValueLocation pairs a bytecode location with the chain to query it on.
type ValueLocation struct {
	ChainID  ledger.ChainID
	Location ledger.BytecodeLocation
}

// DownloadCertificates advances the local chain to the target height by
// downloading and applying missing certificates. Validators are tried
// sequentially in random order; the local height is re-checked before each
// try so that progress made by one validator shrinks the next request.
// Notifications for every certificate applied along the way are appended to
// sink.
func (n *LocalNode) DownloadCertificates(validators []*RemoteNode, chainID ledger.ChainID,
	target ledger.BlockHeight, sink *[]ledger.Notification) (*ledger.ChainInfo, error) {

	// Sequentially try each validator in random order.
	for _, remote := range n.shuffledRemotes(validators) {
		info, err := n.LocalChainInfo(chainID)
		if err != nil {
			return nil, err
		}
		if target <= info.NextBlockHeight {
			return info, nil
		}
		if err := n.tryDownloadCertificatesFrom(remote, chainID, info.NextBlockHeight, target, sink); err != nil {
			return nil, err
		}
	}

	info, err := n.LocalChainInfo(chainID)
	if err != nil {
		return nil, err
	}
	if target <= info.NextBlockHeight {
		return info, nil
	}
	return nil, &CannotDownloadCertificatesError{ChainID: chainID, Target: target}
}

// tryDownloadCertificatesFrom pulls certificates from one validator in
// batches, applying each batch before requesting the next. Remote failures
// end the attempt silently; local errors propagate.
func (n *LocalNode) tryDownloadCertificatesFrom(remote *RemoteNode, chainID ledger.ChainID,
	start, stop ledger.BlockHeight, sink *[]ledger.Notification) error {

	for start < stop {
		span, err := stop.Sub(start)
		if err != nil {
			return err
		}
		limit := span
		if limit > n.batchLimit {
			limit = n.batchLimit
		}

		certificates, ok, err := n.tryQueryCertificatesFrom(remote, chainID, start, limit)
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		info := n.tryProcessCertificates(remote, chainID, certificates).Extend(sink)
		if info == nil {
			break
		}

		if info.NextBlockHeight <= start {
			return ErrSyncStalled
		}
		start = info.NextBlockHeight
	}
	return nil
}

// tryQueryCertificatesFrom asks one validator for a range of certificates.
// It reports ok=false when the validator fails to answer or the response
// signature does not verify.
func (n *LocalNode) tryQueryCertificatesFrom(remote *RemoteNode, chainID ledger.ChainID,
	start ledger.BlockHeight, limit uint64) ([]*ledger.Certificate, bool, error) {

	n.logger.WithFields(logrus.Fields{
		"validator": remote.Validator.Moniker,
		"chain_id":  chainID,
		"start":     start,
		"limit":     limit,
	}).Debug("Querying certificates")

	query := ledger.NewChainInfoQuery(chainID).
		WithSentCertificatesInRange(ledger.BlockHeightRange{Start: start, Limit: limit})

	resp, err := remote.ChainInfoQuery(query)
	if err != nil {
		return nil, false, nil
	}
	if err := remote.CheckResponse(resp); err != nil {
		return nil, false, nil
	}
	return resp.Info.RequestedSentCertificates, true, nil
}

// tryProcessCertificates applies a batch of certificates in order. A
// certificate with missing dependencies gets exactly one fetch-and-retry
// against the supplying validator; any other failure ends the batch. The
// result carries the last applied chain info (nil if nothing was applied)
// and the notifications of every applied certificate.
func (n *LocalNode) tryProcessCertificates(remote *RemoteNode, chainID ledger.ChainID,
	certificates []*ledger.Certificate) Notified[*ledger.ChainInfo] {

	var info *ledger.ChainInfo
	notifications := []ledger.Notification{}

	for _, certificate := range certificates {
		hash, err := certificate.Hash()
		if err != nil {
			n.logger.WithField("error", err).Warn("Failed to hash network certificate")
			return NewNotified(info, notifications)
		}
		if !certificate.Value.IsConfirmed() || certificate.Value.ChainID != chainID {
			// The certificate is not as expected. Give up.
			n.logger.WithField("certificate", hash).Warn("Failed to process network certificate")
			return NewNotified(info, notifications)
		}

		resp, err := n.HandleCertificate(certificate, nil, nil).Factor(&notifications)
		if err != nil {
			resp, err = n.recoverMissingDependencies(remote, certificate, err, &notifications)
		}
		if err != nil {
			// The certificate is not as expected. Give up.
			n.logger.WithFields(logrus.Fields{
				"certificate": hash,
				"error":       err,
			}).Warn("Failed to process network certificate")
			return NewNotified(info, notifications)
		}

		info = resp.Info
	}

	// Done with all certificates.
	return NewNotified(info, notifications)
}

// recoverMissingDependencies fetches whatever dependencies the given error
// names from the supplying validator and retries the certificate exactly
// once. If any dependency cannot be fetched, the original error is returned.
func (n *LocalNode) recoverMissingDependencies(remote *RemoteNode, certificate *ledger.Certificate,
	cause error, sink *[]ledger.Notification) (*ledger.ChainInfoResponse, error) {

	chainID := certificate.Value.ChainID

	var bytecodeErr *ledger.BytecodeMissingError
	var blobsErr *ledger.BlobsMissingError
	var depsErr *ledger.DependenciesMissingError

	switch {
	case errors.As(cause, &bytecodeErr):
		values := n.findMissingBytecode(remote, chainID, bytecodeErr.Locations)
		if len(values) != len(bytecodeErr.Locations) {
			return nil, cause
		}
		return n.HandleCertificate(certificate, values, nil).Factor(sink)

	case errors.As(cause, &blobsErr):
		blobs := n.findMissingBlobs(remote, chainID, blobsErr.IDs)
		if len(blobs) != len(blobsErr.IDs) {
			return nil, cause
		}
		return n.HandleCertificate(certificate, nil, blobs).Factor(sink)

	case errors.As(cause, &depsErr):
		values := n.findMissingBytecode(remote, chainID, depsErr.Locations)
		blobs := n.findMissingBlobs(remote, chainID, depsErr.IDs)
		if len(values) != len(depsErr.Locations) || len(blobs) != len(depsErr.IDs) {
			return nil, cause
		}
		return n.HandleCertificate(certificate, values, blobs).Factor(sink)
	}

	return nil, cause
}

// findMissingBytecode fetches the values publishing the given bytecode
// locations from one validator, in parallel. Failed fetches are omitted from
// the result.
func (n *LocalNode) findMissingBytecode(remote *RemoteNode, chainID ledger.ChainID,
	locations []ledger.BytecodeLocation) []*ledger.CertificateValue {

	results := make([]*ledger.CertificateValue, len(locations))

	g := new(errgroup.Group)
	for i, location := range locations {
		i, location := i, location
		g.Go(func() error {
			results[i] = tryDownloadCertificateValueFrom(remote, chainID, location)
			return nil
		})
	}
	g.Wait()

	values := []*ledger.CertificateValue{}
	for _, value := range results {
		if value != nil {
			values = append(values, value)
		}
	}
	return values
}

// findMissingBlobs fetches the given blobs from one validator, in parallel.
// Failed fetches are omitted from the result.
func (n *LocalNode) findMissingBlobs(remote *RemoteNode, chainID ledger.ChainID,
	ids []ledger.BlobID) []*ledger.Blob {

	results := make([]*ledger.Blob, len(ids))

	g := new(errgroup.Group)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			results[i] = tryDownloadBlobFrom(remote, chainID, id)
			return nil
		})
	}
	g.Wait()

	blobs := []*ledger.Blob{}
	for _, blob := range results {
		if blob != nil {
			blobs = append(blobs, blob)
		}
	}
	return blobs
}

// ReadOrDownloadCertificateValues resolves the given locations from the
// recency cache, the store, or the network, in that order. The core lock is
// released while the network fetches run. Values that cannot be resolved are
// omitted from the result.
func (n *LocalNode) ReadOrDownloadCertificateValues(validators []*RemoteNode,
	locations []ValueLocation) ([]*ledger.CertificateValue, error) {

	values := []*ledger.CertificateValue{}
	pending := []ValueLocation{}

	n.coreLock.Lock()
	storage := n.worker.Storage()
	for _, vl := range locations {
		if value := n.worker.RecentCertificateValue(vl.Location.CertificateHash); value != nil {
			values = append(values, value)
		} else {
			pending = append(pending, vl)
		}
	}
	n.coreLock.Unlock()

	if len(pending) == 0 {
		return values, nil
	}

	results := make([]*ledger.CertificateValue, len(pending))
	g := new(errgroup.Group)
	for i, vl := range pending {
		i, vl := i, vl
		g.Go(func() error {
			value, err := n.readOrDownloadCertificateValue(storage, validators, vl)
			results[i] = value
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n.coreLock.Lock()
	defer n.coreLock.Unlock()
	for _, value := range results {
		if value == nil {
			continue
		}
		n.worker.CacheCertificateValue(value)
		values = append(values, value)
	}
	return values, nil
}

// readOrDownloadCertificateValue reads one value from the store, or downloads
// and persists it.
func (n *LocalNode) readOrDownloadCertificateValue(storage ledger.Store, validators []*RemoteNode,
	vl ValueLocation) (*ledger.CertificateValue, error) {

	value, err := storage.GetCertificateValue(vl.Location.CertificateHash)
	if err == nil {
		return value, nil
	}
	if !cm.IsStore(err, cm.KeyNotFound) {
		return nil, err
	}

	value = n.DownloadCertificateValue(validators, vl.ChainID, vl.Location)
	if value == nil {
		return nil, nil
	}
	if err := storage.SetCertificateValue(value); err != nil {
		return nil, err
	}
	return value, nil
}

// CertificateFor returns the certificate whose block sent the given message.
func (n *LocalNode) CertificateFor(id ledger.MessageID) (*ledger.Certificate, error) {
	query := ledger.NewChainInfoQuery(id.ChainID).
		WithSentCertificatesInRange(ledger.SingleHeightRange(id.Height))

	resp, err := n.HandleChainInfoQuery(query)
	if err != nil {
		return nil, err
	}

	for _, certificate := range resp.Info.RequestedSentCertificates {
		if certificate.Value.HasMessage(id) {
			return certificate, nil
		}
	}
	return nil, cm.NewStoreErr("Certificate", cm.KeyNotFound,
		fmt.Sprintf("%s/%d/%d", id.ChainID, id.Height, id.Index))
}

// DownloadCertificateValue fetches a certificate value from the first
// validator that can supply it, trying validators in random order.
func (n *LocalNode) DownloadCertificateValue(validators []*RemoteNode, chainID ledger.ChainID,
	location ledger.BytecodeLocation) *ledger.CertificateValue {

	// Sequentially try each validator in random order.
	for _, remote := range n.shuffledRemotes(validators) {
		if value := tryDownloadCertificateValueFrom(remote, chainID, location); value != nil {
			return value
		}
	}
	return nil
}

// DownloadBlob fetches a blob from the first validator that can supply it,
// trying validators in random order.
func (n *LocalNode) DownloadBlob(validators []*RemoteNode, chainID ledger.ChainID,
	id ledger.BlobID) *ledger.Blob {

	// Sequentially try each validator in random order.
	for _, remote := range n.shuffledRemotes(validators) {
		if blob := tryDownloadBlobFrom(remote, chainID, id); blob != nil {
			return blob
		}
	}
	return nil
}

func tryDownloadCertificateValueFrom(remote *RemoteNode, chainID ledger.ChainID,
	location ledger.BytecodeLocation) *ledger.CertificateValue {

	query := ledger.NewChainInfoQuery(chainID).WithCertificateValue(location.CertificateHash)
	resp, err := remote.ChainInfoQuery(query)
	if err != nil {
		return nil
	}
	if remote.CheckResponse(resp) != nil {
		return nil
	}
	return resp.Info.RequestedCertificateValue
}

func tryDownloadBlobFrom(remote *RemoteNode, chainID ledger.ChainID, id ledger.BlobID) *ledger.Blob {
	query := ledger.NewChainInfoQuery(chainID).WithBlob(id)
	resp, err := remote.ChainInfoQuery(query)
	if err != nil {
		return nil
	}
	if remote.CheckResponse(resp) != nil {
		return nil
	}
	return resp.Info.RequestedBlob
}

// shuffledRemotes returns the validators in random order, using the node's
// rng when one was injected.
func (n *LocalNode) shuffledRemotes(validators []*RemoteNode) []*RemoteNode {
	shuffled := make([]*RemoteNode, len(validators))
	copy(shuffled, validators)

	swap := func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	if n.rng != nil {
		n.rng.Shuffle(len(shuffled), swap)
	} else {
		rand.Shuffle(len(shuffled), swap)
	}

	return shuffled
}

package node

import (
	"os"
	"os/signal"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/corelattice/lattice/src/committee"
	"github.com/corelattice/lattice/src/ledger"
	"github.com/corelattice/lattice/src/net"
)

// Node is a serving chain client: it answers signed chain info queries from
// other nodes and keeps its tracked chains in sync with the committee.
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	validator *Validator

	local *LocalNode

	validators *committee.ValidatorSet
	remotes    []*RemoteNode

	trans net.Transport
	netCh <-chan net.RPC

	trackedLock sync.Mutex
	tracked     map[ledger.ChainID]bool

	notifyCh chan ledger.Notification

	sigintCh   chan os.Signal
	shutdownCh chan struct{}

	controlTimer *ControlTimer

	start time.Time

	//RPC counters, updated from concurrent processRPC goroutines
	syncRequests int32
	syncErrors   int32
}

// NewNode is a factory method that returns a Node instance.
func NewNode(conf *Config,
	validator *Validator,
	validators *committee.ValidatorSet,
	local *LocalNode,
	trans net.Transport,
) *Node {
	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	remotes := []*RemoteNode{}
	for _, v := range validators.Validators {
		if v.PubKeyHex == validator.PublicKeyHex() {
			continue
		}
		remotes = append(remotes, NewRemoteNode(v, trans, validator.ID()))
	}

	node := Node{
		validator:    validator,
		conf:         conf,
		logger:       conf.Logger.WithField("this_id", validator.ID()),
		local:        local,
		validators:   validators,
		remotes:      remotes,
		trans:        trans,
		netCh:        trans.Consumer(),
		tracked:      make(map[ledger.ChainID]bool),
		notifyCh:     make(chan ledger.Notification, 128),
		sigintCh:     sigintCh,
		shutdownCh:   make(chan struct{}),
		controlTimer: NewRandomControlTimer(),
	}

	return &node
}

// Init initialises the node: chains already in the store are tracked again.
func (n *Node) Init() error {
	storage := n.local.StorageClient()

	if storage.NeedBootstrap() {
		n.logger.Debug("Bootstrap")
	}

	for _, chainID := range storage.Chains() {
		n.Track(chainID)
	}

	n.setState(Running)
	n.start = time.Now()

	return nil
}

// Track adds a chain to the set kept in sync by the background loop.
func (n *Node) Track(chainID ledger.ChainID) {
	n.trackedLock.Lock()
	defer n.trackedLock.Unlock()
	n.tracked[chainID] = true
}

// TrackedChains lists the tracked chains in stable order.
func (n *Node) TrackedChains() []ledger.ChainID {
	n.trackedLock.Lock()
	defer n.trackedLock.Unlock()

	chains := make([]ledger.ChainID, 0, len(n.tracked))
	for chainID := range n.tracked {
		chains = append(chains, chainID)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })
	return chains
}

// Notifications returns the channel on which the node publishes the
// notifications produced by background synchronization.
func (n *Node) Notifications() <-chan ledger.Notification {
	return n.notifyCh
}

// RunAsync calls Run as a separate thread.
func (n *Node) RunAsync(sync bool) {
	n.logger.WithField("sync", sync).Debug("runasync")

	go n.Run(sync)
}

// Run invokes the main loop of the node.
func (n *Node) Run(sync bool) {
	//The ControlTimer paces the background synchronization of tracked
	//chains.
	go n.controlTimer.Run(n.conf.SyncInterval)

	//Execute some background work regardless of the state of the node.
	go n.doBackgroundWork()

	//Execute Node State Machine
	for {
		//Run different routines depending on node state
		state := n.getState()

		n.logger.WithField("state", state.String()).Debug("Run loop")

		switch state {
		case Running:
			n.running(sync)
		case Suspended:
			n.suspended()
		case Shutdown:
			return
		}
	}
}

func (n *Node) resetTimer() {
	if !n.controlTimer.isSet() {
		n.controlTimer.resetCh <- n.conf.SyncInterval
	}
}

func (n *Node) doBackgroundWork() {
	for {
		select {
		case rpc := <-n.netCh:
			n.goFunc(func() {
				n.logger.Debug("Processing RPC")
				n.processRPC(rpc)
			})
		case <-n.shutdownCh:
			return
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT - SHUTDOWN")
			n.Shutdown()
			os.Exit(0)
		}
	}
}

// running periodically synchronizes the tracked chains against the whole
// committee.
func (n *Node) running(sync bool) {
	n.logger.Debug("RUNNING")

	for {
		select {
		case <-n.controlTimer.tickCh:
			if sync {
				for _, chainID := range n.TrackedChains() {
					chainID := chainID
					n.goFunc(func() { n.syncChain(chainID) })
				}
			}
			n.resetTimer()
		case <-n.shutdownCh:
			return
		}
		if n.getState() != Running {
			return
		}
	}
}

// suspended answers queries through the background work loop but does not
// synchronize.
func (n *Node) suspended() {
	n.logger.Debug("SUSPENDED")

	for {
		select {
		case <-n.controlTimer.tickCh:
			n.resetTimer()
		case <-n.shutdownCh:
			return
		}
		if n.getState() != Suspended {
			return
		}
	}
}

// syncChain brings one tracked chain up to date and publishes the resulting
// notifications.
func (n *Node) syncChain(chainID ledger.ChainID) {
	notifications := []ledger.Notification{}

	start := time.Now()
	info, err := n.local.SynchronizeChainState(n.remotes, chainID, &notifications)
	elapsed := time.Since(start)
	n.logger.WithField("duration", elapsed.Nanoseconds()).Debug("SynchronizeChainState()")

	for _, notification := range notifications {
		select {
		case n.notifyCh <- notification:
		default:
			//subscriber is not keeping up
		}
	}

	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"chain_id": chainID,
			"error":    err,
		}).Error("Synchronizing chain")
		return
	}

	n.logger.WithFields(logrus.Fields{
		"chain_id":          chainID,
		"next_block_height": info.NextBlockHeight,
	}).Debug("Chain synchronized")
}

// Suspend stops the background synchronization without shutting down.
func (n *Node) Suspend() {
	if n.getState() == Running {
		n.logger.Debug("Suspend")
		n.setState(Suspended)
	}
}

// Resume restarts the background synchronization.
func (n *Node) Resume() {
	if n.getState() == Suspended {
		n.logger.Debug("Resume")
		n.setState(Running)
	}
}

// Shutdown shuts down the node.
func (n *Node) Shutdown() {
	if n.getState() != Shutdown {
		n.logger.Debug("Shutdown")

		//Exit any non-shutdown state immediately
		n.setState(Shutdown)

		//Stop and wait for concurrent operations
		close(n.shutdownCh)

		n.waitRoutines()

		n.controlTimer.Shutdown()

		//transport and store should only be closed once all concurrent
		//operations are finished otherwise they will panic trying to use
		//closed objects
		n.trans.Close()

		n.local.StorageClient().Close()
	}
}

// GetStats returns stats.
func (n *Node) GetStats() map[string]string {
	timeElapsed := time.Since(n.start)

	syncRequests := atomic.LoadInt32(&n.syncRequests)

	syncsPerSecond := float64(syncRequests) / timeElapsed.Seconds()

	s := map[string]string{
		"id":             strconv.FormatUint(uint64(n.validator.ID()), 10),
		"moniker":        n.validator.Moniker,
		"state":          n.getState().String(),
		"tracked_chains": strconv.Itoa(len(n.TrackedChains())),
		"num_validators": strconv.Itoa(n.validators.Len()),
		"sync_requests":  strconv.FormatInt(int64(syncRequests), 10),
		"sync_rate":      strconv.FormatFloat(n.SyncRate(), 'f', 2, 64),
		"syncs_per_second": strconv.FormatFloat(
			syncsPerSecond, 'f', 2, 64),
	}
	return s
}

// SyncRate returns the fraction of queries answered without error.
func (n *Node) SyncRate() float64 {
	var syncErrorRate float64

	syncRequests := atomic.LoadInt32(&n.syncRequests)
	if syncRequests != 0 {
		syncErrorRate = float64(atomic.LoadInt32(&n.syncErrors)) / float64(syncRequests)
	}

	return 1 - syncErrorRate
}

// ID returns the validator ID.
func (n *Node) ID() uint32 {
	return n.validator.ID()
}

// LocalNode exposes the underlying chain client.
func (n *Node) LocalNode() *LocalNode {
	return n.local
}

// Validators returns the committee.
func (n *Node) Validators() []*committee.Validator {
	return n.validators.Validators
}

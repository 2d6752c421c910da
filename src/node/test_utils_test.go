package node

import (
	"crypto/ecdsa"
	"fmt"
	"math/rand"
	"testing"

	cm "github.com/corelattice/lattice/src/common"
	"github.com/corelattice/lattice/src/committee"
	"github.com/corelattice/lattice/src/crypto/keys"
	"github.com/corelattice/lattice/src/ledger"
	"github.com/corelattice/lattice/src/net"
	"github.com/corelattice/lattice/src/worker"
)

// testValidator is a scripted committee member serving signed chain info
// queries over an in-memory transport.
type testValidator struct {
	key   *ecdsa.PrivateKey
	val   *committee.Validator
	trans *net.InmemTransport
	local *LocalNode

	// failQueries makes every query fail, simulating an unreachable node.
	failQueries bool
	// badSigKey, when set, signs responses with the wrong key.
	badSigKey *ecdsa.PrivateKey
	// script, when set, replaces the local query handler.
	script func(*ledger.ChainInfoQuery) (*ledger.ChainInfoResponse, error)

	shutdownCh chan struct{}
}

func newTestValidator(moniker string, t *testing.T) *testValidator {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	addr, trans := net.NewInmemTransport("")

	machine, err := worker.NewMachine(ledger.NewInmemStore(100), cm.NewTestEntry(t, cm.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}

	v := &testValidator{
		key:        key,
		val:        committee.NewValidator(keys.PublicKeyHex(&key.PublicKey), addr, moniker),
		trans:      trans,
		local:      NewLocalNode(machine, 0, nil, cm.NewTestEntry(t, cm.TestLogLevel)),
		shutdownCh: make(chan struct{}),
	}

	go v.serve()

	return v
}

func (v *testValidator) serve() {
	for {
		select {
		case rpc := <-v.trans.Consumer():
			req, ok := rpc.Command.(*net.ChainInfoRequest)
			if !ok {
				rpc.Respond(nil, fmt.Errorf("unexpected command"))
				continue
			}

			if v.failQueries {
				rpc.Respond(nil, fmt.Errorf("validator unavailable"))
				continue
			}

			var resp *ledger.ChainInfoResponse
			var err error
			if v.script != nil {
				resp, err = v.script(req.Query)
			} else {
				resp, err = v.local.HandleChainInfoQuery(req.Query)
			}
			if err != nil {
				rpc.Respond(nil, err)
				continue
			}

			signKey := v.key
			if v.badSigKey != nil {
				signKey = v.badSigKey
			}
			if err := resp.Sign(signKey); err != nil {
				rpc.Respond(nil, err)
				continue
			}

			rpc.Respond(resp, nil)

		case <-v.shutdownCh:
			return
		}
	}
}

func (v *testValidator) stop() {
	close(v.shutdownCh)
	v.trans.Close()
}

// seedCertificates applies heights 0..n-1 to the validator's own chain.
func (v *testValidator) seedCertificates(chainID ledger.ChainID, n int, t *testing.T) {
	for i := 0; i < n; i++ {
		if _, err := v.local.HandleCertificate(testConfirmedCertificate(chainID, ledger.BlockHeight(i)), nil, nil).
			Factor(nil); err != nil {
			t.Fatalf("err: %v", err)
		}
	}
}

// newTestClient builds a client with a seeded rng, wired to the given
// validators.
func newTestClient(seed int64, validators []*testValidator, t *testing.T) (*LocalNode, []*RemoteNode) {
	machine, err := worker.NewMachine(ledger.NewInmemStore(100), cm.NewTestEntry(t, cm.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}

	local := NewLocalNode(machine, 0, rand.New(rand.NewSource(seed)), cm.NewTestEntry(t, cm.TestLogLevel))

	_, trans := net.NewInmemTransport("")

	remotes := []*RemoteNode{}
	for _, v := range validators {
		trans.Connect(v.val.NetAddr, v.trans)
		remotes = append(remotes, NewRemoteNode(v.val, trans, 99))
	}

	return local, remotes
}

func testConfirmedValue(chainID ledger.ChainID, height ledger.BlockHeight) *ledger.CertificateValue {
	return &ledger.CertificateValue{
		Kind:    ledger.ValueConfirmed,
		ChainID: chainID,
		Height:  height,
		Block:   []byte(fmt.Sprintf("block %d", height)),
	}
}

func testConfirmedCertificate(chainID ledger.ChainID, height ledger.BlockHeight) *ledger.Certificate {
	return ledger.NewCertificate(testConfirmedValue(chainID, height), []ledger.ValidatorSignature{
		{Validator: "0XAA", Signature: "sig"},
	})
}

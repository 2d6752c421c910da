package net

import (
	"reflect"
	"testing"
	"time"

	"github.com/corelattice/lattice/src/common"
	"github.com/corelattice/lattice/src/ledger"
)

const (
	INMEM = iota
	TCP
	numTestTransports // NOTE: must be last
)

func NewTestTransport(ttype int, addr string, t *testing.T) Transport {
	switch ttype {
	case INMEM:
		_, it := NewInmemTransport(addr)
		return it
	case TCP:
		tt, err := NewTCPTransport(addr, "", 2, time.Second, common.NewTestEntry(t, common.TestLogLevel))
		if err != nil {
			t.Fatal(err)
		}
		go tt.Listen()
		return tt
	default:
		panic("Unknown transport type")
	}
}

func TestTransport_StartStop(t *testing.T) {
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans := NewTestTransport(ttype, "127.0.0.1:0", t)
		if err := trans.Close(); err != nil {
			t.Fatalf("err: %v", err)
		}
	}
}

func TestTransport_ChainInfo(t *testing.T) {
	addr1 := "127.0.0.1:1234"
	addr2 := "127.0.0.1:1235"
	for ttype := 0; ttype < numTestTransports; ttype++ {
		trans1 := NewTestTransport(ttype, addr1, t)
		defer trans1.Close()
		rpcCh := trans1.Consumer()

		// Make the RPC request
		args := ChainInfoRequest{
			FromID: 0,
			Query:  ledger.NewChainInfoQuery(ledger.NewChainID([]byte("transport chain"))),
		}
		resp := ledger.ChainInfoResponse{
			Info: &ledger.ChainInfo{
				ChainID:         args.Query.ChainID,
				NextBlockHeight: 5,
			},
			Signature: "sig",
		}

		// Listen for a request
		go func() {
			select {
			case rpc := <-rpcCh:
				// Verify the command
				req := rpc.Command.(*ChainInfoRequest)
				if !reflect.DeepEqual(req, &args) {
					t.Errorf("command mismatch: %#v %#v", *req, args)
				}

				rpc.Respond(&resp, nil)

			case <-time.After(200 * time.Millisecond):
				t.Errorf("timeout")
			}
		}()

		// Transport 2 makes outbound request
		trans2 := NewTestTransport(ttype, addr2, t)
		defer trans2.Close()

		if ttype == INMEM {
			trans2.(*InmemTransport).Connect(addr1, trans1)
		}

		var out ledger.ChainInfoResponse
		if err := trans2.ChainInfo(trans1.LocalAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}

		// Verify the response
		if !reflect.DeepEqual(resp, out) {
			t.Fatalf("command mismatch: %#v %#v", resp, out)
		}
	}
}

func TestTransport_PooledConn(t *testing.T) {
	addr1 := "127.0.0.1:1236"
	trans1 := NewTestTransport(TCP, addr1, t)
	defer trans1.Close()
	rpcCh := trans1.Consumer()

	resp := ledger.ChainInfoResponse{
		Info: &ledger.ChainInfo{
			ChainID:         ledger.NewChainID([]byte("pooled chain")),
			NextBlockHeight: 1,
		},
	}

	// Listen for requests
	go func() {
		for {
			select {
			case rpc := <-rpcCh:
				rpc.Respond(&resp, nil)
			case <-time.After(400 * time.Millisecond):
				return
			}
		}
	}()

	trans2 := NewTestTransport(TCP, "127.0.0.1:1237", t)
	defer trans2.Close()

	args := ChainInfoRequest{
		FromID: 1,
		Query:  ledger.NewChainInfoQuery(resp.Info.ChainID),
	}

	// Make repeated requests on the same transport, exercising the
	// connection pool
	for i := 0; i < 5; i++ {
		var out ledger.ChainInfoResponse
		if err := trans2.ChainInfo(trans1.LocalAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}

		if out.Info.NextBlockHeight != 1 {
			t.Fatalf("expected height 1, got %d", out.Info.NextBlockHeight)
		}
	}
}

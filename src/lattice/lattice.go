package lattice

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/corelattice/lattice/src/committee"
	"github.com/corelattice/lattice/src/config"
	"github.com/corelattice/lattice/src/crypto/keys"
	"github.com/corelattice/lattice/src/ledger"
	"github.com/corelattice/lattice/src/net"
	"github.com/corelattice/lattice/src/node"
	"github.com/corelattice/lattice/src/service"
	"github.com/corelattice/lattice/src/worker"
)

// Lattice is a struct containing the key parts of a node: the configuration,
// the transport, the store, the committee, the chain client, and the HTTP
// service.
type Lattice struct {
	Config     *config.Config
	Node       *node.Node
	Transport  net.Transport
	Store      ledger.Store
	Validators *committee.ValidatorSet
	Service    *service.Service
}

// NewLattice is a factory method that returns a Lattice object with a set
// config.
func NewLattice(config *config.Config) *Lattice {
	engine := &Lattice{
		Config: config,
	}

	return engine
}

// Init initialises the engine's components in the right order.
func (l *Lattice) Init() error {
	if err := l.initValidators(); err != nil {
		return err
	}

	if err := l.initStore(); err != nil {
		return err
	}

	if err := l.initTransport(); err != nil {
		return err
	}

	if err := l.initKey(); err != nil {
		return err
	}

	if err := l.initNode(); err != nil {
		return err
	}

	if err := l.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the HTTP service and the node's main loop. This is a blocking
// call.
func (l *Lattice) Run() {
	if l.Service != nil && !l.Config.NoService {
		go l.Service.Serve()
	}

	l.Node.Run(true)
}

func (l *Lattice) initValidators() error {
	validatorStore := committee.NewJSONValidatorSet(l.Config.DataDir)

	validators, err := validatorStore.ValidatorSet()
	if err != nil {
		return err
	}

	if validators.Len() < 1 {
		return fmt.Errorf("validators.json should define at least one validator")
	}

	l.Validators = validators

	return nil
}

func (l *Lattice) initStore() error {
	if !l.Config.Store {
		l.Store = ledger.NewInmemStore(l.Config.CacheSize)

		l.Config.Logger().Debug("created new in-mem store")
	} else {
		var err error

		l.Config.Logger().WithField("path", l.Config.DatabaseDir).Debug("Attempting to load or create database")

		l.Store, err = ledger.LoadOrCreateBadgerStore(l.Config.CacheSize, l.Config.DatabaseDir, l.Config.Logger())
		if err != nil {
			return err
		}

		if l.Store.NeedBootstrap() {
			l.Config.Logger().Debug("loaded badger store from existing database")
		} else {
			l.Config.Logger().Debug("created new badger store from fresh database")
		}
	}

	return nil
}

func (l *Lattice) initTransport() error {
	transport, err := net.NewTCPTransport(
		l.Config.BindAddr,
		l.Config.AdvertiseAddr,
		l.Config.MaxPool,
		l.Config.TCPTimeout,
		l.Config.Logger(),
	)
	if err != nil {
		return err
	}

	l.Transport = transport

	return nil
}

func (l *Lattice) initKey() error {
	if l.Config.Key == nil {
		simpleKeyfile := keys.NewSimpleKeyfile(l.Config.Keyfile())

		privKey, err := simpleKeyfile.ReadKey()
		if err != nil {
			l.Config.Logger().Warn("Cannot read private key from file", err)

			privKey, err = Keygen(l.Config.Keyfile())
			if err != nil {
				l.Config.Logger().Error("Cannot generate a new private key", err)

				return err
			}

			l.Config.Logger().Info("Created a new key:", keys.PublicKeyHex(&privKey.PublicKey))
		}

		l.Config.Key = privKey
	}
	return nil
}

func (l *Lattice) initNode() error {
	key := l.Config.Key

	nodePub := keys.PublicKeyHex(&key.PublicKey)
	if _, ok := l.Validators.ByPubKey[nodePub]; !ok {
		l.Config.Logger().WithField("pub_key", nodePub).
			Debug("Node is not a committee member, running as a pure client")
	}

	validator := node.NewValidator(key, l.Config.Moniker)

	machine, err := worker.NewMachine(l.Store, l.Config.Logger())
	if err != nil {
		return err
	}

	local := node.NewLocalNode(machine, l.Config.BatchLimit, nil, l.Config.Logger())

	nodeConf := node.NewConfig(
		l.Config.SyncInterval,
		l.Config.TCPTimeout,
		l.Config.CacheSize,
		l.Config.BatchLimit,
		l.Config.Logger().Logger,
	)

	l.Node = node.NewNode(
		nodeConf,
		validator,
		l.Validators,
		local,
		l.Transport,
	)

	if err := l.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	if l.Config.MaintenanceMode {
		l.Node.Suspend()
	}

	return nil
}

func (l *Lattice) initService() error {
	if l.Config.ServiceAddr != "" && !l.Config.NoService {
		l.Service = service.NewService(l.Config.ServiceAddr, l.Node, l.Config.Logger())
	}
	return nil
}

// Keygen generates a new private key and saves it to the given file. It
// returns an error if the file already contains a key.
func Keygen(keyfile string) (*ecdsa.PrivateKey, error) {
	simpleKeyfile := keys.NewSimpleKeyfile(keyfile)

	if _, err := simpleKeyfile.ReadKey(); err == nil {
		return nil, fmt.Errorf("another key already lives under %s", keyfile)
	}

	privKey, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	if err := simpleKeyfile.WriteKey(privKey); err != nil {
		return nil, err
	}

	return privKey, nil
}

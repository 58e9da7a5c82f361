// Package framework connects to a network, manages signing accounts and
// deploys and drives contracts built from compiled artifacts.
package framework

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/sirupsen/logrus"
)

// DevelopmentNetwork is the local, ephemeral chain with pre-funded accounts.
const DevelopmentNetwork = "development"

const (
	livePollInterval = time.Second
	devPollInterval  = 50 * time.Millisecond

	transferGas = 21000
)

var (
	ErrUnknownNetwork      = errors.New("unknown network")
	ErrChainIDMismatch     = errors.New("chain id mismatch")
	ErrAccountIndex        = errors.New("account index out of range")
	ErrMissingPrivateKey   = errors.New("missing private key")
	ErrMissingSender       = errors.New("contract has no sender")
	ErrMissingMethod       = errors.New("missing method in abi")
	ErrArtifactRead        = errors.New("failed to read artifact")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrTransactionNotMined = errors.New("transaction not mined")
	ErrNoCodeAfterDeploy   = errors.New("no contract code after deployment")
	ErrNoDeployment        = errors.New("no deployment recorded")
	ErrNotDevelopment      = errors.New("only available on the development network")
)

// devAccountBalance is what each development account starts with: 100 ether.
var devAccountBalance = new(big.Int).Mul(big.NewInt(100), big.NewInt(params.Ether))

type Framework struct {
	log          *logrus.Entry
	cfg          *Config
	network      string
	backend      Backend
	dev          *DevBackend
	chainID      *big.Int
	accounts     *Accounts
	deployments  *Deployments
	pollInterval time.Duration
}

// New connects to the named network. The development network is started in
// process; any other name must be configured with a host.
func New(ctx context.Context, cfg *Config, network string, log *logrus.Entry) (*Framework, error) {
	if network == DevelopmentNetwork {
		keys, err := devAccounts()
		if err != nil {
			return nil, err
		}
		alloc := core.GenesisAlloc{}
		for _, k := range keys {
			alloc[k.Address()] = core.GenesisAccount{Balance: new(big.Int).Set(devAccountBalance)}
		}
		return NewWithBackend(ctx, cfg, network, NewDevBackend(alloc), log)
	}

	nc, err := cfg.Network(network)
	if err != nil {
		return nil, err
	}
	client, err := ethclient.DialContext(ctx, nc.Host)
	if err != nil {
		log.WithError(err).WithField("host", nc.Host).Error("failed to connect to node")
		return nil, fmt.Errorf("failed to connect to %s: %w", network, err)
	}
	fr, err := NewWithBackend(ctx, cfg, network, client, log)
	if err != nil {
		return nil, err
	}
	if nc.ChainID != 0 && fr.chainID.Uint64() != nc.ChainID {
		fr.Close()
		return nil, fmt.Errorf("%w: %s expects %d, node reports %s", ErrChainIDMismatch, network, nc.ChainID, fr.chainID)
	}
	return fr, nil
}

// NewWithBackend builds a Framework over an existing chain connection. The
// Framework takes ownership of backend: it is closed on Close, or right away
// when construction fails.
func NewWithBackend(ctx context.Context, cfg *Config, network string, backend Backend, log *logrus.Entry) (*Framework, error) {
	fr, err := newFramework(ctx, cfg, network, backend, log)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return fr, nil
}

func newFramework(ctx context.Context, cfg *Config, network string, backend Backend, log *logrus.Entry) (*Framework, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed getting chain id: %w", err)
	}

	fr := &Framework{
		log:          log.WithField("network", network),
		cfg:          cfg,
		network:      network,
		backend:      backend,
		chainID:      chainID,
		accounts:     &Accounts{},
		pollInterval: livePollInterval,
	}
	if dev, ok := backend.(*DevBackend); ok {
		fr.dev = dev
		fr.pollInterval = devPollInterval
	}

	if network == DevelopmentNetwork {
		keys, err := devAccounts()
		if err != nil {
			return nil, err
		}
		fr.accounts.keys = keys
	}

	if path := cfg.Deployments.Path; path != "" && (network != DevelopmentNetwork || cfg.Deployments.DevArtifacts) {
		deps, err := OpenDeployments(path)
		if err != nil {
			return nil, err
		}
		fr.deployments = deps
	}

	fr.log.WithField("chainID", chainID).Debug("Connected")
	return fr, nil
}

// Network returns the name of the active network.
func (fr *Framework) Network() string {
	return fr.network
}

func (fr *Framework) ChainID() *big.Int {
	return new(big.Int).Set(fr.chainID)
}

func (fr *Framework) Accounts() *Accounts {
	return fr.accounts
}

func (fr *Framework) Backend() Backend {
	return fr.backend
}

// Deployments returns the deployment store, nil when recording is disabled
// for the active network.
func (fr *Framework) Deployments() *Deployments {
	return fr.deployments
}

func (fr *Framework) Log() *logrus.Entry {
	return fr.log
}

func (fr *Framework) Close() {
	if fr.deployments != nil {
		if err := fr.deployments.Close(); err != nil {
			fr.log.WithError(err).Warn("failed closing deployments db")
		}
	}
	fr.backend.Close()
}

// Mine seals an empty block on the development network.
func (fr *Framework) Mine() (common.Hash, error) {
	if fr.dev == nil {
		return common.Hash{}, ErrNotDevelopment
	}
	return fr.dev.Mine(), nil
}

// DeployContract deploys the bundled artifact at path, e.g.
// "SimpleStorage.sol/SimpleStorage.json".
func (fr *Framework) DeployContract(ctx context.Context, path string, sender *PrivKey, args ...interface{}) (*Contract, error) {
	artifact, err := ReadArtifact(path)
	if err != nil {
		return nil, err
	}
	return fr.DeployArtifact(ctx, artifact, sender, args...)
}

// DeployArtifact deploys a contract and blocks until it is mined.
func (fr *Framework) DeployArtifact(ctx context.Context, artifact *Artifact, sender *PrivKey, args ...interface{}) (*Contract, error) {
	log := fr.log.WithField("contract", artifact.Name)

	opts, err := fr.transactOpts(ctx, sender)
	if err != nil {
		return nil, err
	}
	addr, tx, _, err := bind.DeployContract(opts, *artifact.Abi, artifact.Code, fr.backend, args...)
	if err != nil {
		log.WithError(err).Error("failed to deploy contract")
		return nil, fmt.Errorf("failed to deploy %s: %w", artifact.Name, err)
	}

	receipt, err := fr.newTransaction(tx).Wait(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("deployment of %s: %w", artifact.Name, err)
	}
	code, err := fr.backend.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s at %s", ErrNoCodeAfterDeploy, artifact.Name, addr.Hex())
	}

	log.WithField("address", addr.Hex()).WithField("block", receipt.BlockNumber).Info("Contract deployed")

	if fr.deployments != nil {
		err := fr.deployments.Record(ctx, &Deployment{
			Name:        artifact.Name,
			ChainID:     fr.chainID.Uint64(),
			Address:     addr.Hex(),
			TxHash:      tx.Hash().Hex(),
			BlockNumber: receipt.BlockNumber.Uint64(),
			Deployer:    sender.Address().Hex(),
			DeployedAt:  time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
	}

	return fr.ContractAt(addr, artifact.Abi).Ref(sender), nil
}

// ContractAt binds an already deployed contract. The result has no sender;
// use Ref before sending transactions.
func (fr *Framework) ContractAt(addr common.Address, abiObj *abi.ABI) *Contract {
	return &Contract{
		addr:  addr,
		abi:   abiObj,
		fr:    fr,
		bound: bind.NewBoundContract(addr, *abiObj, fr.backend, fr.backend, fr.backend),
	}
}

func (fr *Framework) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return fr.backend.BalanceAt(ctx, addr, nil)
}

// FundAccount transfers amount from the first account to addr and waits for
// the transfer to be mined.
func (fr *Framework) FundAccount(ctx context.Context, addr common.Address, amount *big.Int) (*types.Receipt, error) {
	funder, err := fr.accounts.At(0)
	if err != nil {
		return nil, err
	}

	nonce, err := fr.backend.PendingNonceAt(ctx, funder.Address())
	if err != nil {
		return nil, fmt.Errorf("failed getting nonce: %w", err)
	}
	tip, err := fr.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, err
	}
	head, err := fr.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	tx, err := fr.SignTx(funder, &types.DynamicFeeTx{
		ChainID:   fr.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       transferGas,
		To:        &addr,
		Value:     amount,
	})
	if err != nil {
		return nil, err
	}
	if err := fr.backend.SendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to fund %s: %w", addr.Hex(), err)
	}
	fr.log.WithField("address", addr.Hex()).WithField("amount", amount).Debug("Funding account")
	return fr.newTransaction(tx).Wait(ctx, 1)
}

func (fr *Framework) SignTx(key *PrivKey, txdata types.TxData) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(fr.chainID)
	tx, err := types.SignNewTx(key.Priv, signer, txdata)
	if err != nil {
		fr.log.WithError(err).Error("failed to sign transaction")
		return nil, err
	}
	return tx, nil
}

func (fr *Framework) transactOpts(ctx context.Context, sender *PrivKey) (*bind.TransactOpts, error) {
	if sender == nil {
		return nil, ErrMissingSender
	}
	opts, err := bind.NewKeyedTransactorWithChainID(sender.Priv, fr.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

func (fr *Framework) newTransaction(tx *types.Transaction) *Transaction {
	return &Transaction{tx: tx, fr: fr}
}

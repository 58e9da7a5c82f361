package framework

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
)

// Backend is the chain connection a Framework drives. *ethclient.Client
// satisfies it for live networks and *DevBackend for the development network.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend

	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// sealAttempts bounds how many blocks SendTransaction seals while waiting for
// the pool to hand the transaction to the miner.
const sealAttempts = 3

// DevBackend is an in-process simulated chain that mines every accepted
// transaction into its own block.
type DevBackend struct {
	simulated.Client

	mu  sync.Mutex
	sim *simulated.Backend
}

func NewDevBackend(alloc core.GenesisAlloc) *DevBackend {
	sim := simulated.NewBackend(alloc)
	return &DevBackend{
		Client: sim.Client(),
		sim:    sim,
	}
}

func (b *DevBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.Client.SendTransaction(ctx, tx); err != nil {
		return err
	}
	for i := 0; i < sealAttempts; i++ {
		b.sim.Commit()
		if _, err := b.Client.TransactionReceipt(ctx, tx.Hash()); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s after %d blocks", ErrTransactionNotMined, tx.Hash().Hex(), sealAttempts)
}

// Mine seals an empty block and returns its hash.
func (b *DevBackend) Mine() common.Hash {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sim.Commit()
}

func (b *DevBackend) BlockNumber(ctx context.Context) (uint64, error) {
	header, err := b.Client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	return header.Number.Uint64(), nil
}

// ChainID of the simulated chain is fixed by its genesis config.
func (b *DevBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(params.AllDevChainProtocolChanges.ChainID), nil
}

func (b *DevBackend) Close() {
	_ = b.sim.Close()
}

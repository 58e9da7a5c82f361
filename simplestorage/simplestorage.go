// Package simplestorage deploys and drives the SimpleStorage contract, an
// integer holder with store and retrieve.
package simplestorage

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/simple-storage/framework"
	"github.com/holiman/uint256"
)

const (
	ArtifactPath = "SimpleStorage.sol/SimpleStorage.json"

	storeMethod    = "store"
	retrieveMethod = "retrieve"
)

var errUnexpectedOutput = errors.New("unexpected retrieve output")

type SimpleStorage struct {
	contract *framework.Contract
}

// Deploy deploys a fresh instance with sender as the deployer and as the
// sender of later Store calls.
func Deploy(ctx context.Context, fr *framework.Framework, sender *framework.PrivKey) (*SimpleStorage, error) {
	contract, err := fr.DeployContract(ctx, ArtifactPath, sender)
	if err != nil {
		return nil, err
	}
	return &SimpleStorage{contract: contract}, nil
}

// At binds an instance deployed at addr. It has no sender until Ref.
func At(fr *framework.Framework, addr common.Address) (*SimpleStorage, error) {
	artifact, err := framework.ReadArtifact(ArtifactPath)
	if err != nil {
		return nil, err
	}
	return &SimpleStorage{contract: fr.ContractAt(addr, artifact.Abi)}, nil
}

func (s *SimpleStorage) Ref(key *framework.PrivKey) *SimpleStorage {
	return &SimpleStorage{contract: s.contract.Ref(key)}
}

func (s *SimpleStorage) Address() common.Address {
	return s.contract.Address()
}

func (s *SimpleStorage) Store(ctx context.Context, value *uint256.Int) (*framework.Transaction, error) {
	return s.contract.SendTransaction(ctx, storeMethod, value.ToBig())
}

func (s *SimpleStorage) Retrieve(ctx context.Context) (*uint256.Int, error) {
	out, err := s.contract.Call(ctx, retrieveMethod)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %d values", errUnexpectedOutput, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %T", errUnexpectedOutput, out[0])
	}
	value, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: %s overflows uint256", errUnexpectedOutput, v)
	}
	return value, nil
}

package simplestorage

import (
	"context"
	"fmt"

	"github.com/flashbots/simple-storage/framework"
	"github.com/holiman/uint256"
)

const (
	// DeployValue is what the deploy script stores after deployment.
	DeployValue = 15

	deployConfirmations = 1
)

// GetAccount returns the first pre-funded account on the development network
// and the configured wallet key anywhere else.
func GetAccount(fr *framework.Framework, cfg *framework.Config) (*framework.PrivKey, error) {
	if fr.Network() == framework.DevelopmentNetwork {
		return fr.Accounts().At(0)
	}
	return fr.Accounts().Add(cfg.Wallets.FromKey)
}

// DeploySimpleStorage deploys the contract, stores DeployValue and waits for
// one confirmation.
func DeploySimpleStorage(ctx context.Context, fr *framework.Framework, cfg *framework.Config) (*SimpleStorage, error) {
	account, err := GetAccount(fr, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed resolving account: %w", err)
	}

	simpleStorage, err := Deploy(ctx, fr, account)
	if err != nil {
		return nil, err
	}

	tx, err := simpleStorage.Store(ctx, uint256.NewInt(DeployValue))
	if err != nil {
		return nil, err
	}
	if _, err := tx.Wait(ctx, deployConfirmations); err != nil {
		return nil, err
	}

	fr.Log().WithField("address", simpleStorage.Address().Hex()).
		WithField("value", DeployValue).
		Info("SimpleStorage deployed and updated")
	return simpleStorage, nil
}

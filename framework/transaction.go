package framework

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Transaction is a submitted write.
type Transaction struct {
	tx *types.Transaction
	fr *Framework
}

func (t *Transaction) Hash() common.Hash {
	return t.tx.Hash()
}

func (t *Transaction) Raw() *types.Transaction {
	return t.tx
}

// Wait blocks until the transaction is mined and the chain holds
// confirmations blocks counting from the one that included it. Zero is treated
// as one. A mined but failed transaction returns its receipt together with
// ErrTransactionReverted.
func (t *Transaction) Wait(ctx context.Context, confirmations uint64) (*types.Receipt, error) {
	log := t.fr.log.WithField("tx", t.tx.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, t.fr.backend, t.tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for %s: %w", t.tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		log.WithField("block", receipt.BlockNumber).Warn("Transaction reverted")
		return receipt, fmt.Errorf("%w: %s", ErrTransactionReverted, t.tx.Hash().Hex())
	}
	if confirmations <= 1 {
		return receipt, nil
	}

	target := receipt.BlockNumber.Uint64() + confirmations - 1
	ticker := time.NewTicker(t.fr.pollInterval)
	defer ticker.Stop()
	for {
		head, err := t.fr.backend.BlockNumber(ctx)
		if err != nil {
			return nil, err
		}
		if head >= target {
			log.WithField("confirmations", confirmations).Debug("Transaction confirmed")
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

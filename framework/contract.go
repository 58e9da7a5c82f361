package framework

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// Contract is a deployed contract, optionally bound to a sender.
type Contract struct {
	addr   common.Address
	abi    *abi.ABI
	fr     *Framework
	bound  *bind.BoundContract
	sender *PrivKey
}

func (c *Contract) Address() common.Address {
	return c.addr
}

func (c *Contract) Abi() *abi.ABI {
	return c.abi
}

// Ref returns the same contract with key as the transaction sender.
func (c *Contract) Ref(key *PrivKey) *Contract {
	return &Contract{
		addr:   c.addr,
		abi:    c.abi,
		fr:     c.fr,
		bound:  c.bound,
		sender: key,
	}
}

// SendTransaction submits a state-mutating call. It returns once the node
// accepted the transaction; use Wait for inclusion.
func (c *Contract) SendTransaction(ctx context.Context, method string, args ...interface{}) (*Transaction, error) {
	if _, ok := c.abi.Methods[method]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingMethod, method)
	}
	opts, err := c.fr.transactOpts(ctx, c.sender)
	if err != nil {
		return nil, err
	}

	tx, err := c.bound.Transact(opts, method, args...)
	if err != nil {
		c.fr.log.WithError(err).WithField("method", method).Error("failed to send transaction")
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}
	c.fr.log.WithField("method", method).WithField("tx", tx.Hash().Hex()).Debug("Transaction sent")
	return c.fr.newTransaction(tx), nil
}

// Call executes a read-only method against the latest block.
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if _, ok := c.abi.Methods[method]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingMethod, method)
	}
	opts := &bind.CallOpts{Context: ctx}
	if c.sender != nil {
		opts.From = c.sender.Address()
	}

	var out []interface{}
	if err := c.bound.Call(opts, &out, method, args...); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	return out, nil
}

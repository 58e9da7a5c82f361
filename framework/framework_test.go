package framework

import (
	"context"
	"io"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simpleStorageArtifact = "SimpleStorage.sol/SimpleStorage.json"

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newDevFramework(t *testing.T, cfg *Config) *Framework {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	fr, err := New(context.Background(), cfg, DevelopmentNetwork, testLogger())
	require.NoError(t, err)
	t.Cleanup(fr.Close)
	return fr
}

func TestDevelopmentNetwork(t *testing.T) {
	ctx := context.Background()
	fr := newDevFramework(t, nil)

	assert.Equal(t, DevelopmentNetwork, fr.Network())
	assert.Equal(t, devAccountCount, fr.Accounts().Len())
	assert.Equal(t, int64(1337), fr.ChainID().Int64())

	for _, key := range fr.Accounts().All() {
		balance, err := fr.Balance(ctx, key.Address())
		require.NoError(t, err)
		assert.Equal(t, 0, balance.Cmp(devAccountBalance), "account %s", key.Address().Hex())
	}
}

func TestUnknownNetwork(t *testing.T) {
	_, err := New(context.Background(), DefaultConfig(), "rinkeby", testLogger())
	assert.ErrorIs(t, err, ErrUnknownNetwork)
}

func TestDeployAndCall(t *testing.T) {
	ctx := context.Background()
	fr := newDevFramework(t, nil)
	sender, err := fr.Accounts().At(0)
	require.NoError(t, err)

	contract, err := fr.DeployContract(ctx, simpleStorageArtifact, sender)
	require.NoError(t, err)
	assert.NotEqual(t, common.Address{}, contract.Address())

	code, err := fr.Backend().CodeAt(ctx, contract.Address(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, code)

	out, err := contract.Call(ctx, "retrieve")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].(*big.Int).Sign())

	tx, err := contract.SendTransaction(ctx, "store", big.NewInt(15))
	require.NoError(t, err)
	receipt, err := tx.Wait(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, tx.Hash(), receipt.TxHash)

	out, err = contract.Call(ctx, "retrieve")
	require.NoError(t, err)
	assert.Equal(t, int64(15), out[0].(*big.Int).Int64())
}

func TestMissingMethod(t *testing.T) {
	ctx := context.Background()
	fr := newDevFramework(t, nil)
	sender, err := fr.Accounts().At(0)
	require.NoError(t, err)

	contract, err := fr.DeployContract(ctx, simpleStorageArtifact, sender)
	require.NoError(t, err)

	_, err = contract.SendTransaction(ctx, "addPerson", "alice", big.NewInt(1))
	assert.ErrorIs(t, err, ErrMissingMethod)
	_, err = contract.Call(ctx, "nameToFavoriteNumber", "alice")
	assert.ErrorIs(t, err, ErrMissingMethod)
}

func TestContractAtWithoutCode(t *testing.T) {
	ctx := context.Background()
	fr := newDevFramework(t, nil)
	artifact, err := ReadArtifact(simpleStorageArtifact)
	require.NoError(t, err)

	contract := fr.ContractAt(common.HexToAddress("0x00000000000000000000000000000000deadbeef"), artifact.Abi)
	_, err = contract.Call(ctx, "retrieve")
	assert.ErrorIs(t, err, bind.ErrNoCode)

	_, err = contract.SendTransaction(ctx, "store", big.NewInt(1))
	assert.ErrorIs(t, err, ErrMissingSender)
}

func TestWaitConfirmations(t *testing.T) {
	ctx := context.Background()
	fr := newDevFramework(t, nil)
	sender, err := fr.Accounts().At(0)
	require.NoError(t, err)

	contract, err := fr.DeployContract(ctx, simpleStorageArtifact, sender)
	require.NoError(t, err)
	tx, err := contract.SendTransaction(ctx, "store", big.NewInt(3))
	require.NoError(t, err)

	// Only the including block exists, a second confirmation needs another one.
	shortCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = tx.Wait(shortCtx, 2)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = fr.Mine()
	require.NoError(t, err)

	receipt, err := tx.Wait(ctx, 2)
	require.NoError(t, err)
	head, err := fr.Backend().BlockNumber(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, head, receipt.BlockNumber.Uint64()+1)
}

func TestWaitReverted(t *testing.T) {
	ctx := context.Background()
	fr := newDevFramework(t, nil)
	sender, err := fr.Accounts().At(0)
	require.NoError(t, err)

	contract, err := fr.DeployContract(ctx, simpleStorageArtifact, sender)
	require.NoError(t, err)

	nonce, err := fr.Backend().PendingNonceAt(ctx, sender.Address())
	require.NoError(t, err)
	head, err := fr.Backend().HeaderByNumber(ctx, nil)
	require.NoError(t, err)

	tip, err := fr.Backend().SuggestGasTipCap(ctx)
	require.NoError(t, err)

	to := contract.Address()
	// Unknown selector, the contract reverts.
	tx, err := fr.SignTx(sender, &types.DynamicFeeTx{
		ChainID:   fr.ChainID(),
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2))),
		Gas:       100000,
		To:        &to,
		Data:      common.FromHex("0xdeadbeef"),
	})
	require.NoError(t, err)
	require.NoError(t, fr.Backend().SendTransaction(ctx, tx))

	receipt, err := fr.newTransaction(tx).Wait(ctx, 1)
	assert.ErrorIs(t, err, ErrTransactionReverted)
	require.NotNil(t, receipt)
	assert.Equal(t, types.ReceiptStatusFailed, receipt.Status)
}

func TestSendTransactionUnderpricedTip(t *testing.T) {
	ctx := context.Background()
	fr := newDevFramework(t, nil)
	sender, err := fr.Accounts().At(0)
	require.NoError(t, err)

	nonce, err := fr.Backend().PendingNonceAt(ctx, sender.Address())
	require.NoError(t, err)
	head, err := fr.Backend().HeaderByNumber(ctx, nil)
	require.NoError(t, err)
	before, err := fr.Backend().BlockNumber(ctx)
	require.NoError(t, err)

	// A 1 wei tip is below what the miner accepts, the transfer stays pending.
	to := common.HexToAddress("0x00000000000000000000000000000000deadbeef")
	tx, err := fr.SignTx(sender, &types.DynamicFeeTx{
		ChainID:   fr.ChainID(),
		Nonce:     nonce,
		GasTipCap: big.NewInt(1),
		GasFeeCap: new(big.Int).Add(big.NewInt(1), new(big.Int).Mul(head.BaseFee, big.NewInt(2))),
		Gas:       transferGas,
		To:        &to,
		Value:     big.NewInt(1),
	})
	require.NoError(t, err)

	err = fr.Backend().SendTransaction(ctx, tx)
	assert.ErrorIs(t, err, ErrTransactionNotMined)

	after, err := fr.Backend().BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+sealAttempts, after)
}

func TestFundAccount(t *testing.T) {
	ctx := context.Background()
	fr := newDevFramework(t, nil)

	key, err := GeneratePrivKey()
	require.NoError(t, err)

	fundBalance := big.NewInt(100000000000000000)
	receipt, err := fr.FundAccount(ctx, key.Address(), fundBalance)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

	balance, err := fr.Balance(ctx, key.Address())
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Cmp(fundBalance))

	// The funded account can now deploy on its own.
	_, err = fr.DeployContract(ctx, simpleStorageArtifact, key)
	require.NoError(t, err)
}

func TestMineLiveNetwork(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Deployments.Path = ""
	fr, err := NewWithBackend(context.Background(), cfg, "sepolia", NewDevBackend(core.GenesisAlloc{}), testLogger())
	require.NoError(t, err)
	t.Cleanup(fr.Close)

	// A simulated chain under a live name still mines.
	_, err = fr.Mine()
	require.NoError(t, err)
	assert.Equal(t, 0, fr.Accounts().Len())
	assert.Nil(t, fr.Deployments())
}

func TestDevDeploymentArtifacts(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Deployments.Path = filepath.Join(t.TempDir(), "build", "deployments.db")
	cfg.Deployments.DevArtifacts = true
	fr := newDevFramework(t, cfg)

	sender, err := fr.Accounts().At(2)
	require.NoError(t, err)
	contract, err := fr.DeployContract(ctx, simpleStorageArtifact, sender)
	require.NoError(t, err)

	require.NotNil(t, fr.Deployments())
	deps, err := fr.Deployments().List(ctx, fr.ChainID().Uint64())
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "SimpleStorage", deps[0].Name)
	assert.Equal(t, contract.Address().Hex(), deps[0].Address)
	assert.Equal(t, sender.Address().Hex(), deps[0].Deployer)
}

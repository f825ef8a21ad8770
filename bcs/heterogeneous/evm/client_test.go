package evm

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xdock/kernel/heterogeneous/config"
	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
)

type fakeBackend struct {
	mu       sync.Mutex
	chainID  *big.Int
	height   uint64
	blocks   map[uint64]*types.Block
	txs      map[common.Hash]*types.Transaction
	receipts map[common.Hash]*types.Receipt
	// selector => return data
	calls       map[string][]byte
	balance     *big.Int
	estimateErr error
	sendErr     error
	sent        []*types.Transaction
	receiptReqs int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:  big.NewInt(1337),
		blocks:   make(map[uint64]*types.Block),
		txs:      make(map[common.Hash]*types.Transaction),
		receipts: make(map[common.Hash]*types.Receipt),
		calls:    make(map[string][]byte),
		balance:  big.NewInt(0),
	}
}

func (b *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) { return b.chainID, nil }

func (b *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) { return b.height, nil }

func (b *fakeBackend) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	blk, ok := b.blocks[number.Uint64()]
	if !ok {
		return nil, ethereum.NotFound
	}
	return blk, nil
}

func (b *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	blk, ok := b.blocks[number.Uint64()]
	if !ok {
		return nil, ethereum.NotFound
	}
	return blk.Header(), nil
}

func (b *fakeBackend) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	tx, ok := b.txs[hash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return tx, false, nil
}

func (b *fakeBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receiptReqs++
	r, ok := b.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (b *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return b.balance, nil
}

func (b *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	out, ok := b.calls[common.Bytes2Hex(msg.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return out, nil
}

func (b *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if b.estimateErr != nil {
		return 0, b.estimateErr
	}
	return 60000, nil
}

func (b *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(100), nil
}

func (b *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return uint64(len(b.sent)), nil
}

func (b *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *fakeBackend) setCall(t *testing.T, method string, out ...interface{}) {
	m, ok := multiSigABI.Methods[method]
	if !ok {
		m = erc20ABI.Methods[method]
	}
	data, err := m.Outputs.Pack(out...)
	require.NoError(t, err)
	b.calls[common.Bytes2Hex(m.ID)] = data
}

func newTestClient(t *testing.T, backend Backend) *Client {
	conf := config.GetDefChainConf()
	conf.ChainId = 101
	conf.MultiSigAddress = testMultiSig.Hex()
	conf.Assets = []def.Asset{{AssetId: 2, Symbol: "USDX", Decimals: 6, Contract: testToken.Hex()}}
	c, err := NewClient(conf, backend)
	require.NoError(t, err)
	return c
}

func TestClientScanBlock(t *testing.T) {
	backend := newFakeBackend()
	c := newTestClient(t, backend)

	key, _ := crypto.GenerateKey()
	from := crypto.PubkeyToAddress(key.PublicKey)
	signer := types.LatestSignerForChainID(backend.chainID)
	amount := big.NewInt(1e12)

	data, err := multiSigABI.Pack(MethodCrossOut, testNerveAddress(), amount, common.Address{})
	require.NoError(t, err)
	deposit, err := types.SignNewTx(key, signer, &types.LegacyTx{To: &testMultiSig, Value: amount,
		Gas: 90000, GasPrice: big.NewInt(1), Data: data})
	require.NoError(t, err)
	other := common.HexToAddress("0x02")
	transfer, err := types.SignNewTx(key, signer, &types.LegacyTx{Nonce: 1, To: &other, Value: amount,
		Gas: 21000, GasPrice: big.NewInt(1)})
	require.NoError(t, err)
	// 金额不符的跨链交易
	bad, err := types.SignNewTx(key, signer, &types.LegacyTx{Nonce: 2, To: &testMultiSig, Value: big.NewInt(1),
		Gas: 90000, GasPrice: big.NewInt(1), Data: data})
	require.NoError(t, err)

	crossLog := eventLog(t, testMultiSig, EventCrossOutFunds, from, testNerveAddress(), amount, common.Address{})
	for _, tx := range []*types.Transaction{deposit, bad} {
		backend.receipts[tx.Hash()] = &types.Receipt{Status: types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(8), Logs: []*types.Log{crossLog}}
		backend.txs[tx.Hash()] = tx
	}
	header := &types.Header{Number: big.NewInt(8), Time: 1650000000}
	backend.blocks[8] = types.NewBlockWithHeader(header).WithBody([]*types.Transaction{deposit, transfer, bad}, nil)

	infos, err := c.ScanBlock(context.Background(), 8)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, deposit.Hash().Hex(), infos[0].TxHash)
	assert.Equal(t, from.Hex(), infos[0].From)
	assert.Equal(t, uint64(8), infos[0].BlockHeight)
	assert.Equal(t, uint64(1650000000), infos[0].TxTime)

	// 回执被缓存
	reqs := backend.receiptReqs
	info, err := c.AnalyzeTx(context.Background(), deposit.Hash().Hex(), false)
	require.NoError(t, err)
	assert.Equal(t, infos[0], info)
	assert.Equal(t, reqs, backend.receiptReqs)

	_, err = c.AnalyzeTx(context.Background(), common.HexToHash("0x99").Hex(), false)
	assert.ErrorIs(t, err, def.ErrRecordNotFound)
}

func TestClientReadReceipt(t *testing.T) {
	backend := newFakeBackend()
	c := newTestClient(t, backend)
	hash := common.HexToHash("0x01")

	r, err := c.ReadReceipt(context.Background(), hash.Hex())
	require.NoError(t, err)
	assert.Equal(t, def.ReceiptPending, r.Status)

	backend.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(3)}
	r, err = c.ReadReceipt(context.Background(), hash.Hex())
	require.NoError(t, err)
	assert.Equal(t, def.ReceiptFailed, r.Status)
	assert.Equal(t, uint64(3), r.BlockHeight)
}

func TestClientReadReceiptAfterReorg(t *testing.T) {
	backend := newFakeBackend()
	c := newTestClient(t, backend)
	ctx := context.Background()
	hash := common.HexToHash("0x02")

	backend.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(10)}
	r, err := c.ReadReceipt(ctx, hash.Hex())
	require.NoError(t, err)
	assert.Equal(t, def.ReceiptSuccess, r.Status)
	assert.Equal(t, uint64(10), r.BlockHeight)

	// 分叉后交易被回滚
	delete(backend.receipts, hash)
	r, err = c.ReadReceipt(ctx, hash.Hex())
	require.NoError(t, err)
	assert.Equal(t, def.ReceiptPending, r.Status)
	assert.False(t, c.receipts.Contains(hash))

	// 重新打包进其他区块
	backend.receipts[hash] = &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(12)}
	r, err = c.ReadReceipt(ctx, hash.Hex())
	require.NoError(t, err)
	assert.Equal(t, def.ReceiptFailed, r.Status)
	assert.Equal(t, uint64(12), r.BlockHeight)
}

func TestClientViews(t *testing.T) {
	backend := newFakeBackend()
	c := newTestClient(t, backend)
	ctx := context.Background()

	backend.setCall(t, MethodIsCompletedTx, true)
	backend.setCall(t, MethodIfManager, false)
	backend.setCall(t, MethodBalanceOf, big.NewInt(77))
	backend.balance = big.NewInt(5)

	done, err := c.IsCompleted(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, done)
	manager, err := c.IsManager(ctx, testUser.Hex())
	require.NoError(t, err)
	assert.False(t, manager)
	_, err = c.IsManager(ctx, "nope")
	assert.ErrorIs(t, err, def.ErrInvalidAddress)

	bal, err := c.Balance(ctx, testUser.Hex(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(77), bal.Int64())
	bal, err = c.Balance(ctx, testUser.Hex(), def.MainAssetId)
	require.NoError(t, err)
	assert.Equal(t, int64(5), bal.Int64())
	_, err = c.Balance(ctx, testUser.Hex(), 9)
	assert.ErrorIs(t, err, def.ErrAssetNotFound)

	_, err = c.callBool(ctx, MethodIsMinterERC20, testToken)
	assert.ErrorIs(t, err, def.ErrContractCallReverted)
}

func TestClientSubmit(t *testing.T) {
	backend := newFakeBackend()
	c := newTestClient(t, backend)
	ctx := context.Background()

	_, err := c.EstimateCost(ctx, []byte{1})
	assert.ErrorIs(t, err, def.ErrAccountLocked)
	_, err = c.Submit(ctx, []byte{1}, 0)
	assert.ErrorIs(t, err, def.ErrAccountLocked)

	key, _ := crypto.GenerateKey()
	acc, err := c.ImportKey(common.Bytes2Hex(crypto.FromECDSA(key)), "pwd")
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), acc.Address)
	assert.Len(t, acc.PubKey, 66)
	assert.Error(t, c.UnlockAccount(acc, "wrong"))
	require.NoError(t, c.UnlockAccount(acc, "pwd"))

	exported, err := c.ExportKey(acc, "pwd")
	require.NoError(t, err)
	assert.Equal(t, common.Bytes2Hex(crypto.FromECDSA(key)), exported)

	gas, err := c.EstimateCost(ctx, []byte{1})
	require.NoError(t, err)
	txHash, err := c.Submit(ctx, []byte{1}, gas)
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)
	sent := backend.sent[0]
	assert.Equal(t, sent.Hash().Hex(), txHash)
	assert.Equal(t, int64(110), sent.GasPrice().Int64())
	assert.Equal(t, uint64(60000), sent.Gas())
	sender, err := types.Sender(types.NewEIP155Signer(backend.chainID), sent)
	require.NoError(t, err)
	assert.Equal(t, acc.Address, sender.Hex())

	backend.sendErr = errors.New("already known")
	_, err = c.Submit(ctx, []byte{1}, gas)
	assert.NoError(t, err)
	backend.sendErr = errors.New("nonce too low")
	_, err = c.Submit(ctx, []byte{1}, gas)
	assert.ErrorIs(t, err, def.ErrSubmitFailed)
}

func TestMapCallError(t *testing.T) {
	backend := newFakeBackend()
	c := newTestClient(t, backend)
	key, _ := crypto.GenerateKey()
	acc, err := c.ImportKey(common.Bytes2Hex(crypto.FromECDSA(key)), "")
	require.NoError(t, err)
	require.NoError(t, c.UnlockAccount(acc, ""))

	for msg, want := range map[string]error{
		"execution reverted: Signatures verify failed": def.ErrInsufficientSignatures,
		"execution reverted: Transaction has been completed": def.ErrContractCallReverted,
		"insufficient funds for gas": def.ErrGasEstimationFailed,
	} {
		backend.estimateErr = errors.New(msg)
		_, err := c.EstimateCost(context.Background(), []byte{1})
		assert.ErrorIs(t, err, want, msg)
	}
	assert.True(t, alreadyKnown(errors.New("Known transaction: 0x12")))
	assert.False(t, strings.Contains(mapCallError(errors.New("x")).Error(), "revert"))
}

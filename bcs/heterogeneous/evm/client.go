package evm

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/xuperchain/xdock/kernel/heterogeneous/config"
	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/lib/logs"
	"github.com/xuperchain/xdock/lib/metrics"
	"github.com/xuperchain/xdock/lib/utils"
)

var _ def.Capability = (*Client)(nil)

// Client implements the docking capability for EVM compatible chains
type Client struct {
	chainId int
	chain   string
	conf    *config.ChainConf
	opts    *Options
	backend Backend

	assets     *AssetRegistry
	codec      *codec
	classifier *Classifier
	// txHash => *types.Receipt
	receipts *lru.Cache

	mu        sync.RWMutex
	multiSig  common.Address
	signer    *ecdsa.PrivateKey
	networkId *big.Int

	log logs.Logger
}

func NewClient(conf *config.ChainConf, backend Backend) (*Client, error) {
	if conf == nil || backend == nil {
		return nil, def.ErrParameter.More("evm client param missing")
	}
	if !common.IsHexAddress(conf.MultiSigAddress) {
		return nil, def.ErrInvalidAddress.More("multiSig %s", conf.MultiSigAddress)
	}
	opts, err := DecodeOptions(conf.Options)
	if err != nil {
		return nil, def.ErrParameter.More("%v", err)
	}
	assets, err := NewAssetRegistry(conf.Assets)
	if err != nil {
		return nil, err
	}
	receipts, err := lru.New(opts.ReceiptCacheSize)
	if err != nil {
		return nil, err
	}
	log, err := logs.NewLogger("", "evm")
	if err != nil {
		return nil, err
	}
	log.SetCommField("chain", conf.ChainId)

	c := &Client{
		chainId:  conf.ChainId,
		chain:    strconv.Itoa(conf.ChainId),
		conf:     conf,
		opts:     opts,
		backend:  backend,
		assets:   assets,
		codec:    &codec{assets: assets, version: opts.SignatureVersion},
		receipts: receipts,
		multiSig: common.HexToAddress(conf.MultiSigAddress),
		log:      log,
	}
	if opts.NetworkId > 0 {
		c.networkId = big.NewInt(opts.NetworkId)
	}
	c.classifier = NewClassifier(assets, opts.SignatureVersion, c.multiSigAddr, c.isMinter)
	return c, nil
}

func (c *Client) ChainId() int {
	return c.chainId
}

func (c *Client) ValidAddress(addr string) bool {
	return common.IsHexAddress(addr)
}

func (c *Client) MultiSigAddress() string {
	return c.multiSigAddr().Hex()
}

func (c *Client) SetMultiSigAddress(addr string) {
	if !common.IsHexAddress(addr) {
		c.log.Warn("ignore invalid multiSig address", "address", addr)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.multiSig = common.HexToAddress(addr)
}

func (c *Client) multiSigAddr() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.multiSig
}

func (c *Client) chainID(ctx context.Context) (*big.Int, error) {
	c.mu.RLock()
	id := c.networkId
	c.mu.RUnlock()
	if id != nil {
		return id, nil
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "query chain id")
	}
	c.mu.Lock()
	c.networkId = id
	c.mu.Unlock()
	return id, nil
}

func (c *Client) LatestHeight(ctx context.Context) (uint64, error) {
	return c.backend.BlockNumber(ctx)
}

// receipt returns nil without error while the tx is not mined.
// cached receipts only serve classification, fresh lookups refresh the cache
func (c *Client) receipt(ctx context.Context, hash common.Hash, fresh bool) (*types.Receipt, error) {
	if !fresh {
		if v, ok := c.receipts.Get(hash); ok {
			return v.(*types.Receipt), nil
		}
	}
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		// 被回滚的交易不再留在缓存中
		c.receipts.Remove(hash)
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query receipt %s", hash.Hex())
	}
	c.receipts.Add(hash, receipt)
	return receipt, nil
}

func (c *Client) ScanBlock(ctx context.Context, height uint64) ([]*def.TxInfo, error) {
	block, err := c.backend.BlockByNumber(ctx, new(big.Int).SetUint64(height))
	if err != nil {
		return nil, errors.Wrapf(err, "query block %d", height)
	}
	id, err := c.chainID(ctx)
	if err != nil {
		return nil, err
	}
	signer := types.LatestSignerForChainID(id)

	var infos []*def.TxInfo
	for _, tx := range block.Transactions() {
		if !c.classifier.Candidate(tx) {
			continue
		}
		from, err := types.Sender(signer, tx)
		if err != nil {
			c.log.Warn("recover tx sender failed", "txHash", tx.Hash().Hex(), "err", err)
			continue
		}
		receipt, err := c.receipt(ctx, tx.Hash(), false)
		if err != nil {
			return nil, err
		}
		info, err := c.classifier.Classify(ctx, &TxInput{
			Tx:          tx,
			From:        from,
			Receipt:     receipt,
			BlockHeight: height,
			BlockTime:   block.Time(),
			Confirm:     true,
		})
		switch {
		case err == nil:
			metrics.ClassifiedTxCounter.WithLabelValues(c.chain, info.TxType.String()).Inc()
			infos = append(infos, info)
		case errors.Is(err, def.ErrClassificationRejected):
		case errors.Is(err, def.ErrValidationFailed):
			metrics.ClassifiedTxCounter.WithLabelValues(c.chain, "INVALID").Inc()
			c.log.Warn("skip invalid tx", "txHash", tx.Hash().Hex(), "height", height, "err", err)
		default:
			return nil, err
		}
	}
	return infos, nil
}

func (c *Client) AnalyzeTx(ctx context.Context, txHash string, withReceipt bool) (*def.TxInfo, error) {
	hash := common.HexToHash(txHash)
	tx, pending, err := c.backend.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, def.ErrRecordNotFound.More("tx %s", txHash)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "query tx %s", txHash)
	}
	if pending {
		return nil, def.ErrInvalidState.More("tx %s not mined", txHash)
	}
	receipt, err := c.receipt(ctx, hash, withReceipt)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, def.ErrInvalidState.More("tx %s not mined", txHash)
	}
	header, err := c.backend.HeaderByNumber(ctx, receipt.BlockNumber)
	if err != nil {
		return nil, errors.Wrapf(err, "query header %s", receipt.BlockNumber)
	}
	id, err := c.chainID(ctx)
	if err != nil {
		return nil, err
	}
	from, err := types.Sender(types.LatestSignerForChainID(id), tx)
	if err != nil {
		return nil, def.ErrValidationFailed.More("sender of %s: %v", txHash, err)
	}
	return c.classifier.Classify(ctx, &TxInput{
		Tx:          tx,
		From:        from,
		Receipt:     receipt,
		BlockHeight: receipt.BlockNumber.Uint64(),
		BlockTime:   header.Time,
		Confirm:     withReceipt,
	})
}

func (c *Client) ReadReceipt(ctx context.Context, txHash string) (*def.Receipt, error) {
	receipt, err := c.receipt(ctx, common.HexToHash(txHash), true)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return &def.Receipt{TxHash: txHash, Status: def.ReceiptPending}, nil
	}
	status := def.ReceiptFailed
	if receipt.Status == types.ReceiptStatusSuccessful {
		status = def.ReceiptSuccess
	}
	return &def.Receipt{
		TxHash:      txHash,
		Status:      status,
		BlockHeight: receipt.BlockNumber.Uint64(),
	}, nil
}

// callView runs a constant method against the latest state
func (c *Client) callView(ctx context.Context, contract common.Address, parsed *abi.ABI,
	method string, args ...interface{}) ([]interface{}, error) {
	input, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, def.ErrParameter.More("pack %s: %v", method, err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: input}, nil)
	if err != nil {
		return nil, mapCallError(err)
	}
	values, err := parsed.Unpack(method, out)
	if err != nil || len(values) == 0 {
		return nil, def.ErrContractCallReverted.More("unpack %s: %v", method, err)
	}
	return values, nil
}

func (c *Client) callBool(ctx context.Context, method string, args ...interface{}) (bool, error) {
	values, err := c.callView(ctx, c.multiSigAddr(), &multiSigABI, method, args...)
	if err != nil {
		return false, err
	}
	b, ok := values[0].(bool)
	if !ok {
		return false, def.ErrContractCallReverted.More("%s returned %T", method, values[0])
	}
	return b, nil
}

func (c *Client) isMinter(ctx context.Context, token common.Address) (bool, error) {
	return c.callBool(ctx, MethodIsMinterERC20, token)
}

func (c *Client) IsCompleted(ctx context.Context, txKey string) (bool, error) {
	return c.callBool(ctx, MethodIsCompletedTx, txKey)
}

func (c *Client) IsManager(ctx context.Context, addr string) (bool, error) {
	if !common.IsHexAddress(addr) {
		return false, def.ErrInvalidAddress.More("%s", addr)
	}
	return c.callBool(ctx, MethodIfManager, common.HexToAddress(addr))
}

func (c *Client) Balance(ctx context.Context, addr string, assetId int) (*big.Int, error) {
	if !common.IsHexAddress(addr) {
		return nil, def.ErrInvalidAddress.More("%s", addr)
	}
	asset, ok := c.assets.ById(assetId)
	if !ok {
		return nil, def.ErrAssetNotFound.More("asset %d", assetId)
	}
	owner := common.HexToAddress(addr)
	if !asset.IsContractAsset() {
		return c.backend.BalanceAt(ctx, owner, nil)
	}
	values, err := c.callView(ctx, common.HexToAddress(asset.Contract), &erc20ABI, MethodBalanceOf, owner)
	if err != nil {
		return nil, err
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, def.ErrContractCallReverted.More("balanceOf returned %T", values[0])
	}
	return balance, nil
}

func (c *Client) EncodeCall(req *def.Request) ([]byte, error) {
	return c.codec.encode(req)
}

func (c *Client) DecodeCall(input []byte) (*def.Request, error) {
	return c.codec.decode(input)
}

// SigningHash returns the digest the managers sign for req
func (c *Client) SigningHash(req *def.Request) ([]byte, error) {
	return c.codec.SigningHash(req)
}

func (c *Client) unlockedKey() (*ecdsa.PrivateKey, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.signer == nil {
		return nil, def.ErrAccountLocked
	}
	return c.signer, nil
}

func (c *Client) EstimateCost(ctx context.Context, input []byte) (uint64, error) {
	key, err := c.unlockedKey()
	if err != nil {
		return 0, err
	}
	to := c.multiSigAddr()
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: crypto.PubkeyToAddress(key.PublicKey),
		To:   &to,
		Data: input,
	})
	if err != nil {
		return 0, mapCallError(err)
	}
	return gas, nil
}

func (c *Client) Submit(ctx context.Context, input []byte, gasLimit uint64) (string, error) {
	key, err := c.unlockedKey()
	if err != nil {
		return "", err
	}
	if gasLimit == 0 || gasLimit > c.conf.GasLimit {
		gasLimit = c.conf.GasLimit
	}
	id, err := c.chainID(ctx)
	if err != nil {
		return "", def.ErrSubmitFailed.More("%v", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return "", def.ErrSubmitFailed.More("query nonce: %v", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return "", def.ErrSubmitFailed.More("query gas price: %v", err)
	}
	gasPrice = new(big.Int).Div(
		new(big.Int).Mul(gasPrice, big.NewInt(int64(100+c.opts.GasPriceBump))), big.NewInt(100))

	to := c.multiSigAddr()
	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Data:     input,
	}), types.NewEIP155Signer(id), key)
	if err != nil {
		return "", def.ErrSubmitFailed.More("sign tx: %v", err)
	}
	hash := tx.Hash().Hex()
	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		if alreadyKnown(err) {
			c.log.Info("tx already known by node", "txHash", hash)
			return hash, nil
		}
		return "", def.ErrSubmitFailed.More("%v", err)
	}
	c.log.Info("send tx", "txHash", hash, "nonce", nonce, "gasPrice", gasPrice, "gas", gasLimit)
	return hash, nil
}

func (c *Client) ImportKey(privKey, password string) (*def.Account, error) {
	acc, _, err := newAccount(privKey, password)
	return acc, err
}

func (c *Client) UnlockAccount(acc *def.Account, password string) error {
	key, err := openAccount(acc, password)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signer = key
	return nil
}

func (c *Client) ExportKey(acc *def.Account, password string) (string, error) {
	key, err := openAccount(acc, password)
	if err != nil {
		return "", err
	}
	return utils.F(crypto.FromECDSA(key)), nil
}

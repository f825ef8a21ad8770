package evm

import (
	"bytes"
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
)

// MinterChecker asks the multi-sig contract whether it registered token as
// mintable
type MinterChecker func(ctx context.Context, token common.Address) (bool, error)

// TxInput is everything the classifier looks at. Only chain data goes in,
// so the same input always classifies the same way.
type TxInput struct {
	Tx          *types.Transaction
	From        common.Address
	Receipt     *types.Receipt
	BlockHeight uint64
	BlockTime   uint64
	// 为true时按确认视角解析，读取完成事件
	Confirm bool
}

// Classifier recognizes the business txs of one multi-sig contract
type Classifier struct {
	codec    *codec
	multiSig func() common.Address
	isMinter MinterChecker
}

func NewClassifier(assets *AssetRegistry, version uint8, multiSig func() common.Address,
	isMinter MinterChecker) *Classifier {
	return &Classifier{
		codec:    &codec{assets: assets, version: version},
		multiSig: multiSig,
		isMinter: isMinter,
	}
}

// Candidate is the cheap pre-filter deciding whether a tx needs a receipt
func (c *Classifier) Candidate(tx *types.Transaction) bool {
	return tx.To() != nil && *tx.To() == c.multiSig()
}

// Classify returns the normalized info of a business tx.
// ErrClassificationRejected means the tx is not ours, ErrValidationFailed
// means it looks like ours but the evidence does not hold.
func (c *Classifier) Classify(ctx context.Context, in *TxInput) (*def.TxInfo, error) {
	if in == nil || in.Tx == nil {
		return nil, def.ErrParameter.More("empty tx input")
	}
	if !c.Candidate(in.Tx) {
		return nil, def.ErrClassificationRejected
	}
	if in.Receipt != nil && in.Receipt.Status != types.ReceiptStatusSuccessful {
		return nil, def.ErrValidationFailed.More("tx %s failed on chain", in.Tx.Hash().Hex())
	}

	input := in.Tx.Data()
	if len(input) == 0 {
		return c.legacyDeposit(in)
	}
	if len(input) < 4 {
		return nil, def.ErrClassificationRejected
	}
	method, err := multiSigABI.MethodById(input[:4])
	if err != nil {
		return nil, def.ErrClassificationRejected
	}
	switch method.Name {
	case MethodCrossOut:
		return c.crossOut(ctx, in)
	case MethodCreateOrSignWithdraw, MethodCreateOrSignManagerChange, MethodCreateOrSignUpgrade:
		return c.outbound(in)
	default:
		return nil, def.ErrClassificationRejected
	}
}

func (c *Classifier) baseInfo(in *TxInput, txType def.TxType) *def.TxInfo {
	to := ""
	if in.Tx.To() != nil {
		to = in.Tx.To().Hex()
	}
	return &def.TxInfo{
		TxType:          txType,
		TxHash:          in.Tx.Hash().Hex(),
		BlockHeight:     in.BlockHeight,
		TxTime:          in.BlockTime,
		From:            in.From.Hex(),
		To:              to,
		MultiSigAddress: c.multiSig().Hex(),
	}
}

// legacyDeposit: plain coin transfer validated by a DepositFunds log
func (c *Classifier) legacyDeposit(in *TxInput) (*def.TxInfo, error) {
	value := in.Tx.Value()
	if value == nil || value.Sign() <= 0 {
		return nil, def.ErrClassificationRejected
	}
	if in.Receipt == nil {
		return nil, def.ErrValidationFailed.More("deposit needs receipt")
	}
	ms := c.multiSig()
	found := false
	for _, lg := range in.Receipt.Logs {
		if lg.Address != ms || !isEvent(lg, multiSigABI.Events[EventDepositFunds].ID) {
			continue
		}
		vals, err := multiSigABI.Unpack(EventDepositFunds, lg.Data)
		if err != nil || len(vals) != 2 {
			continue
		}
		from, _ := vals[0].(common.Address)
		amount, _ := vals[1].(*big.Int)
		if from == in.From && amount != nil && amount.Cmp(value) == 0 {
			found = true
			break
		}
	}
	if !found {
		return nil, def.ErrValidationFailed.More("no matching DepositFunds log")
	}

	asset := c.codec.assets.Main()
	info := c.baseInfo(in, def.TxTypeDeposit)
	info.Value = new(big.Int).Set(value)
	info.AssetId = asset.AssetId
	info.Decimals = asset.Decimals
	return info, nil
}

// crossOut requires a matching CrossOutFunds log, and for tokens the transfer
// into the multi-sig plus the burn of minter tokens
func (c *Classifier) crossOut(ctx context.Context, in *TxInput) (*def.TxInfo, error) {
	input := in.Tx.Data()
	vals, err := multiSigABI.Methods[MethodCrossOut].Inputs.Unpack(input[4:])
	if err != nil || len(vals) != 3 {
		return nil, def.ErrValidationFailed.More("unpack crossOut")
	}
	nerveTo, _ := vals[0].(string)
	amount, _ := vals[1].(*big.Int)
	erc20, _ := vals[2].(common.Address)
	if amount == nil || amount.Sign() <= 0 {
		return nil, def.ErrValidationFailed.More("crossOut amount not positive")
	}
	if !ValidNerveAddress(nerveTo) {
		return nil, def.ErrValidationFailed.More("invalid nerve address %s", nerveTo)
	}
	if in.Receipt == nil {
		return nil, def.ErrValidationFailed.More("crossOut needs receipt")
	}
	ms := c.multiSig()
	if !c.hasCrossOutLog(in.Receipt, ms, in.From, nerveTo, amount, erc20) {
		return nil, def.ErrValidationFailed.More("no matching CrossOutFunds log")
	}

	var asset *def.Asset
	if erc20 == (common.Address{}) {
		if in.Tx.Value().Cmp(amount) != 0 {
			return nil, def.ErrValidationFailed.More("crossOut value %s != amount %s", in.Tx.Value(), amount)
		}
		asset = c.codec.assets.Main()
	} else {
		var ok bool
		asset, ok = c.codec.assets.ByContract(erc20)
		if !ok {
			return nil, def.ErrValidationFailed.More("unregistered token %s", erc20.Hex())
		}
		minter, err := c.isMinter(ctx, erc20)
		if err != nil {
			return nil, err
		}
		if asset.Bound && !minter {
			return nil, def.ErrValidationFailed.More("bound token %s not registered as minter", erc20.Hex())
		}
		if !hasTransferLog(in.Receipt, erc20, in.From, ms, amount) {
			return nil, def.ErrValidationFailed.More("no transfer into multi-sig")
		}
		if minter && !hasTransferLog(in.Receipt, erc20, ms, common.Address{}, amount) {
			return nil, def.ErrValidationFailed.More("no burn of minter token")
		}
	}

	info := c.baseInfo(in, def.TxTypeDeposit)
	info.NerveAddress = nerveTo
	info.Value = new(big.Int).Set(amount)
	info.AssetId = asset.AssetId
	info.Decimals = asset.Decimals
	if asset.IsContractAsset() {
		info.IfContractAsset = true
		info.ContractAddress = asset.Contract
	}
	return info, nil
}

func (c *Classifier) hasCrossOutLog(receipt *types.Receipt, ms, from common.Address, to string,
	amount *big.Int, erc20 common.Address) bool {
	id := multiSigABI.Events[EventCrossOutFunds].ID
	for _, lg := range receipt.Logs {
		if lg.Address != ms || !isEvent(lg, id) {
			continue
		}
		vals, err := multiSigABI.Unpack(EventCrossOutFunds, lg.Data)
		if err != nil || len(vals) != 4 {
			continue
		}
		lFrom, _ := vals[0].(common.Address)
		lTo, _ := vals[1].(string)
		lAmount, _ := vals[2].(*big.Int)
		lErc20, _ := vals[3].(common.Address)
		if lFrom == from && lTo == to && lAmount != nil && lAmount.Cmp(amount) == 0 && lErc20 == erc20 {
			return true
		}
	}
	return false
}

func hasTransferLog(receipt *types.Receipt, token, from, to common.Address, amount *big.Int) bool {
	id := erc20ABI.Events[EventTransfer].ID
	for _, lg := range receipt.Logs {
		if lg.Address != token || !isEvent(lg, id) || len(lg.Topics) != 3 {
			continue
		}
		lFrom := common.BytesToAddress(lg.Topics[1].Bytes())
		lTo := common.BytesToAddress(lg.Topics[2].Bytes())
		if lFrom == from && lTo == to && new(big.Int).SetBytes(lg.Data).Cmp(amount) == 0 {
			return true
		}
	}
	return false
}

// outbound classifies a createOrSign* call, reading the completion event in
// confirm mode
func (c *Classifier) outbound(in *TxInput) (*def.TxInfo, error) {
	args, err := decodeArgs(in.Tx.Data())
	if err != nil {
		return nil, err
	}
	req, err := c.codec.request(args)
	if err != nil {
		return nil, def.ErrValidationFailed.More("%v", err)
	}

	info := c.baseInfo(in, req.Type)
	info.NerveTxHash = req.NerveTxHash
	switch req.Type {
	case def.TxTypeWithdraw:
		info.To = req.ToAddress
		info.Value = req.Value
		info.AssetId = req.AssetId
		asset, _ := c.codec.assets.ById(req.AssetId)
		info.Decimals = asset.Decimals
		if asset.IsContractAsset() {
			info.IfContractAsset = true
			info.ContractAddress = asset.Contract
		}
	case def.TxTypeManagerChange, def.TxTypeRecovery:
		info.AddAddresses = req.AddAddresses
		info.RemoveAddresses = req.RemoveAddresses
	case def.TxTypeContractUpgrade:
		info.NewContract = req.NewContract
	}

	if !in.Confirm || in.Receipt == nil {
		return info, nil
	}
	if !c.hasCompletionLog(in.Receipt, completionEvents[args.method], args.txKey) {
		return info, nil
	}
	info.Completed = true
	hash, err := args.signingHash(c.codec.version)
	if err != nil {
		return nil, err
	}
	signers, err := RecoverSigners(hash, args.signatures)
	if err != nil {
		return nil, err
	}
	info.Signers = signers
	return info, nil
}

func (c *Classifier) hasCompletionLog(receipt *types.Receipt, event, txKey string) bool {
	ms := c.multiSig()
	id := multiSigABI.Events[event].ID
	for _, lg := range receipt.Logs {
		if lg.Address != ms || !isEvent(lg, id) {
			continue
		}
		vals, err := multiSigABI.Unpack(event, lg.Data)
		if err != nil || len(vals) != 1 {
			continue
		}
		if key, _ := vals[0].(string); key == txKey {
			return true
		}
	}
	return false
}

func isEvent(lg *types.Log, id common.Hash) bool {
	return len(lg.Topics) > 0 && bytes.Equal(lg.Topics[0].Bytes(), id.Bytes())
}

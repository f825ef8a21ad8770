package docking

import (
	"context"
	"math/big"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
)

// DepositTransaction classifies txHash and requires it to be a deposit
func (d *Docking) DepositTransaction(ctx context.Context, txHash string) (*def.TxInfo, error) {
	info, err := d.cap.AnalyzeTx(ctx, txHash, false)
	if err != nil {
		return nil, err
	}
	if info.TxType != def.TxTypeDeposit {
		return nil, def.ErrValidationFailed.More("%s is %s, not a deposit", txHash, info.TxType)
	}
	return info, nil
}

// WithdrawTransaction classifies txHash and requires it to be a withdraw
func (d *Docking) WithdrawTransaction(ctx context.Context, txHash string) (*def.TxInfo, error) {
	info, err := d.cap.AnalyzeTx(ctx, txHash, false)
	if err != nil {
		return nil, err
	}
	if info.TxType != def.TxTypeWithdraw {
		return nil, def.ErrValidationFailed.More("%s is %s, not a withdraw", txHash, info.TxType)
	}
	return info, nil
}

// ConfirmedTxInfo returns the confirmation view of txHash. Outbound txs are
// only confirmed once the contract emitted their completion event.
func (d *Docking) ConfirmedTxInfo(ctx context.Context, txHash string) (*def.ConfirmedTx, error) {
	info, err := d.cap.AnalyzeTx(ctx, txHash, true)
	if err != nil {
		return nil, err
	}
	if info.TxType.IsOutbound() && !info.Completed {
		return nil, def.ErrInvalidState.More("%s not completed", txHash)
	}
	return &def.ConfirmedTx{
		TxType:          info.TxType,
		NerveTxHash:     info.NerveTxHash,
		TxHash:          info.TxHash,
		BlockHeight:     info.BlockHeight,
		TxTime:          info.TxTime,
		MultiSigAddress: info.MultiSigAddress,
		Signers:         info.Signers,
	}, nil
}

func (d *Docking) Balance(ctx context.Context, addr string, assetId int) (*big.Int, error) {
	if !d.cap.ValidAddress(addr) {
		return nil, def.ErrInvalidAddress.More("%s", addr)
	}
	return d.cap.Balance(ctx, addr, assetId)
}

// ImportAccount stores the encrypted key and makes it the signer of this node
func (d *Docking) ImportAccount(privKey, password string) (*def.Account, error) {
	acc, err := d.cap.ImportKey(privKey, password)
	if err != nil {
		return nil, err
	}
	if err := d.accounts.Save(acc); err != nil {
		return nil, err
	}
	if err := d.cap.UnlockAccount(acc, password); err != nil {
		return nil, err
	}
	d.setSelf(acc.Address)
	d.log.Info("account imported", "address", acc.Address)
	return acc, nil
}

// UnlockAccount unlocks a stored account as the signer of this node
func (d *Docking) UnlockAccount(address, password string) error {
	acc, err := d.accounts.Get(address)
	if err != nil {
		return err
	}
	if err := d.cap.UnlockAccount(acc, password); err != nil {
		return err
	}
	d.setSelf(acc.Address)
	return nil
}

func (d *Docking) ExportAccount(address, password string) (string, error) {
	acc, err := d.accounts.Get(address)
	if err != nil {
		return "", err
	}
	return d.cap.ExportKey(acc, password)
}

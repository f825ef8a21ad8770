package docking

import (
	"context"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/kernel/heterogeneous/unconfirmed"
)

// pollOnce scans the blocks after the persisted cursor. The cursor only
// moves past a block once every tx of it has been collected.
func (d *Docking) pollOnce(ctx context.Context) error {
	latest, err := d.cap.LatestHeight(ctx)
	if err != nil {
		return errors.Wrap(err, "query latest height")
	}
	cursor, ok := d.loadCursor()
	if !ok {
		cursor = latest
		if d.conf.StartHeight > 0 {
			cursor = d.conf.StartHeight - 1
		}
		if err := d.saveCursor(cursor); err != nil {
			return err
		}
		d.log.Info("scan cursor initialized", "height", cursor)
	}

	end := latest
	if end > cursor+maxScanBlocks {
		end = cursor + maxScanBlocks
	}
	for h := cursor + 1; h <= end; h++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		infos, err := d.cap.ScanBlock(ctx, h)
		if err != nil {
			return errors.Wrapf(err, "scan block %d", h)
		}
		for _, info := range infos {
			if _, err := d.collect(ctx, info); err != nil {
				// 已记录的交易在确认流程中重试上报
				d.log.Warn("collect tx failed", "txHash", info.TxHash, "height", h, "err", err)
			}
		}
		if err := d.saveCursor(h); err != nil {
			return err
		}
	}
	return d.processPending(ctx, latest)
}

// collect records a classified tx once and hands it to the native chain.
// It reports whether the tx was new to this node.
func (d *Docking) collect(ctx context.Context, info *def.TxInfo) (bool, error) {
	d.collectMu.Lock()
	defer d.collectMu.Unlock()

	rec, created, err := d.lifecycle.Observe(info)
	if err != nil {
		return false, err
	}
	if !created {
		// 本节点广播的交易首次在区块中出现，补全区块信息
		if rec.Status == unconfirmed.StatusPending && !rec.Reported &&
			(rec.Info.BlockHeight == 0 || (info.Completed && !rec.Info.Completed)) {
			rec.Info = info
			if err := d.lifecycle.Update(rec); err != nil {
				return false, err
			}
		}
	}
	if rec.Submitted {
		return created, nil
	}

	switch {
	case info.TxType == def.TxTypeDeposit:
		err = d.submitter.SubmitPendingDeposit(ctx, info)
	case info.TxType.IsOutbound() && info.Completed:
		d.inflight.Set(info.NerveTxHash, info.TxHash, cache.DefaultExpiration)
		err = d.submitter.SubmitPendingWithdraw(ctx, info.NerveTxHash, info.TxHash)
	default:
		return created, nil
	}
	if err != nil {
		return created, err
	}
	rec.Submitted = true
	if err := d.lifecycle.Update(rec); err != nil {
		return created, err
	}
	d.log.Info("tx collected", "type", info.TxType, "txHash", info.TxHash, "height", info.BlockHeight)
	return created, nil
}

// processPending reports every queued record that reached its
// confirmations. Records not yet final go back to the queue.
func (d *Docking) processPending(ctx context.Context, latest uint64) error {
	n := d.lifecycle.QueueLen()
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rec, ok := d.lifecycle.Pop()
		if !ok {
			return nil
		}
		if rec.Reported {
			continue
		}
		keep, err := d.confirm(ctx, rec, latest)
		if err != nil {
			d.log.Warn("confirm tx failed, retry later", "txHash", rec.TxHash, "err", err)
			keep = true
		}
		if keep {
			d.lifecycle.Requeue(rec.TxHash)
		}
	}
	return nil
}

// confirm returns true when the record must stay queued
func (d *Docking) confirm(ctx context.Context, rec *unconfirmed.Record, latest uint64) (bool, error) {
	info := rec.Info
	if info.BlockHeight == 0 {
		// 本节点广播，尚未在扫描中看到
		full, err := d.cap.AnalyzeTx(ctx, rec.TxHash, true)
		if errors.Is(err, def.ErrInvalidState) {
			return true, nil
		}
		if err != nil {
			return true, err
		}
		rec.Info = full
		info = full
		if err := d.lifecycle.Update(rec); err != nil {
			return true, err
		}
	}
	if latest < info.BlockHeight+d.conf.Confirmations {
		return true, nil
	}

	receipt, err := d.cap.ReadReceipt(ctx, rec.TxHash)
	if err != nil {
		return true, err
	}
	if receipt.Status != def.ReceiptSuccess {
		// 回执丢失或失败，多为异构链分叉
		d.log.Warn("tx receipt lost after confirmations, drop record", "txHash", rec.TxHash,
			"status", receipt.Status, "height", info.BlockHeight)
		if info.TxType.IsOutbound() {
			d.inflight.Delete(info.NerveTxHash)
			if err := d.completed.Remove(info.NerveTxHash); err != nil {
				return true, err
			}
		}
		return false, d.lifecycle.Remove(rec.TxHash)
	}

	if info.TxType.IsOutbound() {
		if !info.Completed {
			full, err := d.cap.AnalyzeTx(ctx, rec.TxHash, true)
			if err != nil {
				return true, err
			}
			if !full.Completed {
				d.log.Info("outbound tx did not complete, drop record", "txHash", rec.TxHash,
					"nerveTxHash", info.NerveTxHash)
				return false, d.lifecycle.Remove(rec.TxHash)
			}
			info = full
			rec.Info = full
		}
		if err := d.completeOutbound(info); err != nil {
			return true, err
		}
	}

	err = d.submitter.SubmitConfirmed(ctx, &def.ConfirmedTx{
		TxType:          info.TxType,
		NerveTxHash:     info.NerveTxHash,
		TxHash:          info.TxHash,
		BlockHeight:     info.BlockHeight,
		TxTime:          info.TxTime,
		MultiSigAddress: info.MultiSigAddress,
		Signers:         info.Signers,
	})
	if err != nil {
		return true, err
	}
	rec.Reported = true
	return false, d.lifecycle.Update(rec)
}

// completeOutbound records the completion of an outbound request
func (d *Docking) completeOutbound(info *def.TxInfo) error {
	if err := d.completed.Add(info.NerveTxHash, info.BlockHeight); err != nil {
		return err
	}
	d.forget(info.NerveTxHash)
	if info.TxType == def.TxTypeContractUpgrade && info.NewContract != "" {
		if err := d.multiSig.Append(info.NewContract); err != nil {
			return err
		}
		d.cap.SetMultiSigAddress(info.NewContract)
		d.log.Info("multiSig address upgraded", "address", info.NewContract, "nerveTxHash", info.NerveTxHash)
	}
	return nil
}

// TxConfirmedCompleted is called once the native chain settled txHash. The
// record is kept for the rollback window before being swept.
func (d *Docking) TxConfirmedCompleted(ctx context.Context, txHash string) error {
	height, err := d.cap.LatestHeight(ctx)
	if err != nil {
		return errors.Wrap(err, "query latest height")
	}
	rec, err := d.lifecycle.MarkForDeletion(txHash, height)
	if err != nil {
		return err
	}
	d.log.Info("tx settled on native chain", "txHash", txHash, "deleteAtHeight", rec.DeleteAtHeight)
	return nil
}

// TxConfirmedRollback undoes a settlement while the record is retained
func (d *Docking) TxConfirmedRollback(ctx context.Context, txHash string) error {
	height, err := d.cap.LatestHeight(ctx)
	if err != nil {
		return errors.Wrap(err, "query latest height")
	}
	rec, err := d.lifecycle.Rollback(txHash, height)
	if err != nil {
		return err
	}
	// 出金完成记录随确认重新上报时再写入
	if rec.Info != nil && rec.Info.TxType.IsOutbound() && rec.Info.NerveTxHash != "" {
		if err := d.completed.Remove(rec.Info.NerveTxHash); err != nil {
			return err
		}
	}
	return nil
}

// ReAnalysisDepositTx collects a deposit the scan missed. It returns true
// when the deposit is tracked afterwards.
func (d *Docking) ReAnalysisDepositTx(ctx context.Context, txHash string) (bool, error) {
	info, err := d.cap.AnalyzeTx(ctx, txHash, true)
	if err != nil {
		if errors.Is(err, def.ErrClassificationRejected) || errors.Is(err, def.ErrValidationFailed) {
			d.log.Info("re-analysis rejected", "txHash", txHash, "err", err)
			return false, nil
		}
		return false, err
	}
	if info.TxType != def.TxTypeDeposit {
		return false, nil
	}
	if _, err := d.collect(ctx, info); err != nil {
		return false, err
	}
	return true, nil
}

// sweep drops settled records whose rollback window closed
func (d *Docking) sweep(ctx context.Context) error {
	latest, err := d.cap.LatestHeight(ctx)
	if err != nil {
		return errors.Wrap(err, "query latest height")
	}
	deleted, err := d.lifecycle.Sweep(latest)
	if err != nil {
		return err
	}
	if len(deleted) > 0 {
		d.log.Debug("unconfirmed records swept", "count", len(deleted), "height", latest)
	}
	return nil
}

package docking

import (
	"context"
	"math/big"
	"strconv"
	"strings"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/xuperchain/xdock/kernel/common/xcontext"
	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/kernel/heterogeneous/order"
	"github.com/xuperchain/xdock/kernel/heterogeneous/resend"
	"github.com/xuperchain/xdock/kernel/heterogeneous/waiting"
	"github.com/xuperchain/xdock/lib/metrics"
	"github.com/xuperchain/xdock/lib/utils"
)

// CreateOrSignWithdraw submits the withdraw of nerveTxHash when this node
// leads the round. Followers park the request and return an empty hash.
func (d *Docking) CreateOrSignWithdraw(ctx context.Context, nerveTxHash, to string, value *big.Int,
	assetId int, signatures string) (string, error) {
	return d.invoke(ctx, &def.Request{
		Type:        def.TxTypeWithdraw,
		NerveTxHash: nerveTxHash,
		ToAddress:   to,
		Value:       value,
		AssetId:     assetId,
		Signatures:  signatures,
	})
}

func (d *Docking) CreateOrSignManagerChange(ctx context.Context, nerveTxHash string, adds, removes []string,
	originalMemberCount int, signatures string) (string, error) {
	return d.invoke(ctx, &def.Request{
		Type:                def.TxTypeManagerChange,
		NerveTxHash:         nerveTxHash,
		AddAddresses:        adds,
		RemoveAddresses:     removes,
		OriginalMemberCount: originalMemberCount,
		Signatures:          signatures,
	})
}

func (d *Docking) CreateOrSignUpgrade(ctx context.Context, nerveTxHash, newContract, signatures string) (string, error) {
	return d.invoke(ctx, &def.Request{
		Type:        def.TxTypeContractUpgrade,
		NerveTxHash: nerveTxHash,
		NewContract: newContract,
		Signatures:  signatures,
	})
}

// ForceRecovery removes every manager not in seedManagers. Signatures are
// fetched from the native chain and the call is keyed with the recovery prefix.
func (d *Docking) ForceRecovery(ctx context.Context, nerveTxHash string, seedManagers,
	allManagers []string) (string, error) {
	if len(seedManagers) == 0 || len(allManagers) == 0 {
		return "", def.ErrParameter.More("recovery needs seed and all managers")
	}
	seeds := make(map[string]bool, len(seedManagers))
	for _, addr := range seedManagers {
		seeds[strings.ToLower(addr)] = true
	}
	removes := make([]string, 0, len(allManagers))
	for _, addr := range allManagers {
		if !seeds[strings.ToLower(addr)] {
			removes = append(removes, addr)
		}
	}

	sigs, err := d.converter.RegainSignatures(ctx, d.nerveChainId, nerveTxHash, d.chainId)
	if err != nil {
		return "", errors.Wrapf(err, "recovery signatures of %s", nerveTxHash)
	}
	if len(sigs) > d.conf.MaxSigners {
		sigs = sigs[:d.conf.MaxSigners]
	}
	packed, err := resend.ConcatSignatures(sigs)
	if err != nil {
		return "", err
	}
	return d.invoke(ctx, &def.Request{
		Type:                def.TxTypeRecovery,
		NerveTxHash:         nerveTxHash,
		AddAddresses:        []string{},
		RemoveAddresses:     removes,
		OriginalMemberCount: len(allManagers),
		Signatures:          packed,
	})
}

// ValidateManagerChange checks the change against live contract state:
// every added address is not yet a manager and every removed one is.
func (d *Docking) ValidateManagerChange(ctx context.Context, adds, removes []string) (bool, error) {
	seen := make(map[string]bool, len(adds)+len(removes))
	for _, group := range [][]string{adds, removes} {
		for _, addr := range group {
			key := strings.ToLower(addr)
			if !d.cap.ValidAddress(addr) || seen[key] {
				return false, nil
			}
			seen[key] = true
		}
	}
	for _, addr := range adds {
		ok, err := d.cap.IsManager(ctx, addr)
		if err != nil {
			return false, err
		}
		if ok {
			d.log.Info("manager change adds an existing manager", "address", addr)
			return false, nil
		}
	}
	for _, addr := range removes {
		ok, err := d.cap.IsManager(ctx, addr)
		if err != nil {
			return false, err
		}
		if !ok {
			d.log.Info("manager change removes a non manager", "address", addr)
			return false, nil
		}
	}
	return true, nil
}

func (d *Docking) validateRequest(req *def.Request) error {
	if req.NerveTxHash == "" {
		return def.ErrParameter.More("empty nerveTxHash")
	}
	switch req.Type {
	case def.TxTypeWithdraw:
		if !d.cap.ValidAddress(req.ToAddress) {
			return def.ErrInvalidAddress.More("withdraw to %s", req.ToAddress)
		}
		if req.Value == nil || req.Value.Sign() <= 0 {
			return def.ErrParameter.More("withdraw value must be positive")
		}
	case def.TxTypeManagerChange, def.TxTypeRecovery:
		for _, addr := range append(append([]string{}, req.AddAddresses...), req.RemoveAddresses...) {
			if !d.cap.ValidAddress(addr) {
				return def.ErrInvalidAddress.More("manager %s", addr)
			}
		}
		if req.OriginalMemberCount <= 0 {
			return def.ErrParameter.More("original member count %d", req.OriginalMemberCount)
		}
	case def.TxTypeContractUpgrade:
		if !d.cap.ValidAddress(req.NewContract) {
			return def.ErrInvalidAddress.More("upgrade contract %s", req.NewContract)
		}
	default:
		return def.ErrParameter.More("unsupported request type %s", req.Type)
	}
	return nil
}

// invoke computes this node's rank for the round, parks the request and
// submits right away if this node leads or order checking is disabled.
func (d *Docking) invoke(ctx context.Context, req *def.Request) (txHash string, err error) {
	opCtx, err := xcontext.NewOpCtx(ctx, "invoke")
	if err != nil {
		return "", err
	}
	xlog := opCtx.GetLog()
	defer func() {
		metrics.CallMethodHistogram.WithLabelValues(d.chain, "invoke_"+strings.ToLower(req.Type.String()),
			errCode(err)).Observe(opCtx.GetTimer().Total().Seconds())
		xlog.Info("invoke done", "type", req.Type, "nerveTxHash", req.NerveTxHash, "txHash", txHash,
			"timer", opCtx.GetTimer().Print(), "err", err)
	}()

	if err := d.validateRequest(req); err != nil {
		return "", err
	}
	if d.completed.Contains(req.NerveTxHash) {
		xlog.Info("request already completed", "nerveTxHash", req.NerveTxHash)
		return "", nil
	}
	self := d.SelfAddress()
	if self == "" {
		return "", def.ErrAccountLocked
	}
	if !d.acquireRequest(req.NerveTxHash) {
		xlog.Info("request in progress", "nerveTxHash", req.NerveTxHash)
		return "", nil
	}
	defer d.releaseRequest(req.NerveTxHash)

	// 已存在等待记录时只更新签名，提交窗口保持不变
	if e, err := d.waiting.Get(req.NerveTxHash); err == nil {
		if req.Signatures != "" && req.Signatures != e.Request.Signatures {
			e.Request.Signatures = req.Signatures
			if err := d.waiting.Save(e); err != nil {
				return "", err
			}
		}
		xlog.Info("request already waiting", "nerveTxHash", req.NerveTxHash, "order", e.CurrentNodeOrder)
		return "", nil
	} else if !errors.Is(err, def.ErrRecordNotFound) {
		return "", err
	}

	members, err := d.converter.CurrentVirtualBanks(ctx, d.chainId)
	if err != nil {
		return "", errors.Wrap(err, "query virtual banks")
	}
	bank, err := order.NewVirtualBank(members)
	if err != nil {
		return "", err
	}
	ranks, err := order.Assign(bank, req.NerveTxHash, req.Exclusions())
	if err != nil {
		return "", err
	}
	rank, ok := ranks[self]
	if !ok {
		return "", def.ErrNotMember.More("%s", self)
	}
	opCtx.GetTimer().Mark("order")

	entry := waiting.NewEntry(req, rank, ranks, d.conf.WaitingStagger, d.now())
	if err := d.waiting.Save(entry); err != nil {
		return "", err
	}
	if rank != 1 && d.conf.OrderChecked() {
		xlog.Info("wait for leader", "nerveTxHash", req.NerveTxHash, "order", rank,
			"waitingEndTime", entry.WaitingEndTime)
		return "", nil
	}

	txHash, err = d.dispatch(opCtx, req)
	if err != nil {
		// 记录保留，窗口到期后由重发流程接管
		return "", err
	}
	if err := d.waiting.Delete(req.NerveTxHash); err != nil {
		xlog.Warn("delete waiting entry failed", "nerveTxHash", req.NerveTxHash, "err", err)
	}
	return txHash, nil
}

// Dispatch is the submission path shared by the leader and the resend
// coordinator. It returns ("", nil) if the request is already complete.
func (d *Docking) Dispatch(ctx context.Context, req *def.Request) (string, error) {
	opCtx, err := xcontext.NewOpCtx(ctx, "dispatch")
	if err != nil {
		return "", err
	}
	return d.dispatch(opCtx, req)
}

func (d *Docking) dispatch(opCtx xcontext.XContext, req *def.Request) (string, error) {
	xlog, tm := opCtx.GetLog(), opCtx.GetTimer()
	done, err := d.isComplete(opCtx, req)
	if err != nil {
		return "", err
	}
	if done {
		xlog.Info("request completed on chain, skip submit", "nerveTxHash", req.NerveTxHash)
		return "", nil
	}
	if d.inflightPending(opCtx, req.NerveTxHash) {
		return "", def.ErrInvalidState.More("%s already broadcast", req.NerveTxHash)
	}

	bankSize, err := d.converter.VirtualBankSize(opCtx)
	if err != nil {
		return "", errors.Wrap(err, "query virtual bank size")
	}
	if got, need := len(utils.DecodeHex(req.Signatures))/def.SignatureLength, def.MinSigners(bankSize); got < need {
		return "", def.ErrInsufficientSignatures.More("%d signatures, need %d", got, need)
	}
	tm.Mark("validate")

	input, err := d.cap.EncodeCall(req)
	if err != nil {
		return "", err
	}
	gas, err := d.cap.EstimateCost(opCtx, input)
	if err != nil {
		return "", err
	}
	tm.Mark("estimate")

	// 预留20%余量
	txHash, err := d.cap.Submit(opCtx, input, gas*12/10)
	if err != nil {
		return "", err
	}
	tm.Mark("submit")
	d.inflight.Set(req.NerveTxHash, txHash, cache.DefaultExpiration)
	xlog.Info("outbound tx broadcast", "type", req.Type, "nerveTxHash", req.NerveTxHash, "txHash", txHash,
		"timer", tm.Print())

	d.recordOutbound(opCtx, req, txHash)
	return txHash, nil
}

// isComplete consults the local registry then the contract
func (d *Docking) isComplete(ctx context.Context, req *def.Request) (bool, error) {
	if d.completed.Contains(req.NerveTxHash) {
		return true, nil
	}
	done, err := d.cap.IsCompleted(ctx, req.TxKey())
	if err != nil {
		return false, errors.Wrapf(err, "query completion of %s", req.NerveTxHash)
	}
	if done {
		d.forget(req.NerveTxHash)
	}
	return done, nil
}

// inflightPending reports whether a broadcast for nerveTxHash may still land
func (d *Docking) inflightPending(ctx context.Context, nerveTxHash string) bool {
	v, ok := d.inflight.Get(nerveTxHash)
	if !ok {
		return false
	}
	receipt, err := d.cap.ReadReceipt(ctx, v.(string))
	if err != nil {
		return true
	}
	if receipt.Status == def.ReceiptFailed {
		d.inflight.Delete(nerveTxHash)
		return false
	}
	return true
}

// recordOutbound tracks the broadcast tx and hands it to the native chain
func (d *Docking) recordOutbound(opCtx xcontext.XContext, req *def.Request, txHash string) {
	xlog := opCtx.GetLog()
	info := &def.TxInfo{
		TxType:          req.Type,
		TxHash:          txHash,
		From:            d.SelfAddress(),
		To:              d.cap.MultiSigAddress(),
		NerveTxHash:     req.NerveTxHash,
		MultiSigAddress: d.cap.MultiSigAddress(),
		Value:           req.Value,
		AssetId:         req.AssetId,
		AddAddresses:    req.AddAddresses,
		RemoveAddresses: req.RemoveAddresses,
		NewContract:     req.NewContract,
	}
	rec, _, err := d.lifecycle.Observe(info)
	if err != nil {
		xlog.Warn("record outbound tx failed", "txHash", txHash, "err", err)
		return
	}
	if rec.Submitted {
		return
	}
	if err := d.submitter.SubmitPendingWithdraw(opCtx, req.NerveTxHash, txHash); err != nil {
		xlog.Warn("pending withdraw hand-off failed, retry on observation", "txHash", txHash, "err", err)
		return
	}
	rec.Submitted = true
	if err := d.lifecycle.Update(rec); err != nil {
		xlog.Warn("update outbound record failed", "txHash", txHash, "err", err)
	}
}

// forget drops the coordination state of a request known complete
func (d *Docking) forget(nerveTxHash string) {
	if err := d.waiting.Delete(nerveTxHash); err != nil {
		d.log.Warn("delete waiting entry failed", "nerveTxHash", nerveTxHash, "err", err)
	}
	d.resend.Clear(nerveTxHash)
	d.inflight.Delete(nerveTxHash)
}

// resendDue hands every entry whose window opened to the resend coordinator
func (d *Docking) resendDue(ctx context.Context) error {
	now := d.now()
	due, err := d.waiting.Due(now)
	if err != nil {
		return err
	}
	var membershipChecked, member bool
	for _, e := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if e.Expired(now) {
			// 整轮窗口都已过，确认本节点仍在虚拟银行中
			if !membershipChecked {
				member, err = d.isBankMember(ctx)
				if err != nil {
					d.log.Warn("query virtual banks failed", "err", err)
					member = true
				}
				membershipChecked = true
			}
			if !member {
				d.log.Warn("node left virtual bank, drop waiting entry", "nerveTxHash", e.NerveTxHash(),
					"self", d.SelfAddress())
				if derr := d.waiting.Delete(e.NerveTxHash()); derr != nil {
					d.log.Warn("drop waiting entry failed", "nerveTxHash", e.NerveTxHash(), "err", derr)
				}
				continue
			}
		}
		d.resendOne(ctx, e)
	}
	return nil
}

func (d *Docking) resendOne(ctx context.Context, e *waiting.Entry) {
	hash := e.NerveTxHash()
	if !d.acquireRequest(hash) {
		return
	}
	defer d.releaseRequest(hash)
	if d.inflightPending(ctx, hash) {
		return
	}
	txHash, err := d.resend.Resend(ctx, e)
	switch {
	case errors.Is(err, def.ErrResendLimitExceeded):
		if derr := d.waiting.Delete(hash); derr != nil {
			d.log.Warn("drop waiting entry failed", "nerveTxHash", hash, "err", derr)
		}
	case err != nil:
		d.log.Warn("resend failed, retry later", "nerveTxHash", hash, "count", d.resend.Count(hash), "err", err)
	default:
		if derr := d.waiting.Delete(hash); derr != nil {
			d.log.Warn("delete waiting entry failed", "nerveTxHash", hash, "err", derr)
		}
		d.log.Info("resend done", "nerveTxHash", hash, "txHash", txHash)
	}
}

// isBankMember reports whether this node is in the current virtual bank
func (d *Docking) isBankMember(ctx context.Context) (bool, error) {
	self := d.SelfAddress()
	if self == "" {
		return false, def.ErrAccountLocked
	}
	members, err := d.converter.CurrentVirtualBanks(ctx, d.chainId)
	if err != nil {
		return false, err
	}
	bank, err := order.NewVirtualBank(members)
	if err != nil {
		return false, err
	}
	return bank.Contains(self), nil
}

// acquireRequest marks nerveTxHash as handled by the caller, false when
// another invoke or resend holds it
func (d *Docking) acquireRequest(nerveTxHash string) bool {
	return d.handling.Add(nerveTxHash, true, cache.DefaultExpiration) == nil
}

func (d *Docking) releaseRequest(nerveTxHash string) {
	d.handling.Delete(nerveTxHash)
}

// errCode is the metric label of err
func errCode(err error) string {
	if err == nil {
		return "0"
	}
	return strconv.Itoa(def.CastError(err).Code)
}

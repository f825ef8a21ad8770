package rpc

import (
	"context"
	"math/big"
	"strconv"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	sctx "github.com/xuperchain/xdock/server/context"
)

const (
	// 服务自身的命名空间
	ServiceNamespace = "xdock"
	// 单链接口命名空间前缀，如dock101
	DockNamespacePrefix = "dock"
)

// DockNamespace returns the namespace serving chainId
func DockNamespace(chainId int) string {
	return DockNamespacePrefix + strconv.Itoa(chainId)
}

// Docking is what the rpc layer needs from one foreign chain docking
type Docking interface {
	ChainId() int
	Symbol() string
	SelfAddress() string
	MultiSigHistory() []string

	ImportAccount(privKey, password string) (*def.Account, error)
	UnlockAccount(address, password string) error
	ExportAccount(address, password string) (string, error)
	Balance(ctx context.Context, addr string, assetId int) (*big.Int, error)

	CreateOrSignWithdraw(ctx context.Context, nerveTxHash, to string, value *big.Int, assetId int,
		signatures string) (string, error)
	CreateOrSignManagerChange(ctx context.Context, nerveTxHash string, adds, removes []string,
		originalMemberCount int, signatures string) (string, error)
	CreateOrSignUpgrade(ctx context.Context, nerveTxHash, newContract, signatures string) (string, error)
	ForceRecovery(ctx context.Context, nerveTxHash string, seedManagers, allManagers []string) (string, error)
	ValidateManagerChange(ctx context.Context, adds, removes []string) (bool, error)

	DepositTransaction(ctx context.Context, txHash string) (*def.TxInfo, error)
	WithdrawTransaction(ctx context.Context, txHash string) (*def.TxInfo, error)
	ConfirmedTxInfo(ctx context.Context, txHash string) (*def.ConfirmedTx, error)
	ReAnalysisDepositTx(ctx context.Context, txHash string) (bool, error)
	TxConfirmedCompleted(ctx context.Context, txHash string) error
	TxConfirmedRollback(ctx context.Context, txHash string) error
}

// AccountInfo is the public part of an imported account
type AccountInfo struct {
	Address string `json:"address"`
	PubKey  string `json:"pubKey"`
}

type ChainInfo struct {
	ChainId         int      `json:"chainId"`
	Symbol          string   `json:"symbol"`
	Account         string   `json:"account"`
	MultiSigAddress string   `json:"multiSigAddress"`
	MultiSigHistory []string `json:"multiSigHistory"`
}

// ServiceAPI 服务状态接口
type ServiceAPI struct {
	serv   *RpcServ
	chains []int
}

// CheckAlive 示例接口
func (a *ServiceAPI) CheckAlive(ctx context.Context) (string, error) {
	err := a.serv.handle(ctx, "", "checkAlive", nil, func(rctx sctx.ReqCtx) error {
		rctx.GetLog().Debug("check alive succ")
		return nil
	})
	return "running", err
}

// Chains returns the foreign chain ids served
func (a *ServiceAPI) Chains() []int {
	return append([]int(nil), a.chains...)
}

// DockingAPI 单条异构链对本链暴露的接口
type DockingAPI struct {
	serv         *RpcServ
	dock         Docking
	chain        string
	enableExport bool
}

func NewDockingAPI(serv *RpcServ, dock Docking, enableExport bool) *DockingAPI {
	return &DockingAPI{
		serv:         serv,
		dock:         dock,
		chain:        strconv.Itoa(dock.ChainId()),
		enableExport: enableExport,
	}
}

func (a *DockingAPI) ChainInfo(ctx context.Context) (*ChainInfo, error) {
	history := a.dock.MultiSigHistory()
	info := &ChainInfo{
		ChainId:         a.dock.ChainId(),
		Symbol:          a.dock.Symbol(),
		Account:         a.dock.SelfAddress(),
		MultiSigHistory: history,
	}
	if len(history) > 0 {
		info.MultiSigAddress = history[len(history)-1]
	}
	return info, nil
}

func (a *DockingAPI) ImportAccount(ctx context.Context, privKey, password string) (*AccountInfo, error) {
	var info *AccountInfo
	err := a.serv.handle(ctx, a.chain, "importAccount", nil, func(rctx sctx.ReqCtx) error {
		acc, err := a.dock.ImportAccount(privKey, password)
		if err != nil {
			return err
		}
		info = &AccountInfo{Address: acc.Address, PubKey: acc.PubKey}
		return nil
	})
	return info, err
}

func (a *DockingAPI) UnlockAccount(ctx context.Context, address, password string) error {
	return a.serv.handle(ctx, a.chain, "unlockAccount", []interface{}{"address", address},
		func(rctx sctx.ReqCtx) error {
			return a.dock.UnlockAccount(address, password)
		})
}

func (a *DockingAPI) ExportAccount(ctx context.Context, address, password string) (string, error) {
	var key string
	err := a.serv.handle(ctx, a.chain, "exportAccount", []interface{}{"address", address},
		func(rctx sctx.ReqCtx) error {
			if !a.enableExport {
				return def.ErrParameter.More("account export disabled")
			}
			var err error
			key, err = a.dock.ExportAccount(address, password)
			return err
		})
	return key, err
}

func (a *DockingAPI) Balance(ctx context.Context, addr string, assetId int) (*big.Int, error) {
	var bal *big.Int
	err := a.serv.handle(ctx, a.chain, "balance", []interface{}{"address", addr, "assetId", assetId},
		func(rctx sctx.ReqCtx) error {
			var err error
			bal, err = a.dock.Balance(ctx, addr, assetId)
			return err
		})
	return bal, err
}

func (a *DockingAPI) CreateOrSignWithdraw(ctx context.Context, nerveTxHash, to string, value *big.Int,
	assetId int, signatures string) (string, error) {
	var txHash string
	err := a.serv.handle(ctx, a.chain, "createOrSignWithdraw", []interface{}{"nerveTxHash", nerveTxHash},
		func(rctx sctx.ReqCtx) error {
			var err error
			txHash, err = a.dock.CreateOrSignWithdraw(ctx, nerveTxHash, to, value, assetId, signatures)
			return err
		})
	return txHash, err
}

func (a *DockingAPI) CreateOrSignManagerChange(ctx context.Context, nerveTxHash string, adds, removes []string,
	originalMemberCount int, signatures string) (string, error) {
	var txHash string
	err := a.serv.handle(ctx, a.chain, "createOrSignManagerChange", []interface{}{"nerveTxHash", nerveTxHash},
		func(rctx sctx.ReqCtx) error {
			var err error
			txHash, err = a.dock.CreateOrSignManagerChange(ctx, nerveTxHash, adds, removes,
				originalMemberCount, signatures)
			return err
		})
	return txHash, err
}

func (a *DockingAPI) CreateOrSignUpgrade(ctx context.Context, nerveTxHash, newContract,
	signatures string) (string, error) {
	var txHash string
	err := a.serv.handle(ctx, a.chain, "createOrSignUpgrade", []interface{}{"nerveTxHash", nerveTxHash},
		func(rctx sctx.ReqCtx) error {
			var err error
			txHash, err = a.dock.CreateOrSignUpgrade(ctx, nerveTxHash, newContract, signatures)
			return err
		})
	return txHash, err
}

func (a *DockingAPI) ForceRecovery(ctx context.Context, nerveTxHash string, seedManagers,
	allManagers []string) (string, error) {
	var txHash string
	err := a.serv.handle(ctx, a.chain, "forceRecovery", []interface{}{"nerveTxHash", nerveTxHash},
		func(rctx sctx.ReqCtx) error {
			var err error
			txHash, err = a.dock.ForceRecovery(ctx, nerveTxHash, seedManagers, allManagers)
			return err
		})
	return txHash, err
}

func (a *DockingAPI) ValidateManagerChange(ctx context.Context, adds, removes []string) (bool, error) {
	var ok bool
	err := a.serv.handle(ctx, a.chain, "validateManagerChange", nil, func(rctx sctx.ReqCtx) error {
		var err error
		ok, err = a.dock.ValidateManagerChange(ctx, adds, removes)
		return err
	})
	return ok, err
}

func (a *DockingAPI) DepositTransaction(ctx context.Context, txHash string) (*def.TxInfo, error) {
	var info *def.TxInfo
	err := a.serv.handle(ctx, a.chain, "depositTransaction", []interface{}{"txHash", txHash},
		func(rctx sctx.ReqCtx) error {
			var err error
			info, err = a.dock.DepositTransaction(ctx, txHash)
			return err
		})
	return info, err
}

func (a *DockingAPI) WithdrawTransaction(ctx context.Context, txHash string) (*def.TxInfo, error) {
	var info *def.TxInfo
	err := a.serv.handle(ctx, a.chain, "withdrawTransaction", []interface{}{"txHash", txHash},
		func(rctx sctx.ReqCtx) error {
			var err error
			info, err = a.dock.WithdrawTransaction(ctx, txHash)
			return err
		})
	return info, err
}

func (a *DockingAPI) ConfirmedTxInfo(ctx context.Context, txHash string) (*def.ConfirmedTx, error) {
	var tx *def.ConfirmedTx
	err := a.serv.handle(ctx, a.chain, "confirmedTxInfo", []interface{}{"txHash", txHash},
		func(rctx sctx.ReqCtx) error {
			var err error
			tx, err = a.dock.ConfirmedTxInfo(ctx, txHash)
			return err
		})
	return tx, err
}

func (a *DockingAPI) ReAnalysisDepositTx(ctx context.Context, txHash string) (bool, error) {
	var ok bool
	err := a.serv.handle(ctx, a.chain, "reAnalysisDepositTx", []interface{}{"txHash", txHash},
		func(rctx sctx.ReqCtx) error {
			var err error
			ok, err = a.dock.ReAnalysisDepositTx(ctx, txHash)
			return err
		})
	return ok, err
}

func (a *DockingAPI) TxConfirmedCompleted(ctx context.Context, txHash string) error {
	return a.serv.handle(ctx, a.chain, "txConfirmedCompleted", []interface{}{"txHash", txHash},
		func(rctx sctx.ReqCtx) error {
			return a.dock.TxConfirmedCompleted(ctx, txHash)
		})
}

func (a *DockingAPI) TxConfirmedRollback(ctx context.Context, txHash string) error {
	return a.serv.handle(ctx, a.chain, "txConfirmedRollback", []interface{}{"txHash", txHash},
		func(rctx sctx.ReqCtx) error {
			return a.dock.TxConfirmedRollback(ctx, txHash)
		})
}

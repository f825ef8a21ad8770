package def

import (
	"math/big"
	"strings"
)

// TxType 异构链业务交易类型
type TxType int

const (
	TxTypeNotRelevant TxType = iota
	TxTypeDeposit
	TxTypeWithdraw
	TxTypeManagerChange
	TxTypeContractUpgrade
	TxTypeRecovery
)

func (t TxType) String() string {
	switch t {
	case TxTypeDeposit:
		return "DEPOSIT"
	case TxTypeWithdraw:
		return "WITHDRAW"
	case TxTypeManagerChange:
		return "CHANGE"
	case TxTypeContractUpgrade:
		return "UPGRADE"
	case TxTypeRecovery:
		return "RECOVERY"
	default:
		return "NOT_RELEVANT"
	}
}

// IsOutbound reports whether the tx is authored by the virtual bank
func (t TxType) IsOutbound() bool {
	return t == TxTypeWithdraw || t == TxTypeManagerChange ||
		t == TxTypeContractUpgrade || t == TxTypeRecovery
}

const (
	// 主资产ID，即链原生币
	MainAssetId = 1
	// 恢复交易的txKey前缀
	RecoveryTxKeyPrefix = "RECOVERY"
	// 单个签名长度 r,s,v
	SignatureLength = 65
)

// RecoveryTxKey returns the on-chain key of a recovery manager change
func RecoveryTxKey(nerveTxHash string) string {
	return RecoveryTxKeyPrefix + nerveTxHash
}

// SplitTxKey strips the recovery prefix, reporting whether it was present
func SplitTxKey(txKey string) (string, bool) {
	if strings.HasPrefix(txKey, RecoveryTxKeyPrefix) {
		return strings.TrimPrefix(txKey, RecoveryTxKeyPrefix), true
	}
	return txKey, false
}

// MinSigners 拜占庭签名数
func MinSigners(bankSize int) int {
	if bankSize <= 0 {
		return 1
	}
	return bankSize*2/3 + 1
}

// TxInfo is the normalized form of a classified foreign chain tx. It only
// carries fields derived from the tx, its receipt and its block, so parsing
// the same tx twice yields identical values.
type TxInfo struct {
	TxType          TxType   `json:"txType"`
	TxHash          string   `json:"txHash"`
	BlockHeight     uint64   `json:"blockHeight"`
	TxTime          uint64   `json:"txTime"`
	From            string   `json:"from"`
	To              string   `json:"to"`
	NerveAddress    string   `json:"nerveAddress,omitempty"`
	Value           *big.Int `json:"value,omitempty"`
	AssetId         int      `json:"assetId,omitempty"`
	Decimals        uint8    `json:"decimals,omitempty"`
	ContractAddress string   `json:"contractAddress,omitempty"`
	IfContractAsset bool     `json:"ifContractAsset,omitempty"`
	NerveTxHash     string   `json:"nerveTxHash,omitempty"`
	MultiSigAddress string   `json:"multiSigAddress"`
	AddAddresses    []string `json:"addAddresses,omitempty"`
	RemoveAddresses []string `json:"removeAddresses,omitempty"`
	NewContract     string   `json:"newContract,omitempty"`
	// 确认类解析时，交易是否已在合约内完成
	Completed bool     `json:"completed"`
	Signers   []string `json:"signers,omitempty"`
}

// Request 虚拟银行发起的协同请求，以nerveTxHash为标识
type Request struct {
	Type        TxType `json:"type"`
	NerveTxHash string `json:"nerveTxHash"`
	// withdraw
	ToAddress string   `json:"toAddress,omitempty"`
	Value     *big.Int `json:"value,omitempty"`
	AssetId   int      `json:"assetId,omitempty"`
	// manager change / recovery
	AddAddresses        []string `json:"addAddresses,omitempty"`
	RemoveAddresses     []string `json:"removeAddresses,omitempty"`
	OriginalMemberCount int      `json:"originalMemberCount,omitempty"`
	// upgrade
	NewContract string `json:"newContract,omitempty"`
	// hex encoded concatenated 65 bytes signatures
	Signatures string `json:"signatures"`
}

// TxKey returns the key the multi-sig contract tracks the request by
func (r *Request) TxKey() string {
	if r.Type == TxTypeRecovery {
		return RecoveryTxKey(r.NerveTxHash)
	}
	return r.NerveTxHash
}

// Exclusions returns the members that must not take part in rotation
func (r *Request) Exclusions() []string {
	if r.Type != TxTypeManagerChange && r.Type != TxTypeRecovery {
		return nil
	}
	ex := make([]string, 0, len(r.AddAddresses)+len(r.RemoveAddresses))
	ex = append(ex, r.AddAddresses...)
	ex = append(ex, r.RemoveAddresses...)
	return ex
}

// ReceiptStatus foreign chain receipt state
type ReceiptStatus int

const (
	ReceiptPending ReceiptStatus = iota
	ReceiptSuccess
	ReceiptFailed
)

type Receipt struct {
	TxHash      string        `json:"txHash"`
	Status      ReceiptStatus `json:"status"`
	BlockHeight uint64        `json:"blockHeight"`
}

// ConfirmedTx is reported to the native chain once a tx is final
type ConfirmedTx struct {
	TxType          TxType   `json:"txType"`
	NerveTxHash     string   `json:"nerveTxHash"`
	TxHash          string   `json:"txHash"`
	BlockHeight     uint64   `json:"blockHeight"`
	TxTime          uint64   `json:"txTime"`
	MultiSigAddress string   `json:"multiSigAddress"`
	Signers         []string `json:"signers"`
}

// SubmitStatus result of a hand-off to the native chain
type SubmitStatus int

const (
	SubmitOK SubmitStatus = iota
	SubmitAlreadyExists
)

func (s SubmitStatus) String() string {
	if s == SubmitAlreadyExists {
		return "already_exists"
	}
	return "ok"
}

// Account 节点在异构链上的签名账户
type Account struct {
	Address string `json:"address"`
	PubKey  string `json:"pubKey"`
	// keystore encrypted key json
	EncryptedKey []byte `json:"encryptedKey"`
}

// Asset 异构链资产登记信息
type Asset struct {
	AssetId  int    `json:"assetId" yaml:"assetId"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
	// 空表示主资产
	Contract string `json:"contract" yaml:"contract"`
	// 是否与本链资产绑定，绑定资产必须在合约中登记为可铸造
	Bound bool `json:"bound" yaml:"bound"`
}

func (a *Asset) IsContractAsset() bool {
	return a.Contract != ""
}

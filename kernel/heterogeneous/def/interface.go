package def

import (
	"context"
	"math/big"
)

// Capability is the set of chain specific primitives the docking coordinator
// runs on. It is implemented once per foreign chain family.
type Capability interface {
	ChainId() int
	ValidAddress(addr string) bool
	MultiSigAddress() string
	SetMultiSigAddress(addr string)

	// read
	LatestHeight(ctx context.Context) (uint64, error)
	// ScanBlock classifies the txs of a block and returns the relevant ones
	ScanBlock(ctx context.Context, height uint64) ([]*TxInfo, error)
	// AnalyzeTx classifies one tx by hash. With receipt it returns the
	// confirmation view of the tx.
	AnalyzeTx(ctx context.Context, txHash string, withReceipt bool) (*TxInfo, error)
	ReadReceipt(ctx context.Context, txHash string) (*Receipt, error)
	IsCompleted(ctx context.Context, nerveTxHash string) (bool, error)
	IsManager(ctx context.Context, addr string) (bool, error)
	Balance(ctx context.Context, addr string, assetId int) (*big.Int, error)

	// write
	EncodeCall(req *Request) ([]byte, error)
	DecodeCall(input []byte) (*Request, error)
	EstimateCost(ctx context.Context, input []byte) (uint64, error)
	Submit(ctx context.Context, input []byte, gasLimit uint64) (string, error)

	// account
	ImportKey(privKey, password string) (*Account, error)
	UnlockAccount(acc *Account, password string) error
	ExportKey(acc *Account, password string) (string, error)
}

// Converter is the native chain converter module as seen from a foreign chain
// adapter.
type Converter interface {
	PendingTxSubmit(ctx context.Context, info *TxInfo) (SubmitStatus, error)
	PendingTxOfWithdraw(ctx context.Context, nerveTxHash, txHash string) (SubmitStatus, error)
	TxConfirmed(ctx context.Context, tx *ConfirmedTx) error
	RegainSignatures(ctx context.Context, nerveChainId int, nerveTxHash string, chainId int) ([]string, error)
	CurrentVirtualBanks(ctx context.Context, chainId int) (map[string]int, error)
	VirtualBankSize(ctx context.Context) (int, error)
}

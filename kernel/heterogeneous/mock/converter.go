package mock

import (
	"context"
	"sync"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
)

var _ def.Converter = (*Converter)(nil)

// Converter is an in-memory native chain converter. Duplicate pending
// submissions are answered with SubmitAlreadyExists.
type Converter struct {
	mu sync.Mutex

	Banks      map[string]int
	BankSize   int
	Signatures []string
	RegainErr  error
	SubmitErr  error

	pending   map[string]bool
	withdraws map[string]bool

	Deposits      []*def.TxInfo
	Confirmed     []*def.ConfirmedTx
	PendingCalls  int
	WithdrawCalls int
	RegainCalls   int
}

func NewConverter(banks map[string]int) *Converter {
	return &Converter{
		Banks:     banks,
		BankSize:  len(banks),
		pending:   make(map[string]bool),
		withdraws: make(map[string]bool),
	}
}

func (c *Converter) PendingTxSubmit(ctx context.Context, info *def.TxInfo) (def.SubmitStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PendingCalls++
	if c.SubmitErr != nil {
		return def.SubmitOK, c.SubmitErr
	}
	if c.pending[info.TxHash] {
		return def.SubmitAlreadyExists, nil
	}
	c.pending[info.TxHash] = true
	c.Deposits = append(c.Deposits, info)
	return def.SubmitOK, nil
}

func (c *Converter) PendingTxOfWithdraw(ctx context.Context, nerveTxHash, txHash string) (def.SubmitStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.WithdrawCalls++
	if c.SubmitErr != nil {
		return def.SubmitOK, c.SubmitErr
	}
	key := nerveTxHash + "/" + txHash
	if c.withdraws[key] {
		return def.SubmitAlreadyExists, nil
	}
	c.withdraws[key] = true
	return def.SubmitOK, nil
}

func (c *Converter) TxConfirmed(ctx context.Context, tx *def.ConfirmedTx) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Confirmed = append(c.Confirmed, tx)
	return nil
}

func (c *Converter) RegainSignatures(ctx context.Context, nerveChainId int, nerveTxHash string,
	chainId int) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RegainCalls++
	if c.RegainErr != nil {
		return nil, c.RegainErr
	}
	return append([]string(nil), c.Signatures...), nil
}

func (c *Converter) CurrentVirtualBanks(ctx context.Context, chainId int) (map[string]int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	banks := make(map[string]int, len(c.Banks))
	for k, v := range c.Banks {
		banks[k] = v
	}
	return banks, nil
}

func (c *Converter) VirtualBankSize(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.BankSize, nil
}

// ConfirmedCount returns the number of TxConfirmed calls
func (c *Converter) ConfirmedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Confirmed)
}

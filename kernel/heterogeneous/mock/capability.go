package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
)

var _ def.Capability = (*Capability)(nil)

// Capability is a scripted foreign chain. Calls are recorded so tests can
// assert what would have been broadcast.
type Capability struct {
	mu sync.Mutex

	Chain    int
	MultiSig string
	Height   uint64

	Blocks    map[uint64][]*def.TxInfo
	Txs       map[string]*def.TxInfo
	Receipts  map[string]*def.Receipt
	Completed map[string]bool
	Managers  map[string]bool
	Balances  map[string]*big.Int

	// 依次返回给EstimateCost的错误，nil表示成功
	EstimateErrs []error
	SubmitErr    error

	Submitted     []*def.Request
	EstimateCalls int
	unlocked      string
}

func NewCapability(chainId int, multiSig string) *Capability {
	return &Capability{
		Chain:     chainId,
		MultiSig:  multiSig,
		Blocks:    make(map[uint64][]*def.TxInfo),
		Txs:       make(map[string]*def.TxInfo),
		Receipts:  make(map[string]*def.Receipt),
		Completed: make(map[string]bool),
		Managers:  make(map[string]bool),
		Balances:  make(map[string]*big.Int),
	}
}

func (c *Capability) ChainId() int { return c.Chain }

func (c *Capability) ValidAddress(addr string) bool {
	return strings.HasPrefix(addr, "0x") && len(addr) > 2
}

func (c *Capability) MultiSigAddress() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.MultiSig
}

func (c *Capability) SetMultiSigAddress(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MultiSig = addr
}

func (c *Capability) LatestHeight(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Height, nil
}

func (c *Capability) ScanBlock(ctx context.Context, height uint64) ([]*def.TxInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Blocks[height], nil
}

func (c *Capability) AnalyzeTx(ctx context.Context, txHash string, withReceipt bool) (*def.TxInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.Txs[txHash]
	if !ok {
		return nil, def.ErrClassificationRejected.More("%s", txHash)
	}
	return info, nil
}

func (c *Capability) ReadReceipt(ctx context.Context, txHash string) (*def.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.Receipts[txHash]; ok {
		return r, nil
	}
	return &def.Receipt{TxHash: txHash, Status: def.ReceiptPending}, nil
}

func (c *Capability) IsCompleted(ctx context.Context, nerveTxHash string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Completed[nerveTxHash], nil
}

func (c *Capability) IsManager(ctx context.Context, addr string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Managers[strings.ToLower(addr)], nil
}

func (c *Capability) Balance(ctx context.Context, addr string, assetId int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.Balances[fmt.Sprintf("%s/%d", strings.ToLower(addr), assetId)]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (c *Capability) EncodeCall(req *def.Request) ([]byte, error) {
	return json.Marshal(req)
}

func (c *Capability) DecodeCall(input []byte) (*def.Request, error) {
	req := new(def.Request)
	if err := json.Unmarshal(input, req); err != nil {
		return nil, def.ErrClassificationRejected.More("%v", err)
	}
	return req, nil
}

func (c *Capability) EstimateCost(ctx context.Context, input []byte) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.EstimateCalls++
	if len(c.EstimateErrs) > 0 {
		err := c.EstimateErrs[0]
		c.EstimateErrs = c.EstimateErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	return 210000, nil
}

func (c *Capability) Submit(ctx context.Context, input []byte, gasLimit uint64) (string, error) {
	req, err := c.DecodeCall(input)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubmitErr != nil {
		return "", c.SubmitErr
	}
	if c.unlocked == "" {
		return "", def.ErrAccountLocked
	}
	c.Submitted = append(c.Submitted, req)
	return fmt.Sprintf("0x%064x", len(c.Submitted)), nil
}

// SubmittedCount returns the number of broadcast calls
func (c *Capability) SubmittedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Submitted)
}

func (c *Capability) ImportKey(privKey, password string) (*def.Account, error) {
	if len(privKey) < 8 {
		return nil, def.ErrParameter.More("bad private key")
	}
	return &def.Account{
		Address:      "0x" + strings.ToLower(privKey[:8]),
		PubKey:       "pub" + privKey[:8],
		EncryptedKey: []byte(password + ":" + privKey),
	}, nil
}

func (c *Capability) UnlockAccount(acc *def.Account, password string) error {
	if _, err := c.ExportKey(acc, password); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unlocked = acc.Address
	return nil
}

func (c *Capability) ExportKey(acc *def.Account, password string) (string, error) {
	prefix := password + ":"
	if !strings.HasPrefix(string(acc.EncryptedKey), prefix) {
		return "", def.ErrAccountLocked.More("wrong password")
	}
	return strings.TrimPrefix(string(acc.EncryptedKey), prefix), nil
}

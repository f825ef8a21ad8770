package converter

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
)

type codeError struct {
	code int
	msg  string
}

func (e *codeError) Error() string  { return e.msg }
func (e *codeError) ErrorCode() int { return e.code }

// nativeService plays the native converter module
type nativeService struct {
	mu      sync.Mutex
	pending map[string]bool
	reports []*def.ConfirmedTx
}

func (s *nativeService) PendingTxSubmit(info *def.TxInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[info.TxHash] {
		return &codeError{code: def.ErrAlreadyExists.Code, msg: "duplicate"}
	}
	s.pending[info.TxHash] = true
	return nil
}

func (s *nativeService) PendingTxOfWithdraw(nerveTxHash, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[nerveTxHash] {
		return &codeError{code: -32000, msg: "record already exists"}
	}
	s.pending[nerveTxHash] = true
	return nil
}

func (s *nativeService) TxConfirmed(tx *def.ConfirmedTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, tx)
	return nil
}

func (s *nativeService) RegainSignatures(nerveChainId int, nerveTxHash string, chainId int) ([]string, error) {
	if nerveTxHash == "" {
		return nil, &codeError{code: -32000, msg: "unknown tx"}
	}
	return []string{"aa", "bb"}, nil
}

func (s *nativeService) CurrentVirtualBanks(chainId int) map[string]int {
	return map[string]int{"0xa": 1, "0xb": 2}
}

func (s *nativeService) VirtualBankSize() int {
	return 2
}

func newTestClient(t *testing.T) (*Client, *nativeService) {
	svc := &nativeService{pending: make(map[string]bool)}
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName(Namespace, svc))
	t.Cleanup(server.Stop)

	c, err := NewClient(rpc.DialInProc(server))
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, svc
}

func TestPendingSubmitIdempotent(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	info := &def.TxInfo{TxType: def.TxTypeDeposit, TxHash: "0x01"}
	status, err := c.PendingTxSubmit(ctx, info)
	require.NoError(t, err)
	assert.Equal(t, def.SubmitOK, status)
	status, err = c.PendingTxSubmit(ctx, info)
	require.NoError(t, err)
	assert.Equal(t, def.SubmitAlreadyExists, status)

	status, err = c.PendingTxOfWithdraw(ctx, "n1", "0x02")
	require.NoError(t, err)
	assert.Equal(t, def.SubmitOK, status)
	status, err = c.PendingTxOfWithdraw(ctx, "n1", "0x02")
	require.NoError(t, err)
	assert.Equal(t, def.SubmitAlreadyExists, status)
}

func TestQueries(t *testing.T) {
	c, svc := newTestClient(t)
	ctx := context.Background()

	sigs, err := c.RegainSignatures(ctx, 9, "n1", 101)
	require.NoError(t, err)
	assert.Equal(t, []string{"aa", "bb"}, sigs)
	_, err = c.RegainSignatures(ctx, 9, "", 101)
	assert.Error(t, err)

	banks, err := c.CurrentVirtualBanks(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, 2, banks["0xb"])
	size, err := c.VirtualBankSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	require.NoError(t, c.TxConfirmed(ctx, &def.ConfirmedTx{TxType: def.TxTypeWithdraw, NerveTxHash: "n1",
		Signers: []string{"0xa"}}))
	require.Len(t, svc.reports, 1)
	assert.Equal(t, "n1", svc.reports[0].NerveTxHash)
}

package resend

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/kernel/heterogeneous/mock"
	"github.com/xuperchain/xdock/kernel/heterogeneous/waiting"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	errs  []error
	calls []string
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, req *def.Request) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, req.Signatures)
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return "0xforeign", nil
}

func sig(b byte) string {
	return strings.Repeat(string("0123456789abcdef"[b%16]), def.SignatureLength*2)
}

func setup(t *testing.T, limit, maxSigners int, errs ...error) (*Coordinator, *fakeDispatcher, *mock.Converter, *waiting.Store) {
	db, err := mock.NewMemDB()
	require.NoError(t, err)
	t.Cleanup(db.Close)
	store, err := waiting.NewStore(101, db)
	require.NoError(t, err)
	disp := &fakeDispatcher{errs: errs}
	conv := mock.NewConverter(map[string]int{"0xa": 1})
	c, err := NewCoordinator(&Config{ChainId: 101, NerveChainId: 9, Limit: limit, MaxSigners: maxSigners},
		disp, conv, store)
	require.NoError(t, err)
	return c, disp, conv, store
}

func entry(hash string) *waiting.Entry {
	req := &def.Request{
		Type:        def.TxTypeWithdraw,
		NerveTxHash: hash,
		ToAddress:   "0xto",
		Value:       big.NewInt(1),
		Signatures:  sig(1),
	}
	return waiting.NewEntry(req, 2, map[string]int{"0xa": 1, "0xb": 2}, time.Second, time.Unix(1000, 0))
}

func TestResendBounded(t *testing.T) {
	const limit = 3
	c, disp, _, _ := setup(t, limit, 15)
	e := entry("0x01")

	for i := 0; i < limit; i++ {
		hash, err := c.Resend(context.Background(), e)
		require.NoError(t, err)
		assert.Equal(t, "0xforeign", hash)
	}
	assert.Equal(t, limit, c.Count("0x01"))

	hash, err := c.Resend(context.Background(), e)
	assert.Empty(t, hash)
	assert.True(t, errors.Is(err, def.ErrResendLimitExceeded))
	assert.Len(t, disp.calls, limit, "no dispatch after limit")

	c.Clear("0x01")
	assert.Equal(t, 0, c.Count("0x01"))
	_, err = c.Resend(context.Background(), e)
	assert.NoError(t, err)
}

func TestResendRegainSignatures(t *testing.T) {
	c, disp, conv, store := setup(t, 5, 2, def.ErrInsufficientSignatures.More("2 < 3"))
	conv.Signatures = []string{"0x" + sig(2), sig(3), sig(4)}
	now := time.Unix(5000, 0)
	c.now = func() time.Time { return now }

	e := entry("0x02")
	hash, err := c.Resend(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, "0xforeign", hash)
	assert.Equal(t, 1, conv.RegainCalls)

	// 截断到MaxSigners并拼接
	require.Len(t, disp.calls, 2)
	assert.Equal(t, sig(2)+sig(3), disp.calls[1])

	stored, err := store.Get("0x02")
	require.NoError(t, err)
	assert.Equal(t, sig(2)+sig(3), stored.Request.Signatures)
	assert.True(t, stored.WaitingEndTime.Equal(now.Add(time.Second)))
	_, regaining := c.regaining.Get("0x02")
	assert.False(t, regaining)
	// one resend attempt, regain retry is not counted separately
	assert.Equal(t, 1, c.Count("0x02"))
}

func TestResendSecondInsufficientSurfaced(t *testing.T) {
	c, disp, conv, _ := setup(t, 5, 15,
		def.ErrInsufficientSignatures, def.ErrInsufficientSignatures, nil)
	conv.Signatures = []string{sig(5)}

	_, err := c.Resend(context.Background(), entry("0x03"))
	assert.True(t, errors.Is(err, def.ErrInsufficientSignatures))
	assert.Len(t, disp.calls, 2, "retry exactly once")
	assert.Equal(t, 1, conv.RegainCalls)
}

func TestResendOtherFailureUnchanged(t *testing.T) {
	c, disp, conv, _ := setup(t, 5, 15, def.ErrContractCallReverted.More("paused"))
	_, err := c.Resend(context.Background(), entry("0x04"))
	assert.True(t, errors.Is(err, def.ErrContractCallReverted))
	assert.Len(t, disp.calls, 1)
	assert.Equal(t, 0, conv.RegainCalls)
}

func TestResendRegainMalformed(t *testing.T) {
	c, disp, conv, _ := setup(t, 5, 15, def.ErrInsufficientSignatures)
	conv.Signatures = []string{"abcd"}
	_, err := c.Resend(context.Background(), entry("0x05"))
	assert.True(t, errors.Is(err, def.ErrValidationFailed))
	assert.Len(t, disp.calls, 1)
}

func TestConcatSignatures(t *testing.T) {
	_, err := ConcatSignatures(nil)
	assert.True(t, errors.Is(err, def.ErrInsufficientSignatures))
	out, err := ConcatSignatures([]string{"0X" + strings.ToUpper(sig(10))})
	require.NoError(t, err)
	assert.Equal(t, sig(10), out)
}

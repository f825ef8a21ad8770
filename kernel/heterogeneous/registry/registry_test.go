package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/kernel/heterogeneous/mock"
)

func TestCompleted(t *testing.T) {
	db, err := mock.NewMemDB()
	require.NoError(t, err)
	defer db.Close()

	c, err := NewCompleted(db)
	require.NoError(t, err)
	assert.False(t, c.Contains("0xaa"))
	require.NoError(t, c.Add("0xaa", 10))
	assert.True(t, c.Contains("0xaa"))

	// 重新打开后从存储读出
	c2, err := NewCompleted(db)
	require.NoError(t, err)
	assert.True(t, c2.Contains("0xaa"))

	require.NoError(t, c2.Remove("0xaa"))
	assert.False(t, c2.Contains("0xaa"))
}

func TestMultiSigHistory(t *testing.T) {
	db, err := mock.NewMemDB()
	require.NoError(t, err)
	defer db.Close()

	h, err := NewMultiSigHistory(db, "0xOld")
	require.NoError(t, err)
	assert.Equal(t, "0xOld", h.Current())
	require.NoError(t, h.Append("0xold"))
	require.NoError(t, h.Append("0xNew"))
	assert.Equal(t, "0xNew", h.Current())
	assert.True(t, h.Known("0xOLD"))

	reloaded, err := NewMultiSigHistory(db, "0xIgnored")
	require.NoError(t, err)
	assert.Equal(t, []string{"0xOld", "0xNew"}, reloaded.List())
}

func TestAccounts(t *testing.T) {
	db, err := mock.NewMemDB()
	require.NoError(t, err)
	defer db.Close()

	a := NewAccounts(db)
	_, err = a.Get("0xAB")
	assert.True(t, errors.Is(err, def.ErrAccountNotFound))

	require.NoError(t, a.Save(&def.Account{Address: "0xAB", EncryptedKey: []byte("{}")}))
	acc, err := a.Get("0xab")
	require.NoError(t, err)
	assert.Equal(t, "0xAB", acc.Address)
	list, err := a.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

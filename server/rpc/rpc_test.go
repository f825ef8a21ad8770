package rpc

import (
	"context"
	"errors"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xdock/kernel/heterogeneous/config"
	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/kernel/heterogeneous/docking"
	"github.com/xuperchain/xdock/kernel/heterogeneous/mock"
	sconf "github.com/xuperchain/xdock/server/config"
)

func newTestServer(t *testing.T, enableExport bool) (*rpc.Client, *mock.Capability) {
	db, err := mock.NewMemDB()
	require.NoError(t, err)
	t.Cleanup(db.Close)

	capa := mock.NewCapability(101, "0xmultisig")
	conf := config.GetDefChainConf()
	conf.ChainId = 101
	conf.Symbol = "ETH"
	conf.MultiSigAddress = "0xmultisig"
	conv := mock.NewConverter(map[string]int{"0xaaaa0001": 1})
	dock, err := docking.NewDocking(&docking.Deps{Capability: capa, Converter: conv, Conf: conf,
		NerveChainId: 9, DB: db})
	require.NoError(t, err)

	scfg := sconf.GetDefServConf()
	scfg.EnableExport = enableExport
	mg, err := NewRpcServMG(scfg, []Docking{dock})
	require.NoError(t, err)

	srv := httptest.NewServer(mg.Handler())
	t.Cleanup(srv.Close)
	client, err := rpc.DialHTTP(srv.URL)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client, capa
}

func errorCode(t *testing.T, err error) int {
	var rpcErr rpc.Error
	require.True(t, errors.As(err, &rpcErr), "not a rpc error: %v", err)
	return rpcErr.ErrorCode()
}

func TestCheckAlive(t *testing.T) {
	client, _ := newTestServer(t, false)
	var status string
	require.NoError(t, client.Call(&status, "xdock_checkAlive"))
	assert.Equal(t, "running", status)

	var chains []int
	require.NoError(t, client.Call(&chains, "xdock_chains"))
	assert.Equal(t, []int{101}, chains)
}

func TestDockingAPI(t *testing.T) {
	client, capa := newTestServer(t, false)
	ctx := context.Background()
	ns := DockNamespace(101)

	var acc AccountInfo
	require.NoError(t, client.CallContext(ctx, &acc, ns+"_importAccount", "aaaa0001ff", "pwd"))
	assert.Equal(t, "0xaaaa0001", acc.Address)

	var info ChainInfo
	require.NoError(t, client.CallContext(ctx, &info, ns+"_chainInfo"))
	assert.Equal(t, "ETH", info.Symbol)
	assert.Equal(t, "0xaaaa0001", info.Account)
	assert.Equal(t, "0xmultisig", info.MultiSigAddress)

	sigs := strings.Repeat("1b", def.SignatureLength)
	var txHash string
	err := client.CallContext(ctx, &txHash, ns+"_createOrSignWithdraw", "0a", "bad", big.NewInt(1),
		def.MainAssetId, sigs)
	assert.Equal(t, def.ErrInvalidAddress.Code, errorCode(t, err))

	require.NoError(t, client.CallContext(ctx, &txHash, ns+"_createOrSignWithdraw", "0a", "0xreceiver",
		big.NewInt(100), def.MainAssetId, sigs))
	assert.NotEmpty(t, txHash)
	require.Equal(t, 1, capa.SubmittedCount())
	assert.Equal(t, int64(100), capa.Submitted[0].Value.Int64())

	var ok bool
	require.NoError(t, client.CallContext(ctx, &ok, ns+"_validateManagerChange",
		[]string{"0xcccc"}, []string{}))
	assert.True(t, ok)

	var bal *big.Int
	require.NoError(t, client.CallContext(ctx, &bal, ns+"_balance", "0xaaaa0001", def.MainAssetId))
	assert.Equal(t, int64(0), bal.Int64())

	err = client.CallContext(ctx, nil, ns+"_txConfirmedCompleted", "0xunknown")
	assert.Equal(t, def.ErrRecordNotFound.Code, errorCode(t, err))

	var key string
	err = client.CallContext(ctx, &key, ns+"_exportAccount", "0xaaaa0001", "pwd")
	assert.Equal(t, def.ErrParameter.Code, errorCode(t, err))

	err = client.CallContext(ctx, &txHash, "dock999_createOrSignUpgrade", "0b", "0xnew", sigs)
	assert.Error(t, err)
}

func TestExportEnabled(t *testing.T) {
	client, _ := newTestServer(t, true)
	ns := DockNamespace(101)
	var acc AccountInfo
	require.NoError(t, client.Call(&acc, ns+"_importAccount", "aaaa0001ff", "pwd"))

	var key string
	require.NoError(t, client.Call(&key, ns+"_exportAccount", "0xaaaa0001", "pwd"))
	assert.Equal(t, "aaaa0001ff", key)

	err := client.Call(&key, ns+"_exportAccount", "0xaaaa0001", "bad")
	assert.Equal(t, def.ErrAccountLocked.Code, errorCode(t, err))
}

func TestToApiError(t *testing.T) {
	assert.Nil(t, toApiError(nil))
	err := toApiError(def.ErrInsufficientSignatures.More("2 of 4"))
	assert.Equal(t, def.ErrInsufficientSignatures.Code, err.(*apiError).ErrorCode())
	err = toApiError(errors.New("boom"))
	assert.Equal(t, def.ErrUnknown.Code, err.(*apiError).ErrorCode())
}

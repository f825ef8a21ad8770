package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dockingYaml = `
nerveChainId: 5
converterUrl: http://10.0.0.1:18003
account: "0xabc"
storage:
  engine: badger
  cacheSize: 256MB
chains:
  - chainId: 101
    symbol: ETH
    rpcUrl: http://127.0.0.1:8545
    multiSigAddress: "0x7D759A3330ceC9B766Aa4c889715535eeD3c0484"
    confirmations: 12
    waitingStagger: 30s
    checkOrder: false
    assets:
      - assetId: 1
        symbol: ETH
        decimals: 18
      - assetId: 2
        symbol: USDX
        decimals: 6
        contract: "0x1c78958403625aeA4b0D5a0B527A27969703a270"
        bound: true
    options:
      gasPriceBump: 15
  - chainId: 102
    symbol: BNB
    disable: true
    multiSigAddress: "0x3758AA66caD9F2606F1F501c9CB31b94b713A6d5"
`

func TestLoadDockingConf(t *testing.T) {
	file := filepath.Join(t.TempDir(), "docking.yaml")
	require.NoError(t, os.WriteFile(file, []byte(dockingYaml), 0644))
	t.Setenv(EnvKeyPassword, "secret")

	cfg, err := LoadDockingConf(file)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.NerveChainId)
	assert.Equal(t, "secret", cfg.KeyPassword)
	assert.Equal(t, "badger", cfg.Storage.Engine)
	// 未配置的字段保留默认值
	assert.Equal(t, 1024, cfg.Storage.FileHandles)
	mb, err := cfg.Storage.CacheSizeMB()
	require.NoError(t, err)
	assert.Equal(t, 256, mb)

	require.Len(t, cfg.Chains, 2)
	eth := cfg.Chains[0]
	assert.Equal(t, uint64(12), eth.Confirmations)
	assert.Equal(t, uint64(30), eth.RollbackWindow)
	assert.Equal(t, 30*time.Second, eth.WaitingStagger)
	assert.False(t, eth.OrderChecked())
	assert.Equal(t, 5, eth.ResendLimit)
	require.Len(t, eth.Assets, 2)
	assert.True(t, eth.Assets[1].Bound)
	assert.Equal(t, uint8(6), eth.Assets[1].Decimals)
	// 列表项内的key保持原样
	assert.EqualValues(t, 15, eth.Options["gasPriceBump"])

	assert.True(t, cfg.Chains[1].OrderChecked())
	enabled := cfg.EnabledChains()
	require.Len(t, enabled, 1)
	assert.Equal(t, 101, enabled[0].ChainId)
}

func TestValidate(t *testing.T) {
	cfg := GetDefDockingConf()
	require.NoError(t, cfg.Validate())

	cfg.Storage.CacheSize = "lots"
	assert.Error(t, cfg.Validate())

	cfg = GetDefDockingConf()
	cfg.Chains = []ChainConf{{ChainId: 101, MultiSigAddress: "0x1"}, {ChainId: 101, MultiSigAddress: "0x2"}}
	assert.Error(t, cfg.Validate())

	_, err := LoadDockingConf(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

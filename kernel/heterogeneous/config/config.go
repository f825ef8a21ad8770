package config

import (
	"fmt"
	"os"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/viper"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/lib/storage/kvdb"
	"github.com/xuperchain/xdock/lib/utils"
)

const (
	// 签名账户密码环境变量，优先于配置文件
	EnvKeyPassword = "XDOCK_KEY_PASSWORD"
)

// DockingConf 异构链对接配置
type DockingConf struct {
	// 本链ID
	NerveChainId int `yaml:"nerveChainId,omitempty"`
	// 本链converter模块RPC地址
	ConverterUrl string `yaml:"converterUrl,omitempty"`
	// 签名账户地址和密码，启动时解锁
	Account     string      `yaml:"account,omitempty"`
	KeyPassword string      `yaml:"keyPassword,omitempty"`
	Storage     StorageConf `yaml:"storage,omitempty"`
	Chains      []ChainConf `yaml:"chains,omitempty"`
}

type StorageConf struct {
	// leveldb or badger
	Engine string `yaml:"engine,omitempty"`
	// 相对于数据目录
	Path string `yaml:"path,omitempty"`
	// eg. 128MB
	CacheSize   string `yaml:"cacheSize,omitempty"`
	FileHandles int    `yaml:"fileHandles,omitempty"`
}

// ChainConf 单条异构链配置
type ChainConf struct {
	ChainId         int    `yaml:"chainId,omitempty"`
	Symbol          string `yaml:"symbol,omitempty"`
	Disable         bool   `yaml:"disable,omitempty"`
	RpcUrl          string `yaml:"rpcUrl,omitempty"`
	MultiSigAddress string `yaml:"multiSigAddress,omitempty"`
	// 充值确认块数
	Confirmations uint64 `yaml:"confirmations,omitempty"`
	// 已确认记录保留块数，用于本链回滚
	RollbackWindow uint64 `yaml:"rollbackWindow,omitempty"`
	ResendLimit    int    `yaml:"resendLimit,omitempty"`
	// 相邻排序节点提交时间间隔
	WaitingStagger time.Duration `yaml:"waitingStagger,omitempty"`
	// 未配置时默认开启
	CheckOrder     *bool         `yaml:"checkOrder,omitempty"`
	MaxSigners     int           `yaml:"maxSigners,omitempty"`
	PollInterval   time.Duration `yaml:"pollInterval,omitempty"`
	ResendInterval time.Duration `yaml:"resendInterval,omitempty"`
	// 0表示从当前高度开始扫描
	StartHeight uint64      `yaml:"startHeight,omitempty"`
	GasLimit    uint64      `yaml:"gasLimit,omitempty"`
	Assets      []def.Asset `yaml:"assets,omitempty"`
	// 链相关的扩展参数
	Options map[string]interface{} `yaml:"options,omitempty"`
}

func LoadDockingConf(cfgFile string) (*DockingConf, error) {
	cfg := GetDefDockingConf()
	err := cfg.loadConf(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load docking config failed.err:%s", err)
	}
	if pwd := os.Getenv(EnvKeyPassword); pwd != "" {
		cfg.KeyPassword = pwd
	}
	for i := range cfg.Chains {
		cfg.Chains[i].fillDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func GetDefDockingConf() *DockingConf {
	return &DockingConf{
		NerveChainId: 9,
		ConverterUrl: "http://127.0.0.1:18003",
		Storage: StorageConf{
			Engine:      kvdb.KVEngineTypeLDB,
			Path:        "docking",
			CacheSize:   "128MB",
			FileHandles: 1024,
		},
	}
}

// GetDefChainConf returns the defaults applied to every configured chain
func GetDefChainConf() *ChainConf {
	checkOrder := true
	return &ChainConf{
		Confirmations:  30,
		RollbackWindow: 30,
		ResendLimit:    5,
		WaitingStagger: 20 * time.Second,
		CheckOrder:     &checkOrder,
		MaxSigners:     15,
		PollInterval:   5 * time.Second,
		ResendInterval: 10 * time.Second,
		GasLimit:       1000000,
	}
}

func (c *ChainConf) fillDefault() {
	dft := GetDefChainConf()
	if c.Confirmations == 0 {
		c.Confirmations = dft.Confirmations
	}
	if c.RollbackWindow == 0 {
		c.RollbackWindow = dft.RollbackWindow
	}
	if c.ResendLimit == 0 {
		c.ResendLimit = dft.ResendLimit
	}
	if c.WaitingStagger == 0 {
		c.WaitingStagger = dft.WaitingStagger
	}
	if c.CheckOrder == nil {
		c.CheckOrder = dft.CheckOrder
	}
	if c.MaxSigners == 0 {
		c.MaxSigners = dft.MaxSigners
	}
	if c.PollInterval == 0 {
		c.PollInterval = dft.PollInterval
	}
	if c.ResendInterval == 0 {
		c.ResendInterval = dft.ResendInterval
	}
	if c.GasLimit == 0 {
		c.GasLimit = dft.GasLimit
	}
}

// OrderChecked reports whether leader order is enforced
func (c *ChainConf) OrderChecked() bool {
	return c.CheckOrder == nil || *c.CheckOrder
}

// CacheSizeMB parses the human readable cache size
func (s *StorageConf) CacheSizeMB() (int, error) {
	if s.CacheSize == "" {
		return 0, nil
	}
	size, err := units.RAMInBytes(s.CacheSize)
	if err != nil {
		return 0, fmt.Errorf("parse cache size %s failed.err:%v", s.CacheSize, err)
	}
	return int(size / units.MiB), nil
}

// KVParameter builds the kv engine parameter under dataDir
func (s *StorageConf) KVParameter(dbPath string) (*kvdb.KVParameter, error) {
	cache, err := s.CacheSizeMB()
	if err != nil {
		return nil, err
	}
	return &kvdb.KVParameter{
		DBPath:                dbPath,
		KVEngineType:          s.Engine,
		StorageType:           kvdb.StorageTypeSingle,
		MemCacheSize:          cache,
		FileHandlersCacheSize: s.FileHandles,
	}, nil
}

func (t *DockingConf) Validate() error {
	if t.Storage.Engine != kvdb.KVEngineTypeLDB && t.Storage.Engine != kvdb.KVEngineTypeBadger {
		return fmt.Errorf("unsupported storage engine %s", t.Storage.Engine)
	}
	if _, err := t.Storage.CacheSizeMB(); err != nil {
		return err
	}
	seen := make(map[int]bool, len(t.Chains))
	for _, c := range t.Chains {
		if c.ChainId <= 0 {
			return fmt.Errorf("invalid chain id %d", c.ChainId)
		}
		if seen[c.ChainId] {
			return fmt.Errorf("duplicate chain id %d", c.ChainId)
		}
		seen[c.ChainId] = true
		if c.MultiSigAddress == "" {
			return fmt.Errorf("chain %d multiSigAddress not set", c.ChainId)
		}
	}
	return nil
}

// EnabledChains returns the chains to start
func (t *DockingConf) EnabledChains() []ChainConf {
	var chains []ChainConf
	for _, c := range t.Chains {
		if !c.Disable {
			chains = append(chains, c)
		}
	}
	return chains
}

func (t *DockingConf) loadConf(cfgFile string) error {
	if cfgFile == "" || !utils.FileIsExist(cfgFile) {
		return fmt.Errorf("config file set error.path:%s", cfgFile)
	}

	viperObj := viper.New()
	viperObj.SetConfigFile(cfgFile)
	err := viperObj.ReadInConfig()
	if err != nil {
		return fmt.Errorf("read config failed.path:%s,err:%v", cfgFile, err)
	}

	if err = viperObj.Unmarshal(t); err != nil {
		return fmt.Errorf("unmatshal config failed.path:%s,err:%v", cfgFile, err)
	}

	return nil
}

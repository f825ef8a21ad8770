package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/xuperchain/xdock/lib/utils"
)

// ServConf docking rpc服务配置
type ServConf struct {
	// 默认只监听本机，由本链节点访问
	RpcHost string `yaml:"rpcHost,omitempty"`
	RpcPort int    `yaml:"rpcPort,omitempty"`
	// 单个请求体最大字节数
	MaxMsgSize   int64         `yaml:"maxMsgSize,omitempty"`
	ReadTimeout  time.Duration `yaml:"readTimeout,omitempty"`
	WriteTimeout time.Duration `yaml:"writeTimeout,omitempty"`
	IdleTimeout  time.Duration `yaml:"idleTimeout,omitempty"`
	// 是否开放账户导出接口
	EnableExport bool `yaml:"enableExport,omitempty"`
}

func LoadServConf(cfgFile string) (*ServConf, error) {
	cfg := GetDefServConf()
	err := cfg.loadConf(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load server config failed.err:%s", err)
	}
	if cfg.RpcPort <= 0 || cfg.RpcPort > 65535 {
		return nil, fmt.Errorf("invalid rpc port %d", cfg.RpcPort)
	}

	return cfg, nil
}

func GetDefServConf() *ServConf {
	return &ServConf{
		RpcHost:      "127.0.0.1",
		RpcPort:      18005,
		MaxMsgSize:   5 * 1024 * 1024,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		EnableExport: false,
	}
}

// Addr returns the listen address
func (t *ServConf) Addr() string {
	return net.JoinHostPort(t.RpcHost, strconv.Itoa(t.RpcPort))
}

func (t *ServConf) loadConf(cfgFile string) error {
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

package xconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuperchain/xdock/lib/utils"

	"github.com/spf13/viper"
)

const (
	// 运行根目录环境变量
	XEnvVarRootPath = "XDOCK_ROOT_PATH"
)

type EnvConf struct {
	// Program running root directory
	RootPath string `yaml:"rootPath,omitempty"`
	// config file directory
	ConfDir string `yaml:"confDir,omitempty"`
	// data file directory
	DataDir string `yaml:"dataDir,omitempty"`
	// log file directory
	LogDir string `yaml:"logDir,omitempty"`
	// keystore directory
	KeyDir string `yaml:"keyDir,omitempty"`
	// log config file name
	LogConf string `yaml:"logConf,omitempty"`
	// docking config file name
	DockConf string `yaml:"dockConf,omitempty"`
	// rpc server config file name
	ServConf string `yaml:"servConf,omitempty"`
	// metric switch
	MetricSwitch bool `yaml:"metricSwitch,omitempty"`
	// prometheus listen address
	MetricAddr string `yaml:"metricAddr,omitempty"`
}

func LoadEnvConf(cfgFile string) (*EnvConf, error) {
	cfg := GetDefEnvConf()
	err := cfg.loadConf(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load env config failed.err:%s", err)
	}

	// 修改根目录。优先级：1:XDOCK_ROOT_PATH 2:配置文件设置 3:当前bin文件上级目录
	if rt := os.Getenv(XEnvVarRootPath); rt != "" && utils.FileIsExist(rt) {
		cfg.RootPath = rt
	}

	return cfg, nil
}

func GetDefEnvConf() *EnvConf {
	return &EnvConf{
		// 默认设置为当前执行目录的上级目录
		RootPath:     filepath.Dir(utils.GetCurExecDir()),
		ConfDir:      "conf",
		DataDir:      "data",
		LogDir:       "logs",
		KeyDir:       "keys",
		LogConf:      "log.yaml",
		DockConf:     "docking.yaml",
		ServConf:     "server.yaml",
		MetricSwitch: false,
		MetricAddr:   ":9090",
	}
}

func (t *EnvConf) GenDirAbsPath(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(t.RootPath, dir)
}

func (t *EnvConf) GenDataAbsPath(dir string) string {
	return filepath.Join(t.GenDirAbsPath(t.DataDir), dir)
}

func (t *EnvConf) GenConfFilePath(fName string) string {
	return filepath.Join(t.GenDirAbsPath(t.ConfDir), fName)
}

func (t *EnvConf) loadConf(cfgFile string) error {
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

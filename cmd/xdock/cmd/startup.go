package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xuperchain/xdock/bcs/heterogeneous/converter"
	"github.com/xuperchain/xdock/bcs/heterogeneous/evm"
	"github.com/xuperchain/xdock/kernel/common/xconfig"
	"github.com/xuperchain/xdock/kernel/heterogeneous/config"
	"github.com/xuperchain/xdock/kernel/heterogeneous/docking"
	"github.com/xuperchain/xdock/lib/logs"
	"github.com/xuperchain/xdock/lib/metrics"
	"github.com/xuperchain/xdock/lib/storage/kvdb"
	sconf "github.com/xuperchain/xdock/server/config"
	"github.com/xuperchain/xdock/server/rpc"

	// import要使用的存储引擎驱动
	_ "github.com/xuperchain/xdock/lib/storage/kvdb/badger"
	_ "github.com/xuperchain/xdock/lib/storage/kvdb/leveldb"
)

type StartupCmd struct {
	BaseCmd
}

func GetStartupCmd() *StartupCmd {
	startupCmdIns := new(StartupCmd)

	// 定义命令行参数变量
	var envCfgPath string

	startupCmdIns.cmd = &cobra.Command{
		Use:           "startup",
		Short:         "Start up the docking node.",
		Example:       "xdock startup --conf /home/rd/xdock/conf/env.yaml",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return StartupXdock(envCfgPath)
		},
	}

	// 设置命令行参数并绑定变量
	startupCmdIns.cmd.Flags().StringVarP(&envCfgPath, "conf", "c", "",
		"environment config file path")

	return startupCmdIns
}

type appConf struct {
	env  *xconfig.EnvConf
	dock *config.DockingConf
	serv *sconf.ServConf
}

// StartupXdock 启动节点，阻塞直到收到退出信号或任一服务异常退出
func StartupXdock(envCfgPath string) error {
	// 加载基础配置
	conf, err := loadConf(envCfgPath)
	if err != nil {
		return err
	}

	// 初始化日志
	err = logs.InitLog(conf.env.GenConfFilePath(conf.env.LogConf), conf.env.GenDirAbsPath(conf.env.LogDir))
	if err != nil {
		return err
	}
	log, err := logs.NewLogger("", "startup")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 实例化存储
	param, err := conf.dock.Storage.KVParameter(conf.env.GenDataAbsPath(conf.dock.Storage.Path))
	if err != nil {
		return err
	}
	db, err := kvdb.CreateKVInstance(param)
	if err != nil {
		return err
	}
	defer db.Close()

	// 本链converter
	conv, err := converter.Dial(ctx, conf.dock.ConverterUrl)
	if err != nil {
		return fmt.Errorf("dial converter %s failed.err:%v", conf.dock.ConverterUrl, err)
	}
	defer conv.Close()

	docks, err := createDockings(ctx, conf.dock, conv, db, log)
	if err != nil {
		return err
	}
	rpcDocks := make([]rpc.Docking, 0, len(docks))
	for _, d := range docks {
		rpcDocks = append(rpcDocks, d)
	}

	// 实例化rpc server
	rpcServ, err := rpc.NewRpcServMG(conf.serv, rpcDocks)
	if err != nil {
		return err
	}

	var metricServ *http.Server
	if conf.env.MetricSwitch {
		metrics.RegisterMetrics()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricServ = &http.Server{Addr: conf.env.MetricAddr, Handler: mux}
	}

	// 启动服务和各链对接实例
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range docks {
		d := d
		g.Go(func() error {
			return d.Run(gctx)
		})
	}
	g.Go(func() error {
		return rpcServ.Run()
	})
	if metricServ != nil {
		g.Go(func() error {
			err := metricServ.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	// 阻塞等待进程退出指令
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigChan)
	g.Go(func() error {
		select {
		case sig := <-sigChan:
			log.Info("received exit signal", "signal", sig.String())
		case <-gctx.Done():
		}
		// 退出调用幂等
		cancel()
		rpcServ.Exit()
		if metricServ != nil {
			metricServ.Close()
		}
		return nil
	})

	// 等待异步任务全部退出
	err = g.Wait()
	log.Info("xdock exit", "err", err)
	return err
}

// createDockings builds one docking per enabled chain on the shared db
func createDockings(ctx context.Context, dockConf *config.DockingConf, conv *converter.Client,
	db kvdb.Database, log logs.Logger) ([]*docking.Docking, error) {
	chains := dockConf.EnabledChains()
	docks := make([]*docking.Docking, 0, len(chains))
	for i := range chains {
		chain := chains[i]
		backend, err := evm.Dial(ctx, chain.RpcUrl)
		if err != nil {
			return nil, fmt.Errorf("dial chain %d rpc %s failed.err:%v", chain.ChainId, chain.RpcUrl, err)
		}
		capability, err := evm.NewClient(&chain, backend)
		if err != nil {
			return nil, err
		}
		d, err := docking.NewDocking(&docking.Deps{
			Capability:   capability,
			Converter:    conv,
			Conf:         &chain,
			NerveChainId: dockConf.NerveChainId,
			DB:           db,
		})
		if err != nil {
			return nil, err
		}
		if dockConf.Account != "" {
			if err := d.UnlockAccount(dockConf.Account, dockConf.KeyPassword); err != nil {
				// 未解锁时只提供查询，待通过rpc导入账户
				log.Warn("unlock signer account failed", "chain", chain.ChainId,
					"account", dockConf.Account, "err", err)
			}
		}
		log.Info("docking created", "chain", chain.ChainId, "symbol", chain.Symbol,
			"multiSig", capability.MultiSigAddress())
		docks = append(docks, d)
	}
	return docks, nil
}

func loadConf(envCfgPath string) (*appConf, error) {
	// 加载环境配置
	envConf, err := xconfig.LoadEnvConf(envCfgPath)
	if err != nil {
		return nil, err
	}

	// 加载对接配置
	dockConf, err := config.LoadDockingConf(envConf.GenConfFilePath(envConf.DockConf))
	if err != nil {
		return nil, err
	}

	// 加载服务配置
	servConf, err := sconf.LoadServConf(envConf.GenConfFilePath(envConf.ServConf))
	if err != nil {
		return nil, err
	}

	return &appConf{env: envConf, dock: dockConf, serv: servConf}, nil
}

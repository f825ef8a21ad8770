package rpc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/xuperchain/xdock/lib/logs"
	sconf "github.com/xuperchain/xdock/server/config"
)

const (
	SubModName = "rpc_server"

	shutdownTimeout = 5 * time.Second
)

// rpc server启停控制管理
type RpcServMG struct {
	scfg     *sconf.ServConf
	log      logs.Logger
	rpcServ  *RpcServ
	servHD   *rpc.Server
	httpServ *http.Server

	mu       sync.Mutex
	listener net.Listener
}

func NewRpcServMG(scfg *sconf.ServConf, docks []Docking) (*RpcServMG, error) {
	if scfg == nil {
		return nil, errors.New("rpc server config is nil")
	}
	log, err := logs.NewLogger("", SubModName)
	if err != nil {
		return nil, err
	}

	t := &RpcServMG{
		scfg:    scfg,
		log:     log,
		rpcServ: NewRpcServ(log),
		servHD:  rpc.NewServer(),
	}

	chains := make([]int, 0, len(docks))
	for _, dock := range docks {
		ns := DockNamespace(dock.ChainId())
		if err := t.servHD.RegisterName(ns, NewDockingAPI(t.rpcServ, dock, scfg.EnableExport)); err != nil {
			return nil, err
		}
		chains = append(chains, dock.ChainId())
		log.Info("docking api registered", "namespace", ns, "symbol", dock.Symbol())
	}
	if err := t.servHD.RegisterName(ServiceNamespace, &ServiceAPI{serv: t.rpcServ, chains: chains}); err != nil {
		return nil, err
	}

	t.httpServ = &http.Server{
		Handler:      t.Handler(),
		ReadTimeout:  scfg.ReadTimeout,
		WriteTimeout: scfg.WriteTimeout,
		IdleTimeout:  scfg.IdleTimeout,
	}
	return t, nil
}

// Handler serves json-rpc over http with the configured body limit
func (t *RpcServMG) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.scfg.MaxMsgSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, t.scfg.MaxMsgSize)
		}
		t.servHD.ServeHTTP(w, r)
	})
}

// Run 启动rpc服务，阻塞直到退出
func (t *RpcServMG) Run() error {
	lis, err := net.Listen("tcp", t.scfg.Addr())
	if err != nil {
		t.log.Error("rpc server listen failed", "addr", t.scfg.Addr(), "err", err)
		return err
	}
	t.mu.Lock()
	t.listener = lis
	t.mu.Unlock()

	t.log.Info("rpc server started", "addr", lis.Addr().String())
	err = t.httpServ.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	t.log.Error("rpc server abnormal exit", "err", err)
	return err
}

// Addr returns the bound address, empty before Run
func (t *RpcServMG) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

// Exit 退出rpc服务，释放相关资源。调用幂等
func (t *RpcServMG) Exit() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := t.httpServ.Shutdown(ctx); err != nil {
		t.log.Warn("rpc server shutdown failed", "err", err)
	}
	t.servHD.Stop()
}

package rpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"strconv"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/lib/logs"
	"github.com/xuperchain/xdock/lib/metrics"
	"github.com/xuperchain/xdock/lib/utils"
	sctx "github.com/xuperchain/xdock/server/context"
)

// apiError carries the def error code to the json-rpc response
type apiError struct {
	code int
	msg  string
}

func (e *apiError) Error() string  { return e.msg }
func (e *apiError) ErrorCode() int { return e.code }

var _ rpc.Error = (*apiError)(nil)

func toApiError(err error) error {
	if err == nil {
		return nil
	}
	return &apiError{code: def.CastError(err).Code, msg: err.Error()}
}

type RpcServ struct {
	log logs.Logger
}

func NewRpcServ(log logs.Logger) *RpcServ {
	return &RpcServ{
		log: log,
	}
}

// handle wraps one api call with access log, panic recover, metrics and
// error code conversion
func (t *RpcServ) handle(gctx context.Context, chain, method string, others []interface{},
	fn func(rctx sctx.ReqCtx) error) error {
	rctx, err := t.access(gctx, method, others...)
	if err != nil {
		t.log.Error("request access proc failed", "method", method, "err", err)
		return toApiError(def.ErrInternal.More("%v", err))
	}

	err = t.safeCall(rctx, method, fn)
	t.ending(rctx, chain, method, err)
	return toApiError(err)
}

func (t *RpcServ) safeCall(rctx sctx.ReqCtx, method string, fn func(rctx sctx.ReqCtx) error) (err error) {
	defer func() {
		if e := recover(); e != nil {
			rctx.GetLog().Error("Rpc server happen panic.", "error", e, "rpc_method", method,
				"stack", string(debug.Stack()))
			err = def.ErrInternal.More("panic in %s", method)
		}
	}()
	return fn(rctx)
}

// 请求处理前处理
// others必须是KV格式，K为string
func (t *RpcServ) access(gctx context.Context, method string, others ...interface{}) (sctx.ReqCtx, error) {
	clientIp := t.getClientIP(gctx)

	// 创建请求上下文
	rctx, err := sctx.NewReqCtx(utils.GenLogId(), clientIp)
	if err != nil {
		return nil, fmt.Errorf("create request context failed.err:%v", err)
	}

	// 输出access log
	fields := append([]interface{}{"method", method, "client_ip", clientIp}, others...)
	rctx.GetLog().Trace("received request", fields...)
	return rctx, nil
}

// 请求完成后处理
func (t *RpcServ) ending(rctx sctx.ReqCtx, chain, method string, err error) {
	code := "0"
	if err != nil {
		code = strconv.Itoa(toApiError(err).(*apiError).code)
	}
	metrics.CallMethodHistogram.WithLabelValues(chain, "rpc_"+method, code).
		Observe(rctx.GetTimer().Total().Seconds())
	if err != nil {
		rctx.GetLog().Warn("request done", "method", method, "code", code, "err", err,
			"cost_time", rctx.GetTimer().Print())
		return
	}
	rctx.GetLog().Info("request done", "method", method, "cost_time", rctx.GetTimer().Print())
}

func (t *RpcServ) getClientIP(gctx context.Context) string {
	info := rpc.PeerInfoFromContext(gctx)
	if info.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(info.RemoteAddr)
	if err != nil {
		return info.RemoteAddr
	}
	return host
}

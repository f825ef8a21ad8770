package context

import (
	"fmt"

	"github.com/xuperchain/xdock/lib/logs"
	"github.com/xuperchain/xdock/lib/timer"
)

const (
	SubModName = "rpc"
)

// 请求级别上下文
type ReqCtx interface {
	GetLog() logs.Logger
	GetTimer() *timer.XTimer
	GetClientIp() string
}

type ReqCtxImpl struct {
	log      logs.Logger
	timer    *timer.XTimer
	clientIp string
}

func NewReqCtx(reqId, clientIp string) (ReqCtx, error) {
	log, err := logs.NewLogger(reqId, SubModName)
	if err != nil {
		return nil, fmt.Errorf("new request context failed because new logger failed.err:%s", err)
	}

	ctx := &ReqCtxImpl{
		log:      log,
		timer:    timer.NewXTimer(),
		clientIp: clientIp,
	}

	return ctx, nil
}

func (t *ReqCtxImpl) GetLog() logs.Logger {
	return t.log
}

func (t *ReqCtxImpl) GetTimer() *timer.XTimer {
	return t.timer
}

func (t *ReqCtxImpl) GetClientIp() string {
	return t.clientIp
}

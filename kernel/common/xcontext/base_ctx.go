// 定义公共上下文结构，明确定义上下文结构，方便代码阅读
package xcontext

import (
	"context"
	"fmt"

	"github.com/xuperchain/xdock/lib/logs"
	"github.com/xuperchain/xdock/lib/timer"
)

type XContext interface {
	context.Context
	GetLog() logs.Logger
	GetTimer() *timer.XTimer
}

// 操作级上下文，在context.Context之上携带日志和耗时统计
type BaseCtx struct {
	context.Context
	XLog  logs.Logger
	Timer *timer.XTimer
}

// NewOpCtx derives an operation context from parent. The logger carries a
// fresh log id so that one operation can be traced across components.
func NewOpCtx(parent context.Context, subMod string) (*BaseCtx, error) {
	if parent == nil {
		parent = context.Background()
	}
	xlog, err := logs.NewLogger("", subMod)
	if err != nil {
		return nil, fmt.Errorf("create operate context failed.err:%v", err)
	}
	return &BaseCtx{
		Context: parent,
		XLog:    xlog,
		Timer:   timer.NewXTimer(),
	}, nil
}

func (t *BaseCtx) GetLog() logs.Logger {
	return t.XLog
}

func (t *BaseCtx) GetTimer() *timer.XTimer {
	return t.Timer
}

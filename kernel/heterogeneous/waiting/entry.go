package waiting

import (
	"time"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
)

// Entry 等待轮值提交的协同请求，包含业务参数、签名和本节点排序
type Entry struct {
	Request          *def.Request `json:"request"`
	CurrentNodeOrder int          `json:"currentNodeOrder"`
	// 计算排序时使用的虚拟银行快照
	Bank              map[string]int `json:"bank"`
	Stagger           time.Duration  `json:"stagger"`
	WaitingEndTime    time.Time      `json:"waitingEndTime"`
	MaxWaitingEndTime time.Time      `json:"maxWaitingEndTime"`
}

// NewEntry creates an entry whose deadlines start counting at now
func NewEntry(req *def.Request, order int, bank map[string]int, stagger time.Duration, now time.Time) *Entry {
	e := &Entry{
		Request:          req,
		CurrentNodeOrder: order,
		Bank:             bank,
		Stagger:          stagger,
	}
	e.Refresh(now)
	return e
}

func (e *Entry) NerveTxHash() string {
	return e.Request.NerveTxHash
}

func (e *Entry) MemberCount() int {
	return len(e.Bank)
}

// Refresh recomputes both deadlines from now:
// waitingEndTime = now + stagger*(order-1), maxWaitingEndTime = now + stagger*(N-1)
func (e *Entry) Refresh(now time.Time) {
	order := e.CurrentNodeOrder
	if order < 1 {
		order = 1
	}
	n := e.MemberCount()
	if n < order {
		n = order
	}
	e.WaitingEndTime = now.Add(e.Stagger * time.Duration(order-1))
	e.MaxWaitingEndTime = now.Add(e.Stagger * time.Duration(n-1))
}

// Due reports whether this node's submission window has opened
func (e *Entry) Due(now time.Time) bool {
	return !now.Before(e.WaitingEndTime)
}

// Expired reports whether every member's window has opened
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.MaxWaitingEndTime)
}

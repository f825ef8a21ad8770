// Package docking is the per foreign chain entry point of the native chain
// converter. It runs the coordination protocol (leader order, waiting queue,
// resend, unconfirmed lifecycle) on top of a chain capability.
package docking

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/xuperchain/xdock/kernel/heterogeneous/config"
	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/kernel/heterogeneous/registry"
	"github.com/xuperchain/xdock/kernel/heterogeneous/resend"
	"github.com/xuperchain/xdock/kernel/heterogeneous/submitter"
	"github.com/xuperchain/xdock/kernel/heterogeneous/unconfirmed"
	"github.com/xuperchain/xdock/kernel/heterogeneous/waiting"
	"github.com/xuperchain/xdock/lib/logs"
	"github.com/xuperchain/xdock/lib/storage/kvdb"
)

const (
	CursorTablePrefix = "CS"
	cursorKey         = "height"

	// 已广播但未确认的出金交易标记有效期
	inflightExpiration = 10 * time.Minute
	// 处理中请求标记的兜底有效期，正常流程结束即删除
	handlingExpiration = time.Minute
	// 单次轮询最多扫描的区块数
	maxScanBlocks = 100
)

// Deps 构造Docking需要的依赖
type Deps struct {
	Capability   def.Capability
	Converter    def.Converter
	Conf         *config.ChainConf
	NerveChainId int
	// 所有表都在该库中按链ID隔离
	DB kvdb.Database
}

// Docking 单条异构链的对接实例
type Docking struct {
	chainId      int
	chain        string
	nerveChainId int
	conf         *config.ChainConf
	cap          def.Capability
	converter    def.Converter

	lifecycle *unconfirmed.Lifecycle
	waiting   *waiting.Store
	completed *registry.Completed
	multiSig  *registry.MultiSigHistory
	accounts  *registry.Accounts
	resend    *resend.Coordinator
	submitter *submitter.Submitter
	cursor    kvdb.Database

	// 保护"检查是否已收集，然后收集"
	collectMu sync.Mutex
	// nerveTxHash => 已广播的异构链交易hash
	inflight *cache.Cache
	// nerveTxHash => 正在被invoke或重发处理
	handling *cache.Cache

	mu   sync.RWMutex
	self string

	now func() time.Time
	log logs.Logger
}

func NewDocking(deps *Deps) (*Docking, error) {
	if deps == nil || deps.Capability == nil || deps.Converter == nil || deps.Conf == nil || deps.DB == nil {
		return nil, def.ErrParameter.More("docking deps missing")
	}
	conf := deps.Conf
	if conf.ChainId != deps.Capability.ChainId() {
		return nil, def.ErrParameter.More("chain id %d mismatch capability %d", conf.ChainId, deps.Capability.ChainId())
	}
	log, err := logs.NewLogger("", "docking")
	if err != nil {
		return nil, err
	}
	log.SetCommField("chain", conf.ChainId)

	db := kvdb.NewTable(deps.DB, fmt.Sprintf("%d/", conf.ChainId))
	lifecycle, err := unconfirmed.NewLifecycle(conf.ChainId, conf.RollbackWindow, db)
	if err != nil {
		return nil, err
	}
	store, err := waiting.NewStore(conf.ChainId, db)
	if err != nil {
		return nil, err
	}
	completed, err := registry.NewCompleted(db)
	if err != nil {
		return nil, err
	}
	multiSig, err := registry.NewMultiSigHistory(db, conf.MultiSigAddress)
	if err != nil {
		return nil, err
	}
	sub, err := submitter.NewSubmitter(conf.ChainId, deps.Converter)
	if err != nil {
		return nil, err
	}

	d := &Docking{
		chainId:      conf.ChainId,
		chain:        strconv.Itoa(conf.ChainId),
		nerveChainId: deps.NerveChainId,
		conf:         conf,
		cap:          deps.Capability,
		converter:    deps.Converter,
		lifecycle:    lifecycle,
		waiting:      store,
		completed:    completed,
		multiSig:     multiSig,
		accounts:     registry.NewAccounts(db),
		submitter:    sub,
		cursor:       kvdb.NewTable(db, CursorTablePrefix),
		inflight:     cache.New(inflightExpiration, inflightExpiration),
		handling:     cache.New(handlingExpiration, handlingExpiration),
		now:          time.Now,
		log:          log,
	}
	d.resend, err = resend.NewCoordinator(&resend.Config{
		ChainId:      conf.ChainId,
		NerveChainId: deps.NerveChainId,
		Limit:        conf.ResendLimit,
		MaxSigners:   conf.MaxSigners,
	}, d, deps.Converter, store)
	if err != nil {
		return nil, err
	}

	// 合约升级后以本地记录的最新地址为准
	deps.Capability.SetMultiSigAddress(multiSig.Current())
	return d, nil
}

func (d *Docking) ChainId() int {
	return d.chainId
}

func (d *Docking) Symbol() string {
	return d.conf.Symbol
}

// SelfAddress is the unlocked signer of this node, empty if none
func (d *Docking) SelfAddress() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.self
}

func (d *Docking) setSelf(addr string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.self = strings.ToLower(addr)
}

// MultiSigHistory returns every multi-sig address in use order
func (d *Docking) MultiSigHistory() []string {
	return d.multiSig.List()
}

func (d *Docking) loadCursor() (uint64, bool) {
	buf, err := d.cursor.Get([]byte(cursorKey))
	if err != nil || len(buf) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(buf), true
}

func (d *Docking) saveCursor(height uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, height)
	if err := d.cursor.Put([]byte(cursorKey), buf); err != nil {
		return def.ErrStorage.More("save cursor %d: %v", height, err)
	}
	return nil
}

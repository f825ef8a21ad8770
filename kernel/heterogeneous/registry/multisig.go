package registry

import (
	"encoding/binary"
	"strings"
	"sync"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/lib/storage/kvdb"
)

const (
	MultiSigTablePrefix = "MS"
)

// MultiSigHistory 多签合约地址历史，合约升级后追加新地址，最后一个为当前地址
type MultiSigHistory struct {
	mu    sync.RWMutex
	table kvdb.Database
	addrs []string
}

// NewMultiSigHistory loads the history, seeding it with initial if empty
func NewMultiSigHistory(db kvdb.Database, initial string) (*MultiSigHistory, error) {
	h := &MultiSigHistory{
		table: kvdb.NewTable(db, MultiSigTablePrefix),
	}
	it := h.table.NewIteratorWithPrefix(nil)
	for it.Next() {
		h.addrs = append(h.addrs, string(it.Value()))
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return nil, def.ErrStorage.More("load multisig history: %v", err)
	}
	if len(h.addrs) == 0 && initial != "" {
		if err := h.Append(initial); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Append makes addr the current multi-sig address. Re-appending the current
// address is a no-op.
func (h *MultiSigHistory) Append(addr string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.addrs); n > 0 && strings.EqualFold(h.addrs[n-1], addr) {
		return nil
	}
	// 大端序号作为key保证迭代有序
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(len(h.addrs)))
	if err := h.table.Put(key, []byte(addr)); err != nil {
		return def.ErrStorage.More("append multisig %s: %v", addr, err)
	}
	h.addrs = append(h.addrs, addr)
	return nil
}

func (h *MultiSigHistory) Current() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.addrs) == 0 {
		return ""
	}
	return h.addrs[len(h.addrs)-1]
}

func (h *MultiSigHistory) List() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.addrs...)
}

// Known reports whether addr has ever been a multi-sig address
func (h *MultiSigHistory) Known(addr string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, a := range h.addrs {
		if strings.EqualFold(a, addr) {
			return true
		}
	}
	return false
}

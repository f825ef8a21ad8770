package order

import (
	"strings"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
)

// VirtualBank 当前轮次的虚拟银行成员快照，地址到初始排序
// 地址统一小写，成员按地址有序
type VirtualBank struct {
	members *treemap.Map
}

// NewVirtualBank checks the snapshot and builds an ordered bank.
// Addresses must be non-empty and unique (case-insensitive), ranks positive.
func NewVirtualBank(members map[string]int) (*VirtualBank, error) {
	if len(members) == 0 {
		return nil, def.ErrInvalidBank.More("empty bank")
	}
	tm := treemap.NewWithStringComparator()
	for addr, rank := range members {
		key := normalize(addr)
		if key == "" {
			return nil, def.ErrInvalidBank.More("empty member address")
		}
		if rank <= 0 {
			return nil, def.ErrInvalidBank.More("member %s has invalid rank %d", addr, rank)
		}
		if _, found := tm.Get(key); found {
			return nil, def.ErrInvalidBank.More("duplicate member %s", addr)
		}
		tm.Put(key, rank)
	}
	return &VirtualBank{members: tm}, nil
}

func (b *VirtualBank) Size() int {
	return b.members.Size()
}

func (b *VirtualBank) Contains(addr string) bool {
	_, found := b.members.Get(normalize(addr))
	return found
}

// Rank returns the starting rank of addr
func (b *VirtualBank) Rank(addr string) (int, bool) {
	v, found := b.members.Get(normalize(addr))
	if !found {
		return 0, false
	}
	return v.(int), true
}

// Addresses returns the members in address order
func (b *VirtualBank) Addresses() []string {
	keys := b.members.Keys()
	addrs := make([]string, 0, len(keys))
	for _, k := range keys {
		addrs = append(addrs, k.(string))
	}
	return addrs
}

// Snapshot returns a copy of the bank as a plain map
func (b *VirtualBank) Snapshot() map[string]int {
	snap := make(map[string]int, b.members.Size())
	it := b.members.Iterator()
	for it.Next() {
		snap[it.Key().(string)] = it.Value().(int)
	}
	return snap
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

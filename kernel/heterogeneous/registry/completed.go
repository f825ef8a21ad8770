package registry

import (
	"encoding/binary"

	lru "github.com/hashicorp/golang-lru"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/lib/storage/kvdb"
)

const (
	CompletedTablePrefix = "CN"
	completedCacheSize   = 4096
)

// Completed 已在异构链完成的nerveTxHash集合
type Completed struct {
	table kvdb.Database
	// 热点查询缓存，只缓存命中结果
	cache *lru.Cache
}

func NewCompleted(db kvdb.Database) (*Completed, error) {
	cache, err := lru.New(completedCacheSize)
	if err != nil {
		return nil, err
	}
	return &Completed{
		table: kvdb.NewTable(db, CompletedTablePrefix),
		cache: cache,
	}, nil
}

// Add records nerveTxHash as complete at foreign height
func (c *Completed) Add(nerveTxHash string, height uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, height)
	if err := c.table.Put([]byte(nerveTxHash), buf); err != nil {
		return def.ErrStorage.More("add completed %s: %v", nerveTxHash, err)
	}
	c.cache.Add(nerveTxHash, height)
	return nil
}

func (c *Completed) Contains(nerveTxHash string) bool {
	if c.cache.Contains(nerveTxHash) {
		return true
	}
	buf, err := c.table.Get([]byte(nerveTxHash))
	if err != nil {
		return false
	}
	if len(buf) == 8 {
		c.cache.Add(nerveTxHash, binary.BigEndian.Uint64(buf))
	}
	return true
}

// Remove forgets a completion that was rolled back or lost to a reorg
func (c *Completed) Remove(nerveTxHash string) error {
	c.cache.Remove(nerveTxHash)
	if err := c.table.Delete([]byte(nerveTxHash)); err != nil {
		return def.ErrStorage.More("remove completed %s: %v", nerveTxHash, err)
	}
	return nil
}

package mock

import (
	"github.com/xuperchain/xdock/lib/storage/kvdb"
	// 注册leveldb引擎
	_ "github.com/xuperchain/xdock/lib/storage/kvdb/leveldb"
)

// NewMemDB opens an in-memory leveldb instance
func NewMemDB() (kvdb.Database, error) {
	return kvdb.CreateKVInstance(&kvdb.KVParameter{
		KVEngineType: kvdb.KVEngineTypeLDB,
		StorageType:  kvdb.StorageTypeMemory,
		MemCacheSize: 16,
	})
}

package leveldb

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/xuperchain/xdock/lib/storage/kvdb"
)

// LDBDatabase define data structure of storage
type LDBDatabase struct {
	fn string      // filename for reporting
	db *leveldb.DB // LevelDB instance
}

func init() {
	kvdb.Register(kvdb.KVEngineTypeLDB, NewKVDBInstance)
}

// NewKVDBInstance opens a leveldb backed kvdb.Database
func NewKVDBInstance(param *kvdb.KVParameter) (kvdb.Database, error) {
	baseDB := new(LDBDatabase)
	options := map[string]interface{}{
		"cache":       param.GetMemCacheSize(),
		"fds":         param.GetFileHandlersCacheSize(),
		"storageType": param.GetStorageType(),
	}
	if err := baseDB.Open(param.GetDBPath(), options); err != nil {
		return nil, err
	}
	return baseDB, nil
}

func setDefaultOptions(options map[string]interface{}) {
	if cache, ok := options["cache"].(int); !ok || cache < 16 {
		options["cache"] = 16
	}
	if fds, ok := options["fds"].(int); !ok || fds < 16 {
		options["fds"] = 16
	}
}

// Open opens an instance of LDB with parameters (ldb path and other options)
func (ldb *LDBDatabase) Open(path string, options map[string]interface{}) error {
	setDefaultOptions(options)
	cache := options["cache"].(int)
	fds := options["fds"].(int)
	ldbOpt := &opt.Options{
		OpenFilesCacheCapacity: fds,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB, // Two of these are used internally
		Filter:                 filter.NewBloomFilter(10),
	}

	var (
		db  *leveldb.DB
		err error
	)
	if st, _ := options["storageType"].(string); st == kvdb.StorageTypeMemory {
		db, err = leveldb.Open(storage.NewMemStorage(), ldbOpt)
	} else {
		db, err = leveldb.OpenFile(path, ldbOpt)
		if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
			db, err = leveldb.RecoverFile(path, nil)
		}
	}
	if err != nil {
		return fmt.Errorf("open leveldb failed.path:%s,err:%v", path, err)
	}
	ldb.fn = path
	ldb.db = db
	return nil
}

// Path returns the path to the database directory.
func (ldb *LDBDatabase) Path() string {
	return ldb.fn
}

// Put puts the given key / value to the queue
func (ldb *LDBDatabase) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

// Has if the given key exists
func (ldb *LDBDatabase) Has(key []byte) (bool, error) {
	return ldb.db.Has(key, nil)
}

// Get returns the given key if it's present.
func (ldb *LDBDatabase) Get(key []byte) ([]byte, error) {
	dat, err := ldb.db.Get(key, nil)
	if err != nil {
		return nil, kvdb.NormalizedKVError(err)
	}
	return dat, nil
}

// Delete deletes the key from the queue and database
func (ldb *LDBDatabase) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

// Close close database instance
func (ldb *LDBDatabase) Close() {
	ldb.db.Close()
}

// NewBatch returns a batch bound to this database
func (ldb *LDBDatabase) NewBatch() kvdb.Batch {
	return &LDBBatch{db: ldb.db, b: new(leveldb.Batch), keys: map[string]bool{}}
}

// NewIteratorWithRange new a iterator by range [start, limit)
func (ldb *LDBDatabase) NewIteratorWithRange(start []byte, limit []byte) kvdb.Iterator {
	return ldb.db.NewIterator(&util.Range{Start: start, Limit: limit}, nil)
}

// NewIteratorWithPrefix new a iterator by prefix
func (ldb *LDBDatabase) NewIteratorWithPrefix(prefix []byte) kvdb.Iterator {
	return ldb.db.NewIterator(util.BytesPrefix(prefix), nil)
}

// LDBBatch define batch data structure
type LDBBatch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
	keys map[string]bool
}

// Put put key/value into batch
func (b *LDBBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(value)
	b.keys[string(key)] = true
	return nil
}

// Delete delete key from batch
func (b *LDBBatch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	b.keys[string(key)] = true
	return nil
}

// Exist reports whether the key has been touched by this batch
func (b *LDBBatch) Exist(key []byte) bool {
	return b.keys[string(key)]
}

// Write commit batch operations to db
func (b *LDBBatch) Write() error {
	return b.db.Write(b.b, nil)
}

// ValueSize return value size of batch
func (b *LDBBatch) ValueSize() int {
	return b.size
}

// Reset reset batch operations
func (b *LDBBatch) Reset() {
	b.b.Reset()
	b.size = 0
	b.keys = map[string]bool{}
}

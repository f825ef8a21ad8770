package badger

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/xuperchain/xdock/lib/storage/kvdb"
)

// BadgerDatabase wraps a badger db as kvdb.Database
type BadgerDatabase struct {
	path string
	db   *badger.DB
}

func init() {
	kvdb.Register(kvdb.KVEngineTypeBadger, NewKVDBInstance)
}

// NewKVDBInstance opens a badger backed kvdb.Database
func NewKVDBInstance(param *kvdb.KVParameter) (kvdb.Database, error) {
	baseDB := new(BadgerDatabase)
	options := map[string]interface{}{
		"cache":       param.GetMemCacheSize(),
		"storageType": param.GetStorageType(),
	}
	if err := baseDB.Open(param.GetDBPath(), options); err != nil {
		return nil, err
	}
	return baseDB, nil
}

// Open opens badger with cache size in MB
func (bdb *BadgerDatabase) Open(path string, options map[string]interface{}) error {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if cache, ok := options["cache"].(int); ok && cache > 0 {
		opts = opts.WithBlockCacheSize(int64(cache) << 20)
	}
	if st, _ := options["storageType"].(string); st == kvdb.StorageTypeMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("open badger failed.path:%s,err:%v", path, err)
	}
	bdb.path = path
	bdb.db = db
	return nil
}

func (bdb *BadgerDatabase) Put(key []byte, value []byte) error {
	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (bdb *BadgerDatabase) Get(key []byte) ([]byte, error) {
	var value []byte
	err := bdb.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, kvdb.NormalizedKVError(err)
	}
	return value, nil
}

func (bdb *BadgerDatabase) Has(key []byte) (bool, error) {
	_, err := bdb.Get(key)
	if kvdb.ErrNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (bdb *BadgerDatabase) Delete(key []byte) error {
	return bdb.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (bdb *BadgerDatabase) Close() {
	bdb.db.Close()
}

func (bdb *BadgerDatabase) NewBatch() kvdb.Batch {
	return &BadgerBatch{db: bdb.db, keys: map[string]bool{}}
}

func (bdb *BadgerDatabase) NewIteratorWithRange(start []byte, limit []byte) kvdb.Iterator {
	return newIterator(bdb.db, nil, start, limit)
}

func (bdb *BadgerDatabase) NewIteratorWithPrefix(prefix []byte) kvdb.Iterator {
	return newIterator(bdb.db, prefix, prefix, nil)
}

type batchOp struct {
	key   []byte
	value []byte
	del   bool
}

// BadgerBatch buffers writes and commits them in one transaction
type BadgerBatch struct {
	db   *badger.DB
	ops  []batchOp
	size int
	keys map[string]bool
}

func (b *BadgerBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, batchOp{key: key, value: value})
	b.size += len(value)
	b.keys[string(key)] = true
	return nil
}

func (b *BadgerBatch) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{key: key, del: true})
	b.size += len(key)
	b.keys[string(key)] = true
	return nil
}

func (b *BadgerBatch) Exist(key []byte) bool {
	return b.keys[string(key)]
}

func (b *BadgerBatch) Write() error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, op := range b.ops {
			var err error
			if op.del {
				err = txn.Delete(op.key)
			} else {
				err = txn.Set(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerBatch) ValueSize() int {
	return b.size
}

func (b *BadgerBatch) Reset() {
	b.ops = nil
	b.size = 0
	b.keys = map[string]bool{}
}

// badgerIterator iterates [start, limit) within prefix on a read-only txn
type badgerIterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	prefix  []byte
	start   []byte
	limit   []byte
	started bool
	key     []byte
	value   []byte
	err     error
	once    sync.Once
}

func newIterator(db *badger.DB, prefix, start, limit []byte) *badgerIterator {
	txn := db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	return &badgerIterator{
		txn:    txn,
		it:     txn.NewIterator(opts),
		prefix: prefix,
		start:  start,
		limit:  limit,
	}
}

func (i *badgerIterator) Next() bool {
	if !i.started {
		return i.First()
	}
	i.it.Next()
	return i.load()
}

func (i *badgerIterator) First() bool {
	i.started = true
	i.it.Seek(i.start)
	return i.load()
}

func (i *badgerIterator) load() bool {
	i.key, i.value = nil, nil
	if !i.it.ValidForPrefix(i.prefix) {
		return false
	}
	item := i.it.Item()
	key := item.KeyCopy(nil)
	if i.limit != nil && bytes.Compare(key, i.limit) >= 0 {
		return false
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		i.err = err
		return false
	}
	i.key, i.value = key, value
	return true
}

func (i *badgerIterator) Key() []byte   { return i.key }
func (i *badgerIterator) Value() []byte { return i.value }
func (i *badgerIterator) Error() error  { return i.err }

func (i *badgerIterator) Release() {
	i.once.Do(func() {
		i.it.Close()
		i.txn.Discard()
	})
}

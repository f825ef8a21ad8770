package kvdb

// Database wraps all database operations. All methods are safe for concurrent use.
type Database interface {
	Open(path string, options map[string]interface{}) error
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	Close()
	NewBatch() Batch
	NewIteratorWithRange(start []byte, limit []byte) Iterator
	NewIteratorWithPrefix(prefix []byte) Iterator
}

// Batch is a write-only database that commits changes to its host database
// when Write is called. Batch cannot be used concurrently.
type Batch interface {
	ValueSize() int
	Write() error
	Reset()
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	Exist(key []byte) bool
}

// Iterator iterates over a database's key/value pairs in ascending key order.
// Next must be called before the first Key/Value access.
type Iterator interface {
	Key() []byte
	Value() []byte
	Next() bool
	First() bool
	Error() error
	Release()
}

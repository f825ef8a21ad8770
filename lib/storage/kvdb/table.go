package kvdb

// table is a logical sub database sharing one physical db, every key is
// transparently prefixed
type table struct {
	db     Database
	prefix string
}

type tableBatch struct {
	batch  Batch
	prefix string
}

// NewTable returns a Database object that prefixes all keys with a given string
func NewTable(db Database, prefix string) Database {
	return &table{
		db:     db,
		prefix: prefix,
	}
}

func (dt *table) Open(path string, options map[string]interface{}) error {
	return nil
}

func (dt *table) Put(key []byte, value []byte) error {
	return dt.db.Put(append([]byte(dt.prefix), key...), value)
}

func (dt *table) Has(key []byte) (bool, error) {
	return dt.db.Has(append([]byte(dt.prefix), key...))
}

func (dt *table) Get(key []byte) ([]byte, error) {
	return dt.db.Get(append([]byte(dt.prefix), key...))
}

func (dt *table) Delete(key []byte) error {
	return dt.db.Delete(append([]byte(dt.prefix), key...))
}

// Close 底层db由创建者负责关闭
func (dt *table) Close() {}

func (dt *table) NewBatch() Batch {
	return &tableBatch{dt.db.NewBatch(), dt.prefix}
}

func (dt *table) NewIteratorWithRange(start []byte, limit []byte) Iterator {
	var tStart, tLimit []byte
	tStart = append([]byte(dt.prefix), start...)
	if limit == nil {
		tLimit = bytesPrefixLimit([]byte(dt.prefix))
	} else {
		tLimit = append([]byte(dt.prefix), limit...)
	}
	return &tableIterator{dt.db.NewIteratorWithRange(tStart, tLimit), len(dt.prefix)}
}

func (dt *table) NewIteratorWithPrefix(prefix []byte) Iterator {
	return &tableIterator{
		dt.db.NewIteratorWithPrefix(append([]byte(dt.prefix), prefix...)),
		len(dt.prefix),
	}
}

func (tb *tableBatch) Put(key, value []byte) error {
	return tb.batch.Put(append([]byte(tb.prefix), key...), value)
}

func (tb *tableBatch) Delete(key []byte) error {
	return tb.batch.Delete(append([]byte(tb.prefix), key...))
}

func (tb *tableBatch) Exist(key []byte) bool {
	return tb.batch.Exist(append([]byte(tb.prefix), key...))
}

func (tb *tableBatch) Write() error {
	return tb.batch.Write()
}

func (tb *tableBatch) ValueSize() int {
	return tb.batch.ValueSize()
}

func (tb *tableBatch) Reset() {
	tb.batch.Reset()
}

// tableIterator strips the table prefix from keys
type tableIterator struct {
	Iterator
	prefixLen int
}

func (ti *tableIterator) Key() []byte {
	key := ti.Iterator.Key()
	if len(key) < ti.prefixLen {
		return nil
	}
	return key[ti.prefixLen:]
}

// bytesPrefixLimit returns the smallest key greater than every key with prefix
func bytesPrefixLimit(prefix []byte) []byte {
	limit := make([]byte, len(prefix))
	copy(limit, prefix)
	for i := len(limit) - 1; i >= 0; i-- {
		if limit[i] < 0xff {
			limit[i]++
			return limit[:i+1]
		}
	}
	return nil
}

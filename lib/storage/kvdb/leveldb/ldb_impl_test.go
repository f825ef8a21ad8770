package leveldb

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/xuperchain/xdock/lib/storage/kvdb"
)

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// 产生随机字符串
func RandBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return b
}

func makeDB(t testing.TB) kvdb.Database {
	kvParam := &kvdb.KVParameter{
		DBPath:                t.TempDir(),
		KVEngineType:          kvdb.KVEngineTypeLDB,
		StorageType:           kvdb.StorageTypeSingle,
		MemCacheSize:          128,
		FileHandlersCacheSize: 1024,
	}
	db, err := kvdb.CreateKVInstance(kvParam)
	if err != nil {
		t.Fatalf("create kv instance error: %s", err)
	}
	return db
}

func TestPutGetDelete(t *testing.T) {
	db := makeDB(t)
	defer db.Close()

	if err := db.Put([]byte("k1"), []byte("v1")); err != nil {
		t.Fatal(err)
	}
	v, err := db.Get([]byte("k1"))
	if err != nil || string(v) != "v1" {
		t.Errorf("get k1 failed.v:%s,err:%v", v, err)
	}
	if ok, _ := db.Has([]byte("k1")); !ok {
		t.Errorf("k1 should exist")
	}

	db.Delete([]byte("k1"))
	_, err = db.Get([]byte("k1"))
	if !kvdb.ErrNotFound(err) {
		t.Errorf("expect not found, got %v", err)
	}
}

func TestTableIterator(t *testing.T) {
	db := makeDB(t)
	defer db.Close()

	ta := kvdb.NewTable(db, "A")
	tb := kvdb.NewTable(db, "B")
	batch := ta.NewBatch()
	batch.Put([]byte("x1"), []byte("1"))
	batch.Put([]byte("x2"), []byte("2"))
	batch.Put([]byte("y1"), []byte("3"))
	if !batch.Exist([]byte("x1")) {
		t.Errorf("batch should report touched key")
	}
	if err := batch.Write(); err != nil {
		t.Fatal(err)
	}
	tb.Put([]byte("x9"), []byte("9"))

	it := ta.NewIteratorWithPrefix([]byte("x"))
	var keys [][]byte
	for it.Next() {
		keys = append(keys, append([]byte{}, it.Key()...))
	}
	it.Release()
	if len(keys) != 2 || !bytes.Equal(keys[0], []byte("x1")) || !bytes.Equal(keys[1], []byte("x2")) {
		t.Errorf("unexpected prefix keys %q", keys)
	}

	it = ta.NewIteratorWithRange(nil, nil)
	count := 0
	for it.Next() {
		count++
	}
	it.Release()
	if count != 3 {
		t.Errorf("table range should not leak other tables, count=%d", count)
	}
}

func TestMemoryStorage(t *testing.T) {
	db, err := kvdb.CreateKVInstance(&kvdb.KVParameter{
		KVEngineType: kvdb.KVEngineTypeLDB,
		StorageType:  kvdb.StorageTypeMemory,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	db.Put([]byte("m"), []byte("1"))
	if v, _ := db.Get([]byte("m")); string(v) != "1" {
		t.Errorf("memory storage get failed")
	}
}

func BenchmarkLdbBatch_Put(b *testing.B) {
	db := makeDB(b)
	defer db.Close()

	keys := make([][]byte, 5)
	for i := 0; i < b.N; i++ {
		batch := db.NewBatch()
		if i > 0 {
			batch.Delete(keys[1])
			batch.Delete(keys[3])
		}
		for j := 0; j < 5; j++ {
			keys[j] = RandBytes(64)
			batch.Put(keys[j], RandBytes(1024))
		}
		batch.Write()
	}
}

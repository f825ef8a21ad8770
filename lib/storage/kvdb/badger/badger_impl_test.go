package badger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xdock/lib/storage/kvdb"
)

func TestBadgerTable(t *testing.T) {
	db, err := kvdb.CreateKVInstance(&kvdb.KVParameter{
		DBPath:       t.TempDir(),
		KVEngineType: kvdb.KVEngineTypeBadger,
		StorageType:  kvdb.StorageTypeSingle,
		MemCacheSize: 16,
	})
	require.NoError(t, err)
	defer db.Close()

	ut := kvdb.NewTable(db, "UT")
	batch := ut.NewBatch()
	require.NoError(t, batch.Put([]byte("h1"), []byte("a")))
	require.NoError(t, batch.Put([]byte("h2"), []byte("b")))
	require.NoError(t, batch.Write())
	require.NoError(t, db.Put([]byte("WIh3"), []byte("c")))

	v, err := ut.Get([]byte("h2"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(v))

	_, err = ut.Get([]byte("h3"))
	assert.True(t, kvdb.ErrNotFound(err))

	it := ut.NewIteratorWithPrefix(nil)
	defer it.Release()
	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
	}
	assert.Equal(t, []string{"h1", "h2"}, keys)

	require.NoError(t, ut.Delete([]byte("h1")))
	ok, err := ut.Has([]byte("h1"))
	require.NoError(t, err)
	assert.False(t, ok)
}

package waiting

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/lib/metrics"
	"github.com/xuperchain/xdock/lib/storage/kvdb"
)

const (
	WaitingTablePrefix = "WI"
)

// Store persists waiting entries keyed by nerveTxHash, last writer wins
type Store struct {
	chain string
	table kvdb.Database
}

func NewStore(chainId int, db kvdb.Database) (*Store, error) {
	if db == nil {
		return nil, def.ErrParameter.More("waiting db is nil")
	}
	s := &Store{
		chain: strconv.Itoa(chainId),
		table: kvdb.NewTable(db, WaitingTablePrefix),
	}
	s.updateGauge()
	return s, nil
}

func (s *Store) Save(e *Entry) error {
	if e == nil || e.Request == nil || e.NerveTxHash() == "" {
		return def.ErrParameter.More("invalid waiting entry")
	}
	buf, err := json.Marshal(e)
	if err != nil {
		return def.ErrStorage.More("encode waiting %s: %v", e.NerveTxHash(), err)
	}
	if err := s.table.Put([]byte(e.NerveTxHash()), buf); err != nil {
		return def.ErrStorage.More("save waiting %s: %v", e.NerveTxHash(), err)
	}
	s.updateGauge()
	return nil
}

func (s *Store) Get(nerveTxHash string) (*Entry, error) {
	buf, err := s.table.Get([]byte(nerveTxHash))
	if err != nil {
		if kvdb.ErrNotFound(err) {
			return nil, def.ErrRecordNotFound.More("waiting %s", nerveTxHash)
		}
		return nil, def.ErrStorage.More("load waiting %s: %v", nerveTxHash, err)
	}
	e := new(Entry)
	if err := json.Unmarshal(buf, e); err != nil {
		return nil, def.ErrStorage.More("decode waiting %s: %v", nerveTxHash, err)
	}
	return e, nil
}

func (s *Store) Has(nerveTxHash string) bool {
	ok, _ := s.table.Has([]byte(nerveTxHash))
	return ok
}

func (s *Store) Delete(nerveTxHash string) error {
	if err := s.table.Delete([]byte(nerveTxHash)); err != nil {
		return def.ErrStorage.More("delete waiting %s: %v", nerveTxHash, err)
	}
	s.updateGauge()
	return nil
}

// List returns all entries ordered by waitingEndTime
func (s *Store) List() ([]*Entry, error) {
	var entries []*Entry
	it := s.table.NewIteratorWithPrefix(nil)
	defer it.Release()
	for it.Next() {
		e := new(Entry)
		if err := json.Unmarshal(it.Value(), e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := it.Error(); err != nil {
		return nil, def.ErrStorage.More("list waiting: %v", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].WaitingEndTime.Before(entries[j].WaitingEndTime)
	})
	return entries, nil
}

// Due returns the entries whose window has opened at now
func (s *Store) Due(now time.Time) ([]*Entry, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	due := entries[:0]
	for _, e := range entries {
		if e.Due(now) {
			due = append(due, e)
		}
	}
	return due, nil
}

func (s *Store) Count() int {
	count := 0
	it := s.table.NewIteratorWithPrefix(nil)
	defer it.Release()
	for it.Next() {
		count++
	}
	return count
}

func (s *Store) updateGauge() {
	metrics.WaitingTxGauge.WithLabelValues(s.chain).Set(float64(s.Count()))
}

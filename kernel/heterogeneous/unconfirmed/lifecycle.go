package unconfirmed

import (
	"strconv"
	"sync"

	"github.com/gammazero/deque"
	"github.com/pkg/errors"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/lib/logs"
	"github.com/xuperchain/xdock/lib/metrics"
	"github.com/xuperchain/xdock/lib/storage/kvdb"
)

const (
	UnconfirmedTablePrefix = "UT"
)

// Lifecycle owns the unconfirmed tx records of one foreign chain and the
// queue of records still waiting for work. Transitions:
//
//	Observe: -> Pending
//	MarkForDeletion: Pending -> MarkedForDeletion{deleteAtHeight}
//	Rollback: MarkedForDeletion -> Pending, only before deleteAtHeight
//	Sweep: MarkedForDeletion -> deleted, once height >= deleteAtHeight
type Lifecycle struct {
	chain          string
	rollbackWindow uint64
	table          kvdb.Database

	mu    sync.Mutex
	queue deque.Deque
	size  int

	log logs.Logger
}

// NewLifecycle loads persisted records, re-queueing the pending ones
func NewLifecycle(chainId int, rollbackWindow uint64, db kvdb.Database) (*Lifecycle, error) {
	if db == nil {
		return nil, def.ErrParameter.More("lifecycle db is nil")
	}
	log, err := logs.NewLogger("", "unconfirmed")
	if err != nil {
		return nil, err
	}
	l := &Lifecycle{
		chain:          strconv.Itoa(chainId),
		rollbackWindow: rollbackWindow,
		table:          kvdb.NewTable(db, UnconfirmedTablePrefix),
		log:            log,
	}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Lifecycle) reload() error {
	it := l.table.NewIteratorWithPrefix(nil)
	defer it.Release()
	for it.Next() {
		rec, err := decodeRecord(it.Value())
		if err != nil {
			l.log.Warn("skip corrupted unconfirmed record", "key", string(it.Key()), "err", err)
			continue
		}
		l.size++
		if rec.Status == StatusPending && !rec.Reported {
			l.queue.PushBack(rec.TxHash)
		}
	}
	if err := it.Error(); err != nil {
		return def.ErrStorage.More("reload unconfirmed: %v", err)
	}
	l.updateGauge()
	return nil
}

// Observe records a newly classified tx as Pending and queues it. It returns
// false when a record for the hash is already tracked.
func (l *Lifecycle) Observe(info *def.TxInfo) (*Record, bool, error) {
	if info == nil || info.TxHash == "" {
		return nil, false, def.ErrParameter.More("empty tx info")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if rec, err := l.load(info.TxHash); err == nil {
		return rec, false, nil
	} else if !errors.Is(err, def.ErrRecordNotFound) {
		return nil, false, err
	}

	rec := &Record{
		TxHash: info.TxHash,
		Info:   info,
		Status: StatusPending,
	}
	if err := l.save(rec); err != nil {
		return nil, false, err
	}
	l.queue.PushBack(rec.TxHash)
	l.size++
	l.updateGauge()
	return rec, true, nil
}

func (l *Lifecycle) Has(txHash string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	ok, _ := l.table.Has([]byte(txHash))
	return ok
}

func (l *Lifecycle) Get(txHash string) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(txHash)
}

// Update persists the work flags of a record. The status is owned by the
// transitions and is never changed here.
func (l *Lifecycle) Update(rec *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, err := l.load(rec.TxHash)
	if err != nil {
		return err
	}
	cur.Info = rec.Info
	cur.Submitted = rec.Submitted
	cur.Reported = rec.Reported
	return l.save(cur)
}

// MarkForDeletion is called once the native chain reports the business of
// the tx settled at foreign height.
func (l *Lifecycle) MarkForDeletion(txHash string, height uint64) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, err := l.load(txHash)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusPending {
		return nil, def.ErrInvalidState.More("%s is %s", txHash, rec.Status)
	}
	rec.Status = StatusMarkedForDeletion
	rec.DeleteAtHeight = height + l.rollbackWindow
	if err := l.save(rec); err != nil {
		return nil, err
	}
	l.log.Debug("unconfirmed tx marked for deletion", "txHash", txHash, "deleteAtHeight", rec.DeleteAtHeight)
	return rec, nil
}

// Rollback undoes a settlement reported before. It only succeeds while the
// record is still retained, i.e. current height < deleteAtHeight.
func (l *Lifecycle) Rollback(txHash string, currentHeight uint64) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, err := l.load(txHash)
	if err != nil {
		return nil, err
	}
	if rec.Status == StatusPending {
		return rec, nil
	}
	if currentHeight >= rec.DeleteAtHeight {
		return nil, def.ErrInvalidState.More("%s rollback window closed at %d", txHash, rec.DeleteAtHeight)
	}
	rec.Status = StatusPending
	rec.DeleteAtHeight = 0
	rec.Reported = false
	if err := l.save(rec); err != nil {
		return nil, err
	}
	l.queue.PushBack(rec.TxHash)
	l.log.Info("unconfirmed tx rolled back", "txHash", txHash, "height", currentHeight)
	return rec, nil
}

// Sweep deletes marked records whose deleteAtHeight has been reached and
// returns the deleted hashes.
func (l *Lifecycle) Sweep(currentHeight uint64) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var expired []string
	it := l.table.NewIteratorWithPrefix(nil)
	for it.Next() {
		rec, err := decodeRecord(it.Value())
		if err != nil {
			continue
		}
		if rec.Status == StatusMarkedForDeletion && currentHeight >= rec.DeleteAtHeight {
			expired = append(expired, rec.TxHash)
		}
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return nil, def.ErrStorage.More("sweep iterate: %v", err)
	}
	if len(expired) == 0 {
		return nil, nil
	}

	batch := l.table.NewBatch()
	for _, hash := range expired {
		batch.Delete([]byte(hash))
	}
	if err := batch.Write(); err != nil {
		return nil, def.ErrStorage.More("sweep delete: %v", err)
	}
	l.size -= len(expired)
	l.updateGauge()
	metrics.SweptTxCounter.WithLabelValues(l.chain).Add(float64(len(expired)))
	return expired, nil
}

// Remove drops a pending record, e.g. when its receipt disappeared in a reorg
func (l *Lifecycle) Remove(txHash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.load(txHash); err != nil {
		return err
	}
	if err := l.table.Delete([]byte(txHash)); err != nil {
		return def.ErrStorage.More("remove %s: %v", txHash, err)
	}
	l.size--
	l.updateGauge()
	return nil
}

// Pop returns the next queued record still pending. Records that changed
// state or disappeared while queued are skipped.
func (l *Lifecycle) Pop() (*Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.queue.Len() > 0 {
		hash := l.queue.PopFront().(string)
		rec, err := l.load(hash)
		if err != nil || rec.Status != StatusPending {
			continue
		}
		return rec, true
	}
	return nil, false
}

// Requeue puts a record back at the tail of the work queue
func (l *Lifecycle) Requeue(txHash string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue.PushBack(txHash)
}

func (l *Lifecycle) QueueLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

// Count returns the number of retained records
func (l *Lifecycle) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

func (l *Lifecycle) load(txHash string) (*Record, error) {
	buf, err := l.table.Get([]byte(txHash))
	if err != nil {
		if kvdb.ErrNotFound(err) {
			return nil, def.ErrRecordNotFound.More("%s", txHash)
		}
		return nil, def.ErrStorage.More("load %s: %v", txHash, err)
	}
	rec, err := decodeRecord(buf)
	if err != nil {
		return nil, def.ErrStorage.More("decode %s: %v", txHash, err)
	}
	return rec, nil
}

func (l *Lifecycle) save(rec *Record) error {
	buf, err := rec.encode()
	if err != nil {
		return def.ErrStorage.More("encode %s: %v", rec.TxHash, err)
	}
	if err := l.table.Put([]byte(rec.TxHash), buf); err != nil {
		return def.ErrStorage.More("save %s: %v", rec.TxHash, err)
	}
	return nil
}

func (l *Lifecycle) updateGauge() {
	metrics.UnconfirmedTxGauge.WithLabelValues(l.chain).Set(float64(l.size))
}

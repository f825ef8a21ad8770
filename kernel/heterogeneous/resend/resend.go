package resend

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	hex "github.com/tmthrgd/go-hex"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/kernel/heterogeneous/waiting"
	"github.com/xuperchain/xdock/lib/logs"
	"github.com/xuperchain/xdock/lib/metrics"
)

const (
	DefaultCounterExpiration = 24 * time.Hour
	counterGcInterval        = 10 * time.Minute
	regainMarkerExpiration   = time.Minute
)

// Dispatcher is the submission path shared with the round leader. It must
// re-check completion and return ("", nil) when the request is already done.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *def.Request) (string, error)
}

type Config struct {
	ChainId      int
	NerveChainId int
	// 单个nerveTxHash最多重发次数
	Limit int
	// 重新获取签名时最多使用的签名数
	MaxSigners        int
	CounterExpiration time.Duration
}

// Coordinator 重发和签名重新获取
type Coordinator struct {
	conf       *Config
	chain      string
	dispatcher Dispatcher
	converter  def.Converter
	store      *waiting.Store

	mu        sync.Mutex
	counters  *cache.Cache
	regaining *cache.Cache
	now       func() time.Time

	log logs.Logger
}

func NewCoordinator(conf *Config, dispatcher Dispatcher, converter def.Converter,
	store *waiting.Store) (*Coordinator, error) {
	if conf == nil || dispatcher == nil || converter == nil || store == nil {
		return nil, def.ErrParameter.More("resend coordinator param missing")
	}
	if conf.Limit <= 0 || conf.MaxSigners <= 0 {
		return nil, def.ErrParameter.More("resend limit %d maxSigners %d", conf.Limit, conf.MaxSigners)
	}
	expiration := conf.CounterExpiration
	if expiration <= 0 {
		expiration = DefaultCounterExpiration
	}
	log, err := logs.NewLogger("", "resend")
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		conf:       conf,
		chain:      strconv.Itoa(conf.ChainId),
		dispatcher: dispatcher,
		converter:  converter,
		store:      store,
		counters:   cache.New(expiration, counterGcInterval),
		regaining:  cache.New(regainMarkerExpiration, counterGcInterval),
		now:        time.Now,
		log:        log,
	}, nil
}

// Resend dispatches the request of entry again. It returns
// ErrResendLimitExceeded without dispatching once the per nerveTxHash limit
// is reached. An insufficient signatures failure regains signatures and
// retries exactly once; every other failure is returned unchanged.
func (c *Coordinator) Resend(ctx context.Context, e *waiting.Entry) (string, error) {
	hash := e.NerveTxHash()
	if !c.acquire(hash) {
		c.log.Warn("resend limit exceeded, drop request", "nerveTxHash", hash, "limit", c.conf.Limit)
		metrics.ResendCounter.WithLabelValues(c.chain, "dropped").Inc()
		return "", def.ErrResendLimitExceeded.More("%s", hash)
	}

	txHash, err := c.dispatcher.Dispatch(ctx, e.Request)
	if err == nil {
		metrics.ResendCounter.WithLabelValues(c.chain, "ok").Inc()
		return txHash, nil
	}
	if !errors.Is(err, def.ErrInsufficientSignatures) {
		metrics.ResendCounter.WithLabelValues(c.chain, "failed").Inc()
		return "", err
	}

	c.log.Info("insufficient signatures, regain and retry", "nerveTxHash", hash)
	if rerr := c.regain(ctx, e); rerr != nil {
		metrics.ResendCounter.WithLabelValues(c.chain, "failed").Inc()
		return "", rerr
	}
	txHash, err = c.dispatcher.Dispatch(ctx, e.Request)
	if err != nil {
		metrics.ResendCounter.WithLabelValues(c.chain, "failed").Inc()
		return "", err
	}
	metrics.ResendCounter.WithLabelValues(c.chain, "ok").Inc()
	return txHash, nil
}

// Count returns the resend attempts made for nerveTxHash
func (c *Coordinator) Count(nerveTxHash string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, found := c.counters.Get(nerveTxHash); found {
		return v.(int)
	}
	return 0
}

// Clear drops the counter and marker of a request known complete
func (c *Coordinator) Clear(nerveTxHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters.Delete(nerveTxHash)
	c.regaining.Delete(nerveTxHash)
}

func (c *Coordinator) acquire(hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	if v, found := c.counters.Get(hash); found {
		count = v.(int)
	}
	if count >= c.conf.Limit {
		return false
	}
	c.counters.Set(hash, count+1, cache.DefaultExpiration)
	return true
}

func (c *Coordinator) regain(ctx context.Context, e *waiting.Entry) error {
	hash := e.NerveTxHash()
	if err := c.regaining.Add(hash, true, cache.DefaultExpiration); err != nil {
		return def.ErrInsufficientSignatures.More("regain of %s in progress", hash)
	}
	defer c.regaining.Delete(hash)

	metrics.RegainSignatureCounter.WithLabelValues(c.chain).Inc()
	sigs, err := c.converter.RegainSignatures(ctx, c.conf.NerveChainId, hash, c.conf.ChainId)
	if err != nil {
		return errors.Wrapf(err, "regain signatures of %s", hash)
	}
	if len(sigs) > c.conf.MaxSigners {
		sigs = sigs[:c.conf.MaxSigners]
	}
	packed, err := ConcatSignatures(sigs)
	if err != nil {
		return err
	}

	e.Request.Signatures = packed
	e.Refresh(c.now())
	if err := c.store.Save(e); err != nil {
		return err
	}
	c.log.Debug("signatures regained", "nerveTxHash", hash, "count", len(sigs))
	return nil
}

// ConcatSignatures joins hex signatures into the on-wire blob, every
// signature must be exactly 65 bytes.
func ConcatSignatures(sigs []string) (string, error) {
	var sb strings.Builder
	for i, sig := range sigs {
		raw := strings.TrimPrefix(strings.TrimPrefix(sig, "0x"), "0X")
		buf, err := hex.DecodeString(raw)
		if err != nil || len(buf) != def.SignatureLength {
			return "", def.ErrValidationFailed.More("signature %d malformed", i)
		}
		sb.WriteString(strings.ToLower(raw))
	}
	if sb.Len() == 0 {
		return "", def.ErrInsufficientSignatures.More("no signature regained")
	}
	return sb.String(), nil
}

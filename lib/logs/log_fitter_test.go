package logs

import (
	"fmt"
	"sync"
	"testing"

	"github.com/xuperchain/xdock/lib/logs/config"
)

type recordDriver struct {
	mu      sync.Mutex
	records []string
	ctxs    [][]interface{}
}

func (r *recordDriver) add(lvl, msg string, ctx ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, lvl+":"+msg)
	r.ctxs = append(r.ctxs, ctx)
}

func (r *recordDriver) Error(msg string, ctx ...interface{}) { r.add("error", msg, ctx...) }
func (r *recordDriver) Warn(msg string, ctx ...interface{})  { r.add("warn", msg, ctx...) }
func (r *recordDriver) Info(msg string, ctx ...interface{})  { r.add("info", msg, ctx...) }
func (r *recordDriver) Trace(msg string, ctx ...interface{}) { r.add("trace", msg, ctx...) }
func (r *recordDriver) Debug(msg string, ctx ...interface{}) { r.add("debug", msg, ctx...) }

func TestInfo(t *testing.T) {
	drv := &recordDriver{}
	log, err := NewLogFitter(drv, "")
	if err != nil {
		t.Fatalf("new logger fail.err:%v", err)
	}
	if log.GetLogId() == "" {
		t.Errorf("log id should be generated")
	}

	wg := &sync.WaitGroup{}
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(num int) {
			defer wg.Done()
			log.Info("info1", "a", 1, "num", num)
			log.Debug("test", "a", 1, "num", num)
			log.SetInfoField("key1", num)
			log.Info("info3", "a", true, "num", num)
		}(i)
	}
	wg.Wait()

	log.Warn("test warn", 1)
	log.Debug("msg", "log_id", "123456---111111")

	if len(drv.records) != 11 {
		t.Errorf("unexpected record count %d", len(drv.records))
	}
	last := drv.ctxs[len(drv.ctxs)-1]
	if fmt.Sprintf("%v", last[1]) != "123456---111111" {
		t.Errorf("log_id override failed: %v", last)
	}
	warn := drv.ctxs[len(drv.ctxs)-2]
	if fmt.Sprintf("%v", warn[len(warn)-2]) != "unknow" {
		t.Errorf("odd ctx should be padded: %v", warn)
	}
}

func TestNewLoggerFallback(t *testing.T) {
	lg, err := NewLogger("", "unit")
	if err != nil {
		t.Fatal(err)
	}
	lg.Info("console fallback works", "k", "v")
}

func TestOpenLog(t *testing.T) {
	conf := config.GetDefLogConf()
	conf.Console = false
	conf.RotateInterval = 0
	driver, err := OpenLog(conf, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	lg, _ := NewLogFitter(driver, "open_log")
	lg.Info("file logging", "key1", "k1")
}

package utils

import (
	"os"
	"sync"
	"testing"
)

const (
	// producer Concurrent
	ProducerConcurrent = 100
	// Total generate number
	ProducerGenTotal = 10000
)

func TestFileIsExist(t *testing.T) {
	if FileIsExist("/path/not/exist/at/all") {
		t.Errorf("unexpected exist")
	}
	dir, err := os.MkdirTemp("", "xdock-utils")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	if !FileIsExist(dir) {
		t.Errorf("temp dir should exist")
	}
}

// 用来验证logId生成算法的冲突率，日志场景下足够了
func TestGenLogId(t *testing.T) {
	ch := make(chan string, ProducerGenTotal)
	wg := &sync.WaitGroup{}
	ctl := make(chan struct{}, ProducerConcurrent)
	for i := 0; i < ProducerGenTotal; i++ {
		wg.Add(1)
		ctl <- struct{}{}
		go func() {
			defer wg.Done()
			ch <- GenLogId()
			<-ctl
		}()
	}
	wg.Wait()
	close(ch)

	seen := make(map[string]int)
	repeat := 0
	for id := range ch {
		seen[id]++
		if seen[id] > 1 {
			repeat++
		}
	}
	if repeat*1000 > ProducerGenTotal {
		t.Errorf("too many repeated log id. total:%d repeat:%d", ProducerGenTotal, repeat)
	}
}

func TestHex(t *testing.T) {
	raw := DecodeHex("0x0a0B")
	if F(raw) != "0a0b" {
		t.Errorf("hex round trip failed: %s", F(raw))
	}
	if DecodeHex("zz") != nil {
		t.Errorf("expect nil for malformed hex")
	}
	if TrimHexPrefix("abc") != "abc" {
		t.Errorf("trim without prefix changed value")
	}
}

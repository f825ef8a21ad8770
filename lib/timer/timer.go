package timer

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// MarkPoint define data structure of marked point
type MarkPoint struct {
	tag   string
	delta time.Duration
}

// XTimer records the elapsed time between named stages of one operation,
// e.g. validate/estimate/submit of a foreign chain submission.
type XTimer struct {
	mu         sync.Mutex
	bornTime   time.Time
	latestTime time.Time
	points     []*MarkPoint
}

// NewXTimer create new XTimer instance
func NewXTimer() *XTimer {
	now := time.Now()
	return &XTimer{
		bornTime:   now,
		latestTime: now,
	}
}

// Mark mark a point and record the tag of the point with time delta
func (timer *XTimer) Mark(tag string) time.Duration {
	timer.mu.Lock()
	defer timer.mu.Unlock()

	now := time.Now()
	delta := now.Sub(timer.latestTime)
	timer.latestTime = now
	timer.points = append(timer.points, &MarkPoint{tag: tag, delta: delta})
	return delta
}

// Total elapsed since the timer was created.
func (timer *XTimer) Total() time.Duration {
	return time.Since(timer.bornTime)
}

// Print all record points and timestamp information
func (timer *XTimer) Print() string {
	timer.mu.Lock()
	defer timer.mu.Unlock()

	msg := make([]string, 0, len(timer.points)+1)
	for _, point := range timer.points {
		msg = append(msg, fmt.Sprintf("%s:%.2fms", point.tag, ms(point.delta)))
	}
	msg = append(msg, fmt.Sprintf("total:%.2fms", ms(time.Since(timer.bornTime))))
	return strings.Join(msg, ",")
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

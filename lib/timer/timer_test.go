package timer

import (
	"strings"
	"testing"
	"time"
)

func TestMark(t *testing.T) {
	tmr := NewXTimer()
	time.Sleep(5 * time.Millisecond)
	if d := tmr.Mark("validate"); d < 5*time.Millisecond {
		t.Errorf("unexpected delta %v", d)
	}
	tmr.Mark("submit")

	out := tmr.Print()
	for _, tag := range []string{"validate:", "submit:", "total:"} {
		if !strings.Contains(out, tag) {
			t.Errorf("missing %s in %s", tag, out)
		}
	}
	if tmr.Total() < 5*time.Millisecond {
		t.Errorf("total too small")
	}
}

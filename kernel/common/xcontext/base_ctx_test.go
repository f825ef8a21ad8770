package xcontext

import (
	"context"
	"testing"
	"time"
)

func TestNewOpCtx(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ctx, err := NewOpCtx(parent, "unit")
	if err != nil {
		t.Fatal(err)
	}
	if ctx.GetLog() == nil || ctx.GetTimer() == nil {
		t.Errorf("context should be valid")
	}
	if _, ok := ctx.Deadline(); !ok {
		t.Errorf("deadline should be inherited from parent")
	}
	cancel()
	<-ctx.Done()
	if ctx.Err() == nil {
		t.Errorf("cancel should propagate")
	}

	var xctx XContext = ctx
	xctx.GetTimer().Mark("done")
	xctx.GetLog().Info("op finished", "cost", xctx.GetTimer().Print())
}

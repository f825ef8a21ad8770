package docking

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run drives the block polling loop and the resend/sweep loop until ctx is
// done. Loop iterations never stop the process, failures are logged.
func (d *Docking) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.loop(ctx, "poll", d.conf.PollInterval, d.pollOnce)
		return nil
	})
	g.Go(func() error {
		d.loop(ctx, "resend", d.conf.ResendInterval, func(ctx context.Context) error {
			if err := d.resendDue(ctx); err != nil {
				return err
			}
			return d.sweep(ctx)
		})
		return nil
	})
	d.log.Info("docking started", "symbol", d.conf.Symbol, "multiSig", d.cap.MultiSigAddress())
	err := g.Wait()
	d.log.Info("docking stopped")
	return err
}

func (d *Docking) loop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := d.safeRun(ctx, fn); err != nil && ctx.Err() == nil {
			d.log.Warn("loop iteration failed", "loop", name, "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *Docking) safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("loop iteration panic", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

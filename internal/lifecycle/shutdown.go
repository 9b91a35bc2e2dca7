// Package lifecycle turns OS signals into shutdown notifications.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/ro"
)

// ShutdownSignals are the OS signals that trigger graceful shutdown.
var ShutdownSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
}

// Signals returns an Observable that emits the first of the given signals
// and completes. Each subscription registers its own handler, removed on
// teardown.
func Signals(signals ...os.Signal) ro.Observable[os.Signal] {
	return ro.NewObservableWithContext(func(ctx context.Context, observer ro.Observer[os.Signal]) ro.Teardown {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, signals...)
		stop := make(chan struct{})

		go func() {
			select {
			case sig := <-ch:
				observer.NextWithContext(ctx, sig)
				observer.CompleteWithContext(ctx)
			case <-ctx.Done():
				observer.ErrorWithContext(ctx, ctx.Err())
			case <-stop:
			}
		}()

		return func() {
			signal.Stop(ch)
			close(stop)
		}
	})
}

// Wait blocks until a shutdown signal arrives or ctx is done.
func Wait(ctx context.Context) (os.Signal, error) {
	results, _, err := ro.CollectWithContext(ctx, Signals(ShutdownSignals...))
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ctx.Err()
	}
	return results[0], nil
}

// NotifyContext returns a context canceled on the first shutdown signal.
// onSignal, if non-nil, runs before the cancellation.
func NotifyContext(parent context.Context, onSignal func(os.Signal)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sub := Signals(ShutdownSignals...).SubscribeWithContext(ctx, ro.OnNextWithContext(func(_ context.Context, sig os.Signal) {
		if onSignal != nil {
			onSignal(sig)
		}
		cancel()
	}))
	return ctx, func() {
		cancel()
		sub.Unsubscribe()
	}
}

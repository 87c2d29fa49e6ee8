package main

import (
	"context"
	"time"
)

// Debounce forwards the last value received on in once delay has passed
// without another value arriving. Intermediate values are dropped. When ctx
// ends or in is closed, a value still waiting is discarded and the returned
// channel is closed.
func Debounce[T any](ctx context.Context, in <-chan T, delay time.Duration) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		timer := time.NewTimer(delay)
		stopTimer(timer)
		defer timer.Stop()

		var pending T
		var waiting bool
		for {
			var fire <-chan time.Time
			if waiting {
				fire = timer.C
			}
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				pending, waiting = v, true
				stopTimer(timer)
				timer.Reset(delay)
			case <-fire:
				waiting = false
				select {
				case out <- pending:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

package provider

import (
	"context"
	"fmt"
	"time"
)

// Call runs a.Fetch bounded by timeout and converts every outcome into a Result.
// A panicking or hung adapter yields a failed Result; Call never panics and
// never waits longer than timeout. A zero timeout means no bound beyond ctx.
func Call(ctx context.Context, a Adapter, q Query, timeout time.Duration) Result {
	name := a.Name()

	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Failure(name, fmt.Errorf("adapter panicked: %v", r))
			}
		}()

		data, err := a.Fetch(ctx, q)
		if err != nil {
			done <- Failure(name, err)
			return
		}
		done <- Success(name, data)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return Failure(name, ctx.Err())
	}
}

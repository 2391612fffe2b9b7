package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vietscribe/vietscribe/translate"
)

// temporary is satisfied by the remote error types of both clients.
type temporary interface {
	Temporary() bool
}

// forEach runs fn for every unit index with at most cfg.Concurrency calls in
// flight. The first failure cancels the remaining units and aborts the whole
// invocation; forEach returns only after every started unit has finished, so
// callers have a join barrier before assembly.
func (p *Pipeline) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, p.cfg.Concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			if err := fn(ctx, i); err != nil {
				fail(err)
			}
		}(i)
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// withRetry drives one remote unit to completion under the configured retry
// policy: temporary remote failures retry with doubling backoff up to
// cfg.MaxAttempts total tries, a refusal is retried exactly once with the
// same input, and everything else surfaces immediately. Each attempt runs
// under its own timeout when cfg.UnitTimeout is set.
func withRetry[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	backoff := cfg.RetryBackoff
	refusals := 0

	for attempt := 1; ; attempt++ {
		out, err := runUnit(ctx, cfg.UnitTimeout, op)
		if err == nil {
			return out, nil
		}

		var refusal *translate.RefusalError
		if errors.As(err, &refusal) {
			refusals++
			if refusals >= 2 {
				return out, err
			}
			slog.Warn("model refused to translate, retrying once", "error", err)
			continue
		}

		var tmp temporary
		if errors.As(err, &tmp) && tmp.Temporary() && attempt < cfg.MaxAttempts {
			slog.Warn("transient remote failure, backing off",
				"attempt", attempt,
				"backoff", backoff,
				"error", err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return out, ctx.Err()
			}
			backoff *= 2
			continue
		}

		return out, err
	}
}

func runUnit[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(ctx)
}

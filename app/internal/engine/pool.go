package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"infrastatus/app/internal/checker"
)

// Probes, replaceable in tests.
var (
	checkDomain     = checker.CheckDomain
	checkServer     = checker.CheckServer
	checkGameServer = checker.CheckGameServer
)

// runPool calls fn for every target, each holding one of the cycle's
// worker slots, so the limit spans every kind of an "all" cycle.
// Targets not yet started when ctx is done are skipped.
func runPool[T any](ctx context.Context, slots *semaphore.Weighted, targets []T, fn func(T)) {
	var wg sync.WaitGroup
	for _, t := range targets {
		if err := slots.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Go(func() {
			defer slots.Release(1)
			fn(t)
		})
	}
	wg.Wait()
}

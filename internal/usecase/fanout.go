package usecase

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"diplomacy-reset/internal/domain"
)

const defaultMaxInFlight = 64

// Coordinator fans out independent remote actions and joins their outcomes.
// One weighted semaphore bounds the total number of in-flight calls across
// every dispatch sharing the coordinator, so a workspace with a huge
// membership cannot open an unbounded number of simultaneous connections.
type Coordinator struct {
	sem    *semaphore.Weighted
	report func(domain.Outcome)
}

// NewCoordinator creates a coordinator allowing at most maxInFlight calls at
// once. report, when non-nil, is invoked on every outcome at the moment the
// action resolves.
func NewCoordinator(maxInFlight int64, report func(domain.Outcome)) *Coordinator {
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	return &Coordinator{
		sem:    semaphore.NewWeighted(maxInFlight),
		report: report,
	}
}

// Dispatch runs action once per item and waits for every started action to
// reach a terminal state before returning. The result always holds exactly
// one outcome per item, in item order, however many of them failed; a failure
// never short-circuits its siblings. An empty item slice completes
// immediately.
func Dispatch[T domain.Entity](ctx context.Context, c *Coordinator, kind domain.ActionKind, items []T, action func(context.Context, T) error) []domain.Outcome {
	outcomes := make([]domain.Outcome, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			err := c.sem.Acquire(ctx, 1)
			if err == nil {
				err = action(ctx, item)
				c.sem.Release(1)
			}
			out := domain.Outcome{Entity: item.EntityID(), Action: kind, Err: err}
			if c.report != nil {
				c.report(out)
			}
			outcomes[i] = out
		}(i, item)
	}
	wg.Wait()
	return outcomes
}

// Package launch starts the members of a group.
package launch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hurou927/spmd-components/internal/collective"
)

// Worker is the body every member runs.
type Worker func(ctx context.Context, comm collective.Communicator) error

// Local runs np members of an in-process group, one goroutine each, and
// waits for all of them. The first failure cancels the others. The error
// returned is the root cause, not the aborts it triggered elsewhere.
func Local(ctx context.Context, np int, fn Worker) error {
	group, err := collective.NewLocalGroup(np)
	if err != nil {
		return err
	}

	errs := make([]error, np)
	g, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < np; rank++ {
		comm, err := group.Member(rank)
		if err != nil {
			return err
		}
		g.Go(func() error {
			defer comm.Close()
			if err := fn(gctx, comm); err != nil {
				errs[rank] = fmt.Errorf("rank %d: %w", rank, err)
				return errs[rank]
			}
			return nil
		})
	}
	first := g.Wait()
	if first == nil {
		return nil
	}
	return RootCause(errs)
}

// RootCause picks the most informative of per-member errors: the first one
// that is neither a group abort nor a cancellation, else the first non-nil.
func RootCause(errs []error) error {
	var fallback error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if fallback == nil {
			fallback = err
		}
		if !errors.Is(err, collective.ErrAborted) && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return fallback
}

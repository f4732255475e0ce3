package propagate

import (
	"context"
	"fmt"

	"github.com/hurou927/spmd-components/internal/collective"
)

// Reducer merges the candidate labelings of all members.
type Reducer struct {
	comm collective.Communicator
}

// NewReducer returns a Reducer over comm.
func NewReducer(comm collective.Communicator) *Reducer {
	return &Reducer{comm: comm}
}

// Reduce lowers s.next to the group-wide minimum, decides with the group
// whether any label changed, then installs the result as the current
// labeling. lowered is the number of vertices whose label dropped.
func (r *Reducer) Reduce(ctx context.Context, s *Store) (changed bool, lowered int, err error) {
	if err := r.comm.AllreduceMin(ctx, s.next); err != nil {
		return false, 0, fmt.Errorf("reducing labels: %w", err)
	}

	for i, v := range s.next {
		if s.comp[i] != v {
			lowered++
		}
	}

	changed, err = r.comm.AllreduceOr(ctx, lowered > 0)
	if err != nil {
		return false, 0, fmt.Errorf("reducing change flag: %w", err)
	}
	s.swap()
	return changed, lowered, nil
}

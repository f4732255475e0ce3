package collective

import (
	"context"
	"fmt"
	"sync"
)

// round is one in-flight collective shared by all members of a LocalGroup.
type round struct {
	op      Op
	root    int
	parts   [][]int
	seen    []bool
	arrived int
	done    chan struct{}
	result  []int
	err     error
}

// LocalGroup is a group of goroutines in one process. Each collective is a
// rendezvous: the last member to arrive reduces and closes the round's done
// channel, releasing everyone.
type LocalGroup struct {
	size int

	mu  sync.Mutex
	cur *round

	aborted   chan struct{}
	abortOnce sync.Once
	abortErr  error
}

// NewLocalGroup creates a group of size members.
func NewLocalGroup(size int) (*LocalGroup, error) {
	if size < 1 {
		return nil, fmt.Errorf("group size must be at least 1, got %d", size)
	}
	return &LocalGroup{size: size, aborted: make(chan struct{})}, nil
}

// Member returns the communicator for rank.
func (g *LocalGroup) Member(rank int) (Communicator, error) {
	if rank < 0 || rank >= g.size {
		return nil, fmt.Errorf("rank %d outside group of %d", rank, g.size)
	}
	return &localComm{group: g, rank: rank}, nil
}

func (g *LocalGroup) abort(err error) {
	g.abortOnce.Do(func() {
		g.abortErr = err
		close(g.aborted)
	})
}

func (g *LocalGroup) exchange(ctx context.Context, rank int, op Op, root int, payload []int) ([]int, error) {
	select {
	case <-g.aborted:
		return nil, g.abortErr
	default:
	}

	g.mu.Lock()
	r := g.cur
	if r == nil {
		r = &round{
			op:    op,
			root:  root,
			parts: make([][]int, g.size),
			seen:  make([]bool, g.size),
			done:  make(chan struct{}),
		}
		g.cur = r
	}
	if r.op != op || r.root != root || r.seen[rank] {
		g.mu.Unlock()
		err := fmt.Errorf("%w: rank %d called %s(root=%d) while group is in %s(root=%d)",
			ErrCommunication, rank, op, root, r.op, r.root)
		g.abort(&AbortError{Rank: rank, Cause: err.Error()})
		return nil, err
	}
	r.parts[rank] = payload
	r.seen[rank] = true
	r.arrived++
	if r.arrived == g.size {
		r.result, r.err = reduce(op, root, r.parts)
		g.cur = nil
		close(r.done)
	}
	g.mu.Unlock()

	select {
	case <-r.done:
	case <-g.aborted:
		return nil, g.abortErr
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s on rank %d: %w", ErrCommunication, op, rank, ctx.Err())
	}
	if r.err != nil {
		return nil, r.err
	}
	if r.result == nil {
		return nil, nil
	}
	out := make([]int, len(r.result))
	copy(out, r.result)
	return out, nil
}

type localComm struct {
	group  *LocalGroup
	rank   int
	closed bool
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.group.size }

func (c *localComm) Barrier(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	_, err := c.group.exchange(ctx, c.rank, OpBarrier, 0, nil)
	return err
}

func (c *localComm) Broadcast(ctx context.Context, root int, buf []int) ([]int, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.rank != root {
		buf = nil
	}
	return c.group.exchange(ctx, c.rank, OpBroadcast, root, buf)
}

func (c *localComm) AllreduceMin(ctx context.Context, buf []int) error {
	if c.closed {
		return ErrClosed
	}
	out, err := c.group.exchange(ctx, c.rank, OpMin, 0, buf)
	if err != nil {
		return err
	}
	copy(buf, out)
	return nil
}

func (c *localComm) AllreduceOr(ctx context.Context, flag bool) (bool, error) {
	if c.closed {
		return false, ErrClosed
	}
	out, err := c.group.exchange(ctx, c.rank, OpOr, 0, boolPayload(flag))
	if err != nil {
		return false, err
	}
	return out[0] != 0, nil
}

func (c *localComm) Abort(_ context.Context, cause error) error {
	c.group.abort(&AbortError{Rank: c.rank, Cause: causeText(cause)})
	return nil
}

func (c *localComm) Close() error {
	c.closed = true
	return nil
}

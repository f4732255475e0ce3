package collective

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// runGroup runs fn once per rank of a fresh LocalGroup and waits for all.
func runGroup(t *testing.T, size int, fn func(ctx context.Context, c Communicator) error) error {
	t.Helper()
	group, err := NewLocalGroup(size)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < size; rank++ {
		c, err := group.Member(rank)
		require.NoError(t, err)
		g.Go(func() error { return fn(gctx, c) })
	}
	return g.Wait()
}

func TestLocal_Broadcast(t *testing.T) {
	var mu sync.Mutex
	got := make(map[int][]int)

	err := runGroup(t, 4, func(ctx context.Context, c Communicator) error {
		var buf []int
		if c.Rank() == 2 {
			buf = []int{7, 8, 9}
		} else {
			buf = []int{-1}
		}
		out, err := c.Broadcast(ctx, 2, buf)
		if err != nil {
			return err
		}
		mu.Lock()
		got[c.Rank()] = out
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	for rank := 0; rank < 4; rank++ {
		assert.Equal(t, []int{7, 8, 9}, got[rank], "rank %d", rank)
	}
}

func TestLocal_AllreduceMinAndOr(t *testing.T) {
	var mu sync.Mutex
	mins := make(map[int][]int)
	ors := make(map[int]bool)

	err := runGroup(t, 3, func(ctx context.Context, c Communicator) error {
		buf := []int{10 + c.Rank(), 5 - c.Rank(), 3}
		if err := c.AllreduceMin(ctx, buf); err != nil {
			return err
		}
		flag, err := c.AllreduceOr(ctx, c.Rank() == 1)
		if err != nil {
			return err
		}
		mu.Lock()
		mins[c.Rank()] = buf
		ors[c.Rank()] = flag
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	for rank := 0; rank < 3; rank++ {
		assert.Equal(t, []int{10, 3, 3}, mins[rank])
		assert.True(t, ors[rank])
	}
}

func TestLocal_OrAllFalse(t *testing.T) {
	err := runGroup(t, 3, func(ctx context.Context, c Communicator) error {
		flag, err := c.AllreduceOr(ctx, false)
		if err != nil {
			return err
		}
		if flag {
			return errors.New("expected false")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLocal_ManyRoundsStayInStep(t *testing.T) {
	const rounds = 200
	err := runGroup(t, 5, func(ctx context.Context, c Communicator) error {
		for i := 0; i < rounds; i++ {
			buf := []int{i*10 + c.Rank()}
			if err := c.AllreduceMin(ctx, buf); err != nil {
				return err
			}
			if buf[0] != i*10 {
				return errors.New("wrong minimum")
			}
			if err := c.Barrier(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestLocal_MismatchedCollectiveAborts(t *testing.T) {
	err := runGroup(t, 2, func(ctx context.Context, c Communicator) error {
		if c.Rank() == 0 {
			return c.Barrier(ctx)
		}
		time.Sleep(10 * time.Millisecond)
		_, err := c.AllreduceOr(ctx, true)
		return err
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommunication) || errors.Is(err, ErrAborted))
}

func TestLocal_AbortReleasesWaiters(t *testing.T) {
	cause := errors.New("bad input")
	var mu sync.Mutex
	var errs []error

	_ = runGroup(t, 3, func(ctx context.Context, c Communicator) error {
		if c.Rank() == 0 {
			time.Sleep(10 * time.Millisecond)
			return c.Abort(ctx, cause)
		}
		_, err := c.Broadcast(ctx, 0, nil)
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
		return nil
	})

	require.Len(t, errs, 2)
	for _, err := range errs {
		require.ErrorIs(t, err, ErrAborted)
		var ae *AbortError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, 0, ae.Rank)
		assert.Equal(t, "bad input", ae.Cause)
	}
}

func TestLocal_SingleMember(t *testing.T) {
	err := runGroup(t, 1, func(ctx context.Context, c Communicator) error {
		buf := []int{4, 2}
		if err := c.AllreduceMin(ctx, buf); err != nil {
			return err
		}
		out, err := c.Broadcast(ctx, 0, buf)
		if err != nil {
			return err
		}
		assert.Equal(t, []int{4, 2}, out)
		return c.Barrier(ctx)
	})
	require.NoError(t, err)
}

func TestNewLocalGroup_Invalid(t *testing.T) {
	_, err := NewLocalGroup(0)
	assert.Error(t, err)

	g, err := NewLocalGroup(2)
	require.NoError(t, err)
	_, err = g.Member(2)
	assert.Error(t, err)
}

func TestMinInto(t *testing.T) {
	dst := []int{5, 1, 9}
	require.NoError(t, MinInto(dst, []int{4, 2, 9}))
	assert.Equal(t, []int{4, 1, 9}, dst)

	assert.ErrorIs(t, MinInto(dst, []int{1}), ErrCommunication)
}

// Package collective provides the group operations an SPMD worker uses to
// talk to its peers: barrier, broadcast and all-reduce. Every call blocks
// until all members of the group reach the matching call.
//
// Two implementations exist. Local connects goroutines of one process over
// channels; NNG connects processes over a mangos request/reply star centred on
// rank 0. Both reduce with the same functions, so results are identical.
package collective

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/exp/constraints"
)

var (
	// ErrCommunication marks a collective that could not complete.
	ErrCommunication = errors.New("collective communication failure")

	// ErrAborted is returned by every pending and later collective once a
	// member aborts the group.
	ErrAborted = errors.New("group aborted")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("communicator closed")
)

// Communicator is one member's handle on the group.
type Communicator interface {
	// Rank is this member's 0-based identity, stable for the run.
	Rank() int
	// Size is the number of members, fixed at launch.
	Size() int

	// Barrier returns once every member has called it.
	Barrier(ctx context.Context) error
	// Broadcast returns root's buf on every member. Non-root buf is ignored.
	Broadcast(ctx context.Context, root int, buf []int) ([]int, error)
	// AllreduceMin replaces buf with the element-wise minimum over all members.
	AllreduceMin(ctx context.Context, buf []int) error
	// AllreduceOr returns the logical OR of flag over all members.
	AllreduceOr(ctx context.Context, flag bool) (bool, error)

	// Abort fails the group with cause; blocked and future collectives on
	// every member return ErrAborted.
	Abort(ctx context.Context, cause error) error
	Close() error
}

// Op identifies a collective on the wire and in metrics.
type Op uint8

const (
	OpBarrier Op = iota + 1
	OpBroadcast
	OpMin
	OpOr
	OpAbort
)

func (o Op) String() string {
	switch o {
	case OpBarrier:
		return "barrier"
	case OpBroadcast:
		return "broadcast"
	case OpMin:
		return "allreduce_min"
	case OpOr:
		return "allreduce_or"
	case OpAbort:
		return "abort"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// MinInto lowers dst element-wise to src. Lengths must match.
func MinInto[T constraints.Ordered](dst, src []T) error {
	if len(dst) != len(src) {
		return fmt.Errorf("%w: reduce length mismatch %d != %d", ErrCommunication, len(dst), len(src))
	}
	for i, v := range src {
		if v < dst[i] {
			dst[i] = v
		}
	}
	return nil
}

// reduce combines one contribution per rank into the value every rank
// receives. parts is indexed by rank. root only matters for OpBroadcast.
func reduce(op Op, root int, parts [][]int) ([]int, error) {
	switch op {
	case OpBarrier:
		return nil, nil
	case OpBroadcast:
		if root < 0 || root >= len(parts) {
			return nil, fmt.Errorf("%w: broadcast root %d outside group of %d", ErrCommunication, root, len(parts))
		}
		out := make([]int, len(parts[root]))
		copy(out, parts[root])
		return out, nil
	case OpMin:
		out := make([]int, len(parts[0]))
		copy(out, parts[0])
		for _, p := range parts[1:] {
			if err := MinInto(out, p); err != nil {
				return nil, err
			}
		}
		return out, nil
	case OpOr:
		for _, p := range parts {
			if len(p) == 1 && p[0] != 0 {
				return []int{1}, nil
			}
		}
		return []int{0}, nil
	default:
		return nil, fmt.Errorf("%w: unknown collective %s", ErrCommunication, op)
	}
}

func causeText(err error) string {
	if err == nil {
		return "unspecified"
	}
	return err.Error()
}

func boolPayload(b bool) []int {
	if b {
		return []int{1}
	}
	return []int{0}
}

// AbortError carries the cause reported by the aborting member.
type AbortError struct {
	Rank  int
	Cause string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("group aborted by rank %d: %s", e.Rank, e.Cause)
}

func (e *AbortError) Is(target error) bool {
	return target == ErrAborted
}

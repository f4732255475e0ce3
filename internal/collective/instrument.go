package collective

import (
	"context"
	"time"

	"github.com/hurou927/spmd-components/internal/logging"
)

// Recorder receives the outcome of every collective call.
type Recorder interface {
	ObserveCollective(op string, d time.Duration, err error)
}

type instrumented struct {
	Communicator
	rec    Recorder
	logger logging.Logger
}

// Instrument wraps c so that every collective is timed, recorded and logged
// at debug level. rec may be nil.
func Instrument(c Communicator, rec Recorder, logger logging.Logger) Communicator {
	return &instrumented{Communicator: c, rec: rec, logger: logger}
}

func (i *instrumented) observe(op Op, start time.Time, err error) {
	d := time.Since(start)
	if i.rec != nil {
		i.rec.ObserveCollective(op.String(), d, err)
	}
	if err != nil {
		i.logger.Error("collective failed", logging.Op(op.String()), logging.Latency(d), logging.Error(err))
		return
	}
	i.logger.Debug("collective done", logging.Op(op.String()), logging.Latency(d))
}

func (i *instrumented) Barrier(ctx context.Context) error {
	start := time.Now()
	err := i.Communicator.Barrier(ctx)
	i.observe(OpBarrier, start, err)
	return err
}

func (i *instrumented) Broadcast(ctx context.Context, root int, buf []int) ([]int, error) {
	start := time.Now()
	out, err := i.Communicator.Broadcast(ctx, root, buf)
	i.observe(OpBroadcast, start, err)
	return out, err
}

func (i *instrumented) AllreduceMin(ctx context.Context, buf []int) error {
	start := time.Now()
	err := i.Communicator.AllreduceMin(ctx, buf)
	i.observe(OpMin, start, err)
	return err
}

func (i *instrumented) AllreduceOr(ctx context.Context, flag bool) (bool, error) {
	start := time.Now()
	out, err := i.Communicator.AllreduceOr(ctx, flag)
	i.observe(OpOr, start, err)
	return out, err
}

func (i *instrumented) Abort(ctx context.Context, cause error) error {
	i.logger.Warn("aborting group", logging.Error(cause))
	start := time.Now()
	err := i.Communicator.Abort(ctx, cause)
	i.observe(OpAbort, start, err)
	return err
}

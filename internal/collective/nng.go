package collective

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/rep"
	"go.nanomsg.org/mangos/v3/protocol/req"
	"golang.org/x/sync/errgroup"

	// Register all transports (tcp, ipc, inproc, ...)
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// TransportRecorder receives wire byte counts. Optional.
type TransportRecorder interface {
	AddTransportBytes(direction string, n int)
}

// NNGConfig describes one member of a multi-process group.
type NNGConfig struct {
	Rank int
	Size int
	// Addr is where rank 0 listens and every other rank dials,
	// e.g. tcp://10.0.0.5:40899 or ipc:///tmp/spmd.sock.
	Addr string
	// RunID is generated by rank 0 when zero; other ranks adopt rank 0's.
	RunID uuid.UUID
	// RecvDeadline bounds each receive. Zero waits forever.
	RecvDeadline time.Duration
	Recorder     TransportRecorder
}

// NNG is a Communicator over a mangos request/reply star. Rank 0 hosts a
// REP socket with one context per peer; every collective gathers one request
// from each peer, reduces, and replies the result to all of them. Peers use a
// REQ socket with resends disabled, so each request is seen exactly once.
type NNG struct {
	cfg  NNGConfig
	sock mangos.Socket
	ctxs []mangos.Context

	mu       sync.Mutex
	seq      uint64
	runID    uuid.UUID
	abortErr error
	closed   bool
}

// DialNNG opens this member's socket. Rank 0 listens; other ranks dial
// asynchronously, so start order does not matter.
func DialNNG(cfg NNGConfig) (*NNG, error) {
	if cfg.Size < 1 {
		return nil, fmt.Errorf("group size must be at least 1, got %d", cfg.Size)
	}
	if cfg.Rank < 0 || cfg.Rank >= cfg.Size {
		return nil, fmt.Errorf("rank %d outside group of %d", cfg.Rank, cfg.Size)
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("group address is required")
	}

	c := &NNG{cfg: cfg, runID: cfg.RunID}
	var err error
	if cfg.Rank == 0 {
		err = c.listen()
	} else {
		err = c.dial()
	}
	if err != nil {
		if c.sock != nil {
			c.sock.Close()
		}
		return nil, err
	}
	return c, nil
}

func (c *NNG) listen() error {
	if c.runID == uuid.Nil {
		c.runID = uuid.New()
	}

	sock, err := rep.NewSocket()
	if err != nil {
		return fmt.Errorf("failed to create REP socket: %w", err)
	}
	c.sock = sock

	for i := 1; i < c.cfg.Size; i++ {
		mc, err := sock.OpenContext()
		if err != nil {
			return fmt.Errorf("failed to open REP context: %w", err)
		}
		if c.cfg.RecvDeadline > 0 {
			if err := mc.SetOption(mangos.OptionRecvDeadline, c.cfg.RecvDeadline); err != nil {
				return fmt.Errorf("setting receive deadline: %w", err)
			}
		}
		c.ctxs = append(c.ctxs, mc)
	}

	if err := sock.Listen(c.cfg.Addr); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.cfg.Addr, err)
	}
	return nil
}

func (c *NNG) dial() error {
	sock, err := req.NewSocket()
	if err != nil {
		return fmt.Errorf("failed to create REQ socket: %w", err)
	}
	c.sock = sock

	if err := sock.SetOption(mangos.OptionRetryTime, time.Duration(0)); err != nil {
		return fmt.Errorf("disabling request resend: %w", err)
	}
	if err := sock.SetOption(mangos.OptionDialAsynch, true); err != nil {
		return fmt.Errorf("enabling async dial: %w", err)
	}
	if c.cfg.RecvDeadline > 0 {
		if err := sock.SetOption(mangos.OptionRecvDeadline, c.cfg.RecvDeadline); err != nil {
			return fmt.Errorf("setting receive deadline: %w", err)
		}
	}
	if err := sock.Dial(c.cfg.Addr); err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.cfg.Addr, err)
	}
	return nil
}

func (c *NNG) Rank() int { return c.cfg.Rank }
func (c *NNG) Size() int { return c.cfg.Size }

// RunID is the group's run identity. On ranks other than 0 it is known
// after the first collective completes.
func (c *NNG) RunID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

func (c *NNG) Barrier(ctx context.Context) error {
	_, err := c.exchange(ctx, OpBarrier, 0, nil)
	return err
}

func (c *NNG) Broadcast(ctx context.Context, root int, buf []int) ([]int, error) {
	if c.cfg.Rank != root {
		buf = nil
	}
	return c.exchange(ctx, OpBroadcast, root, buf)
}

func (c *NNG) AllreduceMin(ctx context.Context, buf []int) error {
	out, err := c.exchange(ctx, OpMin, 0, buf)
	if err != nil {
		return err
	}
	if len(out) != len(buf) {
		return fmt.Errorf("%w: reduced %d labels, expected %d", ErrCommunication, len(out), len(buf))
	}
	copy(buf, out)
	return nil
}

func (c *NNG) AllreduceOr(ctx context.Context, flag bool) (bool, error) {
	out, err := c.exchange(ctx, OpOr, 0, boolPayload(flag))
	if err != nil {
		return false, err
	}
	if len(out) != 1 {
		return false, fmt.Errorf("%w: malformed OR result", ErrCommunication)
	}
	return out[0] != 0, nil
}

// Abort fails the group. On rank 0 it answers the pending request of every
// peer with an abort frame; on other ranks it sends the abort to rank 0,
// which fans it out.
func (c *NNG) Abort(ctx context.Context, cause error) error {
	seq, runID, err := c.begin()
	if err != nil {
		return nil
	}
	abortErr := &AbortError{Rank: c.cfg.Rank, Cause: causeText(cause)}
	defer c.setAborted(abortErr)
	if c.cfg.Size == 1 {
		return nil
	}

	stop := context.AfterFunc(ctx, func() { c.sock.Close() })
	defer stop()

	if c.cfg.Rank == 0 {
		if _, err := c.gather(ctx); err != nil {
			return err
		}
		return c.replyAbort(seq, abortErr)
	}

	_, err = c.peerExchange(frame{
		Op:    OpAbort,
		Abort: true,
		Rank:  c.cfg.Rank,
		Seq:   seq,
		RunID: runID,
		Cause: abortErr.Cause,
	})
	if err != nil && !errors.Is(err, ErrAborted) {
		return err
	}
	return nil
}

func (c *NNG) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.sock.Close()
}

func (c *NNG) setAborted(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.abortErr == nil {
		c.abortErr = err
	}
}

func (c *NNG) begin() (uint64, uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, uuid.Nil, ErrClosed
	}
	if c.abortErr != nil {
		return 0, uuid.Nil, c.abortErr
	}
	c.seq++
	return c.seq, c.runID, nil
}

// exchange runs one collective.
func (c *NNG) exchange(ctx context.Context, op Op, root int, payload []int) ([]int, error) {
	seq, runID, err := c.begin()
	if err != nil {
		return nil, err
	}
	if c.cfg.Size == 1 {
		return reduce(op, root, [][]int{payload})
	}

	// mangos calls do not take a context; closing the socket unblocks them.
	stop := context.AfterFunc(ctx, func() { c.sock.Close() })
	defer stop()

	var out []int
	if c.cfg.Rank == 0 {
		out, err = c.hubExchange(ctx, op, root, seq, payload)
	} else {
		out, err = c.peerExchange(frame{Op: op, Rank: c.cfg.Rank, Seq: seq, Root: root, RunID: runID, Ints: payload})
	}
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCommunication, op, ctx.Err())
	}
	return out, err
}

func (c *NNG) peerExchange(request frame) ([]int, error) {
	raw := encodeFrame(request)
	if err := c.sock.Send(raw); err != nil {
		return nil, fmt.Errorf("%w: sending %s: %w", ErrCommunication, request.Op, err)
	}
	c.record("sent", len(raw))

	reply, err := c.sock.Recv()
	if err != nil {
		return nil, fmt.Errorf("%w: receiving %s reply: %w", ErrCommunication, request.Op, err)
	}
	c.record("received", len(reply))

	f, err := decodeFrame(reply)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s reply: %w", ErrCommunication, request.Op, err)
	}
	if f.Abort {
		abortErr := &AbortError{Rank: f.Rank, Cause: f.Cause}
		c.setAborted(abortErr)
		return nil, abortErr
	}
	if f.Op != request.Op || f.Seq != request.Seq {
		err := fmt.Errorf("%w: expected %s #%d, got %s #%d", ErrCommunication, request.Op, request.Seq, f.Op, f.Seq)
		c.setAborted(err)
		return nil, err
	}

	c.mu.Lock()
	if c.runID == uuid.Nil {
		c.runID = f.RunID
	}
	c.mu.Unlock()
	return f.Ints, nil
}

// gather receives exactly one request per peer, concurrently, one per context.
func (c *NNG) gather(ctx context.Context) ([]frame, error) {
	reqs := make([]frame, len(c.ctxs))
	g, _ := errgroup.WithContext(ctx)
	for i, mc := range c.ctxs {
		g.Go(func() error {
			raw, err := mc.Recv()
			if err != nil {
				return err
			}
			c.record("received", len(raw))
			f, err := decodeFrame(raw)
			if err != nil {
				return err
			}
			reqs[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: gathering requests: %w", ErrCommunication, err)
	}
	return reqs, nil
}

func (c *NNG) hubExchange(ctx context.Context, op Op, root int, seq uint64, payload []int) ([]int, error) {
	reqs, err := c.gather(ctx)
	if err != nil {
		c.setAborted(err)
		return nil, err
	}

	parts := make([][]int, c.cfg.Size)
	parts[0] = payload
	seen := make([]bool, c.cfg.Size)
	seen[0] = true

	var failure error
	for _, f := range reqs {
		switch {
		case f.Abort:
			failure = &AbortError{Rank: f.Rank, Cause: f.Cause}
		case f.Rank <= 0 || f.Rank >= c.cfg.Size || seen[f.Rank]:
			failure = fmt.Errorf("%w: unexpected or duplicate rank %d", ErrCommunication, f.Rank)
		case f.RunID != uuid.Nil && f.RunID != c.runID:
			failure = fmt.Errorf("%w: rank %d belongs to run %s", ErrCommunication, f.Rank, f.RunID)
		case f.Op != op || f.Seq != seq || f.Root != root:
			failure = fmt.Errorf("%w: rank %d called %s(root=%d) #%d while group is in %s(root=%d) #%d",
				ErrCommunication, f.Rank, f.Op, f.Root, f.Seq, op, root, seq)
		}
		if failure != nil {
			break
		}
		seen[f.Rank] = true
		parts[f.Rank] = f.Ints
	}

	var result []int
	if failure == nil {
		result, failure = reduce(op, root, parts)
	}
	if failure != nil {
		var abortErr *AbortError
		if !errors.As(failure, &abortErr) {
			abortErr = &AbortError{Rank: 0, Cause: failure.Error()}
		}
		if err := c.replyAbort(seq, abortErr); err != nil {
			return nil, err
		}
		c.setAborted(abortErr)
		return nil, failure
	}

	reply := encodeFrame(frame{Op: op, Seq: seq, Root: root, RunID: c.runID, Ints: result})
	for _, mc := range c.ctxs {
		if err := mc.Send(reply); err != nil {
			err = fmt.Errorf("%w: replying %s: %w", ErrCommunication, op, err)
			c.setAborted(err)
			return nil, err
		}
		c.record("sent", len(reply))
	}
	return result, nil
}

func (c *NNG) replyAbort(seq uint64, abortErr *AbortError) error {
	raw := encodeFrame(frame{
		Op:    OpAbort,
		Abort: true,
		Rank:  abortErr.Rank,
		Seq:   seq,
		RunID: c.runID,
		Cause: abortErr.Cause,
	})
	for _, mc := range c.ctxs {
		if err := mc.Send(raw); err != nil {
			return fmt.Errorf("%w: sending abort: %w", ErrCommunication, err)
		}
		c.record("sent", len(raw))
	}
	return nil
}

func (c *NNG) record(direction string, n int) {
	if c.cfg.Recorder != nil {
		c.cfg.Recorder.AddTransportBytes(direction, n)
	}
}

package collective

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Root is the rank that originates broadcasts and receives gathers.
const Root = 0

// AnyRank asks the coordinator to assign the lowest free worker rank on join.
const AnyRank = -1

type opKind string

const (
	opBroadcast opKind = "broadcast"
	opGather    opKind = "gather"
)

// round is the shared state of one collective operation.
type round struct {
	kind opKind

	// broadcast only
	frame     []byte
	published chan struct{}

	arrived  []bool
	pending  int
	failures []error
	chunks   [][]float64
	done     chan struct{}
}

func (r *round) err() error {
	var errs []error
	for rank, failure := range r.failures {
		if failure != nil {
			errs = append(errs, fmt.Errorf("rank %d: %w", rank, failure))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s failed: %w", ErrProtocol, r.kind, errors.Join(errs...))
}

// hub holds the rounds of a group. It is safe for concurrent use.
type hub struct {
	size int

	mu     sync.Mutex
	rounds map[uint64]*round
	joined []bool

	closed    chan struct{}
	closeOnce sync.Once
}

func newHub(size int) (*hub, error) {
	if size < 1 {
		return nil, fmt.Errorf("group size must be >= 1, got %d", size)
	}
	joined := make([]bool, size)
	joined[Root] = true
	return &hub{
		size:   size,
		rounds: make(map[uint64]*round),
		joined: joined,
		closed: make(chan struct{}),
	}, nil
}

// join reserves a worker rank. AnyRank picks the lowest free one.
func (h *hub) join(rank int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rank == AnyRank {
		for r := Root + 1; r < h.size; r++ {
			if !h.joined[r] {
				h.joined[r] = true
				return r, nil
			}
		}
		return 0, fmt.Errorf("%w: all %d ranks of the group have joined", ErrProtocol, h.size)
	}
	if rank <= Root || rank >= h.size {
		return 0, fmt.Errorf("%w: worker rank %d out of range [1, %d)", ErrProtocol, rank, h.size)
	}
	if h.joined[rank] {
		return 0, fmt.Errorf("%w: rank %d has already joined", ErrProtocol, rank)
	}
	h.joined[rank] = true
	return rank, nil
}

// roundLocked returns the round at seq, creating it on first use. h.mu must be held.
func (h *hub) roundLocked(seq uint64, kind opKind) (*round, error) {
	r, ok := h.rounds[seq]
	if !ok {
		r = &round{
			kind:      kind,
			published: make(chan struct{}),
			arrived:   make([]bool, h.size),
			pending:   h.size,
			failures:  make([]error, h.size),
			done:      make(chan struct{}),
		}
		if kind == opGather {
			r.chunks = make([][]float64, h.size)
		}
		h.rounds[seq] = r
	}
	if r.kind != kind {
		return nil, fmt.Errorf("%w: operation %d is a %s, got a %s", ErrProtocol, seq, r.kind, kind)
	}
	return r, nil
}

// publish makes the root's frame of a broadcast available to fetch.
func (h *hub) publish(seq uint64, frame []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, err := h.roundLocked(seq, opBroadcast)
	if err != nil {
		return err
	}
	if r.frame != nil {
		return fmt.Errorf("%w: broadcast %d published twice", ErrProtocol, seq)
	}
	r.frame = frame
	close(r.published)
	return nil
}

// fetch blocks until the frame of broadcast seq is published.
func (h *hub) fetch(ctx context.Context, seq uint64) ([]byte, error) {
	h.mu.Lock()
	r, err := h.roundLocked(seq, opBroadcast)
	h.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := h.wait(ctx, r.published); err != nil {
		return nil, err
	}
	return r.frame, nil
}

// arrive records one rank's participation in round seq, with its chunk for a gather
// and the failure it observed, if any.
func (h *hub) arrive(seq uint64, kind opKind, rank int, chunk []float64, failure error) (*round, error) {
	if rank < 0 || rank >= h.size {
		return nil, fmt.Errorf("%w: rank %d out of range [0, %d)", ErrProtocol, rank, h.size)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	r, err := h.roundLocked(seq, kind)
	if err != nil {
		return nil, err
	}
	if r.arrived[rank] {
		return nil, fmt.Errorf("%w: rank %d arrived twice at %s %d", ErrProtocol, rank, kind, seq)
	}
	r.arrived[rank] = true
	r.failures[rank] = failure
	if kind == opGather {
		r.chunks[rank] = chunk
	}
	r.pending--
	if r.pending == 0 {
		close(r.done)
	}
	return r, nil
}

// settle blocks until every rank has arrived at r and reports the joint outcome.
func (h *hub) settle(ctx context.Context, r *round) error {
	if err := h.wait(ctx, r.done); err != nil {
		return err
	}
	return r.err()
}

func (h *hub) wait(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	default:
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.closed:
		return ErrClosed
	}
}

func (h *hub) close() {
	h.closeOnce.Do(func() { close(h.closed) })
}

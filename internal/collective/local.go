package collective

import (
	"context"
	"slices"
)

// Communicator is one participant's view of a group.
//
// A Communicator is not safe for concurrent use: collective operations are matched by
// call order, so each participant issues them from a single goroutine.
type Communicator interface {
	// Rank is this participant's index in [0, Size()).
	Rank() int

	// Size is the number of participants in the group.
	Size() int

	// Broadcast distributes payload from the root. The root passes the payload and gets
	// it back; every other rank passes nil and receives a verified copy.
	Broadcast(ctx context.Context, payload []byte) ([]byte, error)

	// Gather delivers each rank's chunk to the root, which receives all of them indexed
	// by rank. Other ranks receive nil. A non-nil failure is reported to the root in place
	// of the chunk and makes the root's Gather fail with ErrProtocol.
	Gather(ctx context.Context, chunk []float64, failure error) ([][]float64, error)

	// Close releases the participant's resources.
	Close() error
}

// FrameFilter rewrites a broadcast frame as received by a rank. Tests use it to inject
// transport corruption.
type FrameFilter func(rank int, frame []byte) []byte

// LocalOption configures NewLocalGroup.
type LocalOption func(*Endpoint)

// WithFrameFilter installs a FrameFilter on every non-root endpoint of the group.
func WithFrameFilter(filter FrameFilter) LocalOption {
	return func(e *Endpoint) {
		if e.rank != Root {
			e.filter = filter
		}
	}
}

// Endpoint is a participant attached directly to its group's hub.
type Endpoint struct {
	hub    *hub
	rank   int
	seq    uint64
	filter FrameFilter
}

var _ Communicator = (*Endpoint)(nil)

// NewLocalGroup creates the size endpoints of an in-process group, indexed by rank.
// Closing the root endpoint releases every operation still pending on the group.
func NewLocalGroup(size int, opts ...LocalOption) ([]*Endpoint, error) {
	h, err := newHub(size)
	if err != nil {
		return nil, err
	}
	group := make([]*Endpoint, size)
	for rank := range size {
		if rank != Root {
			if _, err := h.join(rank); err != nil {
				return nil, err
			}
		}
		e := &Endpoint{hub: h, rank: rank}
		for _, opt := range opts {
			opt(e)
		}
		group[rank] = e
	}
	return group, nil
}

func (e *Endpoint) Rank() int { return e.rank }

func (e *Endpoint) Size() int { return e.hub.size }

func (e *Endpoint) next() uint64 {
	seq := e.seq
	e.seq++
	return seq
}

func (e *Endpoint) Broadcast(ctx context.Context, payload []byte) ([]byte, error) {
	seq := e.next()
	if e.rank == Root {
		if err := e.hub.publish(seq, encodeFrame(payload)); err != nil {
			return nil, err
		}
		r, err := e.hub.arrive(seq, opBroadcast, e.rank, nil, nil)
		if err != nil {
			return nil, err
		}
		if err := e.hub.settle(ctx, r); err != nil {
			return nil, err
		}
		return payload, nil
	}

	frame, err := e.hub.fetch(ctx, seq)
	if err != nil {
		return nil, err
	}
	if e.filter != nil {
		frame = e.filter(e.rank, slices.Clone(frame))
	}
	received, verr := decodeFrame(frame)
	r, err := e.hub.arrive(seq, opBroadcast, e.rank, nil, verr)
	if err != nil {
		return nil, err
	}
	if err := e.hub.settle(ctx, r); err != nil {
		return nil, err
	}
	// the frame is shared by every local rank
	return slices.Clone(received), nil
}

func (e *Endpoint) Gather(ctx context.Context, chunk []float64, failure error) ([][]float64, error) {
	seq := e.next()
	r, err := e.hub.arrive(seq, opGather, e.rank, slices.Clone(chunk), failure)
	if err != nil {
		return nil, err
	}
	if e.rank != Root {
		return nil, nil
	}
	if err := e.hub.settle(ctx, r); err != nil {
		return nil, err
	}
	return slices.Clone(r.chunks), nil
}

// Close on the root endpoint closes the group. It is a no-op on other ranks.
func (e *Endpoint) Close() error {
	if e.rank == Root {
		e.hub.close()
	}
	return nil
}

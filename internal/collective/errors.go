package collective

import "errors"

var (
	// ErrProtocol reports a disagreement between participants: a corrupted or
	// mis-sized frame, mismatched operations, or a failure reported by a peer.
	ErrProtocol = errors.New("collective protocol failure")

	// ErrClosed is returned by operations pending on a group that has been closed.
	ErrClosed = errors.New("collective group closed")
)

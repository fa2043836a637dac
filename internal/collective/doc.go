// Package collective provides the two collective operations the optimizer needs
// between participant processes: a rooted Broadcast of a byte payload and a rooted
// Gather of cost vectors.
//
// Every participant of a group shares one hub. Operations are matched by their
// position in each participant's call sequence, so all participants must issue the
// same operations in the same order, as with any collective API. Rank 0 is the root
// of every operation.
//
// Two transports are available:
//
//   - NewLocalGroup creates n in-process endpoints sharing a hub. It backs
//     single-process runs and tests.
//   - NewCoordinator hosts the hub behind a gRPC service and acts as rank 0;
//     Dial connects a remote worker to it.
//
// Broadcast payloads travel in a frame carrying their length and an xxhash64 digest.
// Every receiver verifies the frame and acknowledges it; Broadcast returns on every
// participant only once all of them have acknowledged, and fails everywhere with
// ErrProtocol if any of them rejected the frame.
package collective

// Package optimizer runs the distributed strategy search.
//
// One Optimizer runs per participant of a collective group. The coordinator (rank 0)
// calls Optimize; every other rank calls Participate. Both follow the same sequence of
// collective operations:
//
//	Limiter → Generator → Broadcast(run descriptor) → Broadcast(candidates)
//	        → Evaluate(own partition) → Gather(costs) → Select
//
// The run descriptor carries the track model, the race parameters and the number of
// candidates that follow, so workers never read the rates document themselves.
//
// Example usage:
//
//	group, _ := collective.NewLocalGroup(3)
//	for _, worker := range group[1:] {
//	    go optimizer.NewOptimizer(worker, opts).Participate(ctx)
//	}
//	result, err := optimizer.NewOptimizer(group[0], opts).Optimize(ctx, optimizer.Request{
//	    Model:           model,
//	    TotalLaps:       57,
//	    Tolerance:       2,
//	    StartingLapTime: 95.1,
//	})
//
// Error Handling:
//
// A failure on the coordinator before distribution (limiter rejection, empty candidate
// set) is broadcast in the run descriptor and every worker returns ErrAborted. A worker
// that cannot decode or verify the candidates, or fails to score its partition, reports
// the failure through the gather, and the coordinator fails with
// collective.ErrProtocol. Partial results are never selected from.
package optimizer

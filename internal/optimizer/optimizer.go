package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/llm-d/llm-d-race-strategy-optimizer/api/v1alpha1"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/codec"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/collective"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/engines/limiter"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/logging"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/metrics"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/solver"
)

// ErrAborted is returned on a worker when the coordinator gave up before distributing
// the candidate set.
var ErrAborted = errors.New("run aborted by coordinator")

// Request describes one optimization on the coordinator.
type Request struct {
	Model           *core.TrackModel
	TotalLaps       int
	Tolerance       int
	StartingLapTime float64
}

// Options holds the dependencies shared by coordinator and worker runs.
type Options struct {
	// Generator enumerates candidates on the coordinator. Defaults to the default search order.
	Generator *solver.Generator
	// Limiter bounds the search before generation. Optional.
	Limiter limiter.Limiter
	// Parallelism bounds the scoring goroutines of this participant.
	Parallelism int
	// Recorder receives pipeline observations. Defaults to a no-op.
	Recorder metrics.Recorder
	// CollectiveTimeout bounds each broadcast and gather. Zero waits forever.
	CollectiveTimeout time.Duration
}

// Result is the outcome of a run, reported by the coordinator.
type Result struct {
	RunID      string              `json:"runID" yaml:"runID"`
	Track      string              `json:"track" yaml:"track"`
	TotalLaps  int                 `json:"totalLaps" yaml:"totalLaps"`
	WorldSize  int                 `json:"worldSize" yaml:"worldSize"`
	Candidates int                 `json:"candidates" yaml:"candidates"`
	Best       core.ScoredStrategy `json:"best" yaml:"best"`
}

// Optimizer runs the distributed search for one participant of a group.
type Optimizer struct {
	comm collective.Communicator
	opts Options
}

// NewOptimizer creates an Optimizer speaking through comm.
func NewOptimizer(comm collective.Communicator, opts Options) *Optimizer {
	if opts.Generator == nil {
		opts.Generator = solver.NewGenerator()
	}
	opts.Recorder = metrics.OrNoop(opts.Recorder)
	return &Optimizer{comm: comm, opts: opts}
}

// Optimize runs the search as the coordinator: it bounds and generates the candidate set,
// distributes it with the run descriptor, scores its own partition, gathers every other
// partition and selects the cheapest strategy.
//
// Every participant of the group must be running Participate concurrently. A failure
// before distribution is broadcast to the workers so that they exit too.
func (o *Optimizer) Optimize(ctx context.Context, req Request) (*Result, error) {
	if o.comm.Rank() != collective.Root {
		return nil, fmt.Errorf("optimize must run on rank %d, this is rank %d", collective.Root, o.comm.Rank())
	}
	if req.Model == nil {
		return nil, errors.New("optimize requires a track model")
	}
	runID := uuid.NewString()
	logger := logging.FromContext(ctx).WithValues("runID", runID, "track", req.Model.Name())
	ctx = logging.IntoContext(ctx, logger)

	spec := v1alpha1.RunSpec{
		RunID:           runID,
		Track:           req.Model.Name(),
		TotalLaps:       req.TotalLaps,
		Tolerance:       req.Tolerance,
		StartingLapTime: req.StartingLapTime,
		Rates:           req.Model.ToDocument(),
	}

	candidates, err := o.generate(ctx, req)
	if err != nil {
		spec.Abort = err.Error()
		if berr := o.broadcastSpec(ctx, spec); berr != nil {
			logger.Error(berr, "Failed to notify workers of the abort")
		}
		return nil, err
	}
	spec.Candidates = len(candidates)

	if err := o.broadcastSpec(ctx, spec); err != nil {
		return nil, err
	}
	if _, err := o.broadcast(ctx, codec.Encode(candidates)); err != nil {
		return nil, fmt.Errorf("broadcast candidates: %w", err)
	}

	partition, err := core.PartitionFor(len(candidates), o.comm.Size(), o.comm.Rank())
	if err != nil {
		return nil, err
	}
	local, evalErr := o.evaluate(ctx, candidates, partition, req.Model, req.StartingLapTime)
	chunks, err := o.gather(ctx, local, evalErr)
	if evalErr != nil {
		return nil, fmt.Errorf("evaluate partition: %w", evalErr)
	}
	if err != nil {
		return nil, fmt.Errorf("gather costs: %w", err)
	}

	costs, err := reassemble(chunks, len(candidates))
	if err != nil {
		return nil, err
	}
	scored, err := solver.Zip(candidates, costs)
	if err != nil {
		return nil, err
	}
	best, err := solver.Select(scored)
	if err != nil {
		return nil, err
	}
	o.opts.Recorder.SetBestCost(spec.Track, best.Cost)

	logger.Info("Optimal strategy selected",
		"candidates", len(candidates),
		"worldSize", o.comm.Size(),
		"strategy", best.Strategy.String(),
		"raceTime", best.Cost)

	return &Result{
		RunID:      runID,
		Track:      spec.Track,
		TotalLaps:  req.TotalLaps,
		WorldSize:  o.comm.Size(),
		Candidates: len(candidates),
		Best:       best,
	}, nil
}

// Participate runs one search as a worker: it receives the run descriptor and the
// candidate set, verifies them, scores its partition and submits the costs.
func (o *Optimizer) Participate(ctx context.Context) error {
	logger := logging.FromContext(ctx).WithValues("rank", o.comm.Rank())
	ctx = logging.IntoContext(ctx, logger)

	raw, err := o.broadcast(ctx, nil)
	if err != nil {
		return fmt.Errorf("receive run descriptor: %w", err)
	}
	var spec v1alpha1.RunSpec
	fail := json.Unmarshal(raw, &spec)
	if fail != nil {
		fail = fmt.Errorf("%w: decode run descriptor: %w", collective.ErrProtocol, fail)
	} else if spec.Abort != "" {
		return fmt.Errorf("%w: %s", ErrAborted, spec.Abort)
	}
	logger = logger.WithValues("runID", spec.RunID, "track", spec.Track)
	ctx = logging.IntoContext(ctx, logger)

	payload, err := o.broadcast(ctx, nil)
	if err != nil {
		return fmt.Errorf("receive candidates: %w", err)
	}

	// From here on a failure is reported through the gather so that the coordinator
	// stops waiting for this rank.
	var (
		model      *core.TrackModel
		candidates core.CandidateSet
		partition  core.Partition
		local      []float64
	)
	if fail == nil {
		model, candidates, fail = accept(spec, payload)
	}
	if fail == nil {
		partition, fail = core.PartitionFor(len(candidates), o.comm.Size(), o.comm.Rank())
	}
	if fail == nil {
		local, fail = o.evaluate(ctx, candidates, partition, model, spec.StartingLapTime)
	}
	if _, err := o.gather(ctx, local, fail); err != nil {
		return fmt.Errorf("submit costs: %w", err)
	}
	if fail != nil {
		return fail
	}
	logger.V(logging.DEBUG).Info("Partition submitted", "strategies", len(local))
	return nil
}

// accept rebuilds the model from the descriptor and checks the decoded candidate set
// against it.
func accept(spec v1alpha1.RunSpec, payload []byte) (*core.TrackModel, core.CandidateSet, error) {
	model, err := core.TrackModelFromRates(spec.Track, spec.Rates)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: run descriptor: %w", collective.ErrProtocol, err)
	}
	candidates, err := codec.Decode(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", collective.ErrProtocol, err)
	}
	if len(candidates) != spec.Candidates {
		return nil, nil, fmt.Errorf("%w: decoded %d candidates, coordinator announced %d",
			collective.ErrProtocol, len(candidates), spec.Candidates)
	}
	for i, s := range candidates {
		if err := s.Validate(model, spec.TotalLaps); err != nil {
			return nil, nil, fmt.Errorf("%w: candidate %d: %w", collective.ErrProtocol, i, err)
		}
	}
	return model, candidates, nil
}

func (o *Optimizer) generate(ctx context.Context, req Request) (core.CandidateSet, error) {
	if req.TotalLaps < 0 {
		return nil, fmt.Errorf("total laps must be >= 0, got %d", req.TotalLaps)
	}
	if req.Tolerance < 0 {
		return nil, fmt.Errorf("tolerance must be >= 0, got %d", req.Tolerance)
	}
	if o.opts.Limiter != nil {
		if err := o.opts.Limiter.Limit(ctx, req.Model, req.TotalLaps, req.Tolerance); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	candidates := o.opts.Generator.Generate(req.Model, req.TotalLaps, req.Tolerance)
	elapsed := time.Since(start)
	o.opts.Recorder.ObserveGeneration(len(candidates), elapsed)
	logging.FromContext(ctx).V(logging.DEBUG).Info("Generated candidates",
		"candidates", len(candidates),
		"totalLaps", req.TotalLaps,
		"tolerance", req.Tolerance,
		"elapsed", elapsed)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no strategy covers %d laps with tolerance %d",
			solver.ErrNoStrategies, req.TotalLaps, req.Tolerance)
	}
	return candidates, nil
}

func (o *Optimizer) evaluate(
	ctx context.Context,
	candidates core.CandidateSet,
	partition core.Partition,
	model *core.TrackModel,
	startingLapTime float64,
) ([]float64, error) {
	return solver.Evaluate(ctx, candidates[partition.Start:partition.End], model, startingLapTime, solver.EvaluateOptions{
		Parallelism: o.opts.Parallelism,
		Rank:        o.comm.Rank(),
		Recorder:    o.opts.Recorder,
	})
}

func (o *Optimizer) broadcastSpec(ctx context.Context, spec v1alpha1.RunSpec) error {
	raw, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	if _, err := o.broadcast(ctx, raw); err != nil {
		return fmt.Errorf("broadcast run descriptor: %w", err)
	}
	return nil
}

func (o *Optimizer) broadcast(ctx context.Context, payload []byte) ([]byte, error) {
	ctx, cancel := o.collectiveContext(ctx)
	defer cancel()
	start := time.Now()
	out, err := o.comm.Broadcast(ctx, payload)
	if err != nil {
		return nil, err
	}
	o.opts.Recorder.ObserveCollective(metrics.OpBroadcast, len(out), time.Since(start))
	return out, nil
}

func (o *Optimizer) gather(ctx context.Context, chunk []float64, failure error) ([][]float64, error) {
	ctx, cancel := o.collectiveContext(ctx)
	defer cancel()
	start := time.Now()
	chunks, err := o.comm.Gather(ctx, chunk, failure)
	if err != nil {
		return nil, err
	}
	bytes := 0
	for _, c := range chunks {
		bytes += 8 * len(c)
	}
	if chunks == nil {
		bytes = 8 * len(chunk)
	}
	o.opts.Recorder.ObserveCollective(metrics.OpGather, bytes, time.Since(start))
	return chunks, nil
}

func (o *Optimizer) collectiveContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opts.CollectiveTimeout > 0 {
		return context.WithTimeout(ctx, o.opts.CollectiveTimeout)
	}
	return context.WithCancel(ctx)
}

// reassemble concatenates the gathered chunks in rank order after checking each against
// the partition its rank was assigned.
func reassemble(chunks [][]float64, n int) ([]float64, error) {
	partitions, err := core.Partitions(n, len(chunks))
	if err != nil {
		return nil, err
	}
	costs := make([]float64, n)
	for rank, p := range partitions {
		if got := len(chunks[rank]); got != p.Len() {
			return nil, fmt.Errorf("%w: rank %d returned %d costs for a partition of %d",
				collective.ErrProtocol, rank, got, p.Len())
		}
		copy(costs[p.Start:p.End], chunks[rank])
	}
	return costs, nil
}

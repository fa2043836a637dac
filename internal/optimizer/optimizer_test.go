package optimizer

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/collective"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/engines/limiter"
	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/metrics"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/solver"
)

type groupRun struct {
	result     *Result
	err        error
	workerErrs []error
}

// runLocal runs one search over an in-process group of size ranks.
func runLocal(size int, opts Options, req Request, groupOpts ...collective.LocalOption) groupRun {
	group, err := collective.NewLocalGroup(size, groupOpts...)
	Expect(err).NotTo(HaveOccurred())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	run := groupRun{workerErrs: make([]error, size)}
	var wg sync.WaitGroup
	for rank := 1; rank < size; rank++ {
		wg.Add(1)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			run.workerErrs[rank] = NewOptimizer(group[rank], opts).Participate(ctx)
		}()
	}
	run.result, run.err = NewOptimizer(group[collective.Root], opts).Optimize(ctx, req)
	wg.Wait()
	Expect(group[collective.Root].Close()).To(Succeed())
	return run
}

// sequentialBest scores every candidate in a single loop.
func sequentialBest(req Request) (core.ScoredStrategy, int) {
	candidates := solver.NewGenerator().Generate(req.Model, req.TotalLaps, req.Tolerance)
	scored := make([]core.ScoredStrategy, len(candidates))
	for i, s := range candidates {
		scored[i] = core.ScoredStrategy{Strategy: s, Cost: solver.Score(s, req.Model, req.StartingLapTime)}
	}
	best, err := solver.Select(scored)
	Expect(err).NotTo(HaveOccurred())
	return best, len(candidates)
}

func makeModel(rates map[core.Compound]core.CompoundRates) *core.TrackModel {
	model, err := core.NewTrackModel("Bahrain Grand Prix", rates)
	Expect(err).NotTo(HaveOccurred())
	return model
}

var _ = Describe("Optimizer", func() {
	var req Request

	BeforeEach(func() {
		req = Request{
			Model: makeModel(map[core.Compound]core.CompoundRates{
				core.Soft:   {AverageDegradation: 0.12, AverageStintLength: 6},
				core.Medium: {AverageDegradation: 0.08, AverageStintLength: 9},
				core.Hard:   {AverageDegradation: 0.05, AverageStintLength: 13},
			}),
			TotalLaps:       25,
			Tolerance:       1,
			StartingLapTime: 95.2,
		}
	})

	DescribeTable("should select the sequential optimum for any world size",
		func(size int) {
			want, n := sequentialBest(req)

			run := runLocal(size, Options{Parallelism: 2}, req)
			Expect(run.err).NotTo(HaveOccurred())
			for rank, err := range run.workerErrs {
				Expect(err).NotTo(HaveOccurred(), "rank %d", rank)
			}
			Expect(run.result.Best).To(Equal(want))
			Expect(run.result.Candidates).To(Equal(n))
			Expect(run.result.WorldSize).To(Equal(size))
			Expect(run.result.Track).To(Equal("Bahrain Grand Prix"))
			Expect(run.result.RunID).NotTo(BeEmpty())
		},
		Entry("one participant", 1),
		Entry("three participants", 3),
		Entry("seven participants", 7),
	)

	It("should solve the single-compound scenario", func() {
		req = Request{
			Model: makeModel(map[core.Compound]core.CompoundRates{
				core.Soft: {AverageDegradation: 0.1, AverageStintLength: 10},
			}),
			TotalLaps:       20,
			Tolerance:       0,
			StartingLapTime: 90.0,
		}
		run := runLocal(2, Options{}, req)
		Expect(run.err).NotTo(HaveOccurred())
		Expect(run.result.Candidates).To(Equal(1))
		Expect(run.result.Best.Strategy).To(Equal(core.Strategy{
			{Compound: core.Soft, Laps: 10},
			{Compound: core.Soft, Laps: 10},
		}))
		Expect(run.result.Best.Cost).To(BeNumerically("~", 1840.14, 1e-9))
	})

	It("should leave idle ranks with empty partitions when candidates are scarce", func() {
		req = Request{
			Model: makeModel(map[core.Compound]core.CompoundRates{
				core.Hard: {AverageDegradation: 0.05, AverageStintLength: 30},
			}),
			TotalLaps:       30,
			StartingLapTime: 90.0,
		}
		run := runLocal(4, Options{}, req)
		Expect(run.err).NotTo(HaveOccurred())
		Expect(run.result.Candidates).To(Equal(1))
		Expect(run.workerErrs).To(HaveEach(BeNil()))
	})

	It("should return a strategy with no stints for a zero-lap race", func() {
		req.TotalLaps = 0
		run := runLocal(3, Options{}, req)
		Expect(run.err).NotTo(HaveOccurred())
		Expect(run.result.Candidates).To(Equal(1))
		Expect(run.result.Best.Strategy).To(BeEmpty())
		Expect(run.result.Best.Cost).To(Equal(0.0))
	})

	It("should abort every participant on an empty candidate set", func() {
		req.Model = makeModel(map[core.Compound]core.CompoundRates{
			core.Wet: {AverageDegradation: 0.3, AverageStintLength: 5},
		})
		run := runLocal(3, Options{}, req)
		Expect(run.err).To(MatchError(solver.ErrNoStrategies))
		Expect(run.workerErrs[1]).To(MatchError(ErrAborted))
		Expect(run.workerErrs[2]).To(MatchError(ErrAborted))
	})

	It("should abort every participant when the limiter rejects the search", func() {
		l, err := limiter.FromConfig(limiter.LimiterConfig{MaxTolerance: 2, MaxCandidates: 10})
		Expect(err).NotTo(HaveOccurred())

		run := runLocal(3, Options{Limiter: l}, req)
		Expect(run.err).To(MatchError(limiter.ErrLimitExceeded))
		Expect(run.workerErrs[1]).To(MatchError(ErrAborted))
		Expect(run.workerErrs[1].Error()).To(ContainSubstring("more than 10 candidates"))
	})

	It("should fail the run when a worker receives a corrupted candidate payload", func() {
		seen := map[int]int{}
		var mu sync.Mutex
		corruptSecondFrame := func(rank int, frame []byte) []byte {
			mu.Lock()
			defer mu.Unlock()
			seen[rank]++
			if rank == 2 && seen[rank] == 2 {
				frame[len(frame)-2] = 'X'
			}
			return frame
		}
		run := runLocal(3, Options{}, req, collective.WithFrameFilter(corruptSecondFrame))
		Expect(run.err).To(MatchError(collective.ErrProtocol))
		Expect(run.result).To(BeNil())
		Expect(run.workerErrs[1]).To(MatchError(collective.ErrProtocol))
		Expect(run.workerErrs[2]).To(MatchError(collective.ErrProtocol))
	})

	It("should time out when a participant never shows up", func() {
		group, err := collective.NewLocalGroup(2)
		Expect(err).NotTo(HaveOccurred())
		defer group[collective.Root].Close()

		_, err = NewOptimizer(group[collective.Root], Options{CollectiveTimeout: 50 * time.Millisecond}).
			Optimize(context.Background(), req)
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("should refuse to coordinate from a worker rank", func() {
		group, err := collective.NewLocalGroup(2)
		Expect(err).NotTo(HaveOccurred())
		_, err = NewOptimizer(group[1], Options{}).Optimize(context.Background(), req)
		Expect(err).To(HaveOccurred())
	})

	It("should report to the injected recorder", func() {
		reg := prometheus.NewRegistry()
		recorder, err := metrics.NewPrometheusRecorder(reg)
		Expect(err).NotTo(HaveOccurred())

		run := runLocal(3, Options{Recorder: recorder}, req)
		Expect(run.err).NotTo(HaveOccurred())

		Expect(testutil.ToFloat64(recorder.BestRaceTime("Bahrain Grand Prix"))).To(Equal(run.result.Best.Cost))
		count, err := testutil.GatherAndCount(reg, "race_strategy_collective_bytes_total")
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(2))
	})
})

var _ = Describe("reassemble", func() {
	It("should concatenate chunks in rank order", func() {
		costs, err := reassemble([][]float64{{1, 2}, {3, 4}, {5}}, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(costs).To(Equal([]float64{1, 2, 3, 4, 5}))
	})

	It("should reject a chunk that does not match its partition", func() {
		_, err := reassemble([][]float64{{1, 2}, {3}, {4, 5}}, 5)
		Expect(err).To(MatchError(collective.ErrProtocol))
	})

	It("should accept empty trailing chunks", func() {
		costs, err := reassemble([][]float64{{1}, {}, nil}, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(costs).To(Equal([]float64{1}))
	})
})

var _ = Describe("RunLocal", func() {
	It("should match the sequential search", func() {
		req := Request{
			Model: makeModel(map[core.Compound]core.CompoundRates{
				core.Soft: {AverageDegradation: 0.1, AverageStintLength: 5},
				core.Hard: {AverageDegradation: 0.04, AverageStintLength: 11},
			}),
			TotalLaps:       18,
			Tolerance:       1,
			StartingLapTime: 90,
		}
		want, n := sequentialBest(req)

		result, err := RunLocal(context.Background(), 4, Options{Parallelism: 2}, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Best).To(Equal(want))
		Expect(result.Candidates).To(Equal(n))
		Expect(result.WorldSize).To(Equal(4))
	})

	It("should return the coordinator's error rather than the workers' abort", func() {
		req := Request{
			Model:           makeModel(map[core.Compound]core.CompoundRates{core.Soft: {AverageDegradation: 0.1, AverageStintLength: 5}}),
			TotalLaps:       20,
			Tolerance:       2,
			StartingLapTime: 90,
		}
		lim, err := limiter.NewToleranceLimiter(1)
		Expect(err).NotTo(HaveOccurred())

		_, err = RunLocal(context.Background(), 3, Options{Limiter: lim}, req)
		Expect(err).To(MatchError(limiter.ErrLimitExceeded))
		Expect(err).NotTo(MatchError(ErrAborted))
	})

	It("should reject an empty group", func() {
		_, err := RunLocal(context.Background(), 0, Options{}, Request{})
		Expect(err).To(HaveOccurred())
	})
})

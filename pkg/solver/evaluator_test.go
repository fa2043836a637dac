package solver

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/llm-d/llm-d-race-strategy-optimizer/internal/metrics"
	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
)

var _ = Describe("Evaluate", func() {
	var (
		model      *core.TrackModel
		candidates core.CandidateSet
		sequential []float64
	)

	BeforeEach(func() {
		model = makeModel(map[core.Compound]core.CompoundRates{
			core.Soft:   {AverageDegradation: 0.12, AverageStintLength: 6},
			core.Medium: {AverageDegradation: 0.08, AverageStintLength: 9},
			core.Hard:   {AverageDegradation: 0.05, AverageStintLength: 13},
		})
		candidates = NewGenerator().Generate(model, 30, 1)
		sequential = make([]float64, len(candidates))
		for i, s := range candidates {
			sequential[i] = Score(s, model, 88.4)
		}
	})

	It("should match sequential scoring for any parallelism", func() {
		for _, parallelism := range []int{1, 2, 3, 7, 64, 0} {
			costs, err := Evaluate(context.Background(), candidates, model, 88.4,
				EvaluateOptions{Parallelism: parallelism})
			Expect(err).NotTo(HaveOccurred())
			Expect(costs).To(Equal(sequential), "parallelism %d", parallelism)
		}
	})

	It("should give the same costs when chunks are scored independently and reassembled", func() {
		for _, worldSize := range []int{1, 2, 5, 11} {
			partitions, err := core.Partitions(len(candidates), worldSize)
			Expect(err).NotTo(HaveOccurred())

			reassembled := make([]float64, len(candidates))
			for _, p := range partitions {
				chunk, err := Evaluate(context.Background(), candidates[p.Start:p.End], model, 88.4,
					EvaluateOptions{Parallelism: 3, Rank: p.Rank})
				Expect(err).NotTo(HaveOccurred())
				Expect(chunk).To(HaveLen(p.Len()))
				copy(reassembled[p.Start:], chunk)
			}
			Expect(reassembled).To(Equal(sequential), "world size %d", worldSize)
		}
	})

	It("should return an empty result for an empty chunk", func() {
		costs, err := Evaluate(context.Background(), nil, model, 88.4, EvaluateOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(costs).To(BeEmpty())
	})

	It("should stop on a cancelled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Evaluate(ctx, candidates, model, 88.4, EvaluateOptions{Parallelism: 2})
		Expect(err).To(MatchError(context.Canceled))
	})

	It("should report to the injected recorder", func() {
		reg := prometheus.NewRegistry()
		recorder, err := metrics.NewPrometheusRecorder(reg)
		Expect(err).NotTo(HaveOccurred())

		_, err = Evaluate(context.Background(), candidates, model, 88.4,
			EvaluateOptions{Parallelism: 2, Rank: 4, Recorder: recorder})
		Expect(err).NotTo(HaveOccurred())

		count, err := testutil.GatherAndCount(reg, "race_strategy_evaluated_total")
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(1))
	})
})

package solver

import (
	"slices"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llm-d/llm-d-race-strategy-optimizer/pkg/core"
)

func makeModel(rates map[core.Compound]core.CompoundRates) *core.TrackModel {
	model, err := core.NewTrackModel("test-track", rates)
	Expect(err).NotTo(HaveOccurred())
	return model
}

var _ = Describe("Generator", func() {
	var gen *Generator

	BeforeEach(func() {
		gen = NewGenerator()
	})

	Context("with the single-compound scenario", func() {
		It("should produce exactly two ten-lap SOFT stints", func() {
			model := makeModel(map[core.Compound]core.CompoundRates{
				core.Soft: {AverageDegradation: 0.1, AverageStintLength: 10},
			})
			Expect(gen.Generate(model, 20, 0)).To(Equal(core.CandidateSet{
				{{Compound: core.Soft, Laps: 10}, {Compound: core.Soft, Laps: 10}},
			}))
		})
	})

	Context("with two compounds", func() {
		It("should follow the compound search order and clamp the final stint", func() {
			model := makeModel(map[core.Compound]core.CompoundRates{
				core.Soft: {AverageDegradation: 0.1, AverageStintLength: 2},
				core.Hard: {AverageDegradation: 0.05, AverageStintLength: 3},
			})
			Expect(gen.Generate(model, 4, 0)).To(Equal(core.CandidateSet{
				{{Compound: core.Hard, Laps: 3}, {Compound: core.Hard, Laps: 1}},
				{{Compound: core.Hard, Laps: 3}, {Compound: core.Soft, Laps: 1}},
				{{Compound: core.Soft, Laps: 2}, {Compound: core.Hard, Laps: 2}},
				{{Compound: core.Soft, Laps: 2}, {Compound: core.Soft, Laps: 2}},
			}))
		})
	})

	Context("with a tolerance window", func() {
		It("should try every length of the window and stop after the clamped one", func() {
			model := makeModel(map[core.Compound]core.CompoundRates{
				core.Soft: {AverageDegradation: 0.1, AverageStintLength: 2},
			})
			Expect(gen.Generate(model, 2, 1)).To(Equal(core.CandidateSet{
				{{Compound: core.Soft, Laps: 1}, {Compound: core.Soft, Laps: 1}},
				{{Compound: core.Soft, Laps: 2}},
			}))
		})

		It("should never go below one lap", func() {
			Expect(stintLengths(2, 5, 10)).To(Equal([]int{1, 2, 3, 4, 5, 6, 7}))
			Expect(stintLengths(2, 5, 4)).To(Equal([]int{1, 2, 3, 4}))
			Expect(stintLengths(10, 0, 3)).To(Equal([]int{3}))
		})
	})

	Context("covering the race distance", func() {
		It("should emit only strategies whose laps sum to the race length", func() {
			model := makeModel(map[core.Compound]core.CompoundRates{
				core.Soft:   {AverageDegradation: 0.12, AverageStintLength: 6},
				core.Medium: {AverageDegradation: 0.08, AverageStintLength: 9},
				core.Hard:   {AverageDegradation: 0.05, AverageStintLength: 13},
			})
			candidates := gen.Generate(model, 25, 1)
			Expect(candidates).NotTo(BeEmpty())
			for _, s := range candidates {
				Expect(s.TotalLaps()).To(Equal(25))
				Expect(s.Validate(model, 25)).To(Succeed())
			}
		})
	})

	Context("with compounds absent from the model", func() {
		It("should never use them", func() {
			model := makeModel(map[core.Compound]core.CompoundRates{
				core.Medium: {AverageDegradation: 0.08, AverageStintLength: 5},
			})
			candidates := gen.Generate(model, 12, 1)
			Expect(candidates).NotTo(BeEmpty())
			for _, s := range candidates {
				for _, stint := range s {
					Expect(stint.Compound).To(Equal(core.Medium))
				}
			}
		})

		It("should produce an empty set when no search compound is present", func() {
			model := makeModel(map[core.Compound]core.CompoundRates{
				core.Wet: {AverageDegradation: 0.3, AverageStintLength: 5},
			})
			Expect(gen.Generate(model, 12, 1)).To(BeEmpty())
		})
	})

	Context("with a zero-lap race", func() {
		It("should produce exactly one strategy with no stints", func() {
			model := makeModel(map[core.Compound]core.CompoundRates{
				core.Soft: {AverageDegradation: 0.1, AverageStintLength: 10},
			})
			candidates := gen.Generate(model, 0, 2)
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0]).To(BeEmpty())
		})
	})

	Context("with a repeated compound in the search order", func() {
		It("should keep the duplicate strategies", func() {
			model := makeModel(map[core.Compound]core.CompoundRates{
				core.Soft: {AverageDegradation: 0.1, AverageStintLength: 5},
			})
			dup := NewGenerator(core.Soft, core.Soft)
			Expect(dup.Generate(model, 5, 0)).To(Equal(core.CandidateSet{
				{{Compound: core.Soft, Laps: 5}},
				{{Compound: core.Soft, Laps: 5}},
			}))
		})
	})

	Describe("Strategies", func() {
		var model *core.TrackModel

		BeforeEach(func() {
			model = makeModel(map[core.Compound]core.CompoundRates{
				core.Soft: {AverageDegradation: 0.12, AverageStintLength: 4},
				core.Hard: {AverageDegradation: 0.05, AverageStintLength: 7},
			})
		})

		It("should be re-runnable and yield independent strategies", func() {
			first := slices.Collect(gen.Strategies(model, 15, 1))
			second := slices.Collect(gen.Strategies(model, 15, 1))
			Expect(first).To(Equal(second))

			first[0][0].Laps = 99
			Expect(second[0][0].Laps).NotTo(Equal(99))
			Expect(first[1][0].Laps).NotTo(Equal(99))
		})

		It("should stop early when the consumer stops", func() {
			n := 0
			for range gen.Strategies(model, 15, 1) {
				n++
				if n == 3 {
					break
				}
			}
			Expect(n).To(Equal(3))
		})

		It("should count lazily with a limit", func() {
			total := len(gen.Generate(model, 15, 1))
			n, exact := gen.Count(model, 15, 1, 0)
			Expect(exact).To(BeTrue())
			Expect(n).To(Equal(total))

			n, exact = gen.Count(model, 15, 1, 2)
			Expect(exact).To(BeFalse())
			Expect(n).To(Equal(3))
		})

		It("should yield nothing for a negative race length", func() {
			Expect(gen.Generate(model, -1, 1)).To(BeEmpty())
		})
	})
})

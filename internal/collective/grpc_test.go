package collective

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("gRPC transport", func() {
	var (
		ctx         context.Context
		cancel      context.CancelFunc
		coordinator *Coordinator
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
		var err error
		coordinator, err = NewCoordinator(ctx, "127.0.0.1:0", 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(coordinator.Addr()).NotTo(BeEmpty())
	})

	AfterEach(func() {
		Expect(coordinator.Close()).To(Succeed())
		cancel()
	})

	dialWorkers := func(ranks ...int) []*Worker {
		workers := make([]*Worker, len(ranks))
		for i, rank := range ranks {
			w, err := Dial(ctx, coordinator.Addr(), rank)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(w.Close)
			workers[i] = w
		}
		return workers
	}

	It("should assign free ranks in join order", func() {
		workers := dialWorkers(AnyRank, AnyRank)
		Expect(workers[0].Rank()).To(Equal(1))
		Expect(workers[1].Rank()).To(Equal(2))
		Expect(workers[0].Size()).To(Equal(3))

		_, err := Dial(ctx, coordinator.Addr(), AnyRank)
		Expect(err).To(MatchError(ErrProtocol))
	})

	It("should honour an explicit rank and reject a duplicate", func() {
		workers := dialWorkers(2)
		Expect(workers[0].Rank()).To(Equal(2))

		_, err := Dial(ctx, coordinator.Addr(), 2)
		Expect(err).To(MatchError(ErrProtocol))

		_, err = Dial(ctx, coordinator.Addr(), 7)
		Expect(err).To(MatchError(ErrProtocol))
	})

	It("should broadcast and gather across processes", func() {
		workers := dialWorkers(AnyRank, AnyRank)
		group := []Communicator{coordinator, workers[0], workers[1]}
		payload := []byte("HARD 20 SOFT 15\nSOFT 10 SOFT 10 SOFT 15\n")

		out := runRanks(group, func(c Communicator) outcome {
			var in []byte
			if c.Rank() == Root {
				in = payload
			}
			got, err := c.Broadcast(ctx, in)
			if err != nil {
				return outcome{err: err}
			}
			chunk := []float64{1830.57 + float64(c.Rank()), 0.1}
			chunks, err := c.Gather(ctx, chunk, nil)
			return outcome{payload: got, chunks: chunks, err: err}
		})

		for rank, o := range out {
			Expect(o.err).NotTo(HaveOccurred(), "rank %d", rank)
			Expect(o.payload).To(Equal(payload), "rank %d", rank)
		}
		Expect(out[Root].chunks).To(Equal([][]float64{
			{1830.57, 0.1},
			{1831.57, 0.1},
			{1832.57, 0.1},
		}))
	})

	It("should deliver an empty chunk as empty", func() {
		workers := dialWorkers(AnyRank, AnyRank)
		group := []Communicator{coordinator, workers[0], workers[1]}

		out := runRanks(group, func(c Communicator) outcome {
			var chunk []float64
			if c.Rank() == Root {
				chunk = []float64{3}
			}
			chunks, err := c.Gather(ctx, chunk, nil)
			return outcome{chunks: chunks, err: err}
		})
		Expect(out[Root].err).NotTo(HaveOccurred())
		Expect(out[Root].chunks[1]).To(BeEmpty())
		Expect(out[Root].chunks[2]).To(BeEmpty())
	})

	It("should carry a worker failure to the root", func() {
		workers := dialWorkers(AnyRank, AnyRank)
		group := []Communicator{coordinator, workers[0], workers[1]}

		out := runRanks(group, func(c Communicator) outcome {
			var failure error
			if c.Rank() == 2 {
				failure = errors.New("strategy 4 covers 19 laps, want 20")
			}
			chunks, err := c.Gather(ctx, []float64{1}, failure)
			return outcome{chunks: chunks, err: err}
		})
		Expect(out[Root].err).To(MatchError(ErrProtocol))
		Expect(out[Root].err.Error()).To(ContainSubstring("covers 19 laps"))
	})

	It("should unblock waiting workers when the coordinator closes", func() {
		workers := dialWorkers(AnyRank)

		var wg sync.WaitGroup
		var err error
		wg.Add(1)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			_, err = workers[0].Broadcast(ctx, nil)
		}()
		time.Sleep(50 * time.Millisecond)
		Expect(coordinator.Close()).To(Succeed())
		wg.Wait()
		Expect(err).To(HaveOccurred())
	})
})

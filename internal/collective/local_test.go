package collective

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type outcome struct {
	payload []byte
	chunks  [][]float64
	err     error
}

// runRanks runs step on every communicator concurrently and collects the outcomes by rank.
func runRanks[C Communicator](group []C, step func(c C) outcome) []outcome {
	out := make([]outcome, len(group))
	var wg sync.WaitGroup
	for rank, c := range group {
		wg.Add(1)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			out[rank] = step(c)
		}()
	}
	wg.Wait()
	return out
}

func broadcastThenGather(payload []byte) func(c *Endpoint) outcome {
	return func(c *Endpoint) outcome {
		ctx := context.Background()
		var in []byte
		if c.Rank() == Root {
			in = payload
		}
		got, err := c.Broadcast(ctx, in)
		if err != nil {
			return outcome{err: err}
		}
		chunk := []float64{float64(c.Rank()), float64(len(got))}
		chunks, err := c.Gather(ctx, chunk, nil)
		return outcome{payload: got, chunks: chunks, err: err}
	}
}

var _ = Describe("Local group", func() {
	It("should reject an empty group", func() {
		_, err := NewLocalGroup(0)
		Expect(err).To(HaveOccurred())
	})

	DescribeTable("broadcast and gather",
		func(size int) {
			group, err := NewLocalGroup(size)
			Expect(err).NotTo(HaveOccurred())
			Expect(group).To(HaveLen(size))

			payload := []byte("SOFT 10 SOFT 10\nHARD 20\n")
			out := runRanks(group, broadcastThenGather(payload))

			for rank, o := range out {
				Expect(o.err).NotTo(HaveOccurred(), "rank %d", rank)
				Expect(o.payload).To(Equal(payload), "rank %d", rank)
				Expect(group[rank].Rank()).To(Equal(rank))
				Expect(group[rank].Size()).To(Equal(size))
			}
			Expect(out[Root].chunks).To(HaveLen(size))
			for rank, chunk := range out[Root].chunks {
				Expect(chunk).To(Equal([]float64{float64(rank), float64(len(payload))}))
			}
			for rank := 1; rank < size; rank++ {
				Expect(out[rank].chunks).To(BeNil())
			}
		},
		Entry("single participant", 1),
		Entry("three participants", 3),
		Entry("eight participants", 8),
	)

	It("should hand every rank its own copy of the payload", func() {
		group, err := NewLocalGroup(3)
		Expect(err).NotTo(HaveOccurred())

		out := runRanks(group, func(c *Endpoint) outcome {
			var in []byte
			if c.Rank() == Root {
				in = []byte("MEDIUM 5\n")
			}
			got, err := c.Broadcast(context.Background(), in)
			return outcome{payload: got, err: err}
		})
		Expect(out[1].err).NotTo(HaveOccurred())
		out[1].payload[0] = 'X'
		Expect(out[2].payload).To(Equal([]byte("MEDIUM 5\n")))
	})

	It("should fail the broadcast on every rank when one receives a corrupted frame", func() {
		corrupt := func(rank int, frame []byte) []byte {
			if rank == 2 && len(frame) > frameHeaderLen {
				frame[len(frame)-1] ^= 0xff
			}
			return frame
		}
		group, err := NewLocalGroup(3, WithFrameFilter(corrupt))
		Expect(err).NotTo(HaveOccurred())

		out := runRanks(group, func(c *Endpoint) outcome {
			var in []byte
			if c.Rank() == Root {
				in = []byte("HARD 3\n")
			}
			_, err := c.Broadcast(context.Background(), in)
			return outcome{err: err}
		})
		for rank, o := range out {
			Expect(o.err).To(MatchError(ErrProtocol), "rank %d", rank)
			Expect(o.err.Error()).To(ContainSubstring("rank 2"))
		}
	})

	It("should fail the root's gather when a rank reports a failure", func() {
		group, err := NewLocalGroup(3)
		Expect(err).NotTo(HaveOccurred())

		out := runRanks(group, func(c *Endpoint) outcome {
			var failure error
			if c.Rank() == 1 {
				failure = errors.New("decode failed")
			}
			chunks, err := c.Gather(context.Background(), []float64{1}, failure)
			return outcome{chunks: chunks, err: err}
		})
		Expect(out[Root].err).To(MatchError(ErrProtocol))
		Expect(out[Root].err.Error()).To(ContainSubstring("decode failed"))
		Expect(out[Root].chunks).To(BeNil())
		Expect(out[1].err).NotTo(HaveOccurred())
	})

	It("should reject mismatched operations", func() {
		group, err := NewLocalGroup(2)
		Expect(err).NotTo(HaveOccurred())

		_, err = group[1].Gather(context.Background(), []float64{1}, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = group[Root].Broadcast(context.Background(), []byte("x"))
		Expect(err).To(MatchError(ErrProtocol))
	})

	It("should give up waiting when the context expires", func() {
		group, err := NewLocalGroup(2)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err = group[Root].Gather(ctx, []float64{1}, nil)
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("should release pending operations when the root closes the group", func() {
		group, err := NewLocalGroup(2)
		Expect(err).NotTo(HaveOccurred())

		errCh := make(chan error, 1)
		go func() {
			_, err := group[1].Broadcast(context.Background(), nil)
			errCh <- err
		}()
		Expect(group[1].Close()).To(Succeed())
		Consistently(errCh, 50*time.Millisecond).ShouldNot(Receive())

		Expect(group[Root].Close()).To(Succeed())
		Eventually(errCh).Should(Receive(MatchError(ErrClosed)))
	})
})

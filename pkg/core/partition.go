package core

import "fmt"

// Partition is the half-open global index range [Start, End) owned by one participant.
type Partition struct {
	Rank  int
	Start int
	End   int
}

// Len returns the number of strategies in the partition.
func (p Partition) Len() int {
	return p.End - p.Start
}

// PartitionFor splits [0, n) into worldSize contiguous chunks of ceil(n/worldSize)
// and returns the chunk of the given rank. Trailing ranks may receive a short or empty chunk.
func PartitionFor(n, worldSize, rank int) (Partition, error) {
	if worldSize < 1 {
		return Partition{}, fmt.Errorf("world size must be >= 1, got %d", worldSize)
	}
	if rank < 0 || rank >= worldSize {
		return Partition{}, fmt.Errorf("rank %d out of range [0, %d)", rank, worldSize)
	}
	if n < 0 {
		return Partition{}, fmt.Errorf("candidate count must be >= 0, got %d", n)
	}
	chunk := (n + worldSize - 1) / worldSize
	start := min(rank*chunk, n)
	end := min(start+chunk, n)
	return Partition{Rank: rank, Start: start, End: end}, nil
}

// Partitions returns the partitions of every rank, in rank order.
func Partitions(n, worldSize int) ([]Partition, error) {
	if worldSize < 1 {
		return nil, fmt.Errorf("world size must be >= 1, got %d", worldSize)
	}
	out := make([]Partition, worldSize)
	for rank := range worldSize {
		p, err := PartitionFor(n, worldSize, rank)
		if err != nil {
			return nil, err
		}
		out[rank] = p
	}
	return out, nil
}

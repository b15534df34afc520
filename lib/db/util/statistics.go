package util

import (
	"math"
	"sync"
)

// ----------------------------------------------------------------------------
// Distribution statistics
// ----------------------------------------------------------------------------

type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes mean, min, max and the population standard deviation of values.
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	lo, hi := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}

	ratio := 1.0
	if hi > 0 {
		ratio = lo / hi
	}

	return Stats{
		StdDeviation: math.Sqrt(sq / float64(len(values))),
		Min:          lo,
		Max:          hi,
		Mean:         mean,
		MinMaxRatio:  ratio,
	}
}

type DistributionStats struct {
	Stats
	DistributionQuality float64 `json:"distribution_quality"`
}

// NewDistributionStats rates how evenly objects are spread over shards.
// 1.0 is a perfect distribution, values near 0 mean a few shards hold everything.
func NewDistributionStats(shardSizes []float64) DistributionStats {
	stats := NewStats(shardSizes)

	var cv float64
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	return DistributionStats{
		Stats:               stats,
		DistributionQuality: (1.0-math.Min(1.0, cv))*0.5 + stats.MinMaxRatio*0.5,
	}
}

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// SizeHistogram counts value sizes in power-of-four buckets (16B up to 4GB).
// It is safe for concurrent use.
type SizeHistogram struct {
	mu      sync.Mutex
	buckets [16]int64
	count   int64
	sum     int64
}

func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{}
}

// bucketLimit returns the upper size bound of bucket i
func bucketLimit(i int) int {
	return 16 << (2 * i)
}

func (h *SizeHistogram) AddSample(size int) {
	i := 0
	for i < len(h.buckets)-1 && size > bucketLimit(i) {
		i++
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.buckets[i]++
	h.count++
	h.sum += int64(size)
}

func (h *SizeHistogram) AverageSize() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// MedianEstimate returns the midpoint of the bucket holding the median sample.
func (h *SizeHistogram) MedianEstimate() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}

	var seen int64
	for i, n := range h.buckets {
		seen += n
		if seen*2 < h.count {
			continue
		}
		if i == 0 {
			return bucketLimit(0) / 2
		}
		return (bucketLimit(i-1) + bucketLimit(i)) / 2
	}
	return int(h.sum / h.count)
}

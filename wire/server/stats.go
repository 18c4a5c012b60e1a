package server

import (
	"math"
	"sync"
)

// ----------------------------------------------------------------------------
// PayloadHistogram
// ----------------------------------------------------------------------------

// PayloadHistogram tracks the distribution of message payload sizes seen by
// one server. It organizes sizes into exponential buckets for efficient
// memory usage while still providing useful estimations, covering everything
// from empty termination frames up to result rows in the hundreds of
// megabytes.
type PayloadHistogram struct {
	mutex      sync.RWMutex
	boundaries []int   // Bucket boundaries covering byte to GB range
	buckets    []int64 // Count of payloads in each bucket
	count      int64   // Total number of samples
	sum        int64   // Sum of all sampled payload sizes
}

// NewPayloadHistogram creates a new payload histogram with default bucket
// boundaries. The boundaries are calibrated for wire frames: most traffic is
// tiny control messages, with an occasional bulky data row.
func NewPayloadHistogram() *PayloadHistogram {
	// Exponential bucket sizes cover the whole frame-length range
	// permitted on the wire without wasting memory on dense buckets
	return &PayloadHistogram{
		boundaries: []int{
			16, 64, 256, 1024, 4096, // Bytes: 16B to 4KB
			16384, 65536, 262144, 1048576, // KB range: 16KB to 1MB
			4194304, 16777216, 67108864, // MB range: 4MB to 64MB
			268435456, 1073741824, // 256MB to 1GB
		},
		buckets: make([]int64, 15), // 15 buckets (14 boundaries + 1 for larger values)
	}
}

// AddSample records the payload size of one decoded or encoded message
//
// Thread-safe: This method is safe for concurrent use
func (h *PayloadHistogram) AddSample(size int) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	// Find the appropriate bucket for this size
	bucketIndex := 0
	for i, boundary := range h.boundaries {
		if size <= boundary {
			bucketIndex = i
			break
		}
		bucketIndex = len(h.boundaries) // Last bucket for all larger values
	}

	h.buckets[bucketIndex]++
	h.count++
	h.sum += int64(size)
}

// Count returns the total number of sampled payloads
//
// Thread-safe: This method is safe for concurrent use
func (h *PayloadHistogram) Count() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.count
}

// AverageSize returns the average payload size across all samples
//
// Thread-safe: This method is safe for concurrent use
func (h *PayloadHistogram) AverageSize() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// PercentileEstimate returns an estimate for the given percentile (0-100)
// based on the bucket the target sample falls into
//
// Thread-safe: This method is safe for concurrent use
func (h *PayloadHistogram) PercentileEstimate(percentile int) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 || percentile < 0 || percentile > 100 {
		return 0
	}

	targetCount := int64(math.Ceil(float64(h.count) * float64(percentile) / 100.0))
	cumulativeCount := int64(0)

	for i, count := range h.buckets {
		cumulativeCount += count
		if cumulativeCount >= targetCount {
			if i == 0 {
				// For the first bucket, estimate as half of the boundary
				return h.boundaries[0] / 2
			} else if i < len(h.boundaries) {
				// For middle buckets, use the average of boundaries
				return (h.boundaries[i-1] + h.boundaries[i]) / 2
			} else {
				// For the last bucket, estimate as 2x the last boundary
				return h.boundaries[len(h.boundaries)-1] * 2
			}
		}
	}

	// Should never reach here
	return int(h.sum / h.count)
}

// Distribution returns the bucket boundaries and the percentage of samples
// in each bucket
//
// Thread-safe: This method is safe for concurrent use
func (h *PayloadHistogram) Distribution() ([]int, []float64) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 {
		return h.boundaries, make([]float64, len(h.buckets))
	}

	percentages := make([]float64, len(h.buckets))
	for i, count := range h.buckets {
		percentages[i] = float64(count) * 100.0 / float64(h.count)
	}

	return h.boundaries, percentages
}

// Reset clears all histogram data
//
// Thread-safe: This method is safe for concurrent use
func (h *PayloadHistogram) Reset() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.count = 0
	h.sum = 0
	for i := range h.buckets {
		h.buckets[i] = 0
	}
}

package eventqueue

import "math"

const (
	gapSampleSize      = 64
	occupancySmoothing = 1.0 / 16
	minRebuildInterval = 64
	maxBucketCount     = 1 << 22
)

// WidthSample is what a WidthEstimator sees when a bucket queue rebuilds.
type WidthSample struct {
	// Gaps are the most recent differences between successively dequeued
	// times, oldest first.
	Gaps []float64

	// Count, MinTime and MaxTime describe the entries being redistributed.
	Count   int
	MinTime float64
	MaxTime float64

	// Current is the bucket width in use before the rebuild.
	Current float64
}

// A WidthEstimator decides the bucket width a bucket queue uses after a
// rebuild. An estimator must be deterministic: the same sample must always
// produce the same width. Non-positive or non-finite results are ignored and
// the current width is kept.
type WidthEstimator interface {
	EstimateWidth(sample WidthSample) float64
}

// WidthEstimatorFunc adapts a function to WidthEstimator.
type WidthEstimatorFunc func(sample WidthSample) float64

// EstimateWidth calls f.
func (f WidthEstimatorFunc) EstimateWidth(sample WidthSample) float64 {
	return f(sample)
}

// GapEstimator sets the width to three times the average separation of
// recently dequeued events, ignoring separations larger than twice the
// plain average. Without usable samples it falls back to the spread of the
// queued entries.
type GapEstimator struct{}

// EstimateWidth implements WidthEstimator.
func (GapEstimator) EstimateWidth(s WidthSample) float64 {
	if w := trimmedMeanGap(s.Gaps) * 3; w > 0 {
		return w
	}

	if s.Count > 1 && s.MaxTime > s.MinTime {
		return (s.MaxTime - s.MinTime) / float64(s.Count-1) * 3
	}

	return s.Current
}

func trimmedMeanGap(gaps []float64) float64 {
	if len(gaps) == 0 {
		return 0
	}

	sum := 0.0
	for _, g := range gaps {
		sum += g
	}
	mean := sum / float64(len(gaps))

	sum = 0
	count := 0
	for _, g := range gaps {
		if g <= mean*2 {
			sum += g
			count++
		}
	}

	if count == 0 {
		return mean
	}

	return sum / float64(count)
}

func usableWidth(w float64) bool {
	return w > 0 && !math.IsInf(w, 0) && !math.IsNaN(w)
}

// gapRecorder keeps a ring of the latest dequeue separations.
type gapRecorder struct {
	gaps    [gapSampleSize]float64
	next    int
	count   int
	last    float64
	hasLast bool
}

func (r *gapRecorder) record(t float64) {
	if math.IsInf(t, 0) {
		return
	}

	if r.hasLast && t >= r.last {
		r.gaps[r.next] = t - r.last
		r.next = (r.next + 1) % gapSampleSize
		if r.count < gapSampleSize {
			r.count++
		}
	}

	r.last = t
	r.hasLast = true
}

func (r *gapRecorder) snapshot() []float64 {
	out := make([]float64, 0, r.count)
	start := (r.next - r.count + gapSampleSize) % gapSampleSize
	for i := 0; i < r.count; i++ {
		out = append(out, r.gaps[(start+i)%gapSampleSize])
	}

	return out
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n && p < maxBucketCount {
		p <<= 1
	}

	return p
}

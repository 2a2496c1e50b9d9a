package session

import "time"

// MinSampleInterval is the shortest elapsed time between two progress samples
// that produces a fresh throughput estimate. Anything shorter carries the
// previous estimate forward to avoid division-by-near-zero noise.
const MinSampleInterval = 50 * time.Millisecond

// Sample is one (offset, time) observation of an upload's progress.
type Sample struct {
	Offset int64
	Time   time.Time
}

// EstimateSpeed computes instantaneous throughput in bytes/second from the
// previous and current progress samples.
//
// It returns (0, false) when there is no prior sample, and carries the
// previous estimate forward unchanged when the samples are too close together
// or when the offset moved backwards (a protocol anomaly that must not feed
// the displayed statistics). The result is never negative or infinite.
func EstimateSpeed(prev, cur Sample, carriedSpeed float64, carriedOK bool) (float64, bool) {
	if prev.Time.IsZero() {
		return 0, false
	}

	elapsed := cur.Time.Sub(prev.Time)
	if elapsed < MinSampleInterval {
		return carriedSpeed, carriedOK
	}
	if cur.Offset < prev.Offset {
		return carriedSpeed, carriedOK
	}

	return float64(cur.Offset-prev.Offset) / elapsed.Seconds(), true
}

package services

import (
	"sync"
	"time"

	"github.com/zatekoja/smartcare/backend/internal/domain/entities"
)

const (
	loadHistoryWindow = 30 * time.Minute
	trendSamples      = 5
	trendMinSamples   = 3
	trendThreshold    = 0.5
)

// LoadTracker keeps a rolling window of queue length samples per department
type LoadTracker struct {
	mu      sync.Mutex
	window  time.Duration
	samples map[string][]entities.DepartmentMetricsSample
	now     func() time.Time
}

// NewLoadTracker creates a tracker retaining samples for window (30 minutes when zero)
func NewLoadTracker(window time.Duration) *LoadTracker {
	if window <= 0 {
		window = loadHistoryWindow
	}
	return &LoadTracker{
		window:  window,
		samples: make(map[string][]entities.DepartmentMetricsSample),
		now:     time.Now,
	}
}

// SetClock replaces the time source used to expire samples
func (t *LoadTracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Record appends a sample and drops samples older than the window
func (t *LoadTracker) Record(department string, queueLength int, at time.Time) {
	department = entities.NormalizeDepartment(department)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples[department] = append(t.samples[department], entities.DepartmentMetricsSample{At: at, QueueLength: queueLength})
	t.pruneLocked(department, at)
}

// Trend classifies the direction of the last few samples. Fewer than three
// samples are reported as stable.
func (t *LoadTracker) Trend(department string) entities.LoadTrend {
	hist := t.History(department)
	if len(hist) < trendMinSamples {
		return entities.LoadTrendStable
	}
	if len(hist) > trendSamples {
		hist = hist[len(hist)-trendSamples:]
	}

	var sum float64
	for i := 1; i < len(hist); i++ {
		sum += float64(hist[i].QueueLength - hist[i-1].QueueLength)
	}
	avg := sum / float64(len(hist)-1)
	switch {
	case avg > trendThreshold:
		return entities.LoadTrendIncreasing
	case avg < -trendThreshold:
		return entities.LoadTrendDecreasing
	default:
		return entities.LoadTrendStable
	}
}

// Predict projects the queue length 30 minutes out from the trend
func (t *LoadTracker) Predict(department string, current int) int {
	return PredictQueue(t.Trend(department), current)
}

// PredictQueue is the linear projection used by the allocator
func PredictQueue(trend entities.LoadTrend, current int) int {
	switch trend {
	case entities.LoadTrendIncreasing:
		return current + 4
	case entities.LoadTrendDecreasing:
		return max(current-3, 0)
	default:
		return current
	}
}

// History returns the samples inside the window, oldest first
func (t *LoadTracker) History(department string) []entities.DepartmentMetricsSample {
	department = entities.NormalizeDepartment(department)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.pruneLocked(department, t.now())
	hist := t.samples[department]
	out := make([]entities.DepartmentMetricsSample, len(hist))
	copy(out, hist)
	return out
}

// Reset forgets every sample
func (t *LoadTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = make(map[string][]entities.DepartmentMetricsSample)
}

func (t *LoadTracker) pruneLocked(department string, now time.Time) {
	hist := t.samples[department]
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(hist) && hist[i].At.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.samples[department] = append(hist[:0:0], hist[i:]...)
	}
}

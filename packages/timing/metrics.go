// Package timing measures spec durations through suite listeners and
// aggregates them into a latency histogram.
package timing

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/abdul-hamid-achik/hitsuite/packages/core/suite"
)

// Report field keys written by the listeners.
const (
	FieldStartedAt = "startedAt"
	FieldEndedAt   = "endedAt"
	FieldElapsed   = "elapsed"
)

// maxLatencyUs bounds the histogram: 1us to 1h.
const maxLatencyUs = 3_600_000_000

// Metrics collects spec durations.
type Metrics struct {
	mu sync.Mutex

	// Latency histogram, in microseconds
	histogram *hdrhistogram.Histogram
	samples   []Sample
	now       func() time.Time
}

// Sample is the measured duration of one report.
type Sample struct {
	Description string
	Elapsed     time.Duration
	OK          bool
}

// Summary aggregates the recorded samples.
type Summary struct {
	Count int64
	Total time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{
		histogram: hdrhistogram.New(1, maxLatencyUs, 3),
		now:       time.Now,
	}
}

// Attach registers the timing listeners. The pending listener stamps the
// start time and the complete listener stamps the end time and the elapsed
// milliseconds, then records the sample.
func (m *Metrics) Attach(l *suite.Listeners) {
	l.OnPending(func(_ context.Context, report *suite.Report, _ func()) {
		report.Set(FieldStartedAt, m.now())
	})
	l.OnComplete(func(_ context.Context, report *suite.Report, _ func(error)) {
		end := m.now()
		report.Set(FieldEndedAt, end)
		v, ok := report.Get(FieldStartedAt)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		elapsed := end.Sub(start)
		report.Set(FieldElapsed, elapsed.Milliseconds())
		m.Record(report.Description, elapsed, report.OK)
	})
}

// Record adds one sample.
func (m *Metrics) Record(description string, elapsed time.Duration, ok bool) {
	us := min(max(elapsed.Microseconds(), 1), maxLatencyUs)

	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.histogram.RecordValue(us)
	m.samples = append(m.samples, Sample{Description: description, Elapsed: elapsed, OK: ok})
}

// Summary returns the aggregate of every recorded sample.
func (m *Metrics) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total time.Duration
	for _, s := range m.samples {
		total += s.Elapsed
	}
	return Summary{
		Count: m.histogram.TotalCount(),
		Total: total,
		P50:   time.Duration(m.histogram.ValueAtQuantile(50)) * time.Microsecond,
		P95:   time.Duration(m.histogram.ValueAtQuantile(95)) * time.Microsecond,
		P99:   time.Duration(m.histogram.ValueAtQuantile(99)) * time.Microsecond,
		Min:   time.Duration(m.histogram.Min()) * time.Microsecond,
		Max:   time.Duration(m.histogram.Max()) * time.Microsecond,
		Mean:  time.Duration(m.histogram.Mean()) * time.Microsecond,
	}
}

// Slowest returns up to n samples, longest first.
func (m *Metrics) Slowest(n int) []Sample {
	m.mu.Lock()
	samples := slices.Clone(m.samples)
	m.mu.Unlock()

	slices.SortStableFunc(samples, func(a, b Sample) int {
		return cmp.Compare(b.Elapsed, a.Elapsed)
	})
	if n >= 0 && len(samples) > n {
		samples = samples[:n]
	}
	return samples
}

// Reset discards every sample.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histogram.Reset()
	m.samples = nil
}

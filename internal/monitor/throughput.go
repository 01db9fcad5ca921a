package monitor

import (
	"context"
	"math"

	"dqmon/internal/history"
	"dqmon/internal/logging"
)

const (
	minThroughputSamples = 3
	minThroughputStride  = 3
	strideDivisor        = 100
	historyPruneEvery    = 100
)

// Throughput is the documents-per-hour rate of the final stage.
type Throughput struct {
	PerHour float64
	StdDev  float64
	// Windows is the number of strided intervals the rate averages.
	Windows int
}

// computeThroughput averages per-interval rates over a strided subsample
// of samples. The standard deviation is the population deviation of those
// rates.
func computeThroughput(samples []history.Sample) (Throughput, bool) {
	n := len(samples)
	if n < minThroughputSamples {
		return Throughput{}, false
	}
	stride := max(minThroughputStride, n/strideDivisor)
	var rates []float64
	for i := stride; i < n; i += stride {
		from, to := samples[i-stride], samples[i]
		hours := to.Time.Sub(from.Time).Hours()
		if hours <= 0 {
			continue
		}
		rates = append(rates, float64(to.Docs-from.Docs)/hours)
	}
	if len(rates) == 0 {
		return Throughput{}, false
	}
	var sum float64
	for _, r := range rates {
		sum += r
	}
	mean := sum / float64(len(rates))
	var sq float64
	for _, r := range rates {
		sq += (r - mean) * (r - mean)
	}
	return Throughput{
		PerHour: mean,
		StdDev:  math.Sqrt(sq / float64(len(rates))),
		Windows: len(rates),
	}, true
}

// Throughput reports the current estimate, false until enough samples
// have been collected.
func (m *Monitor) Throughput() (Throughput, bool) {
	return computeThroughput(m.samples)
}

// DocsProcessed is the number of documents final-stage workers report.
func (m *Monitor) DocsProcessed() int64 {
	final := m.pipeline.FinalQueue()
	var docs int64
	for _, w := range m.workers {
		if w.Dst() == final {
			docs += w.Times().Docs
		}
	}
	return docs
}

// recordThroughput appends a sample once the final stage has emitted
// anything. A count lower than the previous sample means the final-stage
// workers were cleaned up, so the buffer starts over.
func (m *Monitor) recordThroughput(ctx context.Context) {
	docs := m.DocsProcessed()
	if docs == 0 {
		return
	}
	sample := history.Sample{RunID: m.opts.RunID, Time: m.now(), Docs: docs}
	if n := len(m.samples); n > 0 && docs < m.samples[n-1].Docs {
		m.samples = m.samples[:0]
	}
	m.samples = append(m.samples, sample)
	if over := len(m.samples) - m.opts.ThroughputSamples; over > 0 {
		m.samples = append(m.samples[:0:0], m.samples[over:]...)
	}

	store := m.opts.History
	if store == nil {
		return
	}
	if err := store.Append(ctx, sample); err != nil {
		logging.WarnWithContext(m.logger, "failed to journal throughput sample",
			"history_append_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check "+store.Path()),
			logging.String(logging.FieldImpact, "throughput restarts from zero after a monitor restart"),
		)
		return
	}
	m.appended++
	if m.appended%historyPruneEvery == 0 {
		if _, err := store.Prune(ctx, m.opts.ThroughputSamples); err != nil {
			m.logger.Debug("history prune failed", logging.Error(err))
		}
	}
}

package metrics

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/tutoragent/internal/logfields"
)

// DefaultSlowThreshold is the duration above which an operation is logged as slow.
const DefaultSlowThreshold = time.Second

// OperationStats summarizes the observations of one operation.
type OperationStats struct {
	Operation   string  `json:"operation"`
	Count       int     `json:"count"`
	AvgTimeMS   float64 `json:"avg_time_ms"`
	MinTimeMS   float64 `json:"min_time_ms"`
	MaxTimeMS   float64 `json:"max_time_ms"`
	SuccessRate float64 `json:"success_rate"`
}

type opSamples struct {
	count     int
	successes int
	total     time.Duration
	min       time.Duration
	max       time.Duration
}

// Monitor records per-operation timings and success counts.
type Monitor struct {
	mu            sync.Mutex
	ops           map[string]*opSamples
	slowThreshold time.Duration
	recorder      Recorder
	logger        *slog.Logger
}

// NewMonitor creates a Monitor. A zero threshold uses DefaultSlowThreshold and a
// nil recorder uses NoopRecorder.
func NewMonitor(slowThreshold time.Duration, recorder Recorder) *Monitor {
	if slowThreshold <= 0 {
		slowThreshold = DefaultSlowThreshold
	}
	if recorder == nil {
		recorder = NoopRecorder{}
	}
	return &Monitor{
		ops:           make(map[string]*opSamples),
		slowThreshold: slowThreshold,
		recorder:      recorder,
		logger:        slog.Default(),
	}
}

// SetSlowThreshold changes the slow-operation warning threshold.
func (m *Monitor) SetSlowThreshold(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.slowThreshold = d
	m.mu.Unlock()
}

// Record adds one observation.
func (m *Monitor) Record(op string, d time.Duration, success bool) {
	m.mu.Lock()
	s, ok := m.ops[op]
	if !ok {
		s = &opSamples{min: time.Duration(math.MaxInt64)}
		m.ops[op] = s
	}
	s.count++
	if success {
		s.successes++
	}
	s.total += d
	s.min = min(s.min, d)
	s.max = max(s.max, d)
	threshold := m.slowThreshold
	m.mu.Unlock()

	result := ResultSuccess
	if !success {
		result = ResultFailure
	}
	m.recorder.ObserveOperation(op, d, result)

	if d > threshold {
		m.logger.Warn("Slow operation", logfields.Operation(op), logfields.Duration(d))
	}
}

// Track starts timing op and returns a function that records it. Pass a
// pointer to the caller's named error return to capture success.
//
//	defer m.Track("search")(&err)
func (m *Monitor) Track(op string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		success := errp == nil || *errp == nil
		m.Record(op, time.Since(start), success)
	}
}

// Stats returns a snapshot of all operations, sorted by name.
func (m *Monitor) Stats() []OperationStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]OperationStats, 0, len(m.ops))
	for name, s := range m.ops {
		out = append(out, OperationStats{
			Operation:   name,
			Count:       s.count,
			AvgTimeMS:   ms(s.total) / float64(s.count),
			MinTimeMS:   ms(s.min),
			MaxTimeMS:   ms(s.max),
			SuccessRate: float64(s.successes) / float64(s.count) * 100,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

// Reset drops all recorded samples.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.ops = make(map[string]*opSamples)
	m.mu.Unlock()
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
